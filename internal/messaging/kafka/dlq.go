package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// DLQPublisher отправляет сообщения, не доставленные основным publisher'ом,
// в dead letter queue. Контекст сбоя уходит в заголовки, тело сообщения
// остаётся исходным событием: его можно переиграть без распаковки обёртки.
type DLQPublisher struct {
	producer *Producer
	topic    string
}

// NewDLQPublisher создаёт publisher для DLQ-топика маркетплейса.
func NewDLQPublisher(producer *Producer) *DLQPublisher {
	return &DLQPublisher{producer: producer, topic: TopicDeadLetterQueue}
}

// PublishDead публикует погибшее сообщение с заголовками сбоя.
func (p *DLQPublisher) PublishDead(msg domain.OutboxMessage, attempts int, cause error) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	value, err := json.Marshal(struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
	}{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq message: %w", err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderOriginalTopic), Value: []byte(originalTopic(msg.AggregateType))},
		{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(attempts))},
		{Key: []byte(HeaderErrorMessage), Value: []byte(reason)},
		{Key: []byte(HeaderFailedAt), Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
	}

	return p.producer.PublishRaw(p.topic, partitionKey(msg), value, headers)
}

func originalTopic(aggregateType string) string {
	if aggregateType == "delivery" {
		return TopicDeliveryEvents
	}
	return TopicOrderEvents
}
