package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// EventPublisher превращает outbox-сообщения в типизированные события шины и
// маршрутизирует их по топикам: заказы и платежи в orderTopic, доставки в
// deliveryTopic.
type EventPublisher struct {
	producer      *Producer
	orderTopic    string
	deliveryTopic string
}

// NewOutboxPublisher создаёт publisher для transactional outbox. Пустой
// orderTopic заменяется топиком заказов по умолчанию.
func NewOutboxPublisher(producer *Producer, orderTopic string) *EventPublisher {
	if orderTopic == "" {
		orderTopic = TopicOrderEvents
	}
	return &EventPublisher{
		producer:      producer,
		orderTopic:    orderTopic,
		deliveryTopic: TopicDeliveryEvents,
	}
}

// Publish публикует одно outbox-сообщение. Метаданные события берутся из
// payload, записанного сервисом в момент бизнес-операции.
func (p *EventPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	meta := decodeMetadata(msg.Payload)
	meta["outbox_id"] = msg.ID
	wireType := WireEventType(msg.EventType)

	if msg.AggregateType == "delivery" {
		event := NewDeliveryEvent(wireType, msg.AggregateID, metaString(meta, "courier_id"), metaString(meta, "status"), meta)
		return p.producer.PublishJSON(p.deliveryTopic, partitionKey(msg), event)
	}

	event := NewOrderEvent(wireType, msg.AggregateID, metaString(meta, "user_id"), metaString(meta, "status"), meta)
	return p.producer.PublishJSON(p.orderTopic, partitionKey(msg), event)
}

// partitionKey — ключ партиционирования: события одного заказа попадают в одну
// партицию и сохраняют порядок.
func partitionKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}

func decodeMetadata(payload []byte) map[string]interface{} {
	meta := make(map[string]interface{})
	if len(payload) > 0 {
		// Кривой payload не блокирует публикацию: событие уйдёт без метаданных.
		_ = json.Unmarshal(payload, &meta)
	}
	return meta
}

func metaString(meta map[string]interface{}, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

var _ domain.OutboxPublisher = (*EventPublisher)(nil)
