package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestOutboxPublisher_PublishOrderEvent(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newMockProducer(t)
	publisher := NewOutboxPublisher(producer, "")

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			t.Errorf("expected topic %s, got %s", TopicOrderEvents, msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "order-123" {
			t.Errorf("expected partition key order-123, got %s", key)
		}

		value, _ := msg.Value.Encode()
		var event OrderEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeOrderCreated {
			t.Errorf("expected wire type %s, got %s", EventTypeOrderCreated, event.EventType)
		}
		if event.OrderID != "order-123" || event.UserID != "user-1" {
			t.Errorf("unexpected event fields: %+v", event)
		}
		if event.Metadata["outbox_id"] != "outbox-1" {
			t.Errorf("outbox id must land in metadata: %+v", event.Metadata)
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "OrderCreated",
		Payload:       []byte(`{"total_minor":3000,"user_id":"user-1"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_RoutesDeliveryEvents(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newMockProducer(t)
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeliveryEvents {
			t.Errorf("delivery aggregate must go to %s, got %s", TopicDeliveryEvents, msg.Topic)
		}

		value, _ := msg.Value.Encode()
		var event DeliveryEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeDeliveryAssigned {
			t.Errorf("expected wire type %s, got %s", EventTypeDeliveryAssigned, event.EventType)
		}
		if event.CourierID != "courier-7" || event.Status != "assigned" {
			t.Errorf("unexpected event fields: %+v", event)
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "delivery",
		AggregateID:   "order-234",
		EventType:     "DeliveryAssigned",
		Payload:       []byte(`{"courier_id":"courier-7","status":"assigned"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestDLQPublisher_PublishDead(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newMockProducer(t)
	publisher := NewDLQPublisher(producer)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			t.Errorf("expected topic %s, got %s", TopicDeadLetterQueue, msg.Topic)
		}

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		if headers[HeaderOriginalTopic] != TopicOrderEvents {
			t.Errorf("unexpected original topic header: %q", headers[HeaderOriginalTopic])
		}
		if headers[HeaderRetryCount] != "3" {
			t.Errorf("unexpected retry count header: %q", headers[HeaderRetryCount])
		}
		if headers[HeaderErrorMessage] != "broker unavailable" {
			t.Errorf("unexpected error header: %q", headers[HeaderErrorMessage])
		}
		if headers[HeaderFailedAt] == "" {
			t.Error("failed-at header must be set")
		}
		return nil
	})

	err := publisher.PublishDead(domain.OutboxMessage{
		ID:            "outbox-4",
		AggregateType: "order",
		AggregateID:   "order-345",
		EventType:     "OrderPaid",
		Payload:       []byte(`{"amount_minor":2700}`),
	}, 3, errors.New("broker unavailable"))
	if err != nil {
		t.Fatalf("publish dead failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDLQPublisher_NilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewDLQPublisher(nil)
	if err := publisher.PublishDead(domain.OutboxMessage{ID: "outbox-5"}, 1, errors.New("x")); err == nil {
		t.Fatal("expected error for nil producer")
	}
}
