package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newMockProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}
	return producer, mockProducer
}

func TestProducer_PublishJSON(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(
		EventTypeOrderCreated,
		"order-123",
		"user-1",
		"pending_payment",
		map[string]interface{}{"total_minor": 2700},
	)

	if err := producer.PublishJSON(TopicOrderEvents, "order-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishJSON_Error(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderCreated, "order-123", "user-1", "pending_payment", nil)

	if err := producer.PublishJSON(TopicOrderEvents, "order-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishRaw_KeepsHeaders(t *testing.T) {
	producer, mockProducer := newMockProducer(t)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderOriginalTopic {
			t.Errorf("headers not passed through: %+v", msg.Headers)
		}
		return nil
	})

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderOriginalTopic), Value: []byte(TopicOrderEvents)},
	}
	if err := producer.PublishRaw(TopicDeadLetterQueue, "order-123", []byte(`{}`), headers); err != nil {
		t.Fatalf("publish raw failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	if _, err := NewProducer(nil); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}

func TestWireEventType(t *testing.T) {
	cases := []struct {
		internal string
		want     EventType
	}{
		{"OrderCreated", EventTypeOrderCreated},
		{"OrderPaid", EventTypeOrderPaid},
		{"DeliveryAssigned", EventTypeDeliveryAssigned},
		{"SomethingCustom", EventType("SomethingCustom")},
	}
	for _, tc := range cases {
		if got := WireEventType(tc.internal); got != tc.want {
			t.Errorf("WireEventType(%s): expected %s, got %s", tc.internal, tc.want, got)
		}
	}
}

func TestNewOrderEvent(t *testing.T) {
	metadata := map[string]interface{}{
		"total_minor": 3000,
	}

	event := NewOrderEvent(EventTypeOrderPaid, "order-123", "user-1", "paid", metadata)

	if event.EventType != EventTypeOrderPaid {
		t.Errorf("expected event type %s, got %s", EventTypeOrderPaid, event.EventType)
	}
	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}
	if event.UserID != "user-1" {
		t.Errorf("expected user id user-1, got %s", event.UserID)
	}
	if event.Status != "paid" {
		t.Errorf("expected status paid, got %s", event.Status)
	}
	if event.Metadata["total_minor"] != 3000 {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewDeliveryEvent(t *testing.T) {
	event := NewDeliveryEvent(EventTypeDeliveryAssigned, "order-123", "courier-7", "assigned", nil)

	if event.EventType != EventTypeDeliveryAssigned {
		t.Errorf("expected event type %s, got %s", EventTypeDeliveryAssigned, event.EventType)
	}
	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}
	if event.CourierID != "courier-7" {
		t.Errorf("expected courier id courier-7, got %s", event.CourierID)
	}
	if event.Status != "assigned" {
		t.Errorf("expected status assigned, got %s", event.Status)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
