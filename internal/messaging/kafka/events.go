package kafka

import "time"

// EventType определяет тип события маркетплейса
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderPaid      EventType = "order.paid"
	EventTypeOrderCancelled EventType = "order.cancelled"
	EventTypeOrderDelivered EventType = "order.delivered"

	// Delivery события
	EventTypeDeliveryAssigned      EventType = "delivery.assigned"
	EventTypeDeliveryStatusChanged EventType = "delivery.status_changed"

	// Payment события
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	EventTypePaymentFailed    EventType = "payment.failed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "marketplace.order.events"
	TopicDeliveryEvents  = "marketplace.delivery.events"
	TopicDeadLetterQueue = "marketplace.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// wireEventTypes отображает внутренние имена outbox-событий в типы шины.
var wireEventTypes = map[string]EventType{
	"OrderCreated":          EventTypeOrderCreated,
	"OrderPaid":             EventTypeOrderPaid,
	"OrderCancelled":        EventTypeOrderCancelled,
	"OrderDelivered":        EventTypeOrderDelivered,
	"DeliveryAssigned":      EventTypeDeliveryAssigned,
	"DeliveryStatusChanged": EventTypeDeliveryStatusChanged,
	"PaymentSucceeded":      EventTypePaymentSucceeded,
	"PaymentFailed":         EventTypePaymentFailed,
}

// WireEventType переводит внутреннее имя события в канонический тип шины.
// Незнакомые имена проходят как есть: потребители фильтруют по префиксу.
func WireEventType(internal string) EventType {
	if t, ok := wireEventTypes[internal]; ok {
		return t
	}
	return EventType(internal)
}

// OrderEvent представляет событие жизненного цикла заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	UserID    string                 `json:"user_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// DeliveryEvent представляет событие доставки
type DeliveryEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	CourierID string                 `json:"courier_id,omitempty"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, userID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewDeliveryEvent создает новое событие доставки
func NewDeliveryEvent(eventType EventType, orderID, courierID, status string, metadata map[string]interface{}) *DeliveryEvent {
	return &DeliveryEvent{
		EventType: eventType,
		OrderID:   orderID,
		CourierID: courierID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
