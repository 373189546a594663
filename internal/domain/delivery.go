package domain

import "time"

// DeliveryStatus описывает прогресс физической доставки заказа.
type DeliveryStatus string

const (
	// DeliveryStatusPending — доставка создана, ждёт назначения курьера.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusAssigned — курьер назначен.
	DeliveryStatusAssigned DeliveryStatus = "assigned"
	// DeliveryStatusPicking — курьер забирает товар.
	DeliveryStatusPicking DeliveryStatus = "picking"
	// DeliveryStatusDelivering — заказ в пути.
	DeliveryStatusDelivering DeliveryStatus = "delivering"
	// DeliveryStatusDelivered — заказ доставлен.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusCanceled — доставка отменена.
	DeliveryStatusCanceled DeliveryStatus = "canceled"
)

// deliveryOrder задаёт линейный порядок статусов для проверки "только вперёд".
var deliveryOrder = map[DeliveryStatus]int{
	DeliveryStatusPending:    0,
	DeliveryStatusAssigned:   1,
	DeliveryStatusPicking:    2,
	DeliveryStatusDelivering: 3,
	DeliveryStatusDelivered:  4,
}

// Known сообщает, относится ли статус к поддерживаемым значениям.
func (s DeliveryStatus) Known() bool {
	if s == DeliveryStatusCanceled {
		return true
	}
	_, ok := deliveryOrder[s]
	return ok
}

// CanTransition разрешает движение вперёд по цепочке статусов и отмену из
// любого незавершённого состояния. Намеренно свободная модель: матрица ролей
// (курьер/админ) здесь не кодируется.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	if !next.Known() || s == next {
		return false
	}
	if s == DeliveryStatusDelivered || s == DeliveryStatusCanceled {
		return false
	}
	if next == DeliveryStatusCanceled {
		return true
	}
	return deliveryOrder[next] > deliveryOrder[s]
}

// Delivery — запись доставки, связанная 1:1 с заказом. Создаётся при
// оформлении заказа без курьера; курьер появляется при назначении.
type Delivery struct {
	ID          string
	OrderID     string
	CourierID   string // пусто, пока курьер не назначен
	AddressID   string
	Status      DeliveryStatus
	AssignedAt  *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition переводит доставку в next, отклоняя недопустимые переходы.
// DELIVERED дополнительно фиксирует момент вручения.
func (d *Delivery) Transition(next DeliveryStatus, now time.Time) error {
	if !d.Status.CanTransition(next) {
		return ErrInvalidState
	}
	d.Status = next
	d.UpdatedAt = now
	if next == DeliveryStatusDelivered {
		ts := now
		d.DeliveredAt = &ts
	}
	return nil
}
