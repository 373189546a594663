package memory

import (
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type deliveryRepo struct {
	s *Store
}

// GetByOrder возвращает доставку заказа или ErrDeliveryNotFound.
func (r *deliveryRepo) GetByOrder(orderID string) (domain.Delivery, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.deliveries[orderID]
	if !ok {
		return domain.Delivery{}, domain.ErrDeliveryNotFound
	}
	return d, nil
}

// Assign атомарно забирает курьера и привязывает его к доставке: проверка
// доступности и её снятие — одно действие под общим мьютексом, два
// конкурентных Assign на одного курьера не пройдут оба.
func (r *deliveryRepo) Assign(orderID, courierID string, now time.Time) (domain.Delivery, domain.Courier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.deliveries[orderID]
	if !ok {
		return domain.Delivery{}, domain.Courier{}, domain.ErrDeliveryNotFound
	}
	if !d.Status.CanTransition(domain.DeliveryStatusAssigned) {
		return domain.Delivery{}, domain.Courier{}, domain.ErrInvalidState
	}

	c, ok := r.s.couriers[courierID]
	if !ok {
		return domain.Delivery{}, domain.Courier{}, domain.ErrCourierNotFound
	}
	if !c.Assignable() {
		return domain.Delivery{}, domain.Courier{}, domain.ErrCourierUnavailable
	}

	// Claim-if-available: оба изменения коммитятся вместе.
	c.IsAvailable = false
	c.Status = domain.CourierStatusBusy
	c.UpdatedAt = now
	r.s.couriers[courierID] = c

	d.CourierID = courierID
	d.Status = domain.DeliveryStatusAssigned
	assignedAt := now
	d.AssignedAt = &assignedAt
	d.UpdatedAt = now
	r.s.deliveries[orderID] = d

	return d, c, nil
}

// Save перезаписывает запись доставки.
func (r *deliveryRepo) Save(delivery domain.Delivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.deliveries[delivery.OrderID]; !ok {
		return domain.ErrDeliveryNotFound
	}
	r.s.deliveries[delivery.OrderID] = delivery
	return nil
}

// Complete фиксирует вручение и освобождает курьера одной операцией.
func (r *deliveryRepo) Complete(delivery domain.Delivery) (domain.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.deliveries[delivery.OrderID]; !ok {
		return domain.Delivery{}, domain.ErrDeliveryNotFound
	}
	r.s.deliveries[delivery.OrderID] = delivery

	if c, ok := r.s.couriers[delivery.CourierID]; ok {
		c.IsAvailable = true
		c.Status = domain.CourierStatusActive
		c.CompletedDeliveries++
		c.UpdatedAt = delivery.UpdatedAt
		r.s.couriers[delivery.CourierID] = c
	}
	return delivery, nil
}

var _ domain.DeliveryRepository = (*deliveryRepo)(nil)
