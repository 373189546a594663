package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type orderRepo struct {
	s *Store
}

// CreateCheckout атомарно резервирует сток и сохраняет заказ с доставкой.
// Резерв выполняется в два прохода: сначала проверка всех позиций, потом
// декременты — при нехватке любой позиции хранилище остаётся нетронутым.
func (r *orderRepo) CreateCheckout(order domain.Order, delivery domain.Delivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}

	for _, item := range order.Items {
		v, ok := r.s.variants[item.VariantID]
		if !ok {
			return domain.ErrVariantNotFound
		}
		if v.Stock < item.Qty {
			return domain.ErrInsufficientStock
		}
	}
	for _, item := range order.Items {
		if _, err := r.s.reserveLocked(item.VariantID, item.Qty); err != nil {
			return err
		}
	}

	r.s.orders[order.ID] = copyOrder(order)
	r.s.deliveries[delivery.OrderID] = delivery
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepo) Get(id string) (domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	order, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (r *orderRepo) ListByUser(userID string, limit int) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.s.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, copyOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepo) Save(order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	r.s.orders[order.ID] = copyOrder(order)
	return nil
}

// CancelRestock атомарно отменяет заказ: статус cancelled, сток восстановлен
// ровно по исходным количествам позиций, доставка отменена.
func (r *orderRepo) CancelRestock(order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}

	now := time.Now().UTC()
	for _, item := range current.Items {
		// Восстанавливаем по снапшоту позиций, а не по живому каталогу.
		if _, err := r.s.releaseLocked(item.VariantID, item.Qty); err != nil {
			return err
		}
	}

	current.Status = domain.OrderStatusCancelled
	current.Version++
	current.UpdatedAt = now
	r.s.orders[current.ID] = current

	if d, ok := r.s.deliveries[current.ID]; ok && d.Status.CanTransition(domain.DeliveryStatusCanceled) {
		d.Status = domain.DeliveryStatusCanceled
		d.UpdatedAt = now
		r.s.deliveries[current.ID] = d
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepo)(nil)
