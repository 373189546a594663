package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type paymentRepo struct {
	s *Store
}

// Create сохраняет новую запись платежа.
func (r *paymentRepo) Create(p domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.payments[p.ID] = p
	return nil
}

// GetByIntent ищет платёж по идентификатору intent провайдера.
func (r *paymentRepo) GetByIntent(intentID string) (domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if intentID == "" {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	for _, p := range r.s.payments {
		if p.ProviderIntentID == intentID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// ListByOrder возвращает платежи заказа, новые первыми.
func (r *paymentRepo) ListByOrder(orderID string) ([]domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Payment, 0)
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Save перезаписывает запись платежа.
func (r *paymentRepo) Save(p domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.payments[p.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.s.payments[p.ID] = p
	return nil
}

var _ domain.PaymentRepository = (*paymentRepo)(nil)

type promoRepo struct {
	s *Store
}

// Create сохраняет промокод.
func (r *promoRepo) Create(p domain.Promo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.promos[p.Code] = p
	return nil
}

// GetByCode возвращает промокод или ErrPromoNotFound.
func (r *promoRepo) GetByCode(code string) (domain.Promo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.promos[code]
	if !ok {
		return domain.Promo{}, domain.ErrPromoNotFound
	}
	return p, nil
}

var _ domain.PromoRepository = (*promoRepo)(nil)
