package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type variantRepo struct {
	s *Store
}

// Create сохраняет новый вариант товара.
func (r *variantRepo) Create(v domain.Variant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.variants[v.ID] = v
	return nil
}

// Get возвращает вариант или ErrVariantNotFound.
func (r *variantRepo) Get(id string) (domain.Variant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.variants[id]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return v, nil
}

// List возвращает варианты, отсортированные по SKU для стабильности выдачи.
func (r *variantRepo) List() ([]domain.Variant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Variant, 0, len(r.s.variants))
	for _, v := range r.s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

// Reserve уменьшает сток условно: либо остатка достаточно, либо ничего не меняется.
func (r *variantRepo) Reserve(id string, qty int32) (domain.Variant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.reserveLocked(id, qty)
}

// Release безусловно возвращает qty на сток.
func (r *variantRepo) Release(id string, qty int32) (domain.Variant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.releaseLocked(id, qty)
}

// reserveLocked — условный декремент под уже взятым мьютексом; используется
// и напрямую, и из CreateCheckout.
func (s *Store) reserveLocked(id string, qty int32) (domain.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	if v.Stock < qty {
		return domain.Variant{}, domain.ErrInsufficientStock
	}
	v.Stock -= qty
	s.variants[id] = v
	return v, nil
}

func (s *Store) releaseLocked(id string, qty int32) (domain.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	v.Stock += qty
	s.variants[id] = v
	return v, nil
}

var _ domain.VariantRepository = (*variantRepo)(nil)
