package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type courierRepo struct {
	s *Store
}

// Create сохраняет нового курьера.
func (r *courierRepo) Create(c domain.Courier) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.couriers[c.ID] = c
	return nil
}

// Get возвращает курьера или ErrCourierNotFound.
func (r *courierRepo) Get(id string) (domain.Courier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.couriers[id]
	if !ok {
		return domain.Courier{}, domain.ErrCourierNotFound
	}
	return c, nil
}

// ListAvailable возвращает доступных верифицированных курьеров в стабильном
// порядке (по ID) — авто-назначение берёт первого.
func (r *courierRepo) ListAvailable() ([]domain.Courier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Courier, 0)
	for _, c := range r.s.couriers {
		if c.Assignable() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update применяет явный набор изменяемых полей.
func (r *courierRepo) Update(id string, upd domain.CourierUpdate) (domain.Courier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.couriers[id]
	if !ok {
		return domain.Courier{}, domain.ErrCourierNotFound
	}
	if err := upd.Apply(&c, time.Now().UTC()); err != nil {
		return domain.Courier{}, err
	}
	r.s.couriers[id] = c
	return c, nil
}

// UpdateLocation обновляет последнюю известную геопозицию курьера.
func (r *courierRepo) UpdateLocation(id string, lat, lon float64) (domain.Courier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.couriers[id]
	if !ok {
		return domain.Courier{}, domain.ErrCourierNotFound
	}
	c.Latitude = &lat
	c.Longitude = &lon
	c.UpdatedAt = time.Now().UTC()
	r.s.couriers[id] = c
	return c, nil
}

var _ domain.CourierRepository = (*courierRepo)(nil)
