package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

// Repositories объединяет все репозитории поверх выбранного хранилища.
type Repositories struct {
	Variants        domain.VariantRepository
	Promos          domain.PromoRepository
	Orders          domain.OrderRepository
	Deliveries      domain.DeliveryRepository
	Couriers        domain.CourierRepository
	Payments        domain.PaymentRepository
	Outbox          domain.OutboxRepository
	ProcessedEvents domain.EventDedupRepository

	// pg не nil только при работе на PostgreSQL.
	pg *postgres.Store
}

// Close освобождает ресурсы хранилища.
func (r *Repositories) Close() error {
	if r.pg != nil {
		return r.pg.Close()
	}
	return nil
}

// HealthChecker возвращает проверку хранилища для health-эндпоинта.
// In-memory хранилищу проверка не нужна.
func (r *Repositories) HealthChecker() health.Checker {
	if r.pg == nil {
		return nil
	}
	return health.NewPingChecker("postgres", r.pg)
}

// buildRepositories выбирает хранилище: PostgreSQL при заданном DSN,
// иначе in-memory (dev/demo режим без внешних зависимостей).
func buildRepositories(ctx context.Context, cfg Config, logger *log.Entry) (*Repositories, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is empty, using in-memory storage")
		store := memory.NewStore()
		return &Repositories{
			Variants:        store.Variants(),
			Promos:          store.Promos(),
			Orders:          store.Orders(),
			Deliveries:      store.Deliveries(),
			Couriers:        store.Couriers(),
			Payments:        store.Payments(),
			Outbox:          store.Outbox(),
			ProcessedEvents: store.ProcessedEvents(),
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("postgres storage initialized")

	return &Repositories{
		Variants:        postgres.NewVariantRepository(store),
		Promos:          postgres.NewPromoRepository(store),
		Orders:          postgres.NewOrderRepository(store),
		Deliveries:      postgres.NewDeliveryRepository(store),
		Couriers:        postgres.NewCourierRepository(store),
		Payments:        postgres.NewPaymentRepository(store),
		Outbox:          postgres.NewOutboxRepository(store),
		ProcessedEvents: postgres.NewEventDedupRepository(store),
		pg:              store,
	}, nil
}
