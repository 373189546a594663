package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Store — in-memory хранилище для локальной разработки и тестов. Все таблицы
// живут под одним мьютексом, поэтому многошаговые операции (checkout, отмена,
// назначение курьера) атомарны по построению — как транзакция в PostgreSQL.
type Store struct {
	mu sync.RWMutex

	variants   map[string]domain.Variant  // variant_id -> variant
	promos     map[string]domain.Promo    // code -> promo
	orders     map[string]domain.Order    // order_id -> order
	deliveries map[string]domain.Delivery // order_id -> delivery
	couriers   map[string]domain.Courier  // courier_id -> courier
	payments   map[string]domain.Payment  // payment_id -> payment

	outbox    map[string]*outboxRecord  // message_id -> record
	processed map[string]processedEvent // event_id -> outcome
}

type outboxRecord struct {
	msg       domain.OutboxMessage
	status    string // pending|sent|failed
	attempts  int
	createdAt time.Time
	updatedAt time.Time
}

type processedEvent struct {
	outcome string
	ttlAt   time.Time
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		variants:   make(map[string]domain.Variant),
		promos:     make(map[string]domain.Promo),
		orders:     make(map[string]domain.Order),
		deliveries: make(map[string]domain.Delivery),
		couriers:   make(map[string]domain.Courier),
		payments:   make(map[string]domain.Payment),
		outbox:     make(map[string]*outboxRecord),
		processed:  make(map[string]processedEvent),
	}
}

// Variants возвращает view складского леджера.
func (s *Store) Variants() domain.VariantRepository { return &variantRepo{s: s} }

// Promos возвращает view справочника промокодов.
func (s *Store) Promos() domain.PromoRepository { return &promoRepo{s: s} }

// Orders возвращает view хранилища заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepo{s: s} }

// Deliveries возвращает view хранилища доставок.
func (s *Store) Deliveries() domain.DeliveryRepository { return &deliveryRepo{s: s} }

// Couriers возвращает view хранилища курьеров.
func (s *Store) Couriers() domain.CourierRepository { return &courierRepo{s: s} }

// Payments возвращает view хранилища платежей.
func (s *Store) Payments() domain.PaymentRepository { return &paymentRepo{s: s} }

// Outbox возвращает view transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepo{s: s} }

// ProcessedEvents возвращает view дедупликации webhook-событий.
func (s *Store) ProcessedEvents() domain.EventDedupRepository { return &dedupRepo{s: s} }

// copyOrder возвращает независимую копию заказа (items копируются).
func copyOrder(o domain.Order) domain.Order {
	out := o
	out.Items = make([]domain.OrderItem, len(o.Items))
	copy(out.Items, o.Items)
	return out
}
