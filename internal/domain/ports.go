package domain

import "time"

// VariantRepository — складской леджер поверх каталога.
type VariantRepository interface {
	// Create сохраняет новый вариант товара.
	Create(v Variant) error
	// Get возвращает вариант или ErrVariantNotFound.
	Get(id string) (Variant, error)
	// List возвращает все варианты каталога.
	List() ([]Variant, error)
	// Reserve уменьшает сток на qty, только если остатка достаточно,
	// иначе возвращает ErrInsufficientStock без каких-либо мутаций.
	Reserve(id string, qty int32) (Variant, error)
	// Release безусловно возвращает qty на сток (компенсация отмены).
	Release(id string, qty int32) (Variant, error)
}

// PromoRepository — read-only справочник промокодов для checkout.
type PromoRepository interface {
	Create(p Promo) error
	// GetByCode возвращает промокод или ErrPromoNotFound.
	GetByCode(code string) (Promo, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateCheckout атомарно резервирует сток по каждой позиции и сохраняет
	// заказ, его позиции и запись доставки. Любая неудача (включая
	// ErrInsufficientStock) откатывает всё: частичный резерв не наблюдаем.
	CreateCheckout(order Order, delivery Delivery) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// CancelRestock атомарно переводит заказ в cancelled, возвращает на сток
	// ровно исходные количества позиций и отменяет доставку.
	CancelRestock(order Order) error
}

// DeliveryRepository хранит записи доставок и арбитрирует занятость курьеров.
type DeliveryRepository interface {
	// GetByOrder возвращает доставку заказа или ErrDeliveryNotFound.
	GetByOrder(orderID string) (Delivery, error)
	// Assign атомарно забирает курьера (claim-if-available) и привязывает его
	// к доставке. Оба изменения коммитятся вместе. Если курьер занят или не
	// верифицирован — ErrCourierUnavailable, и ни одна запись не меняется.
	Assign(orderID, courierID string, now time.Time) (Delivery, Courier, error)
	// Save перезаписывает запись доставки.
	Save(delivery Delivery) error
	// Complete фиксирует вручение: доставка delivered, курьер освобождён,
	// счётчик выполненных доставок увеличен — одной транзакцией.
	Complete(delivery Delivery) (Delivery, error)
}

// CourierRepository хранит курьеров.
type CourierRepository interface {
	Create(c Courier) error
	// Get возвращает курьера или ErrCourierNotFound.
	Get(id string) (Courier, error)
	// ListAvailable возвращает доступных и верифицированных курьеров.
	ListAvailable() ([]Courier, error)
	// Update применяет явный набор изменяемых полей.
	Update(id string, upd CourierUpdate) (Courier, error)
	// UpdateLocation обновляет последнюю известную геопозицию.
	UpdateLocation(id string, lat, lon float64) (Courier, error)
}

// PaymentRepository хранит локальные записи платежей.
type PaymentRepository interface {
	Create(p Payment) error
	// GetByIntent возвращает платёж по интенту провайдера или ErrPaymentNotFound.
	GetByIntent(intentID string) (Payment, error)
	// ListByOrder возвращает платежи заказа, новые первыми.
	ListByOrder(orderID string) ([]Payment, error)
	// Save перезаписывает запись платежа.
	Save(p Payment) error
}

// PaymentIntent — ответ провайдера на создание intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// PaymentProvider описывает внешний платёжный шлюз. Вызов выполняется вне
// транзакции checkout и может длиться до таймаута провайдера.
type PaymentProvider interface {
	// CreateIntent создаёт intent на стороне провайдера.
	CreateIntent(orderID string, amountMinor int64, currency string) (PaymentIntent, error)
}

// EventDedupRepository хранит обработанные события провайдера для защиты от
// повторной доставки (at-least-once у провайдера).
type EventDedupRepository interface {
	// Seen возвращает записанный исход события, если оно уже обрабатывалось.
	Seen(eventID string) (outcome string, ok bool, err error)
	// Record фиксирует исход обработки события с TTL.
	Record(eventID, outcome string, ttlAt time.Time) error
	// DeleteExpired удаляет протухшие записи и возвращает их количество.
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}
