package checkout

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/pricing"
)

// ItemInput — позиция корзины в запросе checkout.
type ItemInput struct {
	VariantID string
	Qty       int32
}

// Input — запрос на оформление заказа.
type Input struct {
	UserID    string
	Currency  string
	AddressID string
	PromoCode string
	Items     []ItemInput
}

// Service оркестрирует оформление заказа: валидация корзины, расчёт цены,
// атомарный резерв стока и создание заказа с pending-доставкой.
type Service struct {
	variants domain.VariantRepository
	orders   domain.OrderRepository
	pricer   *pricing.Engine
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.CommerceMetrics
	now      func() time.Time
}

// NewService создаёт рабочий checkout-сервис.
func NewService(
	variants domain.VariantRepository,
	orders domain.OrderRepository,
	pricer *pricing.Engine,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	s := newService(variants, orders, pricer, outbox, logger)
	s.metrics = metrics.NewCommerceMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	variants domain.VariantRepository,
	orders domain.OrderRepository,
	pricer *pricing.Engine,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	return newService(variants, orders, pricer, outbox, logger)
}

func newService(
	variants domain.VariantRepository,
	orders domain.OrderRepository,
	pricer *pricing.Engine,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Service{
		variants: variants,
		orders:   orders,
		pricer:   pricer,
		outbox:   outbox,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Checkout оформляет заказ. При любой ошибке (включая нехватку стока и
// невалидный промокод) ничего не резервируется и заказ не создаётся.
func (s *Service) Checkout(input Input) (domain.Order, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() {
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}()
	}

	order, err := s.checkout(input)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCheckoutFailed(failureReason(err))
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutCompleted()
	}
	return order, nil
}

func (s *Service) checkout(input Input) (domain.Order, error) {
	if input.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if input.Currency == "" {
		return domain.Order{}, domain.ErrCurrencyRequired
	}
	if input.AddressID == "" {
		return domain.Order{}, domain.ErrAddressRequired
	}
	if len(input.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	now := s.now()

	// Цена позиции фиксируется из каталога в момент оформления.
	lines := make([]pricing.Line, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
		variant, err := s.variants.Get(item.VariantID)
		if err != nil {
			return domain.Order{}, err
		}
		if !variant.Sellable() {
			return domain.Order{}, domain.ErrVariantInactive
		}
		lines = append(lines, pricing.Line{
			VariantID:  variant.ID,
			SKU:        variant.SKU,
			Qty:        item.Qty,
			PriceMinor: variant.PriceMinor,
		})
	}

	quote, err := s.pricer.Price(lines, input.PromoCode)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		UserID:        input.UserID,
		Status:        domain.OrderStatusPendingPayment,
		Currency:      input.Currency,
		SubtotalMinor: quote.SubtotalMinor,
		DiscountMinor: quote.DiscountMinor,
		TotalMinor:    quote.TotalMinor,
		PromoCode:     quote.PromoCode,
		Items:         make([]domain.OrderItem, 0, len(lines)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			ID:         uuid.NewString(),
			VariantID:  line.VariantID,
			SKU:        line.SKU,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
			CreatedAt:  now,
		})
	}

	delivery := domain.Delivery{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		AddressID: input.AddressID,
		Status:    domain.DeliveryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateCheckout(order, delivery); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id": input.UserID,
			"items":   len(input.Items),
		}).Warn("checkout rejected")
		return domain.Order{}, err
	}

	s.emitEvent(order.ID, "OrderCreated", map[string]any{
		"user_id":     order.UserID,
		"total_minor": order.TotalMinor,
		"currency":    order.Currency,
		"items":       len(order.Items),
	})

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"total_minor": order.TotalMinor,
	}).Info("order placed")

	return order, nil
}

// Cancel отменяет заказ до оплаты и возвращает зарезервированный сток.
func (s *Service) Cancel(orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransition(domain.OrderStatusCancelled) {
		return domain.Order{}, domain.ErrInvalidState
	}

	order.UpdatedAt = s.now()
	if err := s.orders.CancelRestock(order); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatusCancelled
	order.Version++

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
	}
	s.emitEvent(order.ID, "OrderCancelled", map[string]any{
		"user_id": order.UserID,
	})
	s.logger.WithField("order_id", order.ID).Info("order cancelled")

	return order, nil
}

// Get возвращает заказ с позициями.
func (s *Service) Get(orderID string) (domain.Order, error) {
	return s.orders.Get(orderID)
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (s *Service) ListByUser(userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	return s.orders.ListByUser(userID, limit)
}

func (s *Service) emitEvent(orderID, eventType string, payload map[string]any) {
	if s.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["order_id"] = orderID
	payload["ts"] = s.now().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("marshal event failed")
		return
	}
	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       data,
	}); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("enqueue event failed")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrPromoNotFound), errors.Is(err, domain.ErrPromoInvalid):
		return "promo"
	case errors.Is(err, domain.ErrVariantNotFound), errors.Is(err, domain.ErrVariantInactive):
		return "variant"
	default:
		return "validation"
	}
}
