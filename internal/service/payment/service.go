package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Исходы обработки webhook-события. Записываются в dedup-хранилище и
// возвращаются повторно при повторной доставке того же события.
const (
	OutcomePaid          = "paid"
	OutcomeAlreadyPaid   = "already_paid"
	OutcomeFailed        = "payment_failed"
	OutcomeUnknownIntent = "unknown_intent"
	OutcomeIgnored       = "ignored"
)

const dedupTTL = 24 * time.Hour

// CourierAssigner назначает курьера после оплаты. Неудача не откатывает оплату.
type CourierAssigner interface {
	AutoAssign(orderID string) (domain.Delivery, error)
}

// Service — мост между заказами и платёжным провайдером: создание intent,
// обработка верифицированных событий провайдера, подтверждение оплаты.
type Service struct {
	payments domain.PaymentRepository
	orders   domain.OrderRepository
	provider domain.PaymentProvider
	dedup    domain.EventDedupRepository
	outbox   domain.OutboxRepository
	assigner CourierAssigner
	logger   *log.Entry
	metrics  *metrics.CommerceMetrics
	now      func() time.Time
}

// NewService создаёт рабочий платёжный сервис.
func NewService(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	provider domain.PaymentProvider,
	dedup domain.EventDedupRepository,
	outbox domain.OutboxRepository,
	assigner CourierAssigner,
	logger *log.Entry,
) *Service {
	s := newService(payments, orders, provider, dedup, outbox, assigner, logger)
	s.metrics = metrics.NewCommerceMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	provider domain.PaymentProvider,
	dedup domain.EventDedupRepository,
	outbox domain.OutboxRepository,
	assigner CourierAssigner,
	logger *log.Entry,
) *Service {
	return newService(payments, orders, provider, dedup, outbox, assigner, logger)
}

func newService(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	provider domain.PaymentProvider,
	dedup domain.EventDedupRepository,
	outbox domain.OutboxRepository,
	assigner CourierAssigner,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "payment")
	}
	return &Service{
		payments: payments,
		orders:   orders,
		provider: provider,
		dedup:    dedup,
		outbox:   outbox,
		assigner: assigner,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Intent — локальный платёж вместе с client_secret провайдера. Секрет не
// персистится и отдаётся клиенту только в ответе на создание intent.
type Intent struct {
	domain.Payment
	ClientSecret string
}

// CreateIntent создаёт локальную запись платежа и intent на стороне провайдера.
// Вызов провайдера выполняется вне какой-либо транзакции; его неудача
// фиксируется в локальной записи и возвращается как ErrPaymentProvider.
func (s *Service) CreateIntent(orderID string) (Intent, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return Intent{}, err
	}
	if !order.Status.CanTransition(domain.OrderStatusPaid) {
		return Intent{}, domain.ErrInvalidState
	}

	now := s.now()
	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Status:      domain.PaymentStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.payments.Create(payment); err != nil {
		return Intent{}, err
	}

	intent, err := s.provider.CreateIntent(order.ID, order.TotalMinor, order.Currency)
	if err != nil {
		payment.Status = domain.PaymentStatusFailed
		payment.UpdatedAt = s.now()
		if saveErr := s.payments.Save(payment); saveErr != nil {
			s.logger.WithError(saveErr).WithField("payment_id", payment.ID).Error("mark payment failed")
		}
		if s.metrics != nil {
			s.metrics.RecordPaymentFailed()
		}
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("provider intent failed")
		return Intent{}, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}

	payment.ProviderIntentID = intent.ID
	payment.Status = intent.Status
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusRequiresPayment
	}
	payment.UpdatedAt = s.now()
	if err := s.payments.Save(payment); err != nil {
		return Intent{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"intent_id": intent.ID,
	}).Info("payment intent created")

	return Intent{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// EventResult — исход обработки события провайдера. OrderID заполняется,
// когда intent удалось привязать к заказу; вызывающий слой сбрасывает по нему
// кэш статуса.
type EventResult struct {
	Outcome string
	OrderID string
}

// HandleEvent обрабатывает верифицированное событие провайдера. Повторная
// доставка события возвращает ранее записанный исход без побочных эффектов.
func (s *Service) HandleEvent(event domain.PaymentEvent) (EventResult, error) {
	if event.ID == "" || event.IntentID == "" {
		return EventResult{}, domain.ErrSignatureInvalid
	}

	if outcome, seen, err := s.dedup.Seen(event.ID); err != nil {
		return EventResult{}, err
	} else if seen {
		if s.metrics != nil {
			s.metrics.RecordWebhookDuplicate()
		}
		s.logger.WithFields(log.Fields{
			"event_id": event.ID,
			"outcome":  outcome,
		}).Debug("duplicate provider event")
		res := EventResult{Outcome: outcome}
		if p, err := s.payments.GetByIntent(event.IntentID); err == nil {
			res.OrderID = p.OrderID
		}
		return res, nil
	}

	res, err := s.processEvent(event)
	if err != nil {
		return EventResult{}, err
	}

	if err := s.dedup.Record(event.ID, res.Outcome, s.now().Add(dedupTTL)); err != nil {
		s.logger.WithError(err).WithField("event_id", event.ID).Warn("record processed event failed")
	}

	return res, nil
}

func (s *Service) processEvent(event domain.PaymentEvent) (EventResult, error) {
	payment, err := s.payments.GetByIntent(event.IntentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			// Неизвестный intent подтверждаем, чтобы провайдер не ретраил вечно.
			s.logger.WithFields(log.Fields{
				"event_id":  event.ID,
				"intent_id": event.IntentID,
			}).Warn("provider event for unknown intent")
			return EventResult{Outcome: OutcomeUnknownIntent}, nil
		}
		return EventResult{}, err
	}

	var outcome string
	switch event.Type {
	case domain.PaymentEventSucceeded:
		outcome, err = s.handleSucceeded(payment)
	case domain.PaymentEventFailed:
		outcome, err = s.handleFailed(payment)
	default:
		s.logger.WithFields(log.Fields{
			"event_id": event.ID,
			"type":     string(event.Type),
		}).Debug("ignoring unsupported provider event type")
		outcome = OutcomeIgnored
	}
	if err != nil {
		return EventResult{}, err
	}

	return EventResult{Outcome: outcome, OrderID: payment.OrderID}, nil
}

func (s *Service) handleSucceeded(payment domain.Payment) (string, error) {
	now := s.now()
	if !payment.Succeeded {
		payment.Status = domain.PaymentStatusSucceeded
		payment.Succeeded = true
		payment.UpdatedAt = now
		if err := s.payments.Save(payment); err != nil {
			return "", err
		}
	}

	order, err := s.orders.Get(payment.OrderID)
	if err != nil {
		return "", err
	}
	if order.Status == domain.OrderStatusPaid {
		return OutcomeAlreadyPaid, nil
	}
	if !order.Status.CanTransition(domain.OrderStatusPaid) {
		// Заказ ушёл дальше по жизненному циклу, повторно его не трогаем.
		return OutcomeAlreadyPaid, nil
	}

	if err := order.Transition(domain.OrderStatusPaid, now); err != nil {
		return "", err
	}
	if err := s.orders.Save(order); err != nil {
		if domain.IsVersionConflict(err) {
			// Конкурентное обновление: перечитаем и решим по факту.
			fresh, getErr := s.orders.Get(order.ID)
			if getErr == nil && fresh.Status == domain.OrderStatusPaid {
				return OutcomeAlreadyPaid, nil
			}
		}
		return "", err
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentSucceeded()
	}
	s.emitEvent(order.ID, "OrderPaid", map[string]any{
		"amount_minor": payment.AmountMinor,
		"currency":     payment.Currency,
	})
	s.logger.WithField("order_id", order.ID).Info("order paid")

	// Назначение курьера best-effort: доставка останется pending и будет
	// назначена вручную, если свободных курьеров нет.
	if s.assigner != nil {
		if _, err := s.assigner.AutoAssign(order.ID); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Info("auto assign skipped")
		}
	}

	return OutcomePaid, nil
}

func (s *Service) handleFailed(payment domain.Payment) (string, error) {
	payment.Status = domain.PaymentStatusFailed
	payment.Succeeded = false
	payment.UpdatedAt = s.now()
	if err := s.payments.Save(payment); err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.RecordPaymentFailed()
	}
	s.emitEvent(payment.OrderID, "PaymentFailed", map[string]any{
		"payment_id": payment.ID,
	})
	s.logger.WithFields(log.Fields{
		"order_id":   payment.OrderID,
		"payment_id": payment.ID,
	}).Warn("payment failed")

	return OutcomeFailed, nil
}

// Confirm подтверждает оплату заказа напрямую, минуя webhook (демо-сценарий
// с mock-провайдером). Эквивалентно succeeded-событию по последнему intent.
func (s *Service) Confirm(orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.OrderStatusPaid {
		return order, nil
	}
	if !order.Status.CanTransition(domain.OrderStatusPaid) {
		return domain.Order{}, domain.ErrInvalidState
	}

	payments, err := s.payments.ListByOrder(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	// Свежайший платёж мог остаться failed после сбоя провайдера; подтверждаем
	// последний живой intent.
	var target *domain.Payment
	for i := range payments {
		if payments[i].Status != domain.PaymentStatusFailed {
			target = &payments[i]
			break
		}
	}
	if target == nil {
		return domain.Order{}, domain.ErrPaymentNotFound
	}

	outcome, err := s.handleSucceeded(*target)
	if err != nil {
		return domain.Order{}, err
	}
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"outcome":  outcome,
	}).Debug("payment confirmed")

	return s.orders.Get(orderID)
}

// ListByOrder возвращает платежи заказа, новые первыми.
func (s *Service) ListByOrder(orderID string) ([]domain.Payment, error) {
	return s.payments.ListByOrder(orderID)
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
