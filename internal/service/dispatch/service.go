package dispatch

import (
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Service управляет доставками и курьерами: назначение, смена статуса,
// самообслуживание курьера (доступность, геопозиция).
type Service struct {
	deliveries domain.DeliveryRepository
	couriers   domain.CourierRepository
	orders     domain.OrderRepository
	outbox     domain.OutboxRepository
	logger     *log.Entry
	metrics    *metrics.CommerceMetrics
	now        func() time.Time
}

// NewService создаёт рабочий dispatch-сервис.
func NewService(
	deliveries domain.DeliveryRepository,
	couriers domain.CourierRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	s := newService(deliveries, couriers, orders, outbox, logger)
	s.metrics = metrics.NewCommerceMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	deliveries domain.DeliveryRepository,
	couriers domain.CourierRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	return newService(deliveries, couriers, orders, outbox, logger)
}

func newService(
	deliveries domain.DeliveryRepository,
	couriers domain.CourierRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "dispatch")
	}
	return &Service{
		deliveries: deliveries,
		couriers:   couriers,
		orders:     orders,
		outbox:     outbox,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Assign назначает конкретного курьера на доставку заказа.
func (s *Service) Assign(orderID, courierID string) (domain.Delivery, error) {
	delivery, courier, err := s.deliveries.Assign(orderID, courierID, s.now())
	if err != nil {
		return domain.Delivery{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordDeliveryAssigned()
	}
	s.emitEvent("delivery", orderID, "DeliveryAssigned", map[string]any{
		"courier_id": courier.ID,
	})
	s.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"courier_id": courier.ID,
	}).Info("courier assigned")

	return delivery, nil
}

// AutoAssign выбирает первого доступного верифицированного курьера. Ранжирования
// нет: кандидаты перебираются по порядку, гонка за курьера решается claim'ом.
func (s *Service) AutoAssign(orderID string) (domain.Delivery, error) {
	candidates, err := s.couriers.ListAvailable()
	if err != nil {
		return domain.Delivery{}, err
	}
	if len(candidates) == 0 {
		return domain.Delivery{}, domain.ErrCourierUnavailable
	}

	for _, candidate := range candidates {
		delivery, err := s.Assign(orderID, candidate.ID)
		if err == nil {
			return delivery, nil
		}
		// Кандидата успели забрать — пробуем следующего.
		if errors.Is(err, domain.ErrCourierUnavailable) {
			continue
		}
		return domain.Delivery{}, err
	}

	return domain.Delivery{}, domain.ErrCourierUnavailable
}

// UpdateStatus переводит доставку в next. Переход delivered фиксирует
// delivered_at, освобождает курьера и увеличивает его счётчик доставок.
func (s *Service) UpdateStatus(orderID string, next domain.DeliveryStatus) (domain.Delivery, error) {
	if !next.Known() {
		return domain.Delivery{}, domain.ErrInvalidState
	}

	delivery, err := s.deliveries.GetByOrder(orderID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if err := delivery.Transition(next, s.now()); err != nil {
		return domain.Delivery{}, err
	}

	if next == domain.DeliveryStatusDelivered {
		delivery, err = s.deliveries.Complete(delivery)
		if err != nil {
			return domain.Delivery{}, err
		}
		if s.metrics != nil {
			s.metrics.RecordDeliveryCompleted()
		}
	} else {
		if err := s.deliveries.Save(delivery); err != nil {
			return domain.Delivery{}, err
		}
	}

	if target, ok := orderStageByDelivery[next]; ok {
		s.advanceOrder(orderID, target)
	}

	s.emitEvent("delivery", orderID, "DeliveryStatusChanged", map[string]any{
		"status": string(next),
	})

	return delivery, nil
}

// GetByOrder возвращает доставку заказа.
func (s *Service) GetByOrder(orderID string) (domain.Delivery, error) {
	return s.deliveries.GetByOrder(orderID)
}

// RegisterCourier сохраняет нового курьера.
func (s *Service) RegisterCourier(c domain.Courier) (domain.Courier, error) {
	if c.UserID == "" {
		return domain.Courier{}, domain.ErrUserRequired
	}
	switch c.TransportType {
	case domain.TransportFoot, domain.TransportBike, domain.TransportMoto, domain.TransportCar:
	default:
		return domain.Courier{}, domain.ErrInvalidState
	}
	if c.Status == "" {
		c.Status = domain.CourierStatusActive
	}
	if c.Rating == 0 {
		c.Rating = 5.0
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.couriers.Create(c); err != nil {
		return domain.Courier{}, err
	}
	return c, nil
}

// GetCourier возвращает курьера по идентификатору.
func (s *Service) GetCourier(id string) (domain.Courier, error) {
	return s.couriers.Get(id)
}

// ListAvailableCouriers возвращает доступных верифицированных курьеров.
func (s *Service) ListAvailableCouriers() ([]domain.Courier, error) {
	return s.couriers.ListAvailable()
}

// UpdateCourier применяет явный набор изменяемых полей курьера.
func (s *Service) UpdateCourier(id string, upd domain.CourierUpdate) (domain.Courier, error) {
	return s.couriers.Update(id, upd)
}

// UpdateCourierLocation обновляет геопозицию курьера.
func (s *Service) UpdateCourierLocation(id string, lat, lon float64) (domain.Courier, error) {
	return s.couriers.UpdateLocation(id, lat, lon)
}

// orderStageByDelivery связывает прогресс доставки со стадией заказа.
var orderStageByDelivery = map[domain.DeliveryStatus]domain.OrderStatus{
	domain.DeliveryStatusPicking:    domain.OrderStatusProcessing,
	domain.DeliveryStatusDelivering: domain.OrderStatusShipped,
	domain.DeliveryStatusDelivered:  domain.OrderStatusDelivered,
}

// orderDeliveryPath — порядок стадий заказа, которыми управляет доставка.
var orderDeliveryPath = []domain.OrderStatus{
	domain.OrderStatusPaid,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

// advanceOrder двигает заказ вслед за доставкой вплоть до target. Ошибка не
// прерывает обновление доставки: заказ догонит статус при следующем переходе.
func (s *Service) advanceOrder(orderID string, target domain.OrderStatus) {
	if s.orders == nil {
		return
	}
	order, err := s.orders.Get(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("order lookup after delivery update failed")
		return
	}

	cur, tgt := -1, -1
	for i, stage := range orderDeliveryPath {
		if stage == order.Status {
			cur = i
		}
		if stage == target {
			tgt = i
		}
	}
	if cur < 0 || tgt <= cur {
		return
	}

	now := s.now()
	for i := cur + 1; i <= tgt; i++ {
		if err := order.Transition(orderDeliveryPath[i], now); err != nil {
			return
		}
	}
	if err := s.orders.Save(order); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("order stage sync failed")
		return
	}
	if order.Status == domain.OrderStatusDelivered {
		s.emitEvent("order", orderID, "OrderDelivered", map[string]any{
			"user_id": order.UserID,
		})
	}
}

func (s *Service) emitEvent(aggregateType, orderID, eventType string, payload map[string]any) {
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
		AggregateType: aggregateType,
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
