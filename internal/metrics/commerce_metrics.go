package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics содержит метрики основного цикла заказа: checkout, оплата,
// диспетчеризация доставки.
type CommerceMetrics struct {
	checkoutsStarted   prometheus.Counter
	checkoutsCompleted prometheus.Counter
	checkoutsFailed    *prometheus.CounterVec
	ordersCancelled    prometheus.Counter

	paymentsSucceeded prometheus.Counter
	paymentsFailed    prometheus.Counter
	webhookDuplicates prometheus.Counter

	deliveriesAssigned  prometheus.Counter
	deliveriesCompleted prometheus.Counter

	checkoutDuration prometheus.Histogram
}

// NewCommerceMetrics создаёт метрики в default registry. Повторная
// регистрация переиспользует уже существующие коллекторы.
func NewCommerceMetrics() *CommerceMetrics {
	return newCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommerceMetrics{
		checkoutsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_checkouts_started_total",
			Help: "Total number of checkout attempts",
		}),
		checkoutsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_checkouts_completed_total",
			Help: "Total number of successfully placed orders",
		}),
		checkoutsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_checkouts_failed_total",
			Help: "Total number of failed checkouts grouped by reason",
		}, []string{"reason"}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_orders_cancelled_total",
			Help: "Total number of cancelled orders",
		}),
		paymentsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_payments_succeeded_total",
			Help: "Total number of successful payments",
		}),
		paymentsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_payments_failed_total",
			Help: "Total number of failed payments",
		}),
		webhookDuplicates: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_webhook_duplicates_total",
			Help: "Total number of duplicate provider webhook events",
		}),
		deliveriesAssigned: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_deliveries_assigned_total",
			Help: "Total number of courier assignments",
		}),
		deliveriesCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_deliveries_completed_total",
			Help: "Total number of completed deliveries",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик попыток checkout.
func (m *CommerceMetrics) RecordCheckoutStarted() {
	m.checkoutsStarted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик оформленных заказов.
func (m *CommerceMetrics) RecordCheckoutCompleted() {
	m.checkoutsCompleted.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных checkout по причине.
func (m *CommerceMetrics) RecordCheckoutFailed(reason string) {
	m.checkoutsFailed.WithLabelValues(reason).Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *CommerceMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordPaymentSucceeded увеличивает счётчик успешных оплат.
func (m *CommerceMetrics) RecordPaymentSucceeded() {
	m.paymentsSucceeded.Inc()
}

// RecordPaymentFailed увеличивает счётчик неудачных оплат.
func (m *CommerceMetrics) RecordPaymentFailed() {
	m.paymentsFailed.Inc()
}

// RecordWebhookDuplicate увеличивает счётчик повторно доставленных событий.
func (m *CommerceMetrics) RecordWebhookDuplicate() {
	m.webhookDuplicates.Inc()
}

// RecordDeliveryAssigned увеличивает счётчик назначений курьеров.
func (m *CommerceMetrics) RecordDeliveryAssigned() {
	m.deliveriesAssigned.Inc()
}

// RecordDeliveryCompleted увеличивает счётчик завершённых доставок.
func (m *CommerceMetrics) RecordDeliveryCompleted() {
	m.deliveriesCompleted.Inc()
}

// RecordCheckoutDuration записывает длительность checkout.
func (m *CommerceMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}
