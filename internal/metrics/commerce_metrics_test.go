package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCommerceMetrics(t *testing.T) {
	metrics := newCommerceMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newCommerceMetricsWithRegisterer should not return nil")
	}

	if metrics.checkoutsStarted == nil {
		t.Error("checkoutsStarted counter should not be nil")
	}

	if metrics.checkoutsCompleted == nil {
		t.Error("checkoutsCompleted counter should not be nil")
	}

	if metrics.checkoutsFailed == nil {
		t.Error("checkoutsFailed counter vec should not be nil")
	}

	if metrics.ordersCancelled == nil {
		t.Error("ordersCancelled counter should not be nil")
	}

	if metrics.paymentsSucceeded == nil {
		t.Error("paymentsSucceeded counter should not be nil")
	}

	if metrics.paymentsFailed == nil {
		t.Error("paymentsFailed counter should not be nil")
	}

	if metrics.webhookDuplicates == nil {
		t.Error("webhookDuplicates counter should not be nil")
	}

	if metrics.deliveriesAssigned == nil {
		t.Error("deliveriesAssigned counter should not be nil")
	}

	if metrics.deliveriesCompleted == nil {
		t.Error("deliveriesCompleted counter should not be nil")
	}

	if metrics.checkoutDuration == nil {
		t.Error("checkoutDuration histogram should not be nil")
	}
}

func TestNewCommerceMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newCommerceMetricsWithRegisterer(reg)
	second := newCommerceMetricsWithRegisterer(reg)

	// Повторная регистрация тех же имён должна вернуть существующие коллекторы.
	if first.checkoutsStarted != second.checkoutsStarted {
		t.Error("checkoutsStarted should be reused on repeated registration")
	}
	if first.checkoutsFailed != second.checkoutsFailed {
		t.Error("checkoutsFailed should be reused on repeated registration")
	}
	if first.checkoutDuration != second.checkoutDuration {
		t.Error("checkoutDuration should be reused on repeated registration")
	}
}

func TestRecordCheckoutStarted(t *testing.T) {
	reg := prometheus.NewRegistry()

	checkoutsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_checkouts_started_total",
		Help: "Test counter",
	})
	reg.MustRegister(checkoutsStarted)

	metrics := &CommerceMetrics{
		checkoutsStarted: checkoutsStarted,
	}

	metrics.RecordCheckoutStarted()
	metrics.RecordCheckoutStarted()

	metric := &dto.Metric{}
	if err := checkoutsStarted.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCheckoutFailed(t *testing.T) {
	reg := prometheus.NewRegistry()

	checkoutsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_checkouts_failed_total",
		Help: "Test counter",
	}, []string{"reason"})
	reg.MustRegister(checkoutsFailed)

	metrics := &CommerceMetrics{
		checkoutsFailed: checkoutsFailed,
	}

	metrics.RecordCheckoutFailed("insufficient_stock")
	metrics.RecordCheckoutFailed("insufficient_stock")
	metrics.RecordCheckoutFailed("invalid_promo")

	stock := &dto.Metric{}
	if err := checkoutsFailed.WithLabelValues("insufficient_stock").Write(stock); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if stock.Counter.GetValue() != 2.0 {
		t.Errorf("expected insufficient_stock value 2.0, got %f", stock.Counter.GetValue())
	}

	promo := &dto.Metric{}
	if err := checkoutsFailed.WithLabelValues("invalid_promo").Write(promo); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if promo.Counter.GetValue() != 1.0 {
		t.Errorf("expected invalid_promo value 1.0, got %f", promo.Counter.GetValue())
	}
}

func TestRecordPaymentOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()

	paymentsSucceeded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_payments_succeeded_total",
		Help: "Test counter",
	})
	paymentsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_payments_failed_total",
		Help: "Test counter",
	})
	webhookDuplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_webhook_duplicates_total",
		Help: "Test counter",
	})
	reg.MustRegister(paymentsSucceeded, paymentsFailed, webhookDuplicates)

	metrics := &CommerceMetrics{
		paymentsSucceeded: paymentsSucceeded,
		paymentsFailed:    paymentsFailed,
		webhookDuplicates: webhookDuplicates,
	}

	metrics.RecordPaymentSucceeded()
	metrics.RecordPaymentFailed()
	metrics.RecordWebhookDuplicate()
	metrics.RecordWebhookDuplicate()

	succeeded := &dto.Metric{}
	if err := paymentsSucceeded.Write(succeeded); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if succeeded.Counter.GetValue() != 1.0 {
		t.Errorf("expected payments succeeded 1.0, got %f", succeeded.Counter.GetValue())
	}

	failed := &dto.Metric{}
	if err := paymentsFailed.Write(failed); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if failed.Counter.GetValue() != 1.0 {
		t.Errorf("expected payments failed 1.0, got %f", failed.Counter.GetValue())
	}

	duplicates := &dto.Metric{}
	if err := webhookDuplicates.Write(duplicates); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if duplicates.Counter.GetValue() != 2.0 {
		t.Errorf("expected webhook duplicates 2.0, got %f", duplicates.Counter.GetValue())
	}
}

func TestRecordDeliveryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()

	deliveriesAssigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_deliveries_assigned_total",
		Help: "Test counter",
	})
	deliveriesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_deliveries_completed_total",
		Help: "Test counter",
	})
	reg.MustRegister(deliveriesAssigned, deliveriesCompleted)

	metrics := &CommerceMetrics{
		deliveriesAssigned:  deliveriesAssigned,
		deliveriesCompleted: deliveriesCompleted,
	}

	metrics.RecordDeliveryAssigned()
	metrics.RecordDeliveryAssigned()
	metrics.RecordDeliveryCompleted()

	assigned := &dto.Metric{}
	if err := deliveriesAssigned.Write(assigned); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if assigned.Counter.GetValue() != 2.0 {
		t.Errorf("expected deliveries assigned 2.0, got %f", assigned.Counter.GetValue())
	}

	completed := &dto.Metric{}
	if err := deliveriesCompleted.Write(completed); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if completed.Counter.GetValue() != 1.0 {
		t.Errorf("expected deliveries completed 1.0, got %f", completed.Counter.GetValue())
	}
}

func TestRecordCheckoutDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_checkout_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(checkoutDuration)

	metrics := &CommerceMetrics{
		checkoutDuration: checkoutDuration,
	}

	metrics.RecordCheckoutDuration(150 * time.Millisecond)
	metrics.RecordCheckoutDuration(2 * time.Second)

	metric := &dto.Metric{}
	if err := checkoutDuration.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", metric.Histogram.GetSampleCount())
	}

	want := 0.15 + 2.0
	if got := metric.Histogram.GetSampleSum(); got < want-0.001 || got > want+0.001 {
		t.Errorf("expected sample sum ~%f, got %f", want, got)
	}
}
