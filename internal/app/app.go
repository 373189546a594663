package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/cache"
	"github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/httpapi"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/dedup"
	"github.com/vladislavdragonenkov/marketplace/internal/service/dispatch"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/service/pricing"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает зависимости и держит сервис до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	repos, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.WithError(err).Warn("storage close failed")
		}
	}()

	// Kafka опционален: без брокеров события копятся в outbox и будут
	// опубликованы после включения воркера.
	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}
	defer func() {
		if kafkaProducer == nil {
			return
		}
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}()

	var statusCache *cache.OrderStatusCache
	if cfg.RedisAddr != "" {
		client := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		statusCache = cache.NewOrderStatusCache(client, logger.WithField("component", "order-status-cache"))
		logger.WithField("addr", cfg.RedisAddr).Info("redis order status cache initialized")
		defer func() { _ = client.Close() }()
	}

	pricer := pricing.NewEngine(repos.Promos)
	checkoutSvc := checkout.NewService(
		repos.Variants, repos.Orders, pricer, repos.Outbox,
		logger.WithField("component", "checkout"),
	)
	dispatchSvc := dispatch.NewService(
		repos.Deliveries, repos.Couriers, repos.Orders, repos.Outbox,
		logger.WithField("component", "dispatch"),
	)
	// NOTE: mock-провайдер для development/demo; в production заменяется
	// клиентом реального платёжного шлюза.
	provider := payment.NewMockProvider()
	paymentSvc := payment.NewService(
		repos.Payments, repos.Orders, provider,
		repos.ProcessedEvents, repos.Outbox, dispatchSvc,
		logger.WithField("component", "payment"),
	)

	// Фоновые воркеры: публикация outbox и очистка dedup-записей webhook'ов.
	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			repos.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer, cfg.KafkaTopic),
			outbox.WithDeadLetterSink(kafka.NewDLQPublisher(kafkaProducer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		)
		go worker.Run(ctx)
	} else {
		logger.Info("kafka is not configured, outbox worker is idle")
	}

	cleanup := dedup.NewCleanupWorker(
		repos.ProcessedEvents,
		dedup.WithInterval(cfg.DedupCleanupEvery),
		dedup.WithLogger(logger.WithField("component", "event-dedup-cleanup-worker")),
	)
	go cleanup.Run(ctx)

	handlers := httpapi.NewHandlers(httpapi.Options{
		Checkout:      checkoutSvc,
		Payments:      paymentSvc,
		Dispatch:      dispatchSvc,
		Variants:      repos.Variants,
		Promos:        repos.Promos,
		StatusCache:   statusCache,
		WebhookSecret: []byte(cfg.WebhookSecret),
		AdminToken:    cfg.AdminToken,
		Logger:        logger.WithField("component", "httpapi"),
	})

	healthHandler := health.NewHandler(version.String())
	if checker := repos.HealthChecker(); checker != nil {
		healthHandler.RegisterChecker("postgres", checker)
	}
	if statusCache != nil {
		healthHandler.RegisterChecker("redis", health.NewPingChecker("redis", statusCache))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handlers),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
