package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/gateway/wompi"
	healthcheck "github.com/jsgaviriam/checkout/internal/health"
	"github.com/jsgaviriam/checkout/internal/messaging/kafka"
	"github.com/jsgaviriam/checkout/internal/metrics"
	"github.com/jsgaviriam/checkout/internal/server"
	"github.com/jsgaviriam/checkout/internal/service/checkout"
	"github.com/jsgaviriam/checkout/internal/service/ledger"
	"github.com/jsgaviriam/checkout/internal/service/notifier"
	"github.com/jsgaviriam/checkout/internal/service/outbox"
	"github.com/jsgaviriam/checkout/internal/version"
)

// Run собирает зависимости и запускает HTTP-сервер до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	gateway, err := wompi.NewClient(cfg.Wompi, log.WithField("component", "wompi-client"))
	if err != nil {
		return fmt.Errorf("инициализация платёжного шлюза: %w", err)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// Kafka опционален: без брокеров события доставляет только outbox-воркер
	// при последующем включении, а сервис живёт на одном хранилище.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	checkoutMetrics := metrics.NewCheckoutMetrics()
	registry := notifier.NewRegistry(log.WithField("component", "status-notifier"))

	opts := []checkout.Option{
		checkout.WithNotifier(registry),
		checkout.WithOutbox(deps.outboxRepo),
		checkout.WithMetrics(checkoutMetrics),
	}
	if kafkaProducer != nil {
		opts = append(opts, checkout.WithKafka(kafkaProducer))
	}
	svc := checkout.NewService(
		deps.products,
		deps.transactions,
		gateway,
		log.WithField("component", "checkout"),
		opts...,
	)

	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			deps.outboxRepo,
			kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicTransactionEvents),
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		go worker.Run(ctx)
	}

	ledgerWorker := ledger.NewCleanupWorker(
		deps.transactions,
		ledger.WithLogger(log.WithField("component", "webhook-ledger-cleanup")),
		ledger.WithInterval(cfg.WebhookLedgerCleanupInterval),
		ledger.WithBatchSize(cfg.WebhookLedgerCleanupBatchSize),
		ledger.WithRetention(cfg.WebhookLedgerRetention),
	)
	go ledgerWorker.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.store != nil {
		healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.store.Ping(pingCtx)
		}))
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", cfg.OutboxMaxAge, cfg.OutboxMaxPending, func() (int, time.Time, error) {
		stats, err := deps.outboxRepo.Stats()
		if err != nil {
			return 0, time.Time{}, err
		}
		return stats.PendingCount, stats.OldestPendingAt, nil
	}))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	srv := server.New(cfg.HTTPAddr, log.WithField("component", "http-server"),
		server.NewCheckoutHandler(svc, log.WithField("component", "checkout-handler")),
		server.NewWebhookHandler(svc, deps.transactions, cfg.Wompi.EventsKey, checkoutMetrics, log.WithField("component", "webhook-handler")),
		server.NewTransactionHandler(svc, registry, checkoutMetrics, log.WithField("component", "transaction-handler")),
		server.NewCatalogHandler(deps.products, deps.categories, log.WithField("component", "catalog-handler")),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful stop превысил таймаут")
		}
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

// startMetricsServer запускает HTTP-обработчики /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
