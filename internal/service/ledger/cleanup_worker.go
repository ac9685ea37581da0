package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	defaultRetention        = 24 * time.Hour
)

var (
	ledgerCleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_webhook_ledger_cleanup_runs_total",
		Help: "Total number of webhook ledger cleanup runs grouped by result.",
	}, []string{"result"})
	ledgerCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_webhook_ledger_cleanup_deleted_total",
		Help: "Total number of deleted webhook ledger entries.",
	})
	ledgerCleanupLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_webhook_ledger_cleanup_last_deleted",
		Help: "Number of deleted entries during the last cleanup run.",
	})
)

// EventPruner удаляет из ledger идемпотентности события старше заданного
// момента. Реализуется хранилищем транзакций.
type EventPruner interface {
	PruneProcessedEvents(ctx context.Context, before time.Time, limit int) (int, error)
}

// CleanupOptions задаёт параметры воркера очистки webhook ledger.
type CleanupOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	// Retention — сколько времени событие остаётся в ledger. Повторные
	// доставки webhook приходят в течение минут, сутки — с большим запасом.
	Retention time.Duration
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между cleanup-циклами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер batch для одного удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithRetention задаёт срок хранения записей ledger.
func WithRetention(retention time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Retention = retention
	}
}

// CleanupWorker периодически удаляет устаревшие записи webhook ledger.
// Без него таблица webhook_events растёт неограниченно: каждый принятый
// webhook оставляет в ней строку навсегда.
type CleanupWorker struct {
	pruner    EventPruner
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	retention time.Duration
}

// NewCleanupWorker создаёт воркер очистки webhook ledger.
func NewCleanupWorker(pruner EventPruner, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
		Retention: defaultRetention,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "webhook-ledger-cleanup")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}

	return &CleanupWorker{
		pruner:    pruner,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		retention: opts.Retention,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.pruner == nil {
		w.logger.Warn("webhook ledger cleanup worker is disabled: pruner is nil")
		return
	}

	w.cleanup(ctx, time.Now().UTC().Add(-w.retention))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx, time.Now().UTC().Add(-w.retention))
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context, before time.Time) {
	deleted, err := w.PruneBefore(ctx, before)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		ledgerCleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("webhook ledger cleanup run failed")
		return
	}

	ledgerCleanupRunsTotal.WithLabelValues("ok").Inc()
	ledgerCleanupLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("webhook ledger cleanup completed")
	}
}

// PruneBefore удаляет все записи старше before порциями batchSize.
func (w *CleanupWorker) PruneBefore(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC().Add(-w.retention)
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.pruner.PruneProcessedEvents(ctx, before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			ledgerCleanupDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
