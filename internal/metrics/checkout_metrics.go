package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики платёжного pipeline.
type CheckoutMetrics struct {
	// Счётчики операций
	checkoutStarted    prometheus.Counter
	checkoutFinalized  *prometheus.CounterVec
	webhookReceived    prometheus.Counter
	webhookRejected    prometheus.Counter
	webhookDuplicates  prometheus.Counter
	stockDecrements    prometheus.Counter
	gatewayPollFailure prometheus.Counter

	// Гистограммы времени выполнения
	chargeDuration   prometheus.Histogram
	finalizeDuration prometheus.Histogram

	// Счётчик событий outbox
	outboxEvents prometheus.Counter

	// Gauge для открытых SSE-подписок
	activeStreams prometheus.Gauge
}

// NewCheckoutMetrics создаёт новый экземпляр метрик checkout.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_transactions_started_total",
			Help: "Total number of pending transactions created",
		}),
		checkoutFinalized: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_transactions_finalized_total",
			Help: "Total number of transactions finalized, by terminal status",
		}, []string{"status"}),
		webhookReceived: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_received_total",
			Help: "Total number of webhook events received",
		}),
		webhookRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_rejected_total",
			Help: "Total number of webhook events rejected by signature verification",
		}),
		webhookDuplicates: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_duplicates_total",
			Help: "Total number of duplicate webhook deliveries skipped",
		}),
		stockDecrements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_stock_decrements_total",
			Help: "Total number of successful stock decrements",
		}),
		gatewayPollFailure: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_gateway_poll_failures_total",
			Help: "Total number of failed gateway status polls",
		}),
		chargeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_charge_duration_seconds",
			Help:    "Duration of payment gateway charge calls in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		finalizeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_finalize_duration_seconds",
			Help:    "Duration of transaction finalization in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of outbox events published",
		}),
		activeStreams: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "checkout_active_status_streams",
			Help: "Number of currently open transaction status streams",
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

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
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

// RecordCheckoutStarted увеличивает счётчик созданных pending-транзакций.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
}

// RecordCheckoutFinalized увеличивает счётчик финализаций по терминальному статусу.
func (m *CheckoutMetrics) RecordCheckoutFinalized(status string) {
	m.checkoutFinalized.WithLabelValues(status).Inc()
}

// RecordWebhookReceived увеличивает счётчик принятых webhook-событий.
func (m *CheckoutMetrics) RecordWebhookReceived() {
	m.webhookReceived.Inc()
}

// RecordWebhookRejected увеличивает счётчик событий с невалидной подписью.
func (m *CheckoutMetrics) RecordWebhookRejected() {
	m.webhookRejected.Inc()
}

// RecordWebhookDuplicate увеличивает счётчик повторных доставок.
func (m *CheckoutMetrics) RecordWebhookDuplicate() {
	m.webhookDuplicates.Inc()
}

// RecordStockDecrement увеличивает счётчик успешных списаний остатков.
func (m *CheckoutMetrics) RecordStockDecrement() {
	m.stockDecrements.Inc()
}

// RecordGatewayPollFailure увеличивает счётчик неудачных опросов шлюза.
func (m *CheckoutMetrics) RecordGatewayPollFailure() {
	m.gatewayPollFailure.Inc()
}

// RecordChargeDuration записывает время charge-запроса к шлюзу.
func (m *CheckoutMetrics) RecordChargeDuration(duration time.Duration) {
	m.chargeDuration.Observe(duration.Seconds())
}

// RecordFinalizeDuration записывает время финализации транзакции.
func (m *CheckoutMetrics) RecordFinalizeDuration(duration time.Duration) {
	m.finalizeDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordStreamOpened увеличивает количество открытых SSE-подписок.
func (m *CheckoutMetrics) RecordStreamOpened() {
	m.activeStreams.Inc()
}

// RecordStreamClosed уменьшает количество открытых SSE-подписок.
func (m *CheckoutMetrics) RecordStreamClosed() {
	m.activeStreams.Dec()
}
