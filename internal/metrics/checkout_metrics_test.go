package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCheckoutMetrics(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newCheckoutMetricsWithRegisterer should not return nil")
	}

	if metrics.checkoutStarted == nil {
		t.Error("checkoutStarted counter should not be nil")
	}

	if metrics.checkoutFinalized == nil {
		t.Error("checkoutFinalized counter vec should not be nil")
	}

	if metrics.webhookReceived == nil {
		t.Error("webhookReceived counter should not be nil")
	}

	if metrics.webhookRejected == nil {
		t.Error("webhookRejected counter should not be nil")
	}

	if metrics.webhookDuplicates == nil {
		t.Error("webhookDuplicates counter should not be nil")
	}

	if metrics.stockDecrements == nil {
		t.Error("stockDecrements counter should not be nil")
	}

	if metrics.chargeDuration == nil {
		t.Error("chargeDuration histogram should not be nil")
	}

	if metrics.finalizeDuration == nil {
		t.Error("finalizeDuration histogram should not be nil")
	}

	if metrics.activeStreams == nil {
		t.Error("activeStreams gauge should not be nil")
	}
}

func TestReregisterReturnsExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newCheckoutMetricsWithRegisterer(reg)
	second := newCheckoutMetricsWithRegisterer(reg)

	first.RecordCheckoutStarted()
	second.RecordCheckoutStarted()

	metric := &dto.Metric{}
	if err := first.checkoutStarted.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCheckoutFinalized(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordCheckoutFinalized("APPROVED")
	metrics.RecordCheckoutFinalized("APPROVED")
	metrics.RecordCheckoutFinalized("DECLINED")

	approved := &dto.Metric{}
	if err := metrics.checkoutFinalized.WithLabelValues("APPROVED").Write(approved); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if approved.Counter.GetValue() != 2.0 {
		t.Errorf("expected APPROVED counter 2.0, got %f", approved.Counter.GetValue())
	}

	declined := &dto.Metric{}
	if err := metrics.checkoutFinalized.WithLabelValues("DECLINED").Write(declined); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if declined.Counter.GetValue() != 1.0 {
		t.Errorf("expected DECLINED counter 1.0, got %f", declined.Counter.GetValue())
	}
}

func TestWebhookCounters(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordWebhookReceived()
	metrics.RecordWebhookReceived()
	metrics.RecordWebhookRejected()
	metrics.RecordWebhookDuplicate()

	received := &dto.Metric{}
	if err := metrics.webhookReceived.Write(received); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if received.Counter.GetValue() != 2.0 {
		t.Errorf("expected received 2.0, got %f", received.Counter.GetValue())
	}

	rejected := &dto.Metric{}
	if err := metrics.webhookRejected.Write(rejected); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if rejected.Counter.GetValue() != 1.0 {
		t.Errorf("expected rejected 1.0, got %f", rejected.Counter.GetValue())
	}

	duplicates := &dto.Metric{}
	if err := metrics.webhookDuplicates.Write(duplicates); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if duplicates.Counter.GetValue() != 1.0 {
		t.Errorf("expected duplicates 1.0, got %f", duplicates.Counter.GetValue())
	}
}

func TestRecordChargeDuration(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordChargeDuration(100 * time.Millisecond)
	metrics.RecordChargeDuration(500 * time.Millisecond)
	metrics.RecordChargeDuration(1 * time.Second)

	metric := &dto.Metric{}
	if err := metrics.chargeDuration.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}

	// 0.1 + 0.5 + 1.0 = 1.6
	sum := metric.Histogram.GetSampleSum()
	if sum < 1.5 || sum > 1.7 {
		t.Errorf("expected sum around 1.6, got %f", sum)
	}
}

func TestStreamLifecycle(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordStreamOpened()
	metrics.RecordStreamOpened()
	metrics.RecordStreamOpened()
	metrics.RecordStreamClosed()

	gaugeMetric := &dto.Metric{}
	if err := metrics.activeStreams.Write(gaugeMetric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}

	if gaugeMetric.Gauge.GetValue() != 2.0 {
		t.Errorf("expected 2.0 active streams, got %f", gaugeMetric.Gauge.GetValue())
	}
}
