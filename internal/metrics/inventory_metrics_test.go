package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewInventoryMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewInventoryMetricsWithRegisterer(reg)
	second := NewInventoryMetricsWithRegisterer(reg)

	if first.unitsAdded != second.unitsAdded {
		t.Fatal("second registration should reuse the existing counter")
	}
	if first.operations != second.operations {
		t.Fatal("second registration should reuse the existing counter vec")
	}
}

func TestInventoryMetrics_StockFlow(t *testing.T) {
	m := NewInventoryMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordAdded(10)
	m.RecordSold(4)
	m.RecordRemoved(6)

	if got := testutil.ToFloat64(m.unitsAdded); got != 10 {
		t.Errorf("expected 10 units added, got %f", got)
	}
	if got := testutil.ToFloat64(m.unitsSold); got != 4 {
		t.Errorf("expected 4 units sold, got %f", got)
	}
	if got := testutil.ToFloat64(m.stockUnits); got != 0 {
		t.Errorf("expected empty stock gauge, got %f", got)
	}
}

func TestInventoryMetrics_ObserveOperation(t *testing.T) {
	m := NewInventoryMetricsWithRegisterer(prometheus.NewRegistry())

	m.ObserveOperation("sell", ResultSuccess, 10*time.Millisecond)
	m.ObserveOperation("sell", ResultRejected, time.Millisecond)
	m.ObserveOperation("sell", ResultSuccess, 2*time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("sell", ResultSuccess)); got != 2 {
		t.Errorf("expected 2 successful sells, got %f", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("sell", ResultRejected)); got != 1 {
		t.Errorf("expected 1 rejected sell, got %f", got)
	}

	observer, err := m.duration.GetMetricWithLabelValues("sell")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}
	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestInventoryMetrics_RejectionsAndPublishFailures(t *testing.T) {
	m := NewInventoryMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordSellRejected("insufficient_stock")
	m.RecordSellRejected("insufficient_stock")
	m.RecordSellRejected("not_found")
	m.RecordPublishFailed()

	if got := testutil.ToFloat64(m.sellRejected.WithLabelValues("insufficient_stock")); got != 2 {
		t.Errorf("expected 2 insufficient stock rejections, got %f", got)
	}
	if got := testutil.ToFloat64(m.sellRejected.WithLabelValues("not_found")); got != 1 {
		t.Errorf("expected 1 not found rejection, got %f", got)
	}
	if got := testutil.ToFloat64(m.publishFailed); got != 1 {
		t.Errorf("expected 1 publish failure, got %f", got)
	}
}

func TestInventoryMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *InventoryMetrics

	m.ObserveOperation("add", ResultSuccess, time.Millisecond)
	m.RecordAdded(1)
	m.RecordSold(1)
	m.RecordRemoved(1)
	m.RecordSellRejected("not_found")
	m.RecordPublishFailed()
}
