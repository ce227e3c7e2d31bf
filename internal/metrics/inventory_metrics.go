package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для метки result.
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultRejected = "rejected"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// InventoryMetrics содержит метрики складских операций.
// Методы безопасны для nil-получателя: сервис может работать без метрик.
type InventoryMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	unitsAdded    prometheus.Counter
	unitsSold     prometheus.Counter
	stockUnits    prometheus.Gauge
	sellRejected  *prometheus.CounterVec
	publishFailed prometheus.Counter
}

// NewInventoryMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewInventoryMetrics() *InventoryMetrics {
	return NewInventoryMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewInventoryMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewInventoryMetricsWithRegisterer(registerer prometheus.Registerer) *InventoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InventoryMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "socks_operations_total",
			Help: "Total number of inventory operations by operation and result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "socks_operation_duration_seconds",
			Help:    "Duration of inventory operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		unitsAdded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "socks_units_added_total",
			Help: "Total number of sock units received into stock",
		}),
		unitsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "socks_units_sold_total",
			Help: "Total number of sock units released from stock",
		}),
		stockUnits: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "socks_stock_units",
			Help: "Sock units currently in stock",
		}),
		sellRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "socks_sell_rejected_total",
			Help: "Total number of rejected sell requests by reason",
		}, []string{"reason"}),
		publishFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "socks_events_publish_failed_total",
			Help: "Total number of inventory events that failed to publish",
		}),
	}
}

// ObserveOperation фиксирует результат и длительность операции.
func (m *InventoryMetrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetStock выставляет остаток по данным хранилища, например при старте процесса.
func (m *InventoryMetrics) SetStock(units int) {
	if m == nil {
		return
	}
	m.stockUnits.Set(float64(units))
}

// RecordAdded учитывает приход партии.
func (m *InventoryMetrics) RecordAdded(units int) {
	if m == nil {
		return
	}
	m.unitsAdded.Add(float64(units))
	m.stockUnits.Add(float64(units))
}

// RecordSold учитывает списание.
func (m *InventoryMetrics) RecordSold(units int) {
	if m == nil {
		return
	}
	m.unitsSold.Add(float64(units))
	m.stockUnits.Sub(float64(units))
}

// RecordRemoved учитывает удаление партии с остатком units.
func (m *InventoryMetrics) RecordRemoved(units int) {
	if m == nil {
		return
	}
	m.stockUnits.Sub(float64(units))
}

// RecordSellRejected увеличивает счётчик отказов в списании.
func (m *InventoryMetrics) RecordSellRejected(reason string) {
	if m == nil {
		return
	}
	m.sellRejected.WithLabelValues(reason).Inc()
}

// RecordPublishFailed увеличивает счётчик неотправленных событий.
func (m *InventoryMetrics) RecordPublishFailed() {
	if m == nil {
		return
	}
	m.publishFailed.Inc()
}
