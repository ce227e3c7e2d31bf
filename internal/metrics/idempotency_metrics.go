package metrics

import "github.com/prometheus/client_golang/prometheus"

// Исходы резервирования ключа идемпотентности для метки outcome.
const (
	OutcomeReserved   = "reserved"
	OutcomeReplayed   = "replayed"
	OutcomeInProgress = "in_progress"
	OutcomeMismatch   = "mismatch"
	OutcomeReleased   = "released"
	OutcomeError      = "error"
)

// IdempotencyMetrics содержит метрики ключей идемпотентности продаж и их очистки.
// Методы безопасны для nil-получателя.
type IdempotencyMetrics struct {
	outcomes       *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	cleanupLast    prometheus.Gauge
}

// NewIdempotencyMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		outcomes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "socks_idempotency_requests_total",
			Help: "Idempotent sell requests by reservation outcome",
		}, []string{"outcome"}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "socks_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup sweeps by result",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "socks_idempotency_cleanup_deleted_total",
			Help: "Expired idempotency keys removed by cleanup",
		}),
		cleanupLast: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "socks_idempotency_cleanup_last_deleted",
			Help: "Expired idempotency keys removed by the last sweep",
		}),
	}
}

// RecordOutcome учитывает исход резервирования или освобождения ключа.
func (m *IdempotencyMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// RecordSweep учитывает проход очистки: deleted ключей удалено, err — ошибка прохода.
func (m *IdempotencyMetrics) RecordSweep(deleted int, err error) {
	if m == nil {
		return
	}
	m.cleanupDeleted.Add(float64(deleted))
	if err != nil {
		m.cleanupRuns.WithLabelValues(ResultError).Inc()
		return
	}
	m.cleanupRuns.WithLabelValues(ResultSuccess).Inc()
	m.cleanupLast.Set(float64(deleted))
}
