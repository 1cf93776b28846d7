package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы операций репозитория (значение лейбла outcome).
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeDuplicate   = "duplicate"
	OutcomeConstraint  = "constraint"
	OutcomeAborted     = "aborted"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// StorageMetrics содержит метрики операций репозитория заказов.
type StorageMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	// Откаты транзакции Update.
	rollbacks prometheus.Counter
}

// NewStorageMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStorageMetrics() *StorageMetrics {
	return NewStorageMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorageMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewStorageMetricsWithRegisterer(registerer prometheus.Registerer) *StorageMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorageMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_repository_operations_total",
			Help: "Total number of order repository operations by outcome",
		}, []string{"operation", "outcome"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_repository_operation_duration_seconds",
			Help:    "Duration of order repository operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "checkout_repository_operations_in_flight",
			Help: "Number of order repository operations currently running",
		}),
		rollbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_order_update_rollbacks_total",
			Help: "Total number of order updates rolled back",
		}),
	}
}

// OperationStarted увеличивает число выполняющихся операций.
func (m *StorageMetrics) OperationStarted() {
	m.inFlight.Inc()
}

// OperationFinished фиксирует исход и длительность операции.
func (m *StorageMetrics) OperationFinished(operation, outcome string, duration time.Duration) {
	m.inFlight.Dec()
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRollback увеличивает счётчик откатов Update.
func (m *StorageMetrics) RecordRollback() {
	m.rollbacks.Inc()
}
