package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewStorageMetrics(t *testing.T) {
	m := NewStorageMetricsWithRegisterer(prometheus.NewRegistry())

	if m.operations == nil {
		t.Error("operations counter vec should not be nil")
	}
	if m.duration == nil {
		t.Error("duration histogram vec should not be nil")
	}
	if m.inFlight == nil {
		t.Error("inFlight gauge should not be nil")
	}
	if m.rollbacks == nil {
		t.Error("rollbacks counter should not be nil")
	}
}

func TestOperationFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetricsWithRegisterer(reg)

	m.OperationStarted()
	m.OperationStarted()
	if got := testutil.ToFloat64(m.inFlight); got != 2 {
		t.Fatalf("expected 2 in flight, got %v", got)
	}

	m.OperationFinished("update", OutcomeAborted, 15*time.Millisecond)
	m.OperationFinished("find", OutcomeOK, time.Millisecond)

	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Fatalf("expected 0 in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("update", OutcomeAborted)); got != 1 {
		t.Fatalf("expected 1 aborted update, got %v", got)
	}

	expected := `
# HELP checkout_repository_operations_total Total number of order repository operations by outcome
# TYPE checkout_repository_operations_total counter
checkout_repository_operations_total{operation="find",outcome="ok"} 1
checkout_repository_operations_total{operation="update",outcome="aborted"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "checkout_repository_operations_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestOperationDurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetricsWithRegisterer(reg)

	m.OperationStarted()
	m.OperationFinished("create", OutcomeOK, 100*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "checkout_repository_operation_duration_seconds" {
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil {
		t.Fatal("duration histogram not gathered")
	}
	if histogram.GetSampleCount() != 1 {
		t.Fatalf("expected 1 sample, got %d", histogram.GetSampleCount())
	}
	if sum := histogram.GetSampleSum(); sum < 0.09 || sum > 0.11 {
		t.Fatalf("expected sample sum ~0.1, got %v", sum)
	}
}

func TestRecordRollback(t *testing.T) {
	m := NewStorageMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordRollback()
	m.RecordRollback()

	if got := testutil.ToFloat64(m.rollbacks); got != 2 {
		t.Fatalf("expected 2 rollbacks, got %v", got)
	}
}

func TestRegisterReturnsExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewStorageMetricsWithRegisterer(reg)
	second := NewStorageMetricsWithRegisterer(reg)

	first.RecordRollback()

	if got := testutil.ToFloat64(second.rollbacks); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
	if first.operations != second.operations {
		t.Fatal("expected the same counter vec to be reused")
	}
}

func TestRegisterPanicsOnTypeMismatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "checkout_repository_operations_total",
		Help: "Total number of order repository operations by outcome",
	}, []string{"operation", "outcome"}))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on collector type mismatch")
		}
	}()
	_ = NewStorageMetricsWithRegisterer(reg)
}
