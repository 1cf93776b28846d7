package instrumented_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/storage/instrumented"
)

type stubRepository struct {
	err    error
	order  domain.Order
	orders []domain.Order
	calls  []string
}

func (s *stubRepository) Create(_ context.Context, order domain.Order) error {
	s.calls = append(s.calls, "create:"+order.ID)
	return s.err
}

func (s *stubRepository) Update(_ context.Context, order domain.Order) error {
	s.calls = append(s.calls, "update:"+order.ID)
	return s.err
}

func (s *stubRepository) Find(_ context.Context, id string) (domain.Order, error) {
	s.calls = append(s.calls, "find:"+id)
	return s.order, s.err
}

func (s *stubRepository) FindAll(context.Context) ([]domain.Order, error) {
	s.calls = append(s.calls, "find_all")
	return s.orders, s.err
}

type harness struct {
	repo    domain.OrderRepository
	stub    *stubRepository
	spans   *tracetest.SpanRecorder
	hook    *test.Hook
	metrics *metrics.StorageMetrics
	reg     *prometheus.Registry
}

func newHarness(t *testing.T, err error) *harness {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	logger, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	m := metrics.NewStorageMetricsWithRegisterer(reg)
	stub := &stubRepository{err: err}

	return &harness{
		repo:    instrumented.NewOrderRepository(stub, m, logger.WithField("component", "test"), instrumented.WithTracerProvider(provider)),
		stub:    stub,
		spans:   recorder,
		hook:    hook,
		metrics: m,
		reg:     reg,
	}
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestCreate_Success(t *testing.T) {
	h := newHarness(t, nil)
	order := domain.Order{ID: "o-1", CustomerID: "c-1", Items: []domain.OrderItem{{ID: "i-1"}}}

	require.NoError(t, h.repo.Create(context.Background(), order))

	assert.Equal(t, []string{"create:o-1"}, h.stub.calls)
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "OrderRepository.create", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	id, ok := spanAttr(spans[0], "order.id")
	require.True(t, ok)
	assert.Equal(t, "o-1", id.AsString())
	items, ok := spanAttr(spans[0], "order.items")
	require.True(t, ok)
	assert.EqualValues(t, 1, items.AsInt64())

	assert.Empty(t, h.hook.AllEntries())
	count, err := testutil.GatherAndCount(h.reg, "checkout_repository_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdate_AbortedIsReturnedUnchanged(t *testing.T) {
	cause := fmt.Errorf("%w: update order o-1 at step items_insert: %w", domain.ErrTransactionAborted, domain.ErrDuplicateIdentity)
	h := newHarness(t, cause)

	err := h.repo.Update(context.Background(), domain.Order{ID: "o-1"})

	assert.Same(t, cause, err)
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events(), "error must be recorded on the span")

	entry := h.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, "aborted", entry.Data["outcome"])
	assert.Equal(t, "o-1", entry.Data["order_id"])
	assert.Equal(t, cause, entry.Data[log.ErrorKey])

	expected := `
# HELP checkout_order_update_rollbacks_total Total number of order updates rolled back
# TYPE checkout_order_update_rollbacks_total counter
checkout_order_update_rollbacks_total 1
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "checkout_order_update_rollbacks_total"))
}

func TestFind_NotFoundIsWarning(t *testing.T) {
	h := newHarness(t, fmt.Errorf("find order o-9: %w", domain.ErrOrderNotFound))

	_, err := h.repo.Find(context.Background(), "o-9")

	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)

	entry := h.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "not_found", entry.Data["outcome"])
}

func TestFindAll_PassesResultThrough(t *testing.T) {
	h := newHarness(t, nil)
	h.stub.orders = []domain.Order{{ID: "a"}, {ID: "b"}}

	orders, err := h.repo.FindAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, h.stub.orders, orders)
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	_, hasID := spanAttr(spans[0], "order.id")
	assert.False(t, hasID)
}

func TestNilMetricsAndLogger(t *testing.T) {
	stub := &stubRepository{err: domain.ErrStorageUnavailable}
	repo := instrumented.NewOrderRepository(stub, nil, nil)

	_, err := repo.FindAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.OutcomeOK},
		{domain.ErrOrderNotFound, metrics.OutcomeNotFound},
		{domain.ErrDuplicateIdentity, metrics.OutcomeDuplicate},
		{domain.ErrConstraintViolation, metrics.OutcomeConstraint},
		{fmt.Errorf("%w: %w", domain.ErrTransactionAborted, domain.ErrConstraintViolation), metrics.OutcomeAborted},
		{domain.ErrStorageUnavailable, metrics.OutcomeUnavailable},
		{errors.New("boom"), metrics.OutcomeError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, instrumented.Outcome(tt.err), "err %v", tt.err)
	}
}
