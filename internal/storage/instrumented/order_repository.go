// Package instrumented оборачивает репозитории трассировкой, метриками и логами.
package instrumented

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/checkout/internal/storage/instrumented"

// Имена операций в спанах, метриках и логах.
const (
	opCreate  = "create"
	opUpdate  = "update"
	opFind    = "find"
	opFindAll = "find_all"
)

type orderRepository struct {
	next    domain.OrderRepository
	metrics *metrics.StorageMetrics
	logger  *log.Entry
	tracer  trace.Tracer
}

// Option настраивает декоратор.
type Option func(*orderRepository)

// WithTracerProvider задаёт провайдер трассировки вместо глобального.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(r *orderRepository) {
		if provider != nil {
			r.tracer = provider.Tracer(tracerName)
		}
	}
}

// NewOrderRepository декорирует репозиторий. Ошибки внутреннего репозитория
// возвращаются без изменений. metrics может быть nil.
func NewOrderRepository(next domain.OrderRepository, m *metrics.StorageMetrics, logger *log.Entry, opts ...Option) domain.OrderRepository {
	if logger == nil {
		logger = log.New().WithField("component", "order-repository")
	}
	r := &orderRepository{
		next:    next,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.observe(ctx, opCreate, order.ID, func(ctx context.Context) error {
		return r.next.Create(ctx, order)
	}, attribute.Int("order.items", len(order.Items)))
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.observe(ctx, opUpdate, order.ID, func(ctx context.Context) error {
		return r.next.Update(ctx, order)
	}, attribute.Int("order.items", len(order.Items)))
}

func (r *orderRepository) Find(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := r.observe(ctx, opFind, id, func(ctx context.Context) error {
		var err error
		order, err = r.next.Find(ctx, id)
		return err
	})
	return order, err
}

func (r *orderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.observe(ctx, opFindAll, "", func(ctx context.Context) error {
		var err error
		orders, err = r.next.FindAll(ctx)
		return err
	})
	return orders, err
}

func (r *orderRepository) observe(
	ctx context.Context,
	operation, orderID string,
	call func(context.Context) error,
	attrs ...attribute.KeyValue,
) error {
	attrs = append(attrs, semconv.DBOperationKey.String(operation))
	if orderID != "" {
		attrs = append(attrs, attribute.String("order.id", orderID))
	}
	ctx, span := r.tracer.Start(ctx, "OrderRepository."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	if r.metrics != nil {
		r.metrics.OperationStarted()
	}
	started := time.Now()

	err := call(ctx)

	outcome := Outcome(err)
	if r.metrics != nil {
		r.metrics.OperationFinished(operation, outcome, time.Since(started))
		if outcome == metrics.OutcomeAborted {
			r.metrics.RecordRollback()
		}
	}
	span.SetAttributes(attribute.String("outcome", outcome))

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	fields := log.Fields{
		"operation": operation,
		"outcome":   outcome,
	}
	if orderID != "" {
		fields["order_id"] = orderID
	}

	// Ожидаемые исходы не помечают спан ошибкой и пишутся на уровне warn.
	switch outcome {
	case metrics.OutcomeNotFound, metrics.OutcomeDuplicate, metrics.OutcomeConstraint:
		r.logger.WithError(err).WithFields(fields).Warn("order repository operation rejected")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WithError(err).WithFields(fields).Error("order repository operation failed")
	}

	return err
}

// Outcome сводит ошибку репозитория к значению лейбла outcome.
// Откат транзакции важнее причины: aborted проверяется первым.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrTransactionAborted):
		return metrics.OutcomeAborted
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return metrics.OutcomeDuplicate
	case errors.Is(err, domain.ErrConstraintViolation):
		return metrics.OutcomeConstraint
	case errors.Is(err, domain.ErrStorageUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
