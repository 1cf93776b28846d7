package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/storage/instrumented"
	"github.com/vladislavdragonenkov/checkout/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

const (
	serviceName     = "checkout"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
)

// Run поднимает API и сервер метрик и блокируется до отмены ctx или падения сервера.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithField("component", "app")
	logger.WithFields(version.Fields()).WithFields(cfg.Fields()).Info("запускаем checkout")

	tracerProvider, err := newTracerProvider(cfg)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown with error")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	storageMetrics := metrics.NewStorageMetrics()
	orders := instrumented.NewOrderRepository(deps.orders, storageMetrics, logger.WithField("layer", "repository"))

	router := httpapi.NewRouter(httpapi.Repositories{
		Orders:    orders,
		Customers: deps.customers,
		Products:  deps.products,
	}, httpapi.Options{
		Logger:         logger.WithField("layer", "http"),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	healthHandler := health.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", health.NewStorageChecker(deps.pinger))

	servers := []*namedServer{
		{name: "api", srv: &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: readTimeout}},
	}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &namedServer{
			name: "metrics",
			srv: &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           newMetricsMux(prometheus.DefaultGatherer, healthHandler),
				ReadHeaderTimeout: readTimeout,
			},
		})
	}

	return serve(ctx, servers, logger)
}

type namedServer struct {
	name string
	srv  *http.Server
}

// serve запускает серверы в одной errgroup: падение любого останавливает остальные.
// Отмена родительского ctx возвращает context.Canceled.
func serve(ctx context.Context, servers []*namedServer, logger *log.Entry) error {
	listeners := make([]net.Listener, 0, len(servers))
	for _, s := range servers {
		lis, err := net.Listen("tcp", s.srv.Addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("listen %s on %s: %w", s.name, s.srv.Addr, err)
		}
		listeners = append(listeners, lis)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range servers {
		lis := listeners[i]
		g.Go(func() error {
			logger.WithField("server", s.name).Infof("слушаем %s", lis.Addr())
			if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("останавливаем http серверы")
		for _, s := range servers {
			shutdownHTTP(s.srv, logger.WithField("server", s.name))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newMetricsMux собирает обработчики сервера метрик и проб.
func newMetricsMux(gatherer prometheus.Gatherer, healthHandler *health.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// newTracerProvider собирает провайдер трассировки. Если задан jaeger_endpoint,
// спаны пачками уходят в коллектор Jaeger; без него они только семплируются.
func newTracerProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version.GetVersion()),
		)),
	}
	if cfg.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(cfg.JaegerEndpoint),
		))
		if err != nil {
			return nil, fmt.Errorf("init jaeger exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
