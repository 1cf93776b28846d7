// Package httpapi публикует репозитории заказов, клиентов и товаров по HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Repositories: хранилища, которые обслуживает API.
type Repositories struct {
	Orders    domain.OrderRepository
	Customers domain.CustomerRepository
	Products  domain.ProductRepository
}

// Options настраивает роутер.
type Options struct {
	Logger *log.Entry
	// AllowedOrigins: список источников для CORS; пустой список отключает CORS.
	AllowedOrigins []string
	// TracerProvider для серверных спанов; по умолчанию глобальный провайдер otel.
	TracerProvider trace.TracerProvider
}

type handler struct {
	repos    Repositories
	logger   *log.Entry
	validate *validator.Validate
}

// NewRouter собирает chi-роутер с маршрутами /api/v1.
func NewRouter(repos Repositories, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}

	tracerProvider := opts.TracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}

	h := &handler{
		repos:    repos,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceMiddleware(tracerProvider.Tracer(tracerName)))
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
		})
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.createProduct)
			r.Get("/{id}", h.getProduct)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Put("/{id}", h.updateOrder)
		})
	})

	return router
}
