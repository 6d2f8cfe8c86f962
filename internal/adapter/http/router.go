package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/bistroledger/internal/adapter/http/handler"
	"github.com/iho/bistroledger/internal/adapter/http/middleware"
	"github.com/iho/bistroledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	EntryHandler      *handler.EntryHandler
	LinkedHandler     *handler.LinkedHandler
	CorrectionHandler *handler.CorrectionHandler
	CurrencyHandler   *handler.CurrencyHandler
	StockHandler      *handler.StockHandler
	LedgerHandler     *handler.LedgerHandler
	HealthHandler     *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	// MetricsHandler serves /metrics; nil uses the default Prometheus registry.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		r.Route("/entries", func(r chi.Router) {
			r.Post("/", cfg.EntryHandler.Create)
			r.Get("/", cfg.EntryHandler.List)
			r.Post("/batch", cfg.EntryHandler.CreateBatch)
			r.Get("/{id}", cfg.EntryHandler.Get)
			r.Put("/{id}", cfg.EntryHandler.Update)
			r.Delete("/{id}", cfg.EntryHandler.Delete)
			r.Get("/{id}/corrections", cfg.CorrectionHandler.ListByEntry)
		})

		r.Post("/linked", cfg.LinkedHandler.Create)
		r.Post("/internal-consumption", cfg.LinkedHandler.InternalConsumption)
		r.Post("/corrections", cfg.CorrectionHandler.Create)

		r.Route("/currencies", func(r chi.Router) {
			r.Post("/", cfg.CurrencyHandler.Create)
			r.Get("/", cfg.CurrencyHandler.List)
			r.Post("/refresh", cfg.CurrencyHandler.Refresh)
			r.Get("/{code}", cfg.CurrencyHandler.Get)
			r.Put("/{code}/rate", cfg.CurrencyHandler.SetRate)
			r.Post("/{code}/base", cfg.CurrencyHandler.SetBase)
			r.Post("/{code}/deactivate", cfg.CurrencyHandler.Deactivate)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/purchase", cfg.StockHandler.Purchase)
			r.Post("/sale", cfg.StockHandler.Sale)
			r.Post("/consumption", cfg.StockHandler.Consumption)
			r.Post("/damage", cfg.StockHandler.Damage)
			r.Post("/purchase-correction", cfg.StockHandler.CorrectPurchase)
			r.Get("/items/{ref}/movements", cfg.StockHandler.ListMovements)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/tail", cfg.LedgerHandler.Tail)
			r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
			r.Post("/rebuild", cfg.LedgerHandler.Rebuild)
		})
	})

	return r
}
