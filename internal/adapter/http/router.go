package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/finbase/ledgermatch/internal/adapter/http/handler"
	"github.com/finbase/ledgermatch/internal/adapter/http/middleware"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler        *handler.AccountHandler
	EntryHandler          *handler.EntryHandler
	LedgerHandler         *handler.LedgerHandler
	StatementHandler      *handler.StatementHandler
	ReconciliationHandler *handler.ReconciliationHandler
	ConsistencyHandler    *handler.ConsistencyHandler
	HealthHandler         *handler.HealthHandler
	IdempotencyStore      usecase.IdempotencyStore
	Logger                zerolog.Logger
	RateLimitPerSecond    float64
	RateLimitBurst        int
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	if cfg.RateLimitPerSecond > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst).Limit)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Delete("/{id}", cfg.AccountHandler.Deactivate)
		})

		// Journal entries
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", cfg.EntryHandler.Create)
			r.Get("/", cfg.EntryHandler.List)
			r.Get("/{id}", cfg.EntryHandler.Get)
			r.Put("/{id}/lines", cfg.EntryHandler.UpdateLines)
			r.Post("/{id}/post", cfg.EntryHandler.Post)
			r.Post("/{id}/void", cfg.EntryHandler.Void)
		})

		// Ledger reports
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/trial-balance", cfg.LedgerHandler.TrialBalance)
			r.Get("/equation", cfg.LedgerHandler.Equation)
		})

		// Statement intake
		r.Post("/statements", cfg.StatementHandler.Ingest)
		r.Get("/statements/{id}", cfg.StatementHandler.GetBatch)
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", cfg.StatementHandler.ListTransactions)
			r.Get("/{id}", cfg.StatementHandler.GetTransaction)
		})

		// Reconciliation
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/runs", cfg.ReconciliationHandler.StartRun)
			r.Get("/runs", cfg.ReconciliationHandler.ListRuns)
			r.Get("/runs/{id}", cfg.ReconciliationHandler.GetRun)
			r.Get("/matches", cfg.ReconciliationHandler.ListMatches)
			r.Get("/matches/{id}", cfg.ReconciliationHandler.GetMatch)
			r.Post("/matches/{id}/accept", cfg.ReconciliationHandler.Accept)
			r.Post("/matches/{id}/reject", cfg.ReconciliationHandler.Reject)
			r.Post("/matches/batch-accept", cfg.ReconciliationHandler.BatchAccept)
			r.Post("/matches/batch-reject", cfg.ReconciliationHandler.BatchReject)
			r.Get("/stats", cfg.ReconciliationHandler.Stats)
		})

		// Consistency checks
		r.Route("/consistency", func(r chi.Router) {
			r.Post("/scan", cfg.ConsistencyHandler.Scan)
			r.Get("/checks", cfg.ConsistencyHandler.List)
			r.Get("/checks/{id}", cfg.ConsistencyHandler.Get)
			r.Post("/checks/{id}/resolve", cfg.ConsistencyHandler.Resolve)
		})
	})

	return r
}
