package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/iho/cashledger/internal/adapter/http/handler"
	"github.com/iho/cashledger/internal/adapter/http/middleware"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
	"github.com/iho/cashledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler        *handler.AccountHandler
	EntryHandler          *handler.EntryHandler
	MovementHandler       *handler.MovementHandler
	ReconciliationHandler *handler.ReconciliationHandler
	RateHandler           *handler.RateHandler
	LedgerHandler         *handler.LedgerHandler
	AuthHandler           *handler.AuthHandler
	HealthHandler         *handler.HealthHandler

	// TokenVerifier guards /api/v1. When nil every route is public, which
	// is only meant for tests and local tooling.
	TokenVerifier    middleware.TokenVerifier
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	AllowedOrigins   []string
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader},
			ExposedHeaders:   []string{"X-Idempotency-Replay", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		r.Group(func(r chi.Router) {
			if cfg.TokenVerifier != nil {
				r.Use(middleware.AuthMiddleware(cfg.TokenVerifier, cfg.Metrics))
			}

			// Idempotency middleware for mutating requests
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
			}

			requireRole := func(role domain.Role) func(http.Handler) http.Handler {
				if cfg.TokenVerifier == nil {
					return func(next http.Handler) http.Handler { return next }
				}
				return middleware.RequireRole(role)
			}

			if cfg.AuthHandler != nil {
				r.Get("/auth/me", cfg.AuthHandler.Me)
			}

			// Accounts
			r.Route("/accounts", func(r chi.Router) {
				r.With(requireRole(domain.RoleAdmin)).Post("/", cfg.AccountHandler.Create)
				r.Get("/", cfg.AccountHandler.List)
				r.Get("/{id}", cfg.AccountHandler.Get)
				r.Get("/{id}/balances", cfg.AccountHandler.Balances)
				r.Get("/{id}/entries", cfg.EntryHandler.ListByAccount)
				r.Get("/{id}/adjustments", cfg.EntryHandler.AccountAdjustments)
				r.With(requireRole(domain.RoleAdmin)).Post("/{id}/reconcile", cfg.ReconciliationHandler.Reconcile)
			})

			// Movements and entries
			r.With(requireRole(domain.RoleOperator)).Post("/movements", cfg.MovementHandler.Submit)
			r.Route("/entries", func(r chi.Router) {
				r.Get("/{id}", cfg.EntryHandler.Get)
				r.Get("/{id}/adjustments", cfg.EntryHandler.Adjustments)
				r.With(requireRole(domain.RoleOperator)).Post("/{id}/confirm", cfg.MovementHandler.Confirm)
				r.With(requireRole(domain.RoleOperator)).Post("/{id}/fee", cfg.MovementHandler.ConfirmFee)
			})

			// Rates
			r.Get("/rates/snapshot", cfg.RateHandler.Snapshot)
			r.With(requireRole(domain.RoleOperator)).Put("/rates/{currency}", cfg.RateHandler.PutRate)
			r.With(requireRole(domain.RoleOperator)).Put("/coin-prices/{symbol}", cfg.RateHandler.PutCoinPrice)
			r.Post("/conversions/quote", cfg.RateHandler.Quote)

			r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
		})
	})

	return r
}
