package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Movement metrics
	MovementsSubmitted *prometheus.CounterVec
	MovementErrors     *prometheus.CounterVec
	MovementDuration   prometheus.Histogram
	MovementUSDAmount  prometheus.Histogram
	EntriesConfirmed   prometheus.Counter
	FeesPosted         prometheus.Counter
	ConcurrencyRetries prometheus.Counter

	// Transit lock metrics
	TransitLocksCreated  prometheus.Counter
	TransitLocksReleased prometheus.Counter

	// Reconciliation metrics
	Reconciliations     *prometheus.CounterVec
	ReconciliationDelta prometheus.Histogram

	// Account metrics
	AccountsCreated prometheus.Counter

	// Rate metrics
	RateLookups   *prometheus.CounterVec
	RateRefreshes *prometheus.CounterVec

	// API metrics
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Authentication metrics
	AuthAttempts *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Audit and outbox metrics
	AuditLogsCreated *prometheus.CounterVec
	OutboxPublished  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all Prometheus metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MovementsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_movements_submitted_total",
				Help: "Total number of movements committed by kind and initial status",
			},
			[]string{"kind", "status"},
		),
		MovementErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_movement_errors_total",
				Help: "Total number of rejected movements by error type",
			},
			[]string{"error_type"},
		),
		MovementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashledger_movement_duration_seconds",
			Help:    "Duration of movement submissions",
			Buckets: prometheus.DefBuckets,
		}),
		MovementUSDAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashledger_movement_usd_amount",
			Help:    "USD reference amount of committed movements",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		EntriesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_entries_confirmed_total",
			Help: "Total number of pending entries confirmed",
		}),
		FeesPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_fees_posted_total",
			Help: "Total number of fee adjustments posted",
		}),
		ConcurrencyRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_concurrency_retries_total",
			Help: "Total number of write retries after lock conflicts",
		}),

		TransitLocksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_transit_locks_created_total",
			Help: "Total number of wallet transit locks taken",
		}),
		TransitLocksReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_transit_locks_released_total",
			Help: "Total number of wallet transit locks released",
		}),

		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_reconciliations_total",
				Help: "Total reconciliations by disposition and outcome",
			},
			[]string{"disposition", "outcome"},
		),
		ReconciliationDelta: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashledger_reconciliation_abs_delta",
			Help:    "Absolute reconciliation delta in the account asset",
			Buckets: []float64{0.01, 1, 10, 100, 1000, 10000, 100000},
		}),

		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),

		RateLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_rate_lookups_total",
				Help: "Rate and coin price lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		RateRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_rate_refreshes_total",
				Help: "Background rate refreshes by result",
			},
			[]string{"result"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cashledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_auth_attempts_total",
				Help: "Total authentication attempts",
			},
			[]string{"status"},
		),

		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashledger_rate_limit_hits_total",
			Help: "Total rate limit hits",
		}),

		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
		OutboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashledger_outbox_published_total",
				Help: "Outbox events handed to the publisher by result",
			},
			[]string{"result"},
		),
	}
}
