package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Journal entry metrics
	EntriesCreated prometheus.Counter
	EntriesPosted  prometheus.Counter
	EntriesVoided  prometheus.Counter
	PostDuration   prometheus.Histogram
	EntryErrors    *prometheus.CounterVec

	// Account metrics
	AccountsCreated   prometheus.Counter
	AccountOperations *prometheus.CounterVec

	// Statement metrics
	BatchesIngested      prometheus.Counter
	TxnsIngested         prometheus.Counter
	BatchBalanceFailures prometheus.Counter

	// Matcher metrics
	MatcherRuns        *prometheus.CounterVec
	MatcherRunDuration prometheus.Histogram
	MatchOutcomes      *prometheus.CounterVec
	MatchScores        prometheus.Histogram
	MatchesSuperseded  prometheus.Counter

	// Review metrics
	ReviewDecisions *prometheus.CounterVec
	ReviewBlocked   prometheus.Counter

	// Consistency metrics
	ChecksOpened   *prometheus.CounterVec
	ChecksResolved *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisDuration   *prometheus.HistogramVec
	RedisErrors     *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxErrors    prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Journal entry metrics
		EntriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_entries_created_total",
			Help: "Total number of journal entries created",
		}),
		EntriesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_entries_posted_total",
			Help: "Total number of journal entries posted",
		}),
		EntriesVoided: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_entries_voided_total",
			Help: "Total number of journal entries voided or reversed",
		}),
		PostDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgermatch_post_duration_seconds",
			Help:    "Duration of entry posting operations",
			Buckets: prometheus.DefBuckets,
		}),
		EntryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_entry_errors_total",
				Help: "Total number of entry errors by type",
			},
			[]string{"error_type"},
		),

		// Account metrics
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_account_operations_total",
				Help: "Total account operations by type",
			},
			[]string{"operation"},
		),

		// Statement metrics
		BatchesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_statement_batches_total",
			Help: "Total number of statement batches ingested",
		}),
		TxnsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_bank_transactions_total",
			Help: "Total number of bank transactions ingested",
		}),
		BatchBalanceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_statement_balance_failures_total",
			Help: "Total number of batches that failed the balance check",
		}),

		// Matcher metrics
		MatcherRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_matcher_runs_total",
				Help: "Total matcher runs by final status",
			},
			[]string{"status"},
		),
		MatcherRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgermatch_matcher_run_duration_seconds",
			Help:    "Duration of matcher runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		MatchOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_match_outcomes_total",
				Help: "Routing outcomes per processed bank transaction",
			},
			[]string{"outcome"},
		),
		MatchScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgermatch_match_scores",
			Help:    "Composite scores of routed matches",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100},
		}),
		MatchesSuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_matches_superseded_total",
			Help: "Total pending matches superseded by better candidates",
		}),

		// Review metrics
		ReviewDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_review_decisions_total",
				Help: "Total review decisions by kind",
			},
			[]string{"decision"},
		),
		ReviewBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_review_blocked_total",
			Help: "Total accepts blocked by open consistency checks",
		}),

		// Consistency metrics
		ChecksOpened: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_checks_opened_total",
				Help: "Total consistency checks opened by type and severity",
			},
			[]string{"check_type", "severity"},
		),
		ChecksResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_checks_resolved_total",
				Help: "Total consistency checks resolved by action",
			},
			[]string{"action"},
		),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgermatch_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgermatch_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ledgermatch_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgermatch_redis_duration_seconds",
				Help:    "Redis operation duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermatch_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Outbox metrics
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgermatch_outbox_errors_total",
			Help: "Total outbox publish errors",
		}),
	}
}

// The Record helpers tolerate a nil receiver so code paths under unit test
// can run without a registry.

// RecordEntryPosted counts a successful post.
func (m *Metrics) RecordEntryPosted(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EntriesPosted.Inc()
	m.PostDuration.Observe(elapsed.Seconds())
}

// RecordEntryVoided counts a void or reversal.
func (m *Metrics) RecordEntryVoided() {
	if m == nil {
		return
	}
	m.EntriesVoided.Inc()
}

// RecordMatcherRun counts a finished run and its duration.
func (m *Metrics) RecordMatcherRun(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MatcherRuns.WithLabelValues(status).Inc()
	m.MatcherRunDuration.Observe(elapsed.Seconds())
}

// RecordMatchOutcome counts the routing outcome for one bank transaction.
func (m *Metrics) RecordMatchOutcome(outcome string) {
	if m == nil {
		return
	}
	m.MatchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordMatchScore records the composite score of a routed match.
func (m *Metrics) RecordMatchScore(score int) {
	if m == nil {
		return
	}
	m.MatchScores.Observe(float64(score))
}

// RecordSuperseded counts a pending match replaced by a better candidate.
func (m *Metrics) RecordSuperseded() {
	if m == nil {
		return
	}
	m.MatchesSuperseded.Inc()
}

// RecordReviewDecision counts an accept or reject decision.
func (m *Metrics) RecordReviewDecision(decision string) {
	if m == nil {
		return
	}
	m.ReviewDecisions.WithLabelValues(decision).Inc()
}

// RecordReviewBlocked counts an accept refused by an open consistency check.
func (m *Metrics) RecordReviewBlocked() {
	if m == nil {
		return
	}
	m.ReviewBlocked.Inc()
}

// RecordCheckOpened counts a new consistency finding.
func (m *Metrics) RecordCheckOpened(checkType, severity string) {
	if m == nil {
		return
	}
	m.ChecksOpened.WithLabelValues(checkType, severity).Inc()
}

// RecordCheckResolved counts a resolved consistency finding.
func (m *Metrics) RecordCheckResolved(action string) {
	if m == nil {
		return
	}
	m.ChecksResolved.WithLabelValues(action).Inc()
}

// RecordOutboxPublished counts an outbox event handed to the publisher.
func (m *Metrics) RecordOutboxPublished() {
	if m == nil {
		return
	}
	m.OutboxPublished.Inc()
}

// RecordOutboxError counts a failed publish or mark.
func (m *Metrics) RecordOutboxError() {
	if m == nil {
		return
	}
	m.OutboxErrors.Inc()
}
