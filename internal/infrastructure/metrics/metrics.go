package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Posting metrics
	EntriesPosted    prometheus.Counter
	EntriesUpdated   prometheus.Counter
	EntriesDeleted   prometheus.Counter
	EntriesCorrected prometheus.Counter
	LinkedPostings   *prometheus.CounterVec
	StockEvents      *prometheus.CounterVec
	PostingDuration  *prometheus.HistogramVec
	PostingErrors    *prometheus.CounterVec
	PostedAmount     prometheus.Histogram

	// Recalculation metrics
	RecalcReplayed prometheus.Histogram
	RecalcWritten  prometheus.Histogram
	TailBalance    prometheus.Gauge

	// Notification metrics
	AlertsRaised   *prometheus.CounterVec
	NotifyFailures prometheus.Counter

	// Currency metrics
	RateRefreshes *prometheus.CounterVec
	RatesUpdated  prometheus.Counter

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter

	// Database metrics
	DBRetries *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics on the given registerer
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Posting metrics
		EntriesPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_entries_posted_total",
			Help: "Total number of ledger entries posted",
		}),
		EntriesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_entries_updated_total",
			Help: "Total number of ledger entries updated",
		}),
		EntriesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_entries_deleted_total",
			Help: "Total number of ledger entries deleted",
		}),
		EntriesCorrected: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_entries_corrected_total",
			Help: "Total number of in-place corrections",
		}),
		LinkedPostings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistroledger_linked_postings_total",
				Help: "Total number of linked postings by correlation kind",
			},
			[]string{"kind"},
		),
		StockEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistroledger_stock_events_total",
				Help: "Total number of inventory events by kind",
			},
			[]string{"kind"},
		),
		PostingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bistroledger_posting_duration_seconds",
				Help:    "Duration of ledger operations including recalculation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		PostingErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistroledger_posting_errors_total",
				Help: "Total number of failed ledger operations by error class",
			},
			[]string{"operation", "class"},
		),
		PostedAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bistroledger_posted_amount_base",
			Help:    "Posted amounts in base currency",
			Buckets: []float64{1000, 10000, 100000, 1000000, 10000000, 100000000},
		}),

		// Recalculation metrics
		RecalcReplayed: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bistroledger_recalc_replayed_entries",
			Help:    "Entries replayed per recalculation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		RecalcWritten: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bistroledger_recalc_written_entries",
			Help:    "Running balances rewritten per recalculation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		TailBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bistroledger_tail_balance_base",
			Help: "Running balance of the last ledger entry in base currency",
		}),

		// Notification metrics
		AlertsRaised: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistroledger_alerts_raised_total",
				Help: "Total advisory alerts raised by kind",
			},
			[]string{"kind"},
		),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_notify_failures_total",
			Help: "Total alert deliveries that failed",
		}),

		// Currency metrics
		RateRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistroledger_rate_refreshes_total",
				Help: "Total exchange rate refresh runs by status",
			},
			[]string{"status"},
		),
		RatesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_rates_updated_total",
			Help: "Total currency rates changed by refreshes",
		}),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bistroledger_outbox_failures_total",
			Help: "Total outbox events that failed to publish",
		}),

		// Database metrics
		DBRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistroledger_db_retries_total",
				Help: "Total retried units of work by PostgreSQL error code",
			},
			[]string{"code"},
		),
	}
}
