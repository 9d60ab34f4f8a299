package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the exchange.
type Metrics struct {
	// --- Core ---
	CoreOpsApplied  *prometheus.CounterVec
	CoreOpsRejected *prometheus.CounterVec
	CoreOpDuration  *prometheus.HistogramVec
	CoreJournals    *prometheus.CounterVec
	CoreSequence    prometheus.Gauge

	// --- Markets ---
	PoolTokenReserve  *prometheus.GaugeVec
	PoolNativeReserve *prometheus.GaugeVec
	ArtistSupply      *prometheus.GaugeVec
	AssetsRegistered  prometheus.Gauge

	// --- Channels & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupTier2Duration    prometheus.Histogram
	CommandOutOfOrder     *prometheus.CounterVec

	// --- Ingestion & publishing ---
	IngestCommands   *prometheus.CounterVec
	PublishedEvents  prometheus.Counter
	PublishErrors    *prometheus.CounterVec
	PayoutsPublished *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge

	// --- API ---
	APIRequests    *prometheus.CounterVec
	APIDuration    *prometheus.HistogramVec
	APIRateLimited *prometheus.CounterVec
}

// NewMetrics creates all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreOpsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_core_ops_applied_total",
			Help: "Operations committed by the core",
		}, []string{"event_type"}),

		CoreOpsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_core_ops_rejected_total",
			Help: "Operations rejected, by error kind",
		}, []string{"event_type", "reason"}),

		CoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exchange_core_op_duration_seconds",
			Help:    "Time to apply one operation in the core",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreJournals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_core_sequence",
			Help: "Next global sequence number",
		}),

		PoolTokenReserve: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_pool_token_reserve",
			Help: "Token reserve per pool, whole units",
		}, []string{"asset"}),

		PoolNativeReserve: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_pool_native_reserve",
			Help: "Native reserve per pool, whole units",
		}, []string{"asset"}),

		ArtistSupply: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_artist_current_supply",
			Help: "Outstanding shares per artist",
		}, []string{"artist"}),

		AssetsRegistered: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_assets_registered",
			Help: "Tokens issued by the registry",
		}),

		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exchange_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		DedupLRUSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupTier2Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "exchange_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: latencyBuckets,
		}),

		CommandOutOfOrder: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_command_out_of_order_total",
			Help: "Inbound commands rejected for source sequence gaps or regressions",
		}, []string{"source"}),

		IngestCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_ingest_commands_total",
			Help: "Inbound commands by outcome (applied/rejected/duplicate/malformed/out_of_order)",
		}, []string{"command", "outcome"}),

		PublishedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_published_events_total",
			Help: "Events published to JetStream",
		}),

		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_publish_errors_total",
			Help: "JetStream publish failures",
		}, []string{"kind"}),

		PayoutsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_payouts_published_total",
			Help: "Payout notifications published, by reason",
		}, []string{"reason"}),

		PersistEventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "exchange_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "exchange_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "exchange_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_api_requests_total",
			Help: "API requests",
		}, []string{"method", "code"}),

		APIDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exchange_api_duration_seconds",
			Help:    "API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"method"}),

		APIRateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_api_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"transport"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
