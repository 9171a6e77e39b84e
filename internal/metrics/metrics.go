package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venueboard",
			Name:      "sync_cycles_total",
			Help:      "Sync job cycles by outcome (dispatched, empty, skipped, error).",
		},
		[]string{"outcome"},
	)

	dispatchedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "venueboard",
			Name:      "dispatched_records_total",
			Help:      "Rows successfully marked SYNCED.",
		},
	)

	dispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venueboard",
			Name:      "dispatch_failures_total",
			Help:      "Dispatch failures by class (transient, permanent).",
		},
		[]string{"class"},
	)

	snapshotFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venueboard",
			Name:      "snapshot_fetches_total",
			Help:      "Snapshot fetch attempts by outcome (applied, stale, error).",
		},
		[]string{"outcome"},
	)

	snapshotRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "venueboard",
			Name:      "snapshot_records",
			Help:      "Record count of the last applied snapshot.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venueboard",
			Name:      "http_requests_total",
			Help:      "Board API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	lastDispatch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "venueboard",
			Name:      "sync_last_dispatch_timestamp_seconds",
			Help:      "Unix time of the last successful batch dispatch.",
		},
	)

	lastSnapshotApplied = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "venueboard",
			Name:      "snapshot_last_applied_timestamp_seconds",
			Help:      "Unix time of the last applied snapshot.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			syncCycles,
			dispatchedRecords,
			dispatchFailures,
			snapshotFetches,
			snapshotRecords,
			httpRequests,
			lastDispatch,
			lastSnapshotApplied,
		)
	})
}

// IncSyncCycle increments the cycle counter for an outcome label.
func IncSyncCycle(outcome string) {
	syncCycles.WithLabelValues(outcome).Inc()
}

// AddDispatched adds n successfully synced rows.
func AddDispatched(n int) {
	dispatchedRecords.Add(float64(n))
}

// IncDispatchFailure increments the failure counter for a class label.
func IncDispatchFailure(class string) {
	dispatchFailures.WithLabelValues(class).Inc()
}

// IncSnapshotFetch increments the fetch counter for an outcome label.
func IncSnapshotFetch(outcome string) {
	snapshotFetches.WithLabelValues(outcome).Inc()
}

// SetSnapshotRecords records the size of the applied snapshot.
func SetSnapshotRecords(n int) {
	snapshotRecords.Set(float64(n))
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// SetLastDispatchTime records when a batch last reached the remote.
func SetLastDispatchTime(t time.Time) {
	lastDispatch.Set(float64(t.Unix()))
}

// SetLastSnapshotTime records when a snapshot was last applied.
func SetLastSnapshotTime(t time.Time) {
	lastSnapshotApplied.Set(float64(t.Unix()))
}
