package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	DatabasesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kvfabric_databases_total",
			Help: "Total number of attached databases by backend kind",
		},
		[]string{"backend"},
	)

	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvfabric_requests_total",
			Help: "Total number of requests by operation and status",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvfabric_request_duration_seconds",
			Help:    "Request duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Lock contention metrics
	LockWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvfabric_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire the provider lock by mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Backend-level metrics
	BackendBytesStored = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kvfabric_backend_bytes_stored",
			Help: "Approximate bytes stored per database, sampled by the periodic collector",
		},
		[]string{"db"},
	)

	// Migration metrics
	MigrationKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvfabric_migration_keys_total",
			Help: "Total number of keys migrated by outcome",
		},
		[]string{"outcome"},
	)

	MigrationBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvfabric_migration_batch_duration_seconds",
			Help:    "Time taken to migrate one batch of keys",
			Buckets: prometheus.DefBuckets,
		},
	)

	MigrationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kvfabric_migrations_in_flight",
			Help: "Number of migrations currently running",
		},
	)

	DatabaseMigrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvfabric_database_migration_duration_seconds",
			Help:    "Time taken for a whole-database migration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func init() {
	prometheus.MustRegister(DatabasesTotal)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(BackendBytesStored)
	prometheus.MustRegister(MigrationKeysTotal)
	prometheus.MustRegister(MigrationBatchDuration)
	prometheus.MustRegister(MigrationsInFlight)
	prometheus.MustRegister(DatabaseMigrationDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
