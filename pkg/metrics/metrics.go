package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts jobs by terminal/transient state.
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medgenomics_jobs_total",
			Help: "Total number of jobs by state",
		},
		[]string{"state"},
	)

	// StageDuration records per-stage wall-clock time by stage and outcome.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medgenomics_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds by stage and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	// IDSScore observes the IDS scanner's score distribution.
	IDSScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medgenomics_ids_score",
			Help:    "Distribution of IDS scanner scores",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	// AMLScore observes the AML detector's reconstruction-error score distribution.
	AMLScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medgenomics_aml_score",
			Help:    "Distribution of AML reconstruction-error scores",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ArtifactBytesTotal counts total bytes written to the object store.
	ArtifactBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medgenomics_artifacts_bytes_total",
			Help: "Total bytes of ciphertext written to the object store",
		},
	)

	// IntegrityFailuresTotal counts object-store integrity verification failures.
	IntegrityFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medgenomics_integrity_failures_total",
			Help: "Total number of object-store integrity check failures",
		},
	)

	// QueueDepth reports the current number of queued jobs.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "medgenomics_queue_depth",
			Help: "Current number of jobs waiting to be scheduled",
		},
	)

	// RetentionPrunedTotal counts jobs removed by the retention sweeper.
	RetentionPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medgenomics_retention_pruned_total",
			Help: "Total number of retained_deleted jobs pruned",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(IDSScore)
	prometheus.MustRegister(AMLScore)
	prometheus.MustRegister(ArtifactBytesTotal)
	prometheus.MustRegister(IntegrityFailuresTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RetentionPrunedTotal)
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
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
