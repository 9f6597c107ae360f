package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder exports pipeline counters through a prometheus
// registerer.
type PrometheusRecorder struct {
	fetches    *prometheus.CounterVec
	cacheHits  *prometheus.CounterVec
	repairs    *prometheus.CounterVec
	violations *prometheus.CounterVec
	builds     *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the pipeline metrics with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracecore",
			Subsystem: "lims",
			Name:      "fetches_total",
			Help:      "Remote record fetches by record kind",
		}, []string{"kind"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracecore",
			Subsystem: "lims",
			Name:      "cache_hits_total",
			Help:      "Records served from the local cache by record kind",
		}, []string{"kind"}),
		repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracecore",
			Subsystem: "repair",
			Name:      "fixes_total",
			Help:      "Heuristic fixes applied by rule name",
		}, []string{"rule"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracecore",
			Subsystem: "check",
			Name:      "violations_total",
			Help:      "Checker violations by severity",
		}, []string{"severity"}),
		builds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracecore",
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Trace build duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
	}
}

func (r *PrometheusRecorder) RecordFetch(kind string) {
	r.fetches.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordCacheHit(kind string) {
	r.cacheHits.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordRepair(rule string) {
	r.repairs.WithLabelValues(rule).Inc()
}

func (r *PrometheusRecorder) RecordViolation(severity string) {
	r.violations.WithLabelValues(severity).Inc()
}

func (r *PrometheusRecorder) ObserveBuild(duration time.Duration, ok bool) {
	status := "error"
	if ok {
		status = "success"
	}
	r.builds.WithLabelValues(status).Observe(duration.Seconds())
}
