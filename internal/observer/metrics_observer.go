package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kyc_console"

// MetricsObserver exports console events as prometheus metrics
type MetricsObserver struct {
	analyses       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	blocked        *prometheus.CounterVec
	candidateFetch *prometheus.CounterVec
	liveness       *prometheus.CounterVec
}

// NewMetricsObserver creates the collectors and registers them with reg
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	o := &MetricsObserver{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis calls by feature and outcome.",
		}, []string{"feature", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Backend round trip of analysis calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feature"}),
		blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_blocked_total",
			Help:      "Analyses stopped before submission, by reason.",
		}, []string{"reason"}),
		candidateFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_image_fetches_total",
			Help:      "Face search candidate image fetches by result.",
		}, []string{"result"}),
		liveness: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_flows_total",
			Help:      "Finished liveness flows by variant and outcome.",
		}, []string{"variant", "outcome"}),
	}
	reg.MustRegister(o.analyses, o.duration, o.blocked, o.candidateFetch, o.liveness)
	return o
}

// OnEvent handles events by updating the collectors
func (o *MetricsObserver) OnEvent(ctx context.Context, event ConsoleEvent) {
	switch event.EventType {
	case AnalysisCompleted, AnalysisFailed:
		o.analyses.WithLabelValues(event.Feature, event.Outcome).Inc()
		if event.Duration > 0 {
			o.duration.WithLabelValues(event.Feature).Observe(event.Duration.Seconds())
		}
	case AnalysisBlocked:
		o.blocked.WithLabelValues(event.Reason).Inc()
	case CandidateImageFetched:
		o.candidateFetch.WithLabelValues("available").Inc()
	case CandidateImageFailed:
		o.candidateFetch.WithLabelValues("unavailable").Inc()
	case LivenessFinished:
		variant, _ := event.Metadata["variant"].(string)
		o.liveness.WithLabelValues(variant, event.Outcome).Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// WorkerStats are the counters of a bounded worker pool.
type WorkerStats struct {
	Total     int64
	Completed int64
	Active    int64
}

// RegisterWorkerPool exports pool counters read from stats at scrape time.
func RegisterWorkerPool(reg prometheus.Registerer, pool string, stats func() WorkerStats) {
	labels := prometheus.Labels{"pool": pool}
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pool_jobs_submitted_total",
			Help:        "Jobs accepted by the worker pool.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Total) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pool_jobs_completed_total",
			Help:        "Jobs the worker pool finished.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Completed) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pool_active_workers",
			Help:        "Workers currently running a job.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Active) }),
	)
}
