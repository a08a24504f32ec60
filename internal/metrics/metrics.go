// Package metrics exposes Prometheus instruments for runs, articles and fetches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "articles_publisher"

// Metrics holds every instrument used by the pipeline.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds *prometheus.HistogramVec
	ArticlesTotal      *prometheus.CounterVec
	FetchAttemptsTotal *prometheus.CounterVec
	ImageAttemptsTotal *prometheus.CounterVec
	RunInProgress      prometheus.Gauge
}

// New registers instruments on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_runs_total",
			Help:      "Campaign runs by outcome.",
		}, []string{"campaign", "result"}),
		RunDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_run_duration_seconds",
			Help:      "Wall time of a campaign run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"campaign"}),
		ArticlesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Article attempts by terminal status.",
		}, []string{"campaign", "status"}),
		FetchAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by strategy and result.",
		}, []string{"strategy", "result"}),
		ImageAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_attempts_total",
			Help:      "Image download and upload attempts by step and result.",
		}, []string{"step", "result"}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a campaign run holds the global run lock.",
		}),
	}
}

// Nop returns instruments registered on a throwaway registry, for tests and
// for components built without metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
