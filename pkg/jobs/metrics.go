package jobs

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
)

const namespace = "hmpps_github_discovery"

// Metrics are the run metrics of the jobs, kept in their own registry so
// they can be served and pushed without the process collectors.
type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	flags       *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics registers the job metrics in a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Job runs by result.",
		}, []string{"job", "result"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Components or teams processed.",
		}, []string{"job"}),
		flags: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_flags_total",
			Help:      "Processed items by outcome flag.",
		}, []string{"job", "flag"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors logged during job runs.",
		}, []string{"job"}),
		duration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run.",
		}, []string{"job"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run without errors.",
		}, []string{"job"}),
	}
}

// Gatherer exposes the registry, for the /metrics endpoint.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Observe records a finished run.
func (m *Metrics) Observe(r *Report) {
	result := r.Result
	if result == "" {
		result = "none"
	}
	m.runs.WithLabelValues(r.Job, result).Inc()
	m.items.WithLabelValues(r.Job).Add(float64(len(r.Results)))
	for _, res := range r.Results {
		for _, flag := range res.Flags.Names() {
			m.flags.WithLabelValues(r.Job, flag).Inc()
		}
	}
	m.errors.WithLabelValues(r.Job).Add(float64(len(r.Errors)))
	m.duration.WithLabelValues(r.Job).Set(r.Finished.Sub(r.Started).Seconds())
	if r.Result == catalogue.ResultSucceeded {
		m.lastSuccess.WithLabelValues(r.Job).Set(float64(r.Finished.Unix()))
	}
}

// Push sends the registry to a Pushgateway under the job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return errors.WrapAPI("pushgateway", url, err)
	}
	return nil
}
