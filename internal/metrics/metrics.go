// Package metrics provides Prometheus metrics for the scrape pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all crawler metrics.
	Namespace = "leadcrawler"

	// Subsystem is the subsystem for pipeline metrics.
	Subsystem = "pipeline"
)

// Request outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBusy    = "busy"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	RunsInFlight           prometheus.Gauge

	LeadsExtractedTotal prometheus.Counter
	LeadsSavedTotal     *prometheus.CounterVec

	RevealRunsTotal *prometheus.CounterVec
	RevealSteps     prometheus.Histogram
}

// New creates and registers the pipeline metrics on reg. A nil reg gets a
// private registry so tests and repeated constructions never collide.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initRequestMetrics(factory)
	m.initLeadMetrics(factory)
	m.initRevealMetrics(factory)

	return m
}

func (m *Metrics) initRequestMetrics(factory promauto.Factory) {
	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "requests_total",
			Help:      "Total number of handled pipeline requests",
		},
		[]string{"type", "outcome"},
	)

	m.RequestDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of pipeline requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"type"},
	)

	m.RunsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "runs_in_flight",
			Help:      "Number of scrape runs currently executing",
		},
	)
}

func (m *Metrics) initLeadMetrics(factory promauto.Factory) {
	m.LeadsExtractedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "leads_extracted_total",
			Help:      "Total number of lead records extracted from pages",
		},
	)

	m.LeadsSavedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "leads_saved_total",
			Help:      "Lead records written to the store by result",
		},
		[]string{"result"},
	)
}

func (m *Metrics) initRevealMetrics(factory promauto.Factory) {
	m.RevealRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "reveal_runs_total",
			Help:      "Reveal runs by stop reason",
		},
		[]string{"reason"},
	)

	m.RevealSteps = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "reveal_steps",
			Help:      "Scroll steps taken per reveal run",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(reqType, outcome string, took time.Duration) {
	m.RequestsTotal.WithLabelValues(reqType, outcome).Inc()
	m.RequestDurationSeconds.WithLabelValues(reqType).Observe(took.Seconds())
}

// ObserveSave records the tallies of one batch save.
func (m *Metrics) ObserveSave(stored, updated, errors int) {
	m.LeadsSavedTotal.WithLabelValues("stored").Add(float64(stored))
	m.LeadsSavedTotal.WithLabelValues("updated").Add(float64(updated))
	m.LeadsSavedTotal.WithLabelValues("error").Add(float64(errors))
}

// ObserveReveal records one reveal run.
func (m *Metrics) ObserveReveal(reason string, steps int) {
	m.RevealRunsTotal.WithLabelValues(reason).Inc()
	m.RevealSteps.Observe(float64(steps))
}
