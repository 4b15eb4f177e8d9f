package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// resolution engine.
type Metrics struct {
	ResolveRequests *prometheus.CounterVec // labels: outcome={resolved,unresolved,cache_hit}
	FuzzyRequests   *prometheus.CounterVec // labels: outcome={recovered,empty}
	ResolveDuration prometheus.Histogram

	// Provider call metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,no_match,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Disambiguation metrics.
	AlternativeProbes *prometheus.CounterVec // labels: outcome={kept,discarded,error}

	// Batch pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         prometheus.Counter
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	PipelineRunning         prometheus.Gauge

	EngineReady prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ResolveRequests,
		m.FuzzyRequests,
		m.ResolveDuration,
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheLookups,
		m.AlternativeProbes,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.PipelineRunning,
		m.EngineReady,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ResolveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "resolve_requests_total",
			Help:      "Resolution attempts by outcome.",
		}, []string{"outcome"}),
		FuzzyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "fuzzy_requests_total",
			Help:      "Fuzzy-correction attempts by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "place_resolver",
			Name:      "resolve_duration_seconds",
			Help:      "End-to-end duration of a resolution, including provider fallback.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "provider_requests_total",
			Help:      "Geocoding provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "place_resolver",
			Name:      "provider_duration_seconds",
			Help:      "Upstream geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		AlternativeProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "alternative_probes_total",
			Help:      "Country-biased disambiguation probes by outcome.",
		}, []string{"outcome"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "messages_consumed_total",
			Help:      "Query messages consumed from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "messages_produced_total",
			Help:      "Resolution events published to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "place_resolver",
			Name:      "transform_errors_total",
			Help:      "Source messages skipped because they could not be parsed or resolved.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "place_resolver",
			Name:      "batch_size",
			Help:      "Number of messages per extracted batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "place_resolver",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of one extract-resolve-publish cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "place_resolver",
			Name:      "pipeline_running",
			Help:      "1 while the batch resolution pipeline loop is active.",
		}),
		EngineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "place_resolver",
			Name:      "engine_ready",
			Help:      "1 when the engine has at least one usable provider configured.",
		}),
	}
}
