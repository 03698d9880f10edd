package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SourceFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealhound",
			Name:      "source_fetch_total",
			Help:      "Total source fetch attempts",
		},
		[]string{"source", "status"}, // status: success / rate_limited / circuit_open / timeout / upstream_error
	)

	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dealhound",
			Name:      "source_fetch_duration_seconds",
			Help:      "Source fetch duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"source"},
	)

	SourceCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealhound",
			Name:      "source_candidates_total",
			Help:      "Raw candidates returned per source",
		},
		[]string{"source"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dealhound",
			Name:      "source_circuit_state",
			Help:      "Circuit state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	AIParseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealhound",
			Name:      "ai_parse_total",
			Help:      "AI query-parse attempts",
		},
		[]string{"status"}, // success / timeout / malformed / error
	)

	AIParseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dealhound",
			Name:      "ai_parse_duration_seconds",
			Help:      "AI query-parse duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealhound",
			Name:      "result_cache_total",
			Help:      "Result cache hits, misses and stale-write discards",
		},
		[]string{"result"}, // hit / miss / stale_discard / bypass
	)

	NormalizationCorrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealhound",
			Name:      "normalization_corrections_total",
			Help:      "Candidate fields corrected during normalization",
		},
		[]string{"field"}, // price / url / currency
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SourceFetchTotal)
	prometheus.MustRegister(SourceFetchDuration)
	prometheus.MustRegister(SourceCandidatesTotal)
	prometheus.MustRegister(CircuitState)
	prometheus.MustRegister(AIParseTotal)
	prometheus.MustRegister(AIParseDuration)
	prometheus.MustRegister(ResultCacheTotal)
	prometheus.MustRegister(NormalizationCorrections)
	searchMetricsRegistered = true
}
