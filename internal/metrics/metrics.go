package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eto_source_fetch_total",
			Help: "Total climate source fetch attempts",
		},
		[]string{"source", "status"},
	)

	SourceFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eto_source_fetch_latency_seconds",
			Help:    "Climate source fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	PreprocessCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eto_preprocess_corrections_total",
			Help: "Values removed or corrected during preprocessing",
		},
		[]string{"source"},
	)

	FusionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eto_fusion_fallbacks_total",
			Help: "Per-date fusion estimator resets that fell back to the source mean",
		},
		[]string{"variable"},
	)

	EToComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eto_records_computed_total",
			Help: "ETo records computed, by quality flag",
		},
		[]string{"quality"},
	)
)
