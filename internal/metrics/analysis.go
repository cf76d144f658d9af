package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "simcheck"

// Analysis metrics.
var (
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Analyses by outcome.",
	}, []string{"status"})

	AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "End-to-end analysis latency, embedding included.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	AnalysisBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_batch_size",
		Help:      "Texts submitted per analysis.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	AnalysisClonePairs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_clone_pairs",
		Help:      "Clone pairs reported per analysis.",
		Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 1000},
	})

	AnalysisDuplicateTexts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_duplicate_texts_total",
		Help:      "Texts whose normalized form repeated an earlier one in the same batch.",
	})
)

var registerAnalysisOnce sync.Once

// RegisterAnalysisMetrics registers the analysis collectors on the default registry.
func RegisterAnalysisMetrics() {
	registerAnalysisOnce.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDuration,
			AnalysisBatchSize,
			AnalysisClonePairs,
			AnalysisDuplicateTexts,
		)
	})
}
