package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const embeddingSubsystem = "embedding"

// Embedding provider and budget metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "requests_total",
		Help:      "Provider calls by outcome.",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Provider call latency.",
		Buckets:   []float64{0.005, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "model"})

	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "tokens_total",
		Help:      "Tokens reported by the provider, split into prompt and total.",
	}, []string{"provider", "model", "type"})

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "errors_total",
		Help:      "Provider failures by kind.",
	}, []string{"provider", "model", "error_type"})

	EmbeddingBudgetTokensRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "budget_tokens_remaining",
		Help:      "Tokens left in the current budget period.",
	}, []string{"provider", "period"})

	EmbeddingRateLimitWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "rate_limit_wait_seconds",
		Help:      "Time blocked on the provider rate limiter.",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"provider"})
)

var registerEmbeddingOnce sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors on the default registry.
// Repeated calls are no-ops.
func RegisterEmbeddingMetrics() {
	registerEmbeddingOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingBudgetTokensRemaining,
			EmbeddingRateLimitWait,
		)
	})
}

// ObserveEmbeddingCall records a successful provider call.
// Token counters are only touched when the provider reports usage.
func ObserveEmbeddingCall(provider, model string, took time.Duration, promptTokens, totalTokens int) {
	EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(took.Seconds())
	if totalTokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
		EmbeddingTokensTotal.WithLabelValues(provider, model, "total").Add(float64(totalTokens))
	}
}

// ObserveEmbeddingError records a failed provider call of the given kind.
func ObserveEmbeddingError(provider, model, kind string) {
	EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
	EmbeddingErrorsTotal.WithLabelValues(provider, model, kind).Inc()
}
