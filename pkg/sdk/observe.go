package simcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics are registered on the caller's registry, never the global one.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	texts      prometheus.Histogram
	clones     prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simcheck",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simcheck",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		texts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simcheck",
			Subsystem: "sdk",
			Name:      "texts_per_call",
			Help:      "Texts submitted per successful analysis.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		clones: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simcheck",
			Subsystem: "sdk",
			Name:      "clone_pairs_per_call",
			Help:      "Clone pairs found per successful analysis.",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 1000},
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.texts); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.clones); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several Checkers share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("simcheck: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("simcheck: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// outcome maps an analysis error to a low-cardinality status label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrBatchTooLarge):
		return "batch_too_large"
	case errors.Is(err, ErrEmbeddingQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// call describes one observed SDK operation.
type call struct {
	op     string
	texts  int
	clones int
}

// observer logs and counts SDK operations. A nil observer does nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(c call, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(c.op, status).Inc()
		o.metrics.duration.WithLabelValues(c.op).Observe(dur.Seconds())
		if err == nil {
			o.metrics.texts.Observe(float64(c.texts))
			o.metrics.clones.Observe(float64(c.clones))
		}
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("simcheck operation failed",
			"op", c.op, "status", status, "texts", c.texts, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("simcheck operation completed",
		"op", c.op, "texts", c.texts, "clones", c.clones, "duration", dur)
}
