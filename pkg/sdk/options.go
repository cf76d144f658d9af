package simcheck

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Checker.
type Option interface {
	apply(*checkerConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*checkerConfig)

func (f optionFunc) apply(c *checkerConfig) { f(c) }

type checkerConfig struct {
	embedder    Embedder
	threshold   float64
	maxBatch    int
	maxBytes    int
	dimensions  int
	concurrency int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the text embedding provider.
// Defaults to the local feature-hashing embedder with 768 dimensions.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *checkerConfig) {
		c.embedder = e
	})
}

// WithThreshold sets the clone threshold in percent, within [0, 100]. Default: 90.
func WithThreshold(percent float64) Option {
	return optionFunc(func(c *checkerConfig) {
		c.threshold = percent
	})
}

// WithMaxBatchSize sets the maximum number of texts per Analyze call.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *checkerConfig) {
		c.maxBatch = size
	})
}

// WithMaxTextBytes caps the size of each text. Default: 32 KiB.
func WithMaxTextBytes(n int) Option {
	return optionFunc(func(c *checkerConfig) {
		c.maxBytes = n
	})
}

// WithDimensions enforces the embedding size. 0 (default) accepts any size that is uniform within a batch.
func WithDimensions(d int) Option {
	return optionFunc(func(c *checkerConfig) {
		c.dimensions = d
	})
}

// WithConcurrency bounds parallel Embed calls for embedders without BatchEmbed.
// Default: 4.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *checkerConfig) {
		c.concurrency = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *checkerConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *checkerConfig) {
		c.metricsReg = reg
	})
}
