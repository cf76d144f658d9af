package simcheck

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/simcheck/internal/domain"
	domanalysis "github.com/kailas-cloud/simcheck/internal/domain/analysis"
	analysisuc "github.com/kailas-cloud/simcheck/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/simcheck/internal/usecase/health"
)

const (
	defaultDimensions  = 768
	defaultConcurrency = 4
)

// analysisUseCase is the internal interface for swapping in tests.
type analysisUseCase interface {
	Analyze(ctx context.Context, texts []string, opts ...analysisuc.Option) (domanalysis.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Checker is the simcheck SDK entry point. It is safe for concurrent use.
type Checker struct {
	svc       analysisUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Checker.
func New(opts ...Option) (*Checker, error) {
	cfg := &checkerConfig{
		threshold:   analysisuc.DefaultThreshold,
		maxBatch:    analysisuc.DefaultMaxBatchSize,
		maxBytes:    analysisuc.DefaultMaxTextBytes,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := validateThreshold(cfg.threshold); err != nil {
		return nil, err
	}
	if cfg.maxBatch <= 0 {
		return nil, fmt.Errorf("simcheck: max batch size must be positive, got %d", cfg.maxBatch)
	}
	if cfg.dimensions < 0 {
		return nil, fmt.Errorf("simcheck: dimensions must not be negative, got %d", cfg.dimensions)
	}

	if cfg.embedder == nil {
		dims := cfg.dimensions
		if dims == 0 {
			dims = defaultDimensions
		}
		e, err := NewLocalEmbedder(dims)
		if err != nil {
			return nil, err
		}
		cfg.embedder = e
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireChecker(cfg, obs), nil
}

func wireChecker(cfg *checkerConfig, obs *observer) *Checker {
	emb := &embedderAdapter{inner: cfg.embedder, concurrency: cfg.concurrency}

	svc := analysisuc.New(emb).
		WithThreshold(cfg.threshold).
		WithMaxBatchSize(cfg.maxBatch).
		WithMaxTextBytes(cfg.maxBytes).
		WithDimensions(cfg.dimensions)

	return &Checker{
		svc:       svc,
		healthSvc: healthuc.New(nil, emb),
		obs:       obs,
	}
}

// Analyze returns the similarity matrix and clone pairs for texts using the configured threshold.
// Any failure aborts the whole batch.
func (c *Checker) Analyze(ctx context.Context, texts []string) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe(call{op: "analyze", texts: len(texts), clones: len(res.Clones)}, start, err) }()

	return c.analyze(ctx, texts)
}

// AnalyzeWithThreshold is Analyze with a per-call clone threshold in [0, 100].
func (c *Checker) AnalyzeWithThreshold(ctx context.Context, texts []string, percent float64) (res Result, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe(call{op: "analyze_with_threshold", texts: len(texts), clones: len(res.Clones)}, start, err)
	}()

	return c.analyze(ctx, texts, analysisuc.OverrideThreshold(percent))
}

func (c *Checker) analyze(ctx context.Context, texts []string, opts ...analysisuc.Option) (Result, error) {
	r, err := c.svc.Analyze(ctx, texts, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}
	clones := r.Clones
	if clones == nil {
		clones = []ClonePair{}
	}
	return Result{Matrix: r.Matrix, Clones: clones}, nil
}

func validateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > domanalysis.SelfSimilarity {
		return errors.Join(
			fmt.Errorf("simcheck: threshold must be between 0 and 100, got %v", t),
			domain.ErrInvalidInput,
		)
	}
	return nil
}
