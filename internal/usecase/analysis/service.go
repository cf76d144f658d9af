// Package analysis runs the similarity pipeline: normalize, embed, build, detect.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/domain"
	domanalysis "github.com/kailas-cloud/simcheck/internal/domain/analysis"
	"github.com/kailas-cloud/simcheck/internal/domain/clone"
	"github.com/kailas-cloud/simcheck/internal/domain/similarity"
	"github.com/kailas-cloud/simcheck/internal/domain/text"
	"github.com/kailas-cloud/simcheck/internal/logger"
	"github.com/kailas-cloud/simcheck/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultThreshold    = 90.0
	DefaultMaxBatchSize = 100
	DefaultMaxTextBytes = 32 * 1024
)

// Service orchestrates one analysis per call. It holds no per-request state.
type Service struct {
	embedder     Embedder
	threshold    float64
	maxBatchSize int
	dimensions   int
	validator    text.Validator
}

// New creates an analysis service with default limits.
func New(embedder Embedder) *Service {
	return &Service{
		embedder:     embedder,
		threshold:    DefaultThreshold,
		maxBatchSize: DefaultMaxBatchSize,
		validator:    text.Validator{MaxBytes: DefaultMaxTextBytes},
	}
}

// WithThreshold sets the default clone threshold in percent.
func (s *Service) WithThreshold(threshold float64) *Service {
	s.threshold = threshold
	return s
}

// WithMaxBatchSize sets the largest accepted batch. Non-positive values are ignored.
func (s *Service) WithMaxBatchSize(n int) *Service {
	if n > 0 {
		s.maxBatchSize = n
	}
	return s
}

// WithDimensions pins the expected embedding size. 0 accepts any uniform size.
func (s *Service) WithDimensions(d int) *Service {
	if d >= 0 {
		s.dimensions = d
	}
	return s
}

// WithMaxTextBytes limits the raw size of each text. 0 disables the limit.
func (s *Service) WithMaxTextBytes(n int) *Service {
	if n >= 0 {
		s.validator.MaxBytes = n
	}
	return s
}

// Threshold returns the default clone threshold.
func (s *Service) Threshold() float64 { return s.threshold }

// MaxBatchSize returns the largest accepted batch.
func (s *Service) MaxBatchSize() int { return s.maxBatchSize }

type options struct {
	threshold *float64
}

// Option adjusts a single Analyze call.
type Option func(*options)

// OverrideThreshold replaces the default clone threshold for one call.
func OverrideThreshold(threshold float64) Option {
	return func(o *options) { o.threshold = &threshold }
}

// Analyze returns the similarity matrix and clone pairs for texts.
// Any failure aborts the whole batch; there is no partial result.
func (s *Service) Analyze(ctx context.Context, texts []string, opts ...Option) (domanalysis.Result, error) {
	start := time.Now()
	ctx = logger.With(ctx, zap.Int("texts", len(texts)))

	result, err := s.analyze(ctx, texts, opts)

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	metrics.AnalysesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return domanalysis.Result{}, err
	}
	metrics.AnalysisBatchSize.Observe(float64(len(texts)))
	metrics.AnalysisClonePairs.Observe(float64(len(result.Clones)))

	logger.FromContext(ctx).Debug("Analysis completed",
		zap.Int("clones", len(result.Clones)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *Service) analyze(ctx context.Context, texts []string, opts []Option) (domanalysis.Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	threshold := s.threshold
	if o.threshold != nil {
		threshold = *o.threshold
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > domanalysis.SelfSimilarity {
		return domanalysis.Result{}, domain.NewInvalidInput(domain.NoIndex,
			fmt.Sprintf("threshold must be between 0 and 100, got %v", threshold))
	}

	if len(texts) == 0 {
		return domanalysis.Result{}, domain.NewInvalidInput(domain.NoIndex, "texts must not be empty")
	}
	if len(texts) > s.maxBatchSize {
		return domanalysis.Result{}, domain.NewBatchTooLarge(len(texts), s.maxBatchSize)
	}

	docs, err := s.normalize(texts)
	if err != nil {
		return domanalysis.Result{}, err
	}

	vectors, err := s.embed(ctx, docs)
	if err != nil {
		return domanalysis.Result{}, err
	}

	m, err := similarity.BuildContext(ctx, vectors)
	if err != nil {
		return domanalysis.Result{}, fmt.Errorf("build similarity matrix: %w", err)
	}

	clones, err := clone.Detect(m, threshold)
	if err != nil {
		return domanalysis.Result{}, fmt.Errorf("detect clones: %w", err)
	}

	return domanalysis.Result{Matrix: m, Clones: clones}, nil
}

func (s *Service) normalize(texts []string) ([]domanalysis.Document, error) {
	docs := make([]domanalysis.Document, len(texts))
	for i, raw := range texts {
		normalized, err := s.validator.Normalize(raw)
		if err != nil {
			reason := err.Error()
			var inv *domain.InvalidInputError
			if errors.As(err, &inv) {
				reason = inv.Reason
			}
			return nil, domain.NewInvalidInput(i, reason)
		}
		docs[i] = domanalysis.Document{Index: i, RawText: raw, NormalizedText: normalized}
	}
	return docs, nil
}

// embed sends each distinct normalized text once and fans the vectors back
// out to document order.
func (s *Service) embed(ctx context.Context, docs []domanalysis.Document) ([][]float32, error) {
	slot := make([]int, len(docs))
	seen := make(map[string]int, len(docs))
	unique := make([]string, 0, len(docs))
	for i, d := range docs {
		if j, ok := seen[d.NormalizedText]; ok {
			slot[i] = j
			continue
		}
		seen[d.NormalizedText] = len(unique)
		slot[i] = len(unique)
		unique = append(unique, d.NormalizedText)
	}
	if dups := len(docs) - len(unique); dups > 0 {
		metrics.AnalysisDuplicateTexts.Add(float64(dups))
	}

	res, err := s.embedder.BatchEmbed(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	domain.RequestUsageFrom(ctx).Record(len(unique), res.TotalTokens)

	if len(res.Embeddings) != len(unique) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts: %w",
			len(res.Embeddings), len(unique), domain.ErrDimensionMismatch)
	}

	embeddings := make([]domanalysis.Embedding, len(docs))
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		v := res.Embeddings[slot[i]]
		if err := s.checkDimension(i, v); err != nil {
			return nil, err
		}
		embeddings[i] = domanalysis.Embedding{DocumentIndex: d.Index, Vector: v}
		vectors[i] = embeddings[i].Vector
	}
	return vectors, nil
}

func (s *Service) checkDimension(index int, v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("text %d: empty embedding: %w", index, domain.ErrDimensionMismatch)
	}
	if s.dimensions > 0 && len(v) != s.dimensions {
		return fmt.Errorf("text %d: embedding has %d dimensions, want %d: %w",
			index, len(v), s.dimensions, domain.ErrDimensionMismatch)
	}
	return nil
}

// outcome labels an Analyze result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrBatchTooLarge):
		return "batch_too_large"
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrInvalidMatrix):
		return "invalid_matrix"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
