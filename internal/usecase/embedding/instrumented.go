// Package embedding wraps embedding providers with budgets, rate limits and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/simcheck/internal/domain"
	dombudget "github.com/kailas-cloud/simcheck/internal/domain/usage/budget"
	logpkg "github.com/kailas-cloud/simcheck/internal/logger"
	"github.com/kailas-cloud/simcheck/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest slice of texts sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(texts int, tokens int64)
	Snapshot() dombudget.Snapshot
}

// InstrumentedEmbedder wraps a provider with budget enforcement, rate limiting and logging.
// Transport metrics (requests, duration, tokens) are recorded by the providers.
type InstrumentedEmbedder struct {
	inner       domain.Embedder
	provider    string
	model       string
	budget      BudgetChecker
	limiter     *rate.Limiter
	concurrency int
	logger      *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with budget and observability.
// budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:       inner,
		provider:    provider,
		model:       model,
		budget:      budget,
		concurrency: 1,
		logger:      logger,
	}
}

// WithRateLimit caps provider calls at rps with the given burst. rps <= 0 disables the limit.
func (p *InstrumentedEmbedder) WithRateLimit(rps float64, burst int) *InstrumentedEmbedder {
	if rps <= 0 {
		p.limiter = nil
		return p
	}
	if burst < 1 {
		burst = 1
	}
	p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return p
}

// WithConcurrency bounds in-flight Embed calls when the provider has no native batch.
func (p *InstrumentedEmbedder) WithConcurrency(n int) *InstrumentedEmbedder {
	if n < 1 {
		n = 1
	}
	p.concurrency = n
	return p
}

// Embed checks budget, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if err := p.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()

	result, err := p.limited().Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.log(ctx).Error("Embedding request failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.record(1, result.TotalTokens)

	p.log(ctx).Debug("Embedding request completed",
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed checks budget, splits into provider-sized chunks and delegates to inner.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	if err := p.checkBudget(ctx, len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	duration := time.Since(start)

	p.log(ctx).Debug("Batch embedding completed",
		zap.Duration("duration", duration),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// log returns the request logger from ctx, or the embedder's own, tagged with provider and model.
func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContextOr(ctx, p.logger).With(
		zap.String("provider", p.provider),
		zap.String("model", p.model),
	)
}

// HealthCheck delegates to the provider when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("provider %s: %w", p.provider, err)
		}
	}
	return nil
}

func (p *InstrumentedEmbedder) checkBudget(ctx context.Context, batchSize int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.log(ctx).Error("Budget exceeded",
			zap.Int("batch_size", batchSize),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

// embedChunked splits texts into DefaultMaxAPIBatchSize chunks. Each chunk is
// recorded as soon as it returns, so the budget re-check before the next one sees it.
func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		if offset > 0 {
			if err := p.checkBudget(ctx, len(texts)-offset); err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk %d: %w", offset, err)
			}
		}

		end := min(offset+DefaultMaxAPIBatchSize, len(texts))
		chunk := texts[offset:end]

		chunkResult, err := p.embedInner(ctx, chunk)
		if err != nil {
			p.log(ctx).Error("Batch embedding request failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		p.record(len(chunk), chunkResult.TotalTokens)
		out.Embeddings = append(out.Embeddings, chunkResult.Embeddings...)
		out.PromptTokens += chunkResult.PromptTokens
		out.TotalTokens += chunkResult.TotalTokens
	}

	return out, nil
}

func (p *InstrumentedEmbedder) embedInner(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		if err := p.wait(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.ParallelBatchFallback(ctx, p.limited(), texts, p.concurrency)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

func (p *InstrumentedEmbedder) record(texts, totalTokens int) {
	if p.budget == nil {
		return
	}
	p.budget.Record(texts, int64(totalTokens))
	if totalTokens > 0 {
		snap := p.budget.Snapshot()
		remaining := metrics.EmbeddingBudgetTokensRemaining
		remaining.WithLabelValues(p.provider, "daily").Set(float64(snap.RemainingDaily()))
		remaining.WithLabelValues(p.provider, "monthly").Set(float64(snap.RemainingMonthly()))
	}
}

// wait blocks until the limiter admits one provider call.
func (p *InstrumentedEmbedder) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rate limit wait: %w", ctxErr)
		}
		// Wait refuses up front when the next token is due after the deadline.
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("rate limit wait: %v: %w", err, context.DeadlineExceeded)
		}
		return fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.EmbeddingRateLimitWait.WithLabelValues(p.provider).Observe(time.Since(start).Seconds())
	return nil
}

func (p *InstrumentedEmbedder) limited() domain.Embedder {
	return limitedEmbedder{p: p}
}

// limitedEmbedder applies the rate limit to every single-text call.
type limitedEmbedder struct {
	p *InstrumentedEmbedder
}

func (l limitedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := l.p.wait(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return l.p.inner.Embed(ctx, text) //nolint:wrapcheck // wrapped by callers
}
