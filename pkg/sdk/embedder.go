package simcheck

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/simcheck/internal/domain"
	localEmb "github.com/kailas-cloud/simcheck/internal/transport/local"
	ollamaEmb "github.com/kailas-cloud/simcheck/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/simcheck/internal/transport/openai"
)

// Embedder converts text to a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// Analyze sends the whole batch at once instead of one call per text.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is optionally implemented by embedders that can report availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// NewLocalEmbedder returns the offline feature-hashing embedder.
func NewLocalEmbedder(dimensions int) (Embedder, error) {
	e, err := localEmb.NewEmbedder(dimensions)
	if err != nil {
		return nil, fmt.Errorf("simcheck: %w", err)
	}
	return &providerEmbedder{inner: e}, nil
}

// NewOllamaEmbedder returns an embedder backed by an Ollama server, e.g.
// NewOllamaEmbedder("http://localhost:11434", "nomic-embed-text").
func NewOllamaEmbedder(baseURL, model string) (Embedder, error) {
	e, err := ollamaEmb.NewEmbedder(&ollamaEmb.Config{
		BaseURL:  baseURL,
		Model:    model,
		Provider: domain.ProviderOllama,
	})
	if err != nil {
		return nil, fmt.Errorf("simcheck: %w", err)
	}
	return &providerEmbedder{inner: e}, nil
}

// NewOpenAIEmbedder returns an embedder for any OpenAI-compatible embeddings API.
// An empty baseURL selects api.openai.com; dimensions 0 keeps the model default.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) Embedder {
	return &providerEmbedder{inner: openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Model:      model,
		Dimensions: dimensions,
		Provider:   domain.ProviderOpenAI,
	})}
}

// providerEmbedder exposes an internal provider through the public interfaces.
type providerEmbedder struct {
	inner domain.Embedder
}

func (p *providerEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := p.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err //nolint:wrapcheck // already wrapped by the provider
	}
	return EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (p *providerEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	be, ok := p.inner.(domain.BatchEmbedder)
	if !ok {
		r, err := domain.BatchFallback(ctx, p.inner, texts)
		if err != nil {
			return BatchEmbeddingResult{}, err //nolint:wrapcheck // already wrapped
		}
		return BatchEmbeddingResult(r), nil
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, err //nolint:wrapcheck // already wrapped by the provider
	}
	return BatchEmbeddingResult(r), nil
}

func (p *providerEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent adapter
	}
	return nil
}

// embedderAdapter wraps a public Embedder to satisfy the internal batch contract.
type embedderAdapter struct {
	inner       Embedder
	concurrency int
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult(r), nil
}

// BatchEmbed uses the inner BatchEmbedder when available, else bounded parallel Embed calls.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := a.inner.(BatchEmbedder); ok {
		r, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return domain.BatchEmbeddingResult(r), nil
	}
	r, err := domain.ParallelBatchFallback(ctx, a, texts, a.concurrency)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return r, nil
}

func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
