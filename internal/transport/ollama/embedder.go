// Package ollama embeds texts through a native Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/domain"
	"github.com/kailas-cloud/simcheck/internal/metrics"
)

// embeddingClient is the slice of the langchaingo Ollama LLM used here.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the Ollama provider settings.
type Config struct {
	BaseURL  string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// Embedder calls Ollama once per text. It has no BatchEmbed; the
// instrumented layer fans batches out with bounded parallelism.
// Token counts are local estimates since Ollama reports none for embeddings.
type Embedder struct {
	client   embeddingClient
	tokens   tokenCounter
	model    string
	provider string
	logger   *zap.Logger
}

// NewEmbedder creates an Ollama embedding provider.
// Creation does not contact the server; a missing model surfaces on first use.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.Provider
	if provider == "" {
		provider = domain.ProviderOllama
	}

	return &Embedder{
		client:   llm,
		tokens:   newTiktokenCounter(logger).count,
		model:    cfg.Model,
		provider: provider,
		logger:   logger,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	vecs, err := e.client.CreateEmbedding(ctx, []string{text})

	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.EmbeddingResult{}, fmt.Errorf("ollama embed aborted: %w", err)
		}
		e.countError("api_error")
		return domain.EmbeddingResult{}, fmt.Errorf("ollama embed with model %q: %v: %w",
			e.model, err, domain.ErrEmbeddingUnavailable)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		e.countError("empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("ollama returned no embedding: %w", domain.ErrEmbeddingUnavailable)
	}

	tokens := e.tokens(text)
	metrics.ObserveEmbeddingCall(e.provider, e.model, duration, tokens, tokens)

	return domain.EmbeddingResult{
		Embedding:    vecs[0],
		PromptTokens: tokens,
		TotalTokens:  tokens,
	}, nil
}

// HealthCheck embeds a probe text, which also verifies the model is pulled.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.Embed(ctx, "health"); err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	return nil
}

func (e *Embedder) countError(kind string) {
	metrics.ObserveEmbeddingError(e.provider, e.model, kind)
}
