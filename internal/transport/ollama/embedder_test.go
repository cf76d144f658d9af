package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/domain"
	"github.com/kailas-cloud/simcheck/internal/metrics"
	embeddinguc "github.com/kailas-cloud/simcheck/internal/usecase/embedding"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type stubClient struct {
	vecs  [][]float32
	err   error
	texts []string
}

func (s *stubClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	s.texts = texts
	return s.vecs, s.err
}

func newTestEmbedder(c embeddingClient) *Embedder {
	return &Embedder{client: c, tokens: approxTokens, model: "nomic-embed-text", provider: "ollama", logger: zap.NewNop()}
}

func TestEmbedder_Embed(t *testing.T) {
	client := &stubClient{vecs: [][]float32{{0.1, 0.2, 0.3}}}
	emb := newTestEmbedder(client)

	res, err := emb.Embed(context.Background(), "the cat sat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(res.Embedding))
	}
	if len(client.texts) != 1 || client.texts[0] != "the cat sat" {
		t.Errorf("unexpected texts sent: %v", client.texts)
	}
}

func TestEmbedder_ProviderError(t *testing.T) {
	emb := newTestEmbedder(&stubClient{err: errors.New("model \"nomic-embed-text\" not found")})

	_, err := emb.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedder_Canceled(t *testing.T) {
	emb := newTestEmbedder(&stubClient{err: context.Canceled})

	_, err := emb.Embed(context.Background(), "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Error("cancellation must not be reported as an unavailable model")
	}
}

func TestEmbedder_EmptyVector(t *testing.T) {
	emb := newTestEmbedder(&stubClient{vecs: [][]float32{{}}})

	_, err := emb.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	emb := newTestEmbedder(&stubClient{vecs: [][]float32{{1}}})
	if err := emb.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	down := newTestEmbedder(&stubClient{err: errors.New("connection refused")})
	if err := down.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health error")
	}
}

// TestEmbedder_AgainstServer runs the real langchaingo client against a fake
// Ollama that answers both the legacy and the current embedding endpoints.
func TestEmbedder_AgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model %q", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embeddings":
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.25}})
		case "/api/embed":
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5, 0.25}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	emb, err := NewEmbedder(&Config{BaseURL: server.URL, Model: "nomic-embed-text"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	res, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 2 || res.Embedding[0] != 0.5 {
		t.Errorf("unexpected embedding %v", res.Embedding)
	}
}

func TestEmbedder_ReportsTokens(t *testing.T) {
	emb := newTestEmbedder(&stubClient{vecs: [][]float32{{1, 0}}})
	emb.tokens = func(string) int { return 7 }

	res, err := emb.Embed(context.Background(), "the cat sat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PromptTokens != 7 || res.TotalTokens != 7 {
		t.Errorf("tokens: prompt %d, total %d, want 7", res.PromptTokens, res.TotalTokens)
	}
}

func TestApproxTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"the quick brown fox jumps", 6},
		{"ёжик в тумане", 3},
	}
	for _, tc := range tests {
		if got := approxTokens(tc.text); got != tc.want {
			t.Errorf("approxTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestTiktokenCounter_FallsBackUntilLoaded(t *testing.T) {
	c := &tiktokenCounter{}
	if got := c.count("the quick brown fox jumps"); got != 6 {
		t.Errorf("fallback count: got %d, want 6", got)
	}
}

// A reject budget on the Ollama provider must stop batches once the
// estimated tokens reach the daily limit.
func TestEmbedder_BudgetRejectsOnceLimitReached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.25}})
	}))
	defer server.Close()

	llm, err := ollama.New(ollama.WithModel("nomic-embed-text"), ollama.WithServerURL(server.URL))
	if err != nil {
		t.Fatalf("ollama.New: %v", err)
	}
	emb := &Embedder{client: llm, tokens: approxTokens, model: "nomic-embed-text", provider: "ollama", logger: zap.NewNop()}

	budget := embeddinguc.NewBudgetTracker("ollama-budget-test", 10, 0, embeddinguc.BudgetActionReject, nil)
	chain := embeddinguc.NewInstrumentedEmbedder(emb, "ollama-budget-test", "nomic-embed-text", budget, nil).
		WithConcurrency(1)

	batch := []string{"the quick brown fox jumps", "over the lazy sleeping dog"}
	if _, err := chain.BatchEmbed(context.Background(), batch); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if budget.DailyUsed() == 0 {
		t.Fatal("no tokens recorded for the ollama provider")
	}

	_, err = chain.BatchEmbed(context.Background(), batch)
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 server calls, got %d", n)
	}
}
