package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/kailas-cloud/simcheck/internal/domain"
	domanalysis "github.com/kailas-cloud/simcheck/internal/domain/analysis"
	"github.com/kailas-cloud/simcheck/internal/metrics"
	"github.com/kailas-cloud/simcheck/internal/transport/local"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterAnalysisMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockEmbedder struct {
	result domain.BatchEmbeddingResult
	err    error
	calls  int
	texts  []string
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	m.texts = append([]string(nil), texts...)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	return m.result, nil
}

// tableEmbedder returns a fixed vector per normalized text.
type tableEmbedder struct {
	vectors map[string][]float32
	tokens  int
}

func (e *tableEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: e.tokens}, nil
}

func newLocalService(t *testing.T) *Service {
	t.Helper()
	emb, err := local.NewEmbedder(768)
	if err != nil {
		t.Fatalf("local embedder: %v", err)
	}
	return New(emb).WithDimensions(768)
}

// --- Scenarios ---

func TestAnalyze_IdenticalTexts(t *testing.T) {
	svc := newLocalService(t)

	res, err := svc.Analyze(context.Background(), []string{
		"The cat sat on the mat.",
		"The cat sat on the mat.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domanalysis.Matrix{{100, 100}, {100, 100}}
	for i := range want {
		for j := range want[i] {
			if res.Matrix[i][j] != want[i][j] {
				t.Errorf("matrix[%d][%d] = %v, want %v", i, j, res.Matrix[i][j], want[i][j])
			}
		}
	}
	if len(res.Clones) != 1 || res.Clones[0] != (domanalysis.ClonePair{A: 0, B: 1}) {
		t.Errorf("expected clones [[0 1]], got %v", res.Clones)
	}
}

func TestAnalyze_UnrelatedTexts(t *testing.T) {
	svc := newLocalService(t)

	res, err := svc.Analyze(context.Background(), []string{
		"Quantum mechanics describes subatomic particles.",
		"I enjoy baking sourdough bread on weekends.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matrix[0][1] >= svc.Threshold() {
		t.Errorf("expected similarity below %v, got %v", svc.Threshold(), res.Matrix[0][1])
	}
	if res.Clones == nil || len(res.Clones) != 0 {
		t.Errorf("expected empty non-nil clones, got %#v", res.Clones)
	}
}

func TestAnalyze_SingleText(t *testing.T) {
	svc := newLocalService(t)

	res, err := svc.Analyze(context.Background(), []string{"only one"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Matrix) != 1 || res.Matrix[0][0] != 100 {
		t.Errorf("expected [[100]], got %v", res.Matrix)
	}
	if len(res.Clones) != 0 {
		t.Errorf("expected no clones, got %v", res.Clones)
	}
}

func TestAnalyze_BlankTextReportsIndex(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(emb)

	_, err := svc.Analyze(context.Background(), []string{"fine", "also fine", " \t\n "})
	var inv *domain.InvalidInputError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if inv.Index != 2 {
		t.Errorf("expected index 2, got %d", inv.Index)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Error("expected errors.Is ErrInvalidInput")
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called for invalid input")
	}
}

func TestAnalyze_BatchTooLarge(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(emb).WithMaxBatchSize(3)

	// An invalid text inside an oversized batch must not be reached.
	_, err := svc.Analyze(context.Background(), []string{"a", "b", "", "d"})
	var tooLarge *domain.BatchTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected BatchTooLargeError, got %v", err)
	}
	if tooLarge.Size != 4 || tooLarge.Limit != 3 {
		t.Errorf("unexpected error fields: %+v", tooLarge)
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called for an oversized batch")
	}
}

// --- Validation ---

func TestAnalyze_EmptyBatch(t *testing.T) {
	svc := New(&mockEmbedder{})

	for _, texts := range [][]string{nil, {}} {
		_, err := svc.Analyze(context.Background(), texts)
		var inv *domain.InvalidInputError
		if !errors.As(err, &inv) || inv.Index != domain.NoIndex {
			t.Errorf("expected batch-level InvalidInputError, got %v", err)
		}
	}
}

func TestAnalyze_TextTooLong(t *testing.T) {
	svc := New(&mockEmbedder{}).WithMaxTextBytes(8)

	_, err := svc.Analyze(context.Background(), []string{"short", strings.Repeat("x", 9)})
	var inv *domain.InvalidInputError
	if !errors.As(err, &inv) || inv.Index != 1 {
		t.Fatalf("expected InvalidInputError at index 1, got %v", err)
	}
	if !strings.Contains(inv.Reason, "8 bytes") {
		t.Errorf("unexpected reason %q", inv.Reason)
	}
}

func TestAnalyze_ThresholdOverride(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {1, 1},
	}}
	svc := New(emb)

	// cos = 0.7071 -> 85.36%
	res, err := svc.Analyze(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matrix[0][1] != 85.36 {
		t.Fatalf("expected 85.36, got %v", res.Matrix[0][1])
	}
	if len(res.Clones) != 0 {
		t.Errorf("expected no clones at default threshold, got %v", res.Clones)
	}

	res, err = svc.Analyze(context.Background(), []string{"a", "b"}, OverrideThreshold(85.36))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Clones) != 1 {
		t.Errorf("expected inclusive threshold to flag the pair, got %v", res.Clones)
	}
}

func TestAnalyze_ThresholdOutOfRange(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(emb)

	for _, th := range []float64{-0.01, 100.01} {
		_, err := svc.Analyze(context.Background(), []string{"a"}, OverrideThreshold(th))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("threshold %v: expected ErrInvalidInput, got %v", th, err)
		}
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called for an invalid threshold")
	}
}

func TestAnalyze_DeduplicatesNormalizedTexts(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"hello world": {1, 0},
		"other":       {0, 1},
	}, tokens: 7}
	svc := New(emb)

	ctx, usage := domain.WithRequestUsage(context.Background())
	res, err := svc.Analyze(ctx, []string{"Hello   World", "other", "hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := usage.Snapshot(); s.Texts != 2 || s.Tokens != 7 || !s.Embedded() {
		t.Errorf("unexpected usage %+v", s)
	}
	if res.Matrix[0][2] != 100 {
		t.Errorf("expected duplicates to score 100, got %v", res.Matrix[0][2])
	}
	if len(res.Clones) != 1 || res.Clones[0] != (domanalysis.ClonePair{A: 0, B: 2}) {
		t.Errorf("expected clones [[0 2]], got %v", res.Clones)
	}
}

func TestAnalyze_SendsNormalizedTexts(t *testing.T) {
	emb := &mockEmbedder{result: domain.BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}
	svc := New(emb)

	if _, err := svc.Analyze(context.Background(), []string{"  MIXED\tCase  "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb.texts) != 1 || emb.texts[0] != "mixed case" {
		t.Errorf("expected normalized text, got %q", emb.texts)
	}
}

// --- Embedding failures ---

func TestAnalyze_EmbeddingUnavailable(t *testing.T) {
	svc := New(&mockEmbedder{err: fmt.Errorf("dial tcp: %w", domain.ErrEmbeddingUnavailable)})

	res, err := svc.Analyze(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if res.Matrix != nil || res.Clones != nil {
		t.Error("expected no partial result")
	}
}

func TestAnalyze_VectorCountMismatch(t *testing.T) {
	svc := New(&mockEmbedder{result: domain.BatchEmbeddingResult{Embeddings: [][]float32{{1, 0}}}})

	_, err := svc.Analyze(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAnalyze_ConfiguredDimensionEnforced(t *testing.T) {
	svc := New(&mockEmbedder{result: domain.BatchEmbeddingResult{
		Embeddings: [][]float32{{1, 0, 0}, {0, 1, 0}},
	}}).WithDimensions(768)

	_, err := svc.Analyze(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAnalyze_RaggedVectors(t *testing.T) {
	svc := New(&mockEmbedder{result: domain.BatchEmbeddingResult{
		Embeddings: [][]float32{{1, 0}, {0, 1, 0}},
	}})

	_, err := svc.Analyze(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAnalyze_EmptyVector(t *testing.T) {
	svc := New(&mockEmbedder{result: domain.BatchEmbeddingResult{Embeddings: [][]float32{{}}}})

	_, err := svc.Analyze(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAnalyze_Canceled(t *testing.T) {
	svc := newLocalService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, []string{"a", "b"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// --- Properties ---

func TestAnalyze_MatrixProperties(t *testing.T) {
	svc := newLocalService(t)
	texts := []string{
		"the cat sat on the mat",
		"the cat sat on the mat today",
		"a dog barked at the mail carrier",
		"stock markets fell sharply on friday",
		"The CAT sat on the mat",
	}

	res, err := svc.Analyze(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := len(texts)
	if res.Matrix.Size() != n {
		t.Fatalf("expected %d rows, got %d", n, res.Matrix.Size())
	}
	for i := 0; i < n; i++ {
		if res.Matrix[i][i] != 100 {
			t.Errorf("diagonal [%d] = %v", i, res.Matrix[i][i])
		}
		for j := 0; j < n; j++ {
			v := res.Matrix[i][j]
			if v < 0 || v > 100 {
				t.Errorf("[%d][%d] = %v out of range", i, j, v)
			}
			if v != res.Matrix[j][i] {
				t.Errorf("asymmetric at (%d, %d)", i, j)
			}
		}
	}

	prev := domanalysis.ClonePair{A: -1, B: -1}
	for _, p := range res.Clones {
		if p.A >= p.B {
			t.Errorf("non-canonical pair %v", p)
		}
		if p.A < prev.A || (p.A == prev.A && p.B <= prev.B) {
			t.Errorf("pairs out of order: %v after %v", p, prev)
		}
		if res.Matrix[p.A][p.B] < svc.Threshold() {
			t.Errorf("pair %v below threshold", p)
		}
		prev = p
	}

	again, err := svc.Analyze(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range res.Matrix {
		for j := range res.Matrix[i] {
			if res.Matrix[i][j] != again.Matrix[i][j] {
				t.Fatalf("non-deterministic cell (%d, %d)", i, j)
			}
		}
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{domain.NewInvalidInput(0, "x"), "invalid_input"},
		{domain.NewBatchTooLarge(2, 1), "batch_too_large"},
		{fmt.Errorf("w: %w", domain.ErrEmbeddingQuotaExceeded), "quota_exceeded"},
		{domain.ErrEmbeddingUnavailable, "embedding_unavailable"},
		{domain.ErrDimensionMismatch, "dimension_mismatch"},
		{domain.ErrInvalidMatrix, "invalid_matrix"},
		{context.DeadlineExceeded, "canceled"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range tests {
		if got := outcome(tc.err); got != tc.want {
			t.Errorf("outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
