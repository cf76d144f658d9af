package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEmbeddingCall(t *testing.T) {
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()

	ok := EmbeddingRequestsTotal.WithLabelValues("test-call", "m", "success")
	prompt := EmbeddingTokensTotal.WithLabelValues("test-call", "m", "prompt")
	total := EmbeddingTokensTotal.WithLabelValues("test-call", "m", "total")
	okBefore := testutil.ToFloat64(ok)
	promptBefore := testutil.ToFloat64(prompt)
	totalBefore := testutil.ToFloat64(total)

	ObserveEmbeddingCall("test-call", "m", 20*time.Millisecond, 4, 5)
	ObserveEmbeddingCall("test-call", "m", time.Millisecond, 0, 0)

	if got := testutil.ToFloat64(ok) - okBefore; got != 2 {
		t.Errorf("success count delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(prompt) - promptBefore; got != 4 {
		t.Errorf("prompt tokens delta = %v, want 4", got)
	}
	if got := testutil.ToFloat64(total) - totalBefore; got != 5 {
		t.Errorf("total tokens delta = %v, want 5", got)
	}
}

func TestObserveEmbeddingError(t *testing.T) {
	status := EmbeddingRequestsTotal.WithLabelValues("test-err", "m", "error")
	kind := EmbeddingErrorsTotal.WithLabelValues("test-err", "m", "api_error")
	statusBefore, kindBefore := testutil.ToFloat64(status), testutil.ToFloat64(kind)

	ObserveEmbeddingError("test-err", "m", "api_error")

	if got := testutil.ToFloat64(status) - statusBefore; got != 1 {
		t.Errorf("error status delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(kind) - kindBefore; got != 1 {
		t.Errorf("error kind delta = %v, want 1", got)
	}
}
