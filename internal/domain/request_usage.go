package domain

import (
	"context"
	"sync"
)

type requestUsageKey struct{}

// RequestUsage accumulates embedding consumption for one analysis request.
// The transport attaches it to the context, the analysis service records into it
// and the transport reads a Snapshot for response headers.
type RequestUsage struct {
	mu     sync.Mutex
	texts  int
	tokens int
	calls  int
}

// UsageSnapshot is a point-in-time copy of RequestUsage.
type UsageSnapshot struct {
	Texts  int // distinct texts sent to the embedder
	Tokens int
	Calls  int
}

// Embedded reports whether the embedder was invoked at all, even for 0 tokens.
func (s UsageSnapshot) Embedded() bool { return s.Calls > 0 }

// WithRequestUsage returns a context carrying a fresh usage collector.
func WithRequestUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// RequestUsageFrom returns the collector attached to ctx, or nil.
func RequestUsageFrom(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// Record adds one embedding call. No-op on a nil receiver.
func (u *RequestUsage) Record(texts, tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.texts += texts
	u.tokens += tokens
	u.calls++
	u.mu.Unlock()
}

// Snapshot returns the totals so far. Zero on a nil receiver.
func (u *RequestUsage) Snapshot() UsageSnapshot {
	if u == nil {
		return UsageSnapshot{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return UsageSnapshot{Texts: u.texts, Tokens: u.tokens, Calls: u.calls}
}
