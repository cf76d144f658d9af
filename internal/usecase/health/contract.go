package health

import "context"

// Probe is a single readiness check. A nil error means the component is usable.
type Probe func(ctx context.Context) error

// DBPinger is the optional database used for budget counters.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker reports whether the embedding model answers.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
