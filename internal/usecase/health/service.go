// Package health aggregates readiness of the embedding model and the optional database.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates at least one failing component.
	Degraded Status = "degraded"
)

// CheckResult is the outcome of one component probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentDatabase  = "database"
	ComponentEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates probe results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Failed returns the failing component names in sorted order.
func (r Report) Failed() []string {
	var out []string
	for name, res := range r.Checks {
		if res == CheckError {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Service runs registered probes concurrently, each under its own timeout.
type Service struct {
	probes  map[string]Probe
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service. Either dependency can be nil and is then skipped.
func New(db DBPinger, embedding EmbeddingChecker) *Service {
	s := &Service{
		probes:  make(map[string]Probe, 2),
		timeout: DefaultCheckTimeout,
		logger:  zap.NewNop(),
	}
	if db != nil {
		s.probes[ComponentDatabase] = db.Ping
	}
	if embedding != nil {
		s.probes[ComponentEmbedding] = embedding.HealthCheck
	}
	return s
}

// WithTimeout overrides the per-probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithLogger logs failing probes at warn level.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// Check runs all probes and aggregates their results.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.probes))
	var mu sync.Mutex

	var g errgroup.Group
	for name, probe := range s.probes {
		g.Go(func() error {
			res := s.run(ctx, name, probe)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, name string, probe Probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := probe(ctx); err != nil {
		s.logger.Warn("health probe failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
