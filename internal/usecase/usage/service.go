// Package usage reports embedding token usage against the configured budget.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/simcheck/internal/domain/usage"
	"github.com/kailas-cloud/simcheck/internal/domain/usage/budget"
	"github.com/kailas-cloud/simcheck/internal/domain/usage/metrics"
)

// Service builds usage reports from the budget tracker.
type Service struct {
	br       BudgetReader
	provider string
	now      func() time.Time
}

// New creates a Service. br can be nil when no budget is tracked.
func New(br BudgetReader, provider string) *Service {
	return &Service{br: br, provider: provider, now: func() time.Time { return time.Now().UTC() }}
}

// window is the slice of a snapshot that one period reports on.
type window struct {
	limit, used, texts int64
}

// GetReport builds a usage report for the given period.
// The total period reports the monthly counters, the longest the tracker keeps,
// and carries no boundaries.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	var snap budget.Snapshot
	if s.br != nil {
		snap = s.br.Snapshot()
	}

	var start, end int64
	w := window{limit: snap.MonthlyLimit, used: snap.MonthlyTokens, texts: snap.MonthlyTexts}

	switch now := s.now(); period {
	case domusage.PeriodDay:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start, end = day.UnixMilli(), day.AddDate(0, 0, 1).UnixMilli()
		w = window{limit: snap.DailyLimit, used: snap.DailyTokens, texts: snap.DailyTexts}
	case domusage.PeriodMonth:
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start, end = month.UnixMilli(), month.AddDate(0, 1, 0).UnixMilli()
	}

	var remaining int64
	if s.br != nil {
		remaining = budget.Remaining(w.limit, w.used)
	}
	exhausted := w.limit > 0 && remaining == 0

	return domusage.NewReport(period, start, end, s.provider,
		metrics.New(int(w.texts), int(w.used)),
		budget.New(int(w.limit), int(remaining), exhausted, end))
}
