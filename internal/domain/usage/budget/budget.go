// Package budget models embedding token budgets: persisted counters,
// consistent tracker reads and the budget section of a usage report.
package budget

// Unlimited is what Remaining reports when no limit is configured.
const Unlimited int64 = -1

// Remaining returns tokens left under limit, never below zero.
// A zero limit means no cap and yields Unlimited.
func Remaining(limit, used int64) int64 {
	if limit == 0 {
		return Unlimited
	}
	return max(limit-used, 0)
}

// Counters is the persisted usage of one provider in the current day and month.
type Counters struct {
	DailyTokens   int64
	DailyTexts    int64
	MonthlyTokens int64
	MonthlyTexts  int64
}

// Snapshot is a consistent read of limits and counters taken under one lock.
type Snapshot struct {
	Counters
	DailyLimit   int64
	MonthlyLimit int64
}

// RemainingDaily returns tokens left today, or Unlimited.
func (s Snapshot) RemainingDaily() int64 { return Remaining(s.DailyLimit, s.DailyTokens) }

// RemainingMonthly returns tokens left this month, or Unlimited.
func (s Snapshot) RemainingMonthly() int64 { return Remaining(s.MonthlyLimit, s.MonthlyTokens) }

// Exceeded reports whether either capped period is spent.
func (s Snapshot) Exceeded() bool {
	return s.RemainingDaily() == 0 || s.RemainingMonthly() == 0
}

// Budget is the token budget section of a usage report.
type Budget struct {
	limit     int
	remaining int
	exhausted bool
	resetsAt  int64 // unix millis; the transport renders RFC 3339
}

// New creates a report Budget. A zero limit means unlimited.
func New(limit, remaining int, exhausted bool, resetsAt int64) Budget {
	return Budget{limit: limit, remaining: remaining, exhausted: exhausted, resetsAt: resetsAt}
}

func (b Budget) TokensLimit() int     { return b.limit }
func (b Budget) TokensRemaining() int { return b.remaining }
func (b Budget) Unlimited() bool      { return b.limit == 0 }
func (b Budget) IsExhausted() bool    { return b.exhausted }

// ResetsAt returns when the period rolls over (unix millis), 0 when it never does.
func (b Budget) ResetsAt() int64 { return b.resetsAt }
