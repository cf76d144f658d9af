package usage

import "github.com/kailas-cloud/simcheck/internal/domain/usage/budget"

// BudgetReader exposes a consistent view of the token budget tracker.
type BudgetReader interface {
	Snapshot() budget.Snapshot
}
