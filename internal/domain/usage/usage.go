// Package usage models embedding usage reports.
package usage

import (
	"fmt"

	"github.com/kailas-cloud/simcheck/internal/domain"
	"github.com/kailas-cloud/simcheck/internal/domain/usage/budget"
	"github.com/kailas-cloud/simcheck/internal/domain/usage/metrics"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. Empty input selects PeriodMonth.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", domain.NewInvalidInput(domain.NoIndex,
			fmt.Sprintf("period must be one of day, month, total; got %q", s))
	}
}

// Report is an embedding usage report for one period of one provider.
// Boundaries are unix millis; the total period has none.
type Report struct {
	period     Period
	start, end int64
	provider   string
	metrics    metrics.Metrics
	budget     budget.Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, provider string, m metrics.Metrics, b budget.Budget) Report {
	return Report{period: period, start: start, end: end, provider: provider, metrics: m, budget: b}
}

func (r Report) Period() Period           { return r.period }
func (r Report) PeriodStart() int64       { return r.start }
func (r Report) PeriodEnd() int64         { return r.end }
func (r Report) Provider() string         { return r.provider }
func (r Report) Metrics() metrics.Metrics { return r.metrics }
func (r Report) Budget() budget.Budget    { return r.budget }

// Bounded reports whether the period has start and end timestamps.
func (r Report) Bounded() bool { return r.end > r.start }
