package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/domain"
	dombudget "github.com/kailas-cloud/simcheck/internal/domain/usage/budget"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists the per-provider day and month counters.
type BudgetStore interface {
	Load(ctx context.Context, provider string, at time.Time) (dombudget.Counters, error)
	Add(ctx context.Context, provider string, at time.Time, tokens, texts int64) error
}

// counters holds the usage of one period.
type counters struct {
	tokens int64
	texts  int64
}

// BudgetTracker is an in-memory token budget tracker with optional persistence.
// Check never leaves the process; Record updates memory first and then
// writes behind to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	daily          counters
	monthly        counters
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	logger         *zap.Logger
	now            func() time.Time
}

// NewBudgetTracker creates a budget tracker with the given limits. A zero limit is unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	now := b.now()
	b.lastDayReset = truncateToDay(now)
	b.lastMonthReset = truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.store.Load(ctx, b.provider, b.now())
	if err != nil {
		b.logger.Warn("Failed to load budget counters", zap.String("provider", b.provider), zap.Error(err))
		return
	}
	b.daily = counters{tokens: c.DailyTokens, texts: c.DailyTexts}
	b.monthly = counters{tokens: c.MonthlyTokens, texts: c.MonthlyTexts}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_tokens", b.daily.tokens),
		zap.Int64("monthly_tokens", b.monthly.tokens),
	)
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	if dombudget.Remaining(b.dailyLimit, b.daily.tokens) != 0 &&
		dombudget.Remaining(b.monthlyLimit, b.monthly.tokens) != 0 {
		return nil
	}

	if b.action == BudgetActionReject {
		return fmt.Errorf("provider %s: %w", b.provider, domain.ErrEmbeddingQuotaExceeded)
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.tokens),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthly.tokens),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers embedded texts and consumed tokens after a request.
func (b *BudgetTracker) Record(texts int, tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.daily.tokens += tokens
	b.monthly.tokens += tokens
	b.daily.texts += int64(texts)
	b.monthly.texts += int64(texts)
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a disconnecting client does not drop the write.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.Add(ctx, b.provider, now, tokens, int64(texts)); err != nil {
		b.logger.Warn("Failed to persist budget counters", zap.String("provider", b.provider), zap.Error(err))
	}
}

// Snapshot returns limits and current-period counters read under one lock.
func (b *BudgetTracker) Snapshot() dombudget.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	return dombudget.Snapshot{
		Counters: dombudget.Counters{
			DailyTokens:   b.daily.tokens,
			DailyTexts:    b.daily.texts,
			MonthlyTokens: b.monthly.tokens,
			MonthlyTexts:  b.monthly.texts,
		},
		DailyLimit:   b.dailyLimit,
		MonthlyLimit: b.monthlyLimit,
	}
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 { return b.Snapshot().RemainingDaily() }

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 { return b.Snapshot().RemainingMonthly() }

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 { return b.Snapshot().DailyTokens }

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 { return b.Snapshot().MonthlyTokens }

// DailyLimit returns the daily token cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.dailyLimit }

// MonthlyLimit returns the monthly token cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthlyLimit }

// DailyTexts returns the number of texts embedded today.
func (b *BudgetTracker) DailyTexts() int64 { return b.Snapshot().DailyTexts }

// MonthlyTexts returns the number of texts embedded this month.
func (b *BudgetTracker) MonthlyTexts() int64 { return b.Snapshot().MonthlyTexts }

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.daily = counters{}
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthly = counters{}
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
