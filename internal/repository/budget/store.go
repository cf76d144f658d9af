// Package budget persists embedding token counters in a key-value store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/simcheck/internal/domain"
	dombudget "github.com/kailas-cloud/simcheck/internal/domain/usage/budget"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps four counters per provider: tokens and texts, per day and per month.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. TTLs must outlive their window (48h and 62 days work).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:    s,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// Load reads the day and month counters for at in one round trip. Missing keys are zero.
func (s *Store) Load(ctx context.Context, provider string, at time.Time) (dombudget.Counters, error) {
	k := keys(provider, at)
	vals, err := s.store.MGet(ctx, k[:])
	if err != nil {
		return dombudget.Counters{}, fmt.Errorf("budget load %s: %w", provider, err)
	}

	var n [4]int64
	for i, raw := range vals {
		if i >= len(n) || raw == nil {
			continue
		}
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return dombudget.Counters{}, fmt.Errorf("budget load %s: parse %s: %w", provider, k[i], err)
		}
		n[i] = v
	}
	return dombudget.Counters{
		DailyTokens:   n[0],
		DailyTexts:    n[1],
		MonthlyTokens: n[2],
		MonthlyTexts:  n[3],
	}, nil
}

// Add increments the day and month counters for at. Zero amounts are not written.
// Every counter is attempted; failures are joined.
func (s *Store) Add(ctx context.Context, provider string, at time.Time, tokens, texts int64) error {
	k := keys(provider, at)
	deltas := [4]int64{tokens, texts, tokens, texts}
	ttls := [4]time.Duration{s.dailyTTL, s.dailyTTL, s.monthTTL, s.monthTTL}

	var errs []error
	for i, key := range k {
		if deltas[i] == 0 {
			continue
		}
		if err := s.incr(ctx, key, deltas[i], ttls[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// incr sets the TTL with NX so later increments do not extend it.
func (s *Store) incr(ctx context.Context, key string, val int64, ttl time.Duration) error {
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// keys returns daily tokens, daily texts, monthly tokens, monthly texts.
// The provider is a hash tag so all four share a cluster slot.
func keys(provider string, at time.Time) [4]string {
	at = at.UTC()
	day, month := at.Format("2006-01-02"), at.Format("2006-01")
	p := domain.KeyPrefix + "budget:{" + provider + "}:"
	return [4]string{
		p + "tokens:daily:" + day,
		p + "texts:daily:" + day,
		p + "tokens:monthly:" + month,
		p + "texts:monthly:" + month,
	}
}
