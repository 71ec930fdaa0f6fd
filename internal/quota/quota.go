// Package quota tracks per-identity daily action counters with calendar-day
// rollover. Counters are date-scoped in the durable store: rows from a prior
// day are semantically zero and are purged lazily, never eagerly.
package quota

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/keymutex"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/repository"
)

// Unlimited is the Remaining value reported for VIP identities.
const Unlimited = -1

// Limits holds the per-action daily caps for non-VIP identities.
type Limits struct {
	Search int
	Random int
}

// For returns the cap for an action kind.
func (l Limits) For(kind model.ActionKind) int {
	if kind == model.ActionRandom {
		return l.Random
	}
	return l.Search
}

// Result is the outcome of a consume attempt.
type Result struct {
	Allowed bool
	// Remaining is the number of same-day actions left, Unlimited for VIP.
	Remaining int
	// Limit is the daily cap that applied on denial.
	Limit int
}

// Tracker serializes the read-check-increment sequence per (kind, identity)
// so two concurrent consumes never observe the same pre-increment count.
type Tracker struct {
	counters repository.CounterRepository
	limits   Limits
	clk      clock.Clock
	locks    *keymutex.KeyMutex
	log      *zap.Logger
}

// New constructs a Tracker over the durable counter store.
func New(counters repository.CounterRepository, limits Limits, clk clock.Clock, log *zap.Logger) *Tracker {
	return &Tracker{
		counters: counters,
		limits:   limits,
		clk:      clk,
		locks:    keymutex.New(256),
		log:      log,
	}
}

// Consume attempts to spend one unit of the identity's daily quota.
// VIP identities are always allowed and never mutate state. A storage
// failure denies the increment and surfaces ErrStorage (fail closed).
func (t *Tracker) Consume(ctx context.Context, id model.Identity, kind model.ActionKind, vip bool) (Result, error) {
	if !kind.QuotaBearing() {
		return Result{}, fmt.Errorf("action %q does not carry a quota", kind)
	}
	if vip {
		return Result{Allowed: true, Remaining: Unlimited}, nil
	}

	limit := t.limits.For(kind)
	day := clock.Day(t.clk.Now())

	unlock := t.locks.Lock(counterKey(kind, id))
	defer unlock()

	count, err := t.counters.Count(ctx, kind, id, day)
	if err != nil {
		t.log.Warn("quota read failed, denying increment",
			zap.Int64("identity", int64(id)), zap.String("kind", string(kind)), zap.Error(err))
		return Result{}, errs.ErrStorage
	}
	if count >= limit {
		return Result{Allowed: false, Limit: limit}, nil
	}

	newCount, err := t.counters.Increment(ctx, kind, id, day)
	if err != nil {
		t.log.Warn("quota increment failed, denying",
			zap.Int64("identity", int64(id)), zap.String("kind", string(kind)), zap.Error(err))
		return Result{}, errs.ErrStorage
	}
	return Result{Allowed: true, Remaining: limit - newCount, Limit: limit}, nil
}

// Remaining reports how many same-day actions the identity has left,
// for admin and self-service displays. Read-only; does not mutate state.
func (t *Tracker) Remaining(ctx context.Context, id model.Identity, kind model.ActionKind, vip bool) (int, error) {
	if vip {
		return Unlimited, nil
	}
	limit := t.limits.For(kind)
	day := clock.Day(t.clk.Now())

	count, err := t.counters.Count(ctx, kind, id, day)
	if err != nil {
		return 0, errs.ErrStorage
	}
	if left := limit - count; left > 0 {
		return left, nil
	}
	return 0, nil
}

// PurgeStale deletes counter rows from days before today. Called by the
// periodic sweep; rollover correctness never depends on it.
func (t *Tracker) PurgeStale(ctx context.Context) {
	day := clock.Day(t.clk.Now())
	n, err := t.counters.PurgeBefore(ctx, day)
	if err != nil {
		t.log.Warn("stale counter purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		t.log.Info("purged stale daily counters", zap.Int64("rows", n))
	}
}

// ResetAll wipes every counter row (admin limits reset).
func (t *Tracker) ResetAll(ctx context.Context) error {
	if err := t.counters.ResetAll(ctx); err != nil {
		t.log.Error("counter reset failed", zap.Error(err))
		return errs.ErrStorage
	}
	return nil
}

func counterKey(kind model.ActionKind, id model.Identity) string {
	return fmt.Sprintf("%s/%d", kind, int64(id))
}
