package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeCounters struct {
	mu     sync.Mutex
	counts map[string]int

	countErr error
	incErr   error

	purged string
	resets int
}

var _ repository.CounterRepository = (*fakeCounters)(nil)

func key(kind model.ActionKind, id model.Identity, day string) string {
	return fmt.Sprintf("%s/%d/%s", kind, id, day)
}

func (f *fakeCounters) Count(_ context.Context, kind model.ActionKind, id model.Identity, day string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key(kind, id, day)], nil
}

func (f *fakeCounters) Increment(_ context.Context, kind model.ActionKind, id model.Identity, day string) (int, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[key(kind, id, day)]++
	return f.counts[key(kind, id, day)], nil
}

func (f *fakeCounters) PurgeBefore(_ context.Context, day string) (int64, error) {
	f.mu.Lock()
	f.purged = day
	f.mu.Unlock()
	return 1, nil
}

func (f *fakeCounters) ResetAll(context.Context) error {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
	return nil
}

func newTracker(counters *fakeCounters, clk *fakeClock) *Tracker {
	return New(counters, Limits{Search: 3, Random: 2}, clk, zap.NewNop())
}

func TestTracker_ConsumeUntilLimit(t *testing.T) {
	counters := &fakeCounters{}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := tr.Consume(ctx, 42, model.ActionSearch, false)
		if err != nil {
			t.Fatalf("consume %d: %v", i+1, err)
		}
		if !res.Allowed || res.Remaining != 3-(i+1) {
			t.Fatalf("consume %d: want allowed with %d left, got %+v", i+1, 3-(i+1), res)
		}
	}

	res, err := tr.Consume(ctx, 42, model.ActionSearch, false)
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if res.Allowed || res.Limit != 3 {
		t.Fatalf("want denial at limit 3, got %+v", res)
	}

	// Denial must not have spent anything.
	if counters.counts[key(model.ActionSearch, 42, "2026-08-31")] != 3 {
		t.Fatalf("denied attempt mutated the counter: %v", counters.counts)
	}
}

func TestTracker_KindsCountSeparately(t *testing.T) {
	counters := &fakeCounters{}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := tr.Consume(ctx, 42, model.ActionSearch, false); err != nil {
			t.Fatalf("search consume: %v", err)
		}
	}
	res, err := tr.Consume(ctx, 42, model.ActionRandom, false)
	if err != nil || !res.Allowed {
		t.Fatalf("random must have its own budget, got %+v err %v", res, err)
	}
}

func TestTracker_DayRollover(t *testing.T) {
	counters := &fakeCounters{}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr.Consume(ctx, 42, model.ActionSearch, false)
	}
	if res, _ := tr.Consume(ctx, 42, model.ActionSearch, false); res.Allowed {
		t.Fatalf("want denial before midnight")
	}

	// Two minutes later it is a new day and the budget is fresh, with the
	// old rows still present in the store.
	clk.advance(2 * time.Minute)
	res, err := tr.Consume(ctx, 42, model.ActionSearch, false)
	if err != nil || !res.Allowed || res.Remaining != 2 {
		t.Fatalf("want fresh budget after midnight, got %+v err %v", res, err)
	}
}

func TestTracker_VipBypass(t *testing.T) {
	counters := &fakeCounters{}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := tr.Consume(ctx, 42, model.ActionSearch, true)
		if err != nil || !res.Allowed || res.Remaining != Unlimited {
			t.Fatalf("vip consume %d: got %+v err %v", i, res, err)
		}
	}
	if len(counters.counts) != 0 {
		t.Fatalf("vip consumes must not touch the store: %v", counters.counts)
	}
}

func TestTracker_StorageErrorFailsClosed(t *testing.T) {
	counters := &fakeCounters{countErr: errors.New("conn refused")}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)

	_, err := tr.Consume(context.Background(), 42, model.ActionSearch, false)
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want ErrStorage on read failure, got %v", err)
	}

	counters.countErr = nil
	counters.incErr = errors.New("conn refused")
	_, err = tr.Consume(context.Background(), 42, model.ActionSearch, false)
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want ErrStorage on increment failure, got %v", err)
	}
}

func TestTracker_NonQuotaKindRejected(t *testing.T) {
	tr := newTracker(&fakeCounters{}, &fakeClock{now: time.Now()})
	if _, err := tr.Consume(context.Background(), 42, model.ActionPaginate, false); err == nil {
		t.Fatalf("want error for a non-quota action kind")
	}
}

func TestTracker_Remaining(t *testing.T) {
	counters := &fakeCounters{}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)
	ctx := context.Background()

	left, err := tr.Remaining(ctx, 42, model.ActionSearch, false)
	if err != nil || left != 3 {
		t.Fatalf("untouched budget: want 3, got %d err %v", left, err)
	}

	tr.Consume(ctx, 42, model.ActionSearch, false)
	tr.Consume(ctx, 42, model.ActionSearch, false)
	left, _ = tr.Remaining(ctx, 42, model.ActionSearch, false)
	if left != 1 {
		t.Fatalf("want 1 left, got %d", left)
	}

	left, _ = tr.Remaining(ctx, 42, model.ActionSearch, true)
	if left != Unlimited {
		t.Fatalf("vip remaining: want Unlimited, got %d", left)
	}
}

func TestTracker_PurgeStaleAndResetAll(t *testing.T) {
	counters := &fakeCounters{}
	clk := &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	tr := newTracker(counters, clk)
	ctx := context.Background()

	tr.PurgeStale(ctx)
	if counters.purged != "2026-08-31" {
		t.Fatalf("want purge horizon at today, got %q", counters.purged)
	}

	if err := tr.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if counters.resets != 1 {
		t.Fatalf("want one reset call, got %d", counters.resets)
	}
}
