package hotsearch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/contentfilter"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/repository"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeTrends struct {
	mu     sync.Mutex
	counts map[string]int64

	bumpErr  error
	topErr   error
	clearErr error
	top      []model.TrendEntry
}

var _ repository.TrendRepository = (*fakeTrends)(nil)

func (f *fakeTrends) Bump(_ context.Context, keyword string, _ time.Time) error {
	if f.bumpErr != nil {
		return f.bumpErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[keyword]++
	return nil
}

func (f *fakeTrends) Top(context.Context, int) ([]model.TrendEntry, error) {
	return f.top, f.topErr
}

func (f *fakeTrends) Clear(context.Context) error { return f.clearErr }

func newTracker(trends *fakeTrends) *Tracker {
	return New(trends, contentfilter.New(nil), &fakeClock{now: time.Unix(1000, 0)}, zap.NewNop())
}

func TestTracker_Bump(t *testing.T) {
	trends := &fakeTrends{}
	tr := newTracker(trends)
	ctx := context.Background()

	tr.Bump(ctx, "golang")
	tr.Bump(ctx, "golang")
	if trends.counts["golang"] != 2 {
		t.Fatalf("want 2 bumps, got %d", trends.counts["golang"])
	}

	// Flagged and empty keywords never reach the store.
	tr.Bump(ctx, "")
	tr.Bump(ctx, "visit spam.com now")
	if len(trends.counts) != 1 {
		t.Fatalf("filtered keyword leaked into the store: %v", trends.counts)
	}
}

func TestTracker_BumpStorageErrorIsSwallowed(t *testing.T) {
	trends := &fakeTrends{bumpErr: errors.New("conn refused")}
	tr := newTracker(trends)
	// Must not panic or surface anything.
	tr.Bump(context.Background(), "golang")
}

func TestTracker_TopFiltersOnRead(t *testing.T) {
	trends := &fakeTrends{top: []model.TrendEntry{
		{Keyword: "golang", Count: 30},
		{Keyword: "buy at spam.com", Count: 25},
		{Keyword: "postgres", Count: 12},
	}}
	tr := newTracker(trends)

	entries, err := tr.Top(context.Background(), 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 2 || entries[0].Keyword != "golang" || entries[1].Keyword != "postgres" {
		t.Fatalf("flagged entries must be dropped on read: %+v", entries)
	}
}

func TestTracker_TopStorageError(t *testing.T) {
	trends := &fakeTrends{topErr: errors.New("conn refused")}
	tr := newTracker(trends)
	if _, err := tr.Top(context.Background(), 10); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", err)
	}
}

func TestTracker_Clear(t *testing.T) {
	tr := newTracker(&fakeTrends{})
	if err := tr.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}

	tr = newTracker(&fakeTrends{clearErr: errors.New("conn refused")})
	if err := tr.Clear(context.Background()); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", err)
	}
}
