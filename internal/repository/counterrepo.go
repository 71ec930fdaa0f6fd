package repository

import (
	"context"

	"github.com/kmalkov/searchgate/internal/model"
)

// CounterRepository stores per-identity, per-day action counters as
// date-scoped records. A row from a prior day is semantically zero for the
// current day; stale rows are purged opportunistically, never eagerly.
type CounterRepository interface {
	// Count returns the stored count for (kind, identity, day), zero when absent.
	Count(ctx context.Context, kind model.ActionKind, id model.Identity, day string) (int, error)
	// Increment adds one to (kind, identity, day) and returns the new count.
	Increment(ctx context.Context, kind model.ActionKind, id model.Identity, day string) (int, error)
	// PurgeBefore deletes counter rows older than the given day and reports how many.
	PurgeBefore(ctx context.Context, day string) (int64, error)
	// ResetAll wipes every counter row (admin limits reset).
	ResetAll(ctx context.Context) error
}
