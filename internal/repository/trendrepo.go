package repository

import (
	"context"
	"time"

	"github.com/kmalkov/searchgate/internal/model"
)

// TrendRepository stores per-keyword search counters for the trending board.
type TrendRepository interface {
	// Bump increments the counter for a keyword, creating it at one.
	Bump(ctx context.Context, keyword string, now time.Time) error
	// Top returns up to limit keywords ordered by count descending.
	Top(ctx context.Context, limit int) ([]model.TrendEntry, error)
	// Clear removes every trend row.
	Clear(ctx context.Context) error
}
