// Package hotsearch maintains the trending-keywords board. Keywords that
// trip the content filter are never counted and are filtered again on read,
// so an operator edit can't resurface them.
package hotsearch

import (
	"context"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/contentfilter"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/repository"
)

// DefaultTop is the board size shown to users.
const DefaultTop = 10

// Tracker wraps the durable trend counters with content filtering.
type Tracker struct {
	trends repository.TrendRepository
	filter *contentfilter.Filter
	clk    clock.Clock
	log    *zap.Logger
}

// New constructs a Tracker.
func New(trends repository.TrendRepository, filter *contentfilter.Filter, clk clock.Clock, log *zap.Logger) *Tracker {
	return &Tracker{trends: trends, filter: filter, clk: clk, log: log}
}

// Bump counts one search for a keyword. Flagged keywords are skipped
// silently; trend counting is best-effort and never fails a search.
func (t *Tracker) Bump(ctx context.Context, keyword string) {
	if keyword == "" || t.filter.Flagged(keyword) {
		return
	}
	if err := t.trends.Bump(ctx, keyword, t.clk.Now()); err != nil {
		t.log.Warn("trend bump failed", zap.String("keyword", keyword), zap.Error(err))
	}
}

// Top returns the board, dropping any entry that matches the filter.
func (t *Tracker) Top(ctx context.Context, limit int) ([]model.TrendEntry, error) {
	if limit <= 0 {
		limit = DefaultTop
	}
	entries, err := t.trends.Top(ctx, limit)
	if err != nil {
		return nil, errs.ErrStorage
	}
	out := entries[:0]
	for _, e := range entries {
		if !t.filter.Flagged(e.Keyword) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Clear wipes the board (admin operation).
func (t *Tracker) Clear(ctx context.Context) error {
	if err := t.trends.Clear(ctx); err != nil {
		return errs.ErrStorage
	}
	t.log.Info("trend board cleared")
	return nil
}
