// Package registry implements the access registry: the durable ban set,
// VIP grants with lazy expiry, and the static admin set.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/keymutex"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/repository"
)

// Registry answers ban and VIP questions for the admission path and carries
// the admin mutations behind them. Admin identities are permanently and
// implicitly VIP without a stored grant.
type Registry struct {
	bans   repository.BanRepository
	vips   repository.VipRepository
	admins map[model.Identity]struct{}
	clk    clock.Clock
	locks  *keymutex.KeyMutex
	log    *zap.Logger
}

// New constructs a Registry over the durable ban and VIP stores.
func New(bans repository.BanRepository, vips repository.VipRepository, admins []model.Identity, clk clock.Clock, log *zap.Logger) *Registry {
	set := make(map[model.Identity]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Registry{
		bans:   bans,
		vips:   vips,
		admins: set,
		clk:    clk,
		locks:  keymutex.New(256),
		log:    log,
	}
}

// IsAdmin reports whether the identity belongs to the static admin set.
func (r *Registry) IsAdmin(id model.Identity) bool {
	_, ok := r.admins[id]
	return ok
}

// IsBanned is a pure lookup. A storage failure on this read-only path is
// logged and degrades to "not banned" to keep the hot path available.
func (r *Registry) IsBanned(ctx context.Context, id model.Identity) bool {
	banned, err := r.bans.Exists(ctx, id)
	if err != nil {
		r.log.Warn("ban lookup failed, treating as not banned",
			zap.Int64("identity", int64(id)), zap.Error(err))
		return false
	}
	return banned
}

// Ban records a ban. Re-banning overwrites the existing record without error.
// Storage failures on this security-relevant write are never swallowed.
func (r *Registry) Ban(ctx context.Context, id model.Identity, reason string, actor model.Identity) error {
	if reason == "" {
		reason = "terms violation"
	}
	rec := model.BanRecord{
		Identity: id,
		Reason:   reason,
		BannedAt: r.clk.Now(),
		BannedBy: actor,
	}
	if err := r.bans.Upsert(ctx, rec); err != nil {
		r.log.Error("ban write failed", zap.Int64("identity", int64(id)), zap.Error(err))
		return errs.ErrStorage
	}
	r.log.Info("identity banned",
		zap.Int64("identity", int64(id)),
		zap.Int64("by", int64(actor)),
		zap.String("reason", reason))
	return nil
}

// Unban removes a ban; returns ErrNotBanned when the identity is not banned.
func (r *Registry) Unban(ctx context.Context, id model.Identity) error {
	err := r.bans.Delete(ctx, id)
	switch {
	case err == nil:
		r.log.Info("identity unbanned", zap.Int64("identity", int64(id)))
		return nil
	case errors.Is(err, errs.ErrNotFound):
		return errs.ErrNotBanned
	default:
		r.log.Error("unban write failed", zap.Int64("identity", int64(id)), zap.Error(err))
		return errs.ErrStorage
	}
}

// ListBans returns every ban record for admin inspection.
func (r *Registry) ListBans(ctx context.Context) ([]model.BanRecord, error) {
	recs, err := r.bans.List(ctx)
	if err != nil {
		return nil, errs.ErrStorage
	}
	return recs, nil
}

// IsVip evaluates VIP status at the given instant. An expired grant is
// deleted as a side effect of the read; the per-identity lock keeps the
// read-then-delete atomic so no caller observes an expired-but-present grant.
func (r *Registry) IsVip(ctx context.Context, id model.Identity, now time.Time) bool {
	if r.IsAdmin(id) {
		return true
	}

	unlock := r.locks.Lock(vipKey(id))
	defer unlock()

	grant, err := r.vips.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			r.log.Warn("vip lookup failed, treating as none",
				zap.Int64("identity", int64(id)), zap.Error(err))
		}
		return false
	}
	if grant.Expired(now) {
		if err := r.vips.Delete(ctx, id); err != nil && !errors.Is(err, errs.ErrNotFound) {
			r.log.Warn("expired vip grant cleanup failed",
				zap.Int64("identity", int64(id)), zap.Error(err))
		}
		return false
	}
	return true
}

// Remaining describes how long VIP status lasts.
type Remaining struct {
	// Unlimited is set for admin identities.
	Unlimited bool
	// Left is the time until expiry; zero with Unlimited unset means no VIP.
	Left time.Duration
}

// None reports the absence of any VIP status.
func (rem Remaining) None() bool { return !rem.Unlimited && rem.Left <= 0 }

// VipRemaining returns the remaining VIP duration for display.
func (r *Registry) VipRemaining(ctx context.Context, id model.Identity, now time.Time) Remaining {
	if r.IsAdmin(id) {
		return Remaining{Unlimited: true}
	}

	unlock := r.locks.Lock(vipKey(id))
	defer unlock()

	grant, err := r.vips.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			r.log.Warn("vip lookup failed, treating as none",
				zap.Int64("identity", int64(id)), zap.Error(err))
		}
		return Remaining{}
	}
	if grant.Expired(now) {
		return Remaining{}
	}
	return Remaining{Left: grant.ExpiresAt.Sub(now)}
}

// GrantVip stores a grant for the identity. A new grant replaces any prior
// grant wholesale; durations are never merged or extended.
func (r *Registry) GrantVip(ctx context.Context, id model.Identity, days int) error {
	if days <= 0 {
		return fmt.Errorf("grant duration must be positive, got %d", days)
	}
	now := r.clk.Now()
	grant := model.VipGrant{
		Identity:     id,
		ExpiresAt:    now.Add(time.Duration(days) * 24 * time.Hour),
		GrantedAt:    now,
		DurationDays: days,
	}

	unlock := r.locks.Lock(vipKey(id))
	defer unlock()

	if err := r.vips.Upsert(ctx, grant); err != nil {
		r.log.Error("vip grant write failed", zap.Int64("identity", int64(id)), zap.Error(err))
		return errs.ErrStorage
	}
	r.log.Info("vip granted",
		zap.Int64("identity", int64(id)), zap.Int("days", days),
		zap.Time("expires_at", grant.ExpiresAt))
	return nil
}

// RevokeVip removes any stored grant; ErrNotFound when there is none.
func (r *Registry) RevokeVip(ctx context.Context, id model.Identity) error {
	unlock := r.locks.Lock(vipKey(id))
	defer unlock()

	err := r.vips.Delete(ctx, id)
	switch {
	case err == nil:
		r.log.Info("vip revoked", zap.Int64("identity", int64(id)))
		return nil
	case errors.Is(err, errs.ErrNotFound):
		return errs.ErrNotFound
	default:
		return errs.ErrStorage
	}
}

func vipKey(id model.Identity) string {
	return fmt.Sprintf("vip/%d", int64(id))
}
