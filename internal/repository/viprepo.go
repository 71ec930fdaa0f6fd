package repository

import (
	"context"

	"github.com/kmalkov/searchgate/internal/model"
)

// VipRepository provides durable access to VIP grants.
type VipRepository interface {
	// Upsert inserts or replaces the grant for an identity (grants never stack).
	Upsert(ctx context.Context, grant model.VipGrant) error
	// Get loads the stored grant; errs.ErrNotFound when absent.
	Get(ctx context.Context, id model.Identity) (*model.VipGrant, error)
	// Delete removes the grant; errs.ErrNotFound when absent.
	Delete(ctx context.Context, id model.Identity) error
}
