// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/kmalkov/searchgate/internal/model"
)

// BanRepository provides durable access to the ban set.
type BanRepository interface {
	// Upsert inserts or overwrites the ban record for an identity.
	// Re-banning is not an error; the newer record wins.
	Upsert(ctx context.Context, rec model.BanRecord) error
	// Delete removes a ban; returns errs.ErrNotFound when the identity is not banned.
	Delete(ctx context.Context, id model.Identity) error
	// Exists reports whether the identity is currently banned.
	Exists(ctx context.Context, id model.Identity) (bool, error)
	// List returns all ban records ordered by ban time descending.
	List(ctx context.Context) ([]model.BanRecord, error)
}
