package repository

import (
	"context"
	"time"

	"github.com/kmalkov/searchgate/internal/model"
)

// UsageRepository records per-identity activity for admin inspection.
// Keyword trails are bounded by the implementation.
type UsageRepository interface {
	// Touch upserts first-seen/last-active and, for searches, records the
	// keyword and bumps the total.
	Touch(ctx context.Context, id model.Identity, action model.ActionKind, keyword string, now time.Time) error
	// Get loads the usage summary with the most recent keywords first;
	// errs.ErrNotFound when the identity was never seen.
	Get(ctx context.Context, id model.Identity) (*model.UserUsage, error)
}
