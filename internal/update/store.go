package update

import (
	"context"
	"time"
)

// Store is the persistence contract for update records.
//
// Publish and Reject are conditional single-row writes: they succeed from
// PendingReview, are no-ops from the target state (idempotent re-calls leave
// published_at and rejection_reason untouched), and fail with
// sentinel.ErrInvalidState from any other state. Absent rows fail with
// sentinel.ErrNotFound.
//
// CreateCorrection inserts the correction row and sets the superseded row's
// back-reference in one transaction, so the chain can never be half-linked.
type Store interface {
	Create(ctx context.Context, u *Update) error
	GetByID(ctx context.Context, id string) (*Update, error)

	ListPublishedForChild(ctx context.Context, childID string) ([]*Update, error)
	MostRecentForChild(ctx context.Context, childID string) (*Update, error)
	ListPending(ctx context.Context) ([]*Update, error)
	ListAllPublished(ctx context.Context) ([]*Update, error)

	Publish(ctx context.Context, id string, at time.Time) (*Update, error)
	Reject(ctx context.Context, id string, reason string, at time.Time) (*Update, error)

	CreateCorrection(ctx context.Context, correction *Update, supersededID string) error
}
