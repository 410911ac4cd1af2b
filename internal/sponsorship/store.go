package sponsorship

import (
	"context"
	"time"

	"sponsorlink/pkg/platform/sentinel"
)

// Store is the persistence contract for sponsorship records.
//
// FindActiveByCredentials and FindActiveByCode carry the authentication
// predicate (activation = active AND visible) into the query itself; rows that
// fail it are reported as sentinel.ErrNotFound, indistinguishable from absent
// rows.
//
// ClaimRequestSlot is the atomic check-then-set behind the request cooldown:
// it must advance last_request_at/next_request_eligible_at only when the
// previous eligibility window has passed, as a single store operation, so two
// concurrent claims can never both succeed.
type Store interface {
	FindActiveByCredentials(ctx context.Context, email, code string) (*Sponsorship, error)
	FindActiveByCode(ctx context.Context, code string) (*Sponsorship, error)
	GetByCode(ctx context.Context, code string) (*Sponsorship, error)
	List(ctx context.Context) ([]*Sponsorship, error)
	Save(ctx context.Context, s *Sponsorship) error

	// ClaimRequestSlot returns sentinel.ErrConflict with the stored
	// next-eligible time when the cooldown is still running, and
	// sentinel.ErrNotFound when no such sponsorship exists.
	ClaimRequestSlot(ctx context.Context, code string, now time.Time, cooldown time.Duration) (*Claim, error)
}

// Claim records a successful cooldown acquisition.
type Claim struct {
	SponsorCode    string
	RequestedAt    time.Time
	NextEligibleAt time.Time
}

// ThrottledError wraps sentinel.ErrConflict with the timestamp at which the
// sponsor becomes eligible again, for user-facing wait messages.
type ThrottledError struct {
	NextEligibleAt time.Time
}

func (e *ThrottledError) Error() string {
	return "update request throttled until " + e.NextEligibleAt.Format(time.RFC3339)
}

func (e *ThrottledError) Unwrap() error { return sentinel.ErrConflict }
