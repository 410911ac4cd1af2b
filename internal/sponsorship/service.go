package sponsorship

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "sponsorlink/pkg/domain-errors"
	"sponsorlink/pkg/platform/privacy"
	"sponsorlink/pkg/platform/sentinel"
	"sponsorlink/pkg/requestcontext"
)

// genericCredentialFailure is returned for every credential failure, whether
// the code is unknown, the email mismatches, or the sponsorship is suspended
// or hidden. One message, so responses cannot be used to enumerate accounts.
const genericCredentialFailure = "invalid email or sponsor code"

// Service verifies sponsor credentials and owns the request-eligibility
// cooldown. Inputs reach it already normalized and format-checked by the
// transport layer.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// VerifyCredentials resolves an (email, code) pair to a live sponsorship.
// Store failures surface as internal errors, never as credential failures:
// the caller must be able to tell "wrong credentials" from "backend down".
func (s *Service) VerifyCredentials(ctx context.Context, email, code string) (*Sponsorship, error) {
	rec, err := s.store.FindActiveByCredentials(ctx, email, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, genericCredentialFailure)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "credential lookup failed",
			"error", err,
			"email", privacy.MaskEmail(email),
			"sponsor_code", privacy.MaskSponsorCode(code),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(dErrors.CodeInternal, "credential lookup failed", err)
	}

	// The query already filters on activation and visibility; re-check the
	// returned row so a future query regression cannot widen access.
	if !rec.Authenticatable() {
		s.logger.WarnContext(ctx, "store returned non-authenticatable sponsorship for credential query",
			"sponsor_code", privacy.MaskSponsorCode(code),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, genericCredentialFailure)
	}
	return rec, nil
}

// ResolveActive re-resolves a sponsor code against live state. Sessions call
// this on every privileged request; a deactivated or hidden sponsorship makes
// its outstanding sessions useless from the next call on.
func (s *Service) ResolveActive(ctx context.Context, code string) (*Sponsorship, error) {
	rec, err := s.store.FindActiveByCode(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, genericCredentialFailure)
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "sponsorship lookup failed", err)
	}
	if !rec.Authenticatable() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, genericCredentialFailure)
	}
	return rec, nil
}

// ClaimRequestSlot acquires the update-request cooldown slot for a
// sponsorship. The store performs the check-then-set atomically; this layer
// only translates the outcome.
func (s *Service) ClaimRequestSlot(ctx context.Context, code string, cooldown time.Duration) (*Claim, error) {
	now := requestcontext.Now(ctx)
	claim, err := s.store.ClaimRequestSlot(ctx, code, now, cooldown)
	if err == nil {
		return claim, nil
	}

	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return nil, err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no such sponsorship")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		// Lost a race with a concurrent request from the same sponsor.
		return nil, dErrors.New(dErrors.CodeRateLimited, "update request already in flight")
	}
	s.logger.ErrorContext(ctx, "request slot claim failed",
		"error", err,
		"sponsor_code", privacy.MaskSponsorCode(code),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil, dErrors.Wrap(dErrors.CodeInternal, "request slot claim failed", err)
}

// Get returns a sponsorship regardless of activation, for admin listings.
func (s *Service) Get(ctx context.Context, code string) (*Sponsorship, error) {
	rec, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no such sponsorship")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "sponsorship lookup failed", err)
	}
	return rec, nil
}

// List returns all sponsorships, for admin listings.
func (s *Service) List(ctx context.Context) ([]*Sponsorship, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "sponsorship listing failed", err)
	}
	return recs, nil
}
