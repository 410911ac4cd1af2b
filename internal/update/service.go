package update

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sponsorlink/internal/platform/metrics"
	"sponsorlink/internal/sponsorship"
	dErrors "sponsorlink/pkg/domain-errors"
	"sponsorlink/pkg/platform/privacy"
	"sponsorlink/pkg/platform/sentinel"
	"sponsorlink/pkg/requestcontext"
)

// Sponsorships is the slice of the sponsorship service the lifecycle manager
// depends on.
type Sponsorships interface {
	ClaimRequestSlot(ctx context.Context, code string, cooldown time.Duration) (*sponsorship.Claim, error)
}

// Service drives update records through the review workflow. Sponsors can
// only create pending rows and read published ones; every transition is an
// admin action.
type Service struct {
	store        Store
	sponsorships Sponsorships
	cooldown     time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

func NewService(store Store, sponsorships Sponsorships, cooldown time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:        store,
		sponsorships: sponsorships,
		cooldown:     cooldown,
		logger:       logger,
		metrics:      m,
	}
}

// SubmitInput is a field-team submission.
type SubmitInput struct {
	ChildID     string
	Kind        Kind
	Title       string
	Body        string
	Photos      []string
	SubmittedBy string
}

// Submit records a field-team update. It enters review pending and invisible.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Update, error) {
	if !ValidKind(in.Kind) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown update kind")
	}
	now := requestcontext.Now(ctx)
	u := &Update{
		ID:          uuid.NewString(),
		ChildID:     in.ChildID,
		Kind:        in.Kind,
		Title:       in.Title,
		Body:        in.Body,
		Photos:      in.Photos,
		Status:      StatusPendingReview,
		Visible:     false,
		SubmittedBy: in.SubmittedBy,
		SubmittedAt: now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, s.storeFailure(ctx, "submit update", err)
	}
	s.metrics.UpdatesSubmitted.Inc()
	return u, nil
}

// Request records a sponsor-initiated update request for their child. The
// cooldown slot is claimed first; a denial carries the exact next-eligible
// time and leaves the eligibility fields untouched.
func (s *Service) Request(ctx context.Context, sp *sponsorship.Sponsorship, note string) (*Update, error) {
	claim, err := s.sponsorships.ClaimRequestSlot(ctx, sp.SponsorCode, s.cooldown)
	if err != nil {
		var throttled *sponsorship.ThrottledError
		if errors.As(err, &throttled) {
			s.metrics.ThrottleDenials.Inc()
		}
		return nil, err
	}

	u := &Update{
		ID:                 uuid.NewString(),
		ChildID:            sp.ChildID,
		SponsorCode:        sp.SponsorCode,
		Kind:               KindProgressReport,
		Title:              "Update requested by sponsor",
		Body:               note,
		Status:             StatusPendingReview,
		Visible:            false,
		RequestedBySponsor: true,
		RequestedAt:        &claim.RequestedAt,
		SubmittedBy:        "sponsor:" + sp.SponsorCode,
		SubmittedAt:        claim.RequestedAt,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, s.storeFailure(ctx, "create requested update", err)
	}
	s.metrics.UpdatesRequested.Inc()
	s.logger.InfoContext(ctx, "update requested",
		"sponsor_code", privacy.MaskSponsorCode(sp.SponsorCode),
		"update_id", u.ID,
		"next_eligible_at", claim.NextEligibleAt,
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

// Publish transitions a pending update to published. Re-publishing an
// already-published update succeeds without touching the publish stamp.
func (s *Service) Publish(ctx context.Context, id string) (*Update, error) {
	rec, err := s.store.Publish(ctx, id, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.transitionFailure(ctx, "publish", id, err)
	}
	s.metrics.UpdatesPublished.Inc()
	return rec, nil
}

// Reject transitions a pending update to rejected with a reason. Re-rejecting
// keeps the original reason.
func (s *Service) Reject(ctx context.Context, id, reason string) (*Update, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "rejection reason is required")
	}
	rec, err := s.store.Reject(ctx, id, reason, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.transitionFailure(ctx, "reject", id, err)
	}
	s.metrics.UpdatesRejected.Inc()
	return rec, nil
}

// Correct files a fresh pending row superseding a rejected one. The link is
// written transactionally on both rows; a rejected update can be superseded
// at most once.
func (s *Service) Correct(ctx context.Context, supersededID string, in SubmitInput) (*Update, error) {
	if !ValidKind(in.Kind) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown update kind")
	}
	now := requestcontext.Now(ctx)
	correction := &Update{
		ID:          uuid.NewString(),
		ChildID:     in.ChildID,
		Kind:        in.Kind,
		Title:       in.Title,
		Body:        in.Body,
		Photos:      in.Photos,
		Status:      StatusPendingReview,
		Visible:     false,
		SubmittedBy: in.SubmittedBy,
		SubmittedAt: now,
	}
	err := s.store.CreateCorrection(ctx, correction, supersededID)
	switch {
	case err == nil:
		s.metrics.UpdatesSubmitted.Inc()
		return correction, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "no such update")
	case errors.Is(err, sentinel.ErrInvalidState):
		return nil, dErrors.New(dErrors.CodeBadRequest, "only rejected updates can be corrected")
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.New(dErrors.CodeBadRequest, "update has already been corrected")
	default:
		return nil, s.storeFailure(ctx, "create correction", err)
	}
}

// ListForChild returns the published, visible updates for one child, newest
// first. This is the only listing sponsors see.
func (s *Service) ListForChild(ctx context.Context, childID string) ([]*Update, error) {
	recs, err := s.store.ListPublishedForChild(ctx, childID)
	if err != nil {
		return nil, s.storeFailure(ctx, "list updates for child", err)
	}
	return recs, nil
}

// MostRecentForChild returns the newest published update for a child, or a
// not-found error when none has been published yet.
func (s *Service) MostRecentForChild(ctx context.Context, childID string) (*Update, error) {
	rec, err := s.store.MostRecentForChild(ctx, childID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no published updates")
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "most recent update", err)
	}
	return rec, nil
}

// ListPending returns the review queue, newest first.
func (s *Service) ListPending(ctx context.Context) ([]*Update, error) {
	recs, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "list pending updates", err)
	}
	return recs, nil
}

// ListAllPublished exposes every published update for the overdue reporter.
func (s *Service) ListAllPublished(ctx context.Context) ([]*Update, error) {
	recs, err := s.store.ListAllPublished(ctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "list published updates", err)
	}
	return recs, nil
}

// Get returns one update by id.
func (s *Service) Get(ctx context.Context, id string) (*Update, error) {
	rec, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no such update")
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "get update", err)
	}
	return rec, nil
}

func (s *Service) transitionFailure(ctx context.Context, op, id string, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "no such update")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeBadRequest, "update is not awaiting review")
	default:
		s.logger.ErrorContext(ctx, "update transition failed",
			"op", op,
			"update_id", id,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(dErrors.CodeInternal, "update transition failed", err)
	}
}

func (s *Service) storeFailure(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "update store operation failed",
		"op", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(dErrors.CodeInternal, op+" failed", err)
}
