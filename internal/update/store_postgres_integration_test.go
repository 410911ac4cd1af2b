//go:build integration

package update_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sponsorlink/internal/platform/postgres"
	"sponsorlink/internal/update"
	"sponsorlink/pkg/platform/sentinel"
	"sponsorlink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	store *update.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.EnsureSchema(s.ctx, s.pg.DB))
	s.store = update.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE updates, sponsorships`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) create(childID string) *update.Update {
	u := &update.Update{
		ID:          uuid.NewString(),
		ChildID:     childID,
		Kind:        update.KindProgressReport,
		Title:       "Term report",
		Body:        "Maria finished the term with high marks.",
		Photos:      []string{"p1.jpg", "p2.jpg"},
		Status:      update.StatusPendingReview,
		SubmittedBy: "staff:field",
		SubmittedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(s.ctx, u))
	return u
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	u := s.create("child-104")

	got, err := s.store.GetByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Title, got.Title)
	s.Equal([]string{"p1.jpg", "p2.jpg"}, got.Photos)
	s.Equal(update.StatusPendingReview, got.Status)
	s.False(got.Visible)

	_, err = s.store.GetByID(s.ctx, "no-such-id")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPublishIdempotent() {
	u := s.create("child-104")
	first := time.Now().UTC().Truncate(time.Microsecond)

	published, err := s.store.Publish(s.ctx, u.ID, first)
	s.Require().NoError(err)
	s.Equal(update.StatusPublished, published.Status)
	s.True(published.Visible)
	s.Require().NotNil(published.PublishedAt)
	s.True(published.PublishedAt.Equal(first))

	again, err := s.store.Publish(s.ctx, u.ID, first.Add(time.Hour))
	s.Require().NoError(err)
	s.True(again.PublishedAt.Equal(first), "re-publish must keep the original stamp")
}

func (s *PostgresStoreSuite) TestRejectIdempotentAndStateChecks() {
	u := s.create("child-104")

	rejected, err := s.store.Reject(s.ctx, u.ID, "photo quality too low", time.Now())
	s.Require().NoError(err)
	s.Equal(update.StatusRejected, rejected.Status)
	s.False(rejected.Visible)

	again, err := s.store.Reject(s.ctx, u.ID, "different reason", time.Now())
	s.Require().NoError(err)
	s.Equal("photo quality too low", again.RejectionReason)

	_, err = s.store.Publish(s.ctx, u.ID, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Publish(s.ctx, "no-such-id", time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListingsSeparatePendingFromPublished() {
	pending := s.create("child-104")
	published := s.create("child-104")
	_, err := s.store.Publish(s.ctx, published.ID, time.Now())
	s.Require().NoError(err)

	visible, err := s.store.ListPublishedForChild(s.ctx, "child-104")
	s.Require().NoError(err)
	s.Require().Len(visible, 1)
	s.Equal(published.ID, visible[0].ID)

	queue, err := s.store.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal(pending.ID, queue[0].ID)
}

func (s *PostgresStoreSuite) TestCreateCorrection() {
	prev := s.create("child-104")
	_, err := s.store.Reject(s.ctx, prev.ID, "wrong child named", time.Now())
	s.Require().NoError(err)

	correction := &update.Update{
		ID:          uuid.NewString(),
		ChildID:     "child-104",
		Kind:        update.KindProgressReport,
		Title:       "Term report",
		Body:        "Corrected text.",
		Status:      update.StatusPendingReview,
		SubmittedBy: "staff:field",
		SubmittedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.CreateCorrection(s.ctx, correction, prev.ID))
	s.Equal(prev.ID, correction.SupersedesID)

	stored, err := s.store.GetByID(s.ctx, prev.ID)
	s.Require().NoError(err)
	s.Equal(correction.ID, stored.SupersededByID)

	// At most one correction per rejected update.
	second := &update.Update{
		ID: uuid.NewString(), ChildID: "child-104", Kind: update.KindProgressReport,
		Title: "t", Body: "b", Status: update.StatusPendingReview,
		SubmittedBy: "staff:field", SubmittedAt: time.Now(),
	}
	s.Require().ErrorIs(s.store.CreateCorrection(s.ctx, second, prev.ID), sentinel.ErrConflict)

	correctionRow, err := s.store.GetByID(s.ctx, correction.ID)
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.CreateCorrection(s.ctx, second, correctionRow.ID), sentinel.ErrInvalidState,
		"a pending update cannot be corrected")
}

func (s *PostgresStoreSuite) TestCreateCorrectionMissingTarget() {
	correction := &update.Update{
		ID: uuid.NewString(), ChildID: "child-104", Kind: update.KindProgressReport,
		Title: "t", Body: "b", Status: update.StatusPendingReview,
		SubmittedBy: "staff:field", SubmittedAt: time.Now(),
	}
	s.Require().ErrorIs(s.store.CreateCorrection(s.ctx, correction, "no-such-id"), sentinel.ErrNotFound)
}
