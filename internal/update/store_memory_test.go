package update

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sponsorlink/pkg/platform/sentinel"
)

func pendingUpdate(id string) *Update {
	return &Update{
		ID:          id,
		ChildID:     "child-104",
		Kind:        KindPhotoUpdate,
		Title:       "New photos",
		Body:        "Two photos from sports day.",
		Photos:      []string{"p1.jpg"},
		Status:      StatusPendingReview,
		SubmittedBy: "staff:field",
		SubmittedAt: time.Now(),
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Create(ctx, pendingUpdate("u-1")))
	assert.ErrorIs(t, store.Create(ctx, pendingUpdate("u-1")), sentinel.ErrConflict)
}

func TestCreateCorrectionRejectsSelfSupersede(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, pendingUpdate("u-1")))
	_, err := store.Reject(ctx, "u-1", "blurry photos", time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, store.CreateCorrection(ctx, pendingUpdate("u-1"), "u-1"), sentinel.ErrConflict)

	// The rejected record must not have been linked to itself.
	rec, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, rec.SupersededByID)
}

// The store hands out copies; mutating a returned record must not leak into
// stored state.
func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, pendingUpdate("u-1")))

	got, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	got.Title = "tampered"
	got.Photos[0] = "tampered.jpg"

	again, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "New photos", again.Title)
	assert.Equal(t, []string{"p1.jpg"}, again.Photos)
}
