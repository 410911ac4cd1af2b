package sponsorship

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sponsorlink/pkg/platform/sentinel"
)

// Two simultaneous claims for one sponsorship must produce exactly one
// success; the compare-and-set happens under the store lock.
func TestClaimRequestSlotRace(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Save(ctx, &Sponsorship{
		SponsorCode: "BAN-2025-104",
		Email:       "a@x.com",
		Activation:  ActivationActive,
		Visible:     true,
	}))

	const attempts = 16
	now := time.Now()

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = store.ClaimRequestSlot(ctx, "BAN-2025-104", now, 30*24*time.Hour)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var throttled *ThrottledError
		require.ErrorAs(t, err, &throttled)
	}
	require.Equal(t, 1, successes, "exactly one concurrent claim may win")
}

func TestClaimRequestSlotReusesSlotAfterCooldown(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, &Sponsorship{
		SponsorCode:           "BAN-2025-105",
		Email:                 "b@x.com",
		Activation:            ActivationActive,
		Visible:               true,
		NextRequestEligibleAt: &past,
	}))

	claim, err := store.ClaimRequestSlot(ctx, "BAN-2025-105", time.Now(), time.Hour)
	require.NoError(t, err)
	require.Equal(t, "BAN-2025-105", claim.SponsorCode)
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Save(ctx, &Sponsorship{
		SponsorCode: "BAN-2025-106",
		Email:       "c@x.com",
		Activation:  ActivationActive,
		Visible:     true,
		ChildPhotos: []string{"p1.jpg"},
	}))

	rec, err := store.GetByCode(ctx, "BAN-2025-106")
	require.NoError(t, err)
	rec.Email = "mutated@x.com"
	rec.ChildPhotos[0] = "mutated.jpg"

	fresh, err := store.GetByCode(ctx, "BAN-2025-106")
	require.NoError(t, err)
	require.Equal(t, "c@x.com", fresh.Email)
	require.Equal(t, "p1.jpg", fresh.ChildPhotos[0])
}

func TestFindActiveByCredentialsFiltersInStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Save(ctx, &Sponsorship{
		SponsorCode: "BAN-2025-107",
		Email:       "d@x.com",
		Activation:  ActivationSuspended,
		Visible:     true,
	}))

	_, err := store.FindActiveByCredentials(ctx, "d@x.com", "BAN-2025-107")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
