package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmango-lab/fieldbooking/internal/store"
	"github.com/tmango-lab/fieldbooking/internal/testutil"
)

func TestReserveCampaignSlot_Concurrent(t *testing.T) {
	database := testutil.NewTestDB(t)
	testutil.SeedCampaign(t, database, "camp-1", 1, 100)

	ctx := context.Background()
	now := time.Now().UTC()

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			granted, err := database.Queries.ReserveCampaignSlot(ctx, "camp-1", now)
			assert.NoError(t, err)
			results <- granted
		}()
	}

	wg.Wait()
	close(results)

	grantedCount := 0
	for granted := range results {
		if granted {
			grantedCount++
		}
	}

	assert.Equal(t, 1, grantedCount, "Only 1 reservation should succeed")

	campaign, err := database.Queries.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, campaign.RedemptionCount)
}

func TestReserveCampaignSlot_LastSlot(t *testing.T) {
	database := testutil.NewTestDB(t)
	testutil.SeedCampaign(t, database, "camp-1", 2, 100)

	ctx := context.Background()
	now := time.Now().UTC()

	// Take the first slot up front, then race two callers for the last one.
	granted, err := database.Queries.ReserveCampaignSlot(ctx, "camp-1", now)
	require.NoError(t, err)
	require.True(t, granted)

	var wg sync.WaitGroup
	wg.Add(2)
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			ok, err := database.Queries.ReserveCampaignSlot(ctx, "camp-1", now)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	grantedCount := 0
	for ok := range results {
		if ok {
			grantedCount++
		}
	}
	assert.Equal(t, 1, grantedCount)
}

func TestReserveCampaignSlot_Unlimited(t *testing.T) {
	database := testutil.NewTestDB(t)
	testutil.SeedCampaign(t, database, "camp-1", -1, 100)

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		granted, err := database.Queries.ReserveCampaignSlot(ctx, "camp-1", now)
		require.NoError(t, err)
		assert.True(t, granted)
	}

	campaign, err := database.Queries.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, campaign.RedemptionCount)
}

func TestReserveCampaignSlot_InactiveDenied(t *testing.T) {
	database := testutil.NewTestDB(t)
	testutil.SeedCampaign(t, database, "camp-1", 10, 100)

	ctx := context.Background()
	now := time.Now().UTC()

	_, err := database.ExecContext(ctx,
		"UPDATE campaigns SET status = ? WHERE id = ?", store.CampaignStatusInactive, "camp-1")
	require.NoError(t, err)

	granted, err := database.Queries.ReserveCampaignSlot(ctx, "camp-1", now)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestReserveCampaignSlot_OutsideWindow(t *testing.T) {
	database := testutil.NewTestDB(t)

	ctx := context.Background()
	now := time.Now().UTC()
	starts := now.Add(time.Hour)
	ends := now.Add(2 * time.Hour)
	limit := int64(10)

	_, err := database.Queries.CreateCampaign(ctx, store.CreateCampaignParams{
		ID:              "camp-window",
		Name:            "Windowed",
		RedemptionLimit: &limit,
		LimitPerUser:    1,
		BenefitType:     store.BenefitTypeFixed,
		BenefitValue:    100,
		StartsAt:        &starts,
		EndsAt:          &ends,
	})
	require.NoError(t, err)

	granted, err := database.Queries.ReserveCampaignSlot(ctx, "camp-window", now)
	require.NoError(t, err)
	assert.False(t, granted, "campaign not started yet")

	granted, err = database.Queries.ReserveCampaignSlot(ctx, "camp-window", now.Add(90*time.Minute))
	require.NoError(t, err)
	assert.True(t, granted, "inside window")

	granted, err = database.Queries.ReserveCampaignSlot(ctx, "camp-window", now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, granted, "campaign ended")
}

func TestReleaseCampaignSlot_FloorsAtZero(t *testing.T) {
	database := testutil.NewTestDB(t)
	testutil.SeedCampaign(t, database, "camp-1", 5, 100)

	ctx := context.Background()
	now := time.Now().UTC()

	granted, err := database.Queries.ReserveCampaignSlot(ctx, "camp-1", now)
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, database.Queries.ReleaseCampaignSlot(ctx, "camp-1", now))
	require.NoError(t, database.Queries.ReleaseCampaignSlot(ctx, "camp-1", now))

	campaign, err := database.Queries.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, campaign.RedemptionCount, "counter never goes negative")
}
