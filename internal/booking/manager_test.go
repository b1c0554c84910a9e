package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmango-lab/fieldbooking/internal/booking"
	"github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/promo"
	"github.com/tmango-lab/fieldbooking/internal/schedule"
	"github.com/tmango-lab/fieldbooking/internal/store"
	"github.com/tmango-lab/fieldbooking/internal/testutil"
)

func newTestManager(t *testing.T) (*booking.Manager, *db.DB, *testutil.FixedClock) {
	t.Helper()

	database := testutil.NewTestDB(t)
	gate, err := promo.NewGate(database)
	require.NoError(t, err)

	manager, err := booking.NewManager(database, gate, booking.Config{
		PaymentWindow: 15 * time.Minute,
		CutoffMinute:  18 * 60,
		OpenMinute:    9 * 60,
		CloseMinute:   22 * 60,
		StepMinutes:   30,
		SearchMode:    schedule.SearchModeGrid,
	})
	require.NoError(t, err)

	clock := &testutil.FixedClock{Instant: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)}
	return manager.WithClock(clock), database, clock
}

func TestManagerCreate(t *testing.T) {
	manager, database, clock := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)

	ctx := context.Background()

	// 17:31 for one hour straddles the 18:00 cutoff: 29 pre minutes round up
	// to 300, 31 post minutes round up to 400.
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     17*60 + 31,
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700), created.TotalPrice)
	assert.Equal(t, store.BookingStatusPendingPayment, created.Status)
	assert.Equal(t, store.PaymentStatusPending, created.PaymentStatus)
	assert.Equal(t, clock.Instant.Add(15*time.Minute), created.ExpiresAt)
}

func TestManagerCreate_RejectsConflict(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)

	ctx := context.Background()
	first := booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
	}
	_, err := manager.Create(ctx, first)
	require.NoError(t, err)

	overlap := first
	overlap.UserID = "user-2"
	overlap.StartMinute = 630
	_, err = manager.Create(ctx, overlap)
	var slotErr booking.SlotUnavailableError
	assert.ErrorAs(t, err, &slotErr)

	// A back-to-back booking starting at the first one's end is fine.
	adjacent := first
	adjacent.UserID = "user-2"
	adjacent.StartMinute = 660
	_, err = manager.Create(ctx, adjacent)
	assert.NoError(t, err)
}

func TestManagerCreate_RejectsOutsideHours(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)

	_, err := manager.Create(context.Background(), booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     21*60 + 30,
		DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)
}

func TestManagerCreate_AppliesCoupon(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)
	testutil.SeedCampaign(t, database, "camp-1", 5, 200)
	testutil.SeedCoupon(t, database, "coupon-1", "user-1", "camp-1")

	ctx := context.Background()
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
		CouponID:        "coupon-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), created.TotalPrice, "500/hour minus 200 discount")
	require.NotNil(t, created.CouponID)

	coupon, err := database.Queries.GetUserCoupon(ctx, "coupon-1")
	require.NoError(t, err)
	assert.Equal(t, store.CouponStatusUsed, coupon.Status)
	require.NotNil(t, coupon.BookingID)
	assert.Equal(t, created.ID, *coupon.BookingID)
}

func TestManagerCreate_CouponDeniedLeavesNoBooking(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)
	testutil.SeedCampaign(t, database, "camp-1", 0, 200)
	testutil.SeedCoupon(t, database, "coupon-1", "user-1", "camp-1")

	ctx := context.Background()
	_, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
		CouponID:        "coupon-1",
	})
	assert.ErrorIs(t, err, promo.ErrCapacityExceeded)

	// The rollback must leave no booking row and the coupon untouched.
	bookings, err := database.Queries.ListActiveBookingsForField(ctx, "field-1", "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, bookings)

	coupon, err := database.Queries.GetUserCoupon(ctx, "coupon-1")
	require.NoError(t, err)
	assert.Equal(t, store.CouponStatusActive, coupon.Status)
}

func TestManagerConfirmPayment(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)

	ctx := context.Background()
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	require.NoError(t, manager.ConfirmPayment(ctx, created.ID))

	// Idempotent: confirming again succeeds without changing anything.
	require.NoError(t, manager.ConfirmPayment(ctx, created.ID))

	got, err := database.Queries.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BookingStatusConfirmed, got.Status)
	assert.Equal(t, store.PaymentStatusPaid, got.PaymentStatus)
}

func TestManagerConfirmPayment_CancelledBooking(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)

	ctx := context.Background()
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.NoError(t, manager.Cancel(ctx, created.ID))

	err = manager.ConfirmPayment(ctx, created.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestManagerCancel_ReleasesCoupon(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)
	testutil.SeedCampaign(t, database, "camp-1", 1, 200)
	testutil.SeedCoupon(t, database, "coupon-1", "user-1", "camp-1")

	ctx := context.Background()
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
		CouponID:        "coupon-1",
	})
	require.NoError(t, err)

	require.NoError(t, manager.Cancel(ctx, created.ID))
	// Repeated cancel is a no-op and must not release the coupon twice.
	require.NoError(t, manager.Cancel(ctx, created.ID))

	coupon, err := database.Queries.GetUserCoupon(ctx, "coupon-1")
	require.NoError(t, err)
	assert.Equal(t, store.CouponStatusActive, coupon.Status)

	campaign, err := database.Queries.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, campaign.RedemptionCount)

	// The freed slot is bookable again.
	_, err = manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-2",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
	})
	assert.NoError(t, err)
}

func TestManagerCancel_ConfirmedBooking(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)
	testutil.SeedCampaign(t, database, "camp-1", 1, 200)
	testutil.SeedCoupon(t, database, "coupon-1", "user-1", "camp-1")

	ctx := context.Background()
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
		CouponID:        "coupon-1",
	})
	require.NoError(t, err)
	require.NoError(t, manager.ConfirmPayment(ctx, created.ID))

	err = manager.Cancel(ctx, created.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	coupon, err := database.Queries.GetUserCoupon(ctx, "coupon-1")
	require.NoError(t, err)
	assert.Equal(t, store.CouponStatusUsed, coupon.Status, "confirmed booking keeps its coupon")
}

func TestManagerExpireTimeouts(t *testing.T) {
	manager, database, clock := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)
	testutil.SeedCampaign(t, database, "camp-1", 1, 200)
	testutil.SeedCoupon(t, database, "coupon-1", "user-1", "camp-1")

	ctx := context.Background()
	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-1",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     600,
		DurationMinutes: 60,
		CouponID:        "coupon-1",
	})
	require.NoError(t, err)

	paid, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          "user-2",
		FieldID:         "field-1",
		BookingDate:     "2026-09-01",
		StartMinute:     720,
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.NoError(t, manager.ConfirmPayment(ctx, paid.ID))

	clock.Advance(20 * time.Minute)

	count, err := manager.ExpireTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Running the sweep again finds nothing; the coupon was released once.
	count, err = manager.ExpireTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	got, err := database.Queries.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BookingStatusCancelled, got.Status)

	confirmed, err := database.Queries.GetBooking(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BookingStatusConfirmed, confirmed.Status)

	coupon, err := database.Queries.GetUserCoupon(ctx, "coupon-1")
	require.NoError(t, err)
	assert.Equal(t, store.CouponStatusActive, coupon.Status)

	campaign, err := database.Queries.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, campaign.RedemptionCount)
}

func TestManagerConcurrentCreate_SameSlot(t *testing.T) {
	manager, database, _ := newTestManager(t)
	testutil.SeedField(t, database, "field-1", 500, 700)

	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := manager.Create(ctx, booking.CreateRequest{
				UserID:          "user-" + string(rune('a'+i)),
				FieldID:         "field-1",
				BookingDate:     "2026-09-01",
				StartMinute:     600,
				DurationMinutes: 60,
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			var slotErr booking.SlotUnavailableError
			assert.ErrorAs(t, err, &slotErr)
		}
	}
	assert.Equal(t, 1, successCount, "Only 1 booking should succeed")
}
