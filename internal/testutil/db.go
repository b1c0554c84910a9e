package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedField inserts a field with the given rates.
func SeedField(t *testing.T, database *db.DB, id string, preRate, postRate int64) store.Field {
	t.Helper()

	field, err := database.Queries.CreateField(context.Background(), store.CreateFieldParams{
		ID:       id,
		Name:     "Field " + id,
		PreRate:  preRate,
		PostRate: postRate,
	})
	if err != nil {
		t.Fatalf("seed field: %v", err)
	}
	return field
}

// SeedCampaign inserts an active fixed-discount campaign. A negative limit
// means unlimited.
func SeedCampaign(t *testing.T, database *db.DB, id string, limit int64, discount int64) store.Campaign {
	t.Helper()

	params := store.CreateCampaignParams{
		ID:           id,
		Name:         "Campaign " + id,
		LimitPerUser: 1,
		BenefitType:  store.BenefitTypeFixed,
		BenefitValue: discount,
	}
	if limit >= 0 {
		params.RedemptionLimit = &limit
	}
	campaign, err := database.Queries.CreateCampaign(context.Background(), params)
	if err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	return campaign
}

// SeedCoupon inserts an ACTIVE coupon for the user against the campaign.
func SeedCoupon(t *testing.T, database *db.DB, id, userID, campaignID string) store.UserCoupon {
	t.Helper()

	coupon, err := database.Queries.CreateUserCoupon(context.Background(), store.CreateUserCouponParams{
		ID:         id,
		UserID:     userID,
		CampaignID: campaignID,
	})
	if err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

// FixedClock is a Clock pinned to a settable instant.
type FixedClock struct {
	Instant time.Time
}

func (c *FixedClock) Now() time.Time { return c.Instant }

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.Instant = c.Instant.Add(d) }
