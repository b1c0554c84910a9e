// internal/promo/gate.go
// Package promo serializes concurrent coupon redemptions against a
// campaign's fixed capacity. All contention is pushed down to conditional
// UPDATE statements; the gate itself holds no state and takes no locks.
package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/metrics"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

var (
	// ErrCapacityExceeded means the campaign has no redemption slots left.
	// Recoverable: the caller may retry without the coupon.
	ErrCapacityExceeded = errors.New("campaign redemption limit reached")
	// ErrCouponNotEligible means the coupon is not ACTIVE, belongs to a
	// different user, or its campaign is outside its validity window.
	ErrCouponNotEligible = errors.New("coupon not eligible for redemption")
	// ErrIssueLimitReached means the user already holds the campaign's
	// per-user maximum of coupons.
	ErrIssueLimitReached = errors.New("per-user coupon limit reached")
)

type Gate struct {
	db *db.DB
}

func NewGate(database *db.DB) (*Gate, error) {
	if database == nil {
		return nil, errors.New("coupon gate requires a database")
	}
	return &Gate{db: database}, nil
}

// Reservation is the result of a granted redemption: the consumed coupon and
// the benefit its campaign confers.
type Reservation struct {
	Coupon  store.UserCoupon
	Benefit Benefit
}

// Reserve atomically consumes one redemption slot of the coupon's campaign
// and moves the coupon ACTIVE -> USED, bound to bookingID. It runs against
// the caller's transaction-bound queries so the coupon mutation commits or
// rolls back together with the booking row.
//
// Any storage failure is returned as an error and the reservation is treated
// as not granted; the gate never assumes success.
func (g *Gate) Reserve(ctx context.Context, q *store.Queries, couponID, userID, bookingID string, now time.Time) (*Reservation, error) {
	coupon, err := q.GetUserCoupon(ctx, couponID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("coupon %s: %w", couponID, err)
		}
		return nil, fmt.Errorf("load coupon: %w", err)
	}
	if coupon.UserID != userID || coupon.Status != store.CouponStatusActive {
		metrics.IncCouponReservation("denied")
		return nil, ErrCouponNotEligible
	}

	campaign, err := q.GetCampaign(ctx, coupon.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", coupon.CampaignID, err)
	}
	benefit, err := BenefitFromCampaign(campaign)
	if err != nil {
		return nil, err
	}

	// The capacity check and the increment are one statement at the storage
	// layer. A read-then-write here would reintroduce the race this gate
	// exists to prevent.
	granted, err := q.ReserveCampaignSlot(ctx, campaign.ID, now)
	if err != nil {
		metrics.IncCouponReservation("denied")
		return nil, fmt.Errorf("reserve campaign slot: %w", err)
	}
	if !granted {
		metrics.IncCouponReservation("denied")
		if !campaignWindowOpen(campaign, now) || campaign.Status != store.CampaignStatusActive {
			return nil, ErrCouponNotEligible
		}
		return nil, ErrCapacityExceeded
	}

	applied, err := q.MarkCouponUsed(ctx, coupon.ID, bookingID, now)
	if err != nil {
		return nil, fmt.Errorf("mark coupon used: %w", err)
	}
	if !applied {
		// Another transaction consumed this coupon between our read and the
		// update. The enclosing transaction rolls the counter back.
		metrics.IncCouponReservation("denied")
		return nil, ErrCouponNotEligible
	}

	metrics.IncCouponReservation("granted")
	coupon.Status = store.CouponStatusUsed
	coupon.BookingID = &bookingID
	usedAt := now.UTC().Truncate(time.Second)
	coupon.UsedAt = &usedAt
	return &Reservation{Coupon: coupon, Benefit: benefit}, nil
}

// Release reverts a consumed coupon and returns its campaign slot. The
// coupon update only applies while the coupon is still bound to bookingID,
// and the counter is decremented only when that update applied, so
// concurrent releases for the same booking net out to exactly one.
func (g *Gate) Release(ctx context.Context, q *store.Queries, couponID, bookingID string, now time.Time) error {
	coupon, err := q.GetUserCoupon(ctx, couponID)
	if err != nil {
		return fmt.Errorf("load coupon: %w", err)
	}

	applied, err := q.ReleaseCoupon(ctx, couponID, bookingID, now)
	if err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}
	if !applied {
		log.Ctx(ctx).Debug().
			Str("coupon_id", couponID).
			Str("booking_id", bookingID).
			Msg("Coupon already released")
		return nil
	}

	if err := q.ReleaseCampaignSlot(ctx, coupon.CampaignID, now); err != nil {
		return fmt.Errorf("release campaign slot: %w", err)
	}
	return nil
}

// IssueCoupon creates a new ACTIVE coupon for the user, enforcing the
// campaign's per-user cap inside one transaction so concurrent requests
// cannot over-issue.
func (g *Gate) IssueCoupon(ctx context.Context, userID, campaignID string, now time.Time) (store.UserCoupon, error) {
	var coupon store.UserCoupon
	err := g.db.RunInTx(ctx, func(txdb *db.DB) error {
		campaign, err := txdb.Queries.GetCampaign(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("load campaign %s: %w", campaignID, err)
		}
		if campaign.Status != store.CampaignStatusActive || !campaignWindowOpen(campaign, now) {
			return ErrCouponNotEligible
		}

		held, err := txdb.Queries.CountUserCouponsForCampaign(ctx, userID, campaignID)
		if err != nil {
			return err
		}
		if campaign.LimitPerUser > 0 && held >= campaign.LimitPerUser {
			return ErrIssueLimitReached
		}

		coupon, err = txdb.Queries.CreateUserCoupon(ctx, store.CreateUserCouponParams{
			ID:         uuid.New().String(),
			UserID:     userID,
			CampaignID: campaignID,
		})
		return err
	})
	if err != nil {
		return store.UserCoupon{}, err
	}

	log.Ctx(ctx).Info().
		Str("coupon_id", coupon.ID).
		Str("campaign_id", campaignID).
		Str("user_id", userID).
		Msg("Issued coupon")
	return coupon, nil
}

func campaignWindowOpen(campaign store.Campaign, now time.Time) bool {
	if campaign.StartsAt != nil && now.Before(*campaign.StartsAt) {
		return false
	}
	if campaign.EndsAt != nil && now.After(*campaign.EndsAt) {
		return false
	}
	return true
}
