// internal/store/coupons.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	CouponStatusActive  = "ACTIVE"
	CouponStatusUsed    = "USED"
	CouponStatusExpired = "EXPIRED"
)

// UserCoupon is a per-user claim against a campaign, consumable once. A USED
// coupon carries the booking that consumed it until the booking is released.
type UserCoupon struct {
	ID         string
	UserID     string
	CampaignID string
	Status     string
	BookingID  *string
	UsedAt     *time.Time
}

type CreateUserCouponParams struct {
	ID         string
	UserID     string
	CampaignID string
}

func (q *Queries) CreateUserCoupon(ctx context.Context, arg CreateUserCouponParams) (UserCoupon, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO user_coupons (id, user_id, campaign_id, status) VALUES (?, ?, ?, ?)`,
		arg.ID, arg.UserID, arg.CampaignID, CouponStatusActive,
	)
	if err != nil {
		return UserCoupon{}, fmt.Errorf("create user coupon: %w", err)
	}
	return UserCoupon{
		ID:         arg.ID,
		UserID:     arg.UserID,
		CampaignID: arg.CampaignID,
		Status:     CouponStatusActive,
	}, nil
}

func (q *Queries) GetUserCoupon(ctx context.Context, id string) (UserCoupon, error) {
	var coupon UserCoupon
	var bookingID sql.NullString
	var usedAt sql.NullString
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, campaign_id, status, booking_id, used_at
		 FROM user_coupons WHERE id = ?`, id,
	).Scan(&coupon.ID, &coupon.UserID, &coupon.CampaignID, &coupon.Status, &bookingID, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserCoupon{}, ErrNotFound
	}
	if err != nil {
		return UserCoupon{}, fmt.Errorf("get user coupon: %w", err)
	}
	if bookingID.Valid {
		coupon.BookingID = &bookingID.String
	}
	if coupon.UsedAt, err = parseNullTime(usedAt); err != nil {
		return UserCoupon{}, err
	}
	return coupon, nil
}

// CountUserCouponsForCampaign counts a user's coupons against one campaign
// regardless of status, for the per-user issuance cap.
func (q *Queries) CountUserCouponsForCampaign(ctx context.Context, userID, campaignID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_coupons WHERE user_id = ? AND campaign_id = ?`,
		userID, campaignID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user coupons: %w", err)
	}
	return count, nil
}

// MarkCouponUsed moves a coupon ACTIVE -> USED, binding it to a booking.
// The status guard makes concurrent consumers race on a single UPDATE.
func (q *Queries) MarkCouponUsed(ctx context.Context, id, bookingID string, usedAt time.Time) (bool, error) {
	ts := formatTime(usedAt)
	result, err := q.db.ExecContext(ctx,
		`UPDATE user_coupons
		 SET status = ?, booking_id = ?, used_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		CouponStatusUsed, bookingID, ts, ts, id, CouponStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("mark coupon used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark coupon used: %w", err)
	}
	return rows > 0, nil
}

// ReleaseCoupon reverts a coupon USED -> ACTIVE, clearing the booking link
// and the used_at stamp. It only applies when the coupon is still bound to
// the given booking, so concurrent sweeps release it at most once.
func (q *Queries) ReleaseCoupon(ctx context.Context, id, bookingID string, now time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE user_coupons
		 SET status = ?, booking_id = NULL, used_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND booking_id = ?`,
		CouponStatusActive, formatTime(now), id, CouponStatusUsed, bookingID,
	)
	if err != nil {
		return false, fmt.Errorf("release coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release coupon: %w", err)
	}
	return rows > 0, nil
}
