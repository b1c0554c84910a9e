// internal/store/campaigns.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	CampaignStatusActive   = "ACTIVE"
	CampaignStatusInactive = "INACTIVE"

	BenefitTypeFixed   = "fixed"
	BenefitTypePercent = "percent"
)

// Campaign is a promotional offer with a shared redemption counter. A nil
// RedemptionLimit means unlimited.
type Campaign struct {
	ID              string
	Name            string
	Status          string
	RedemptionCount int64
	RedemptionLimit *int64
	LimitPerUser    int64
	BenefitType     string
	BenefitValue    int64
	StartsAt        *time.Time
	EndsAt          *time.Time
}

type CreateCampaignParams struct {
	ID              string
	Name            string
	RedemptionLimit *int64
	LimitPerUser    int64
	BenefitType     string
	BenefitValue    int64
	StartsAt        *time.Time
	EndsAt          *time.Time
}

func (q *Queries) CreateCampaign(ctx context.Context, arg CreateCampaignParams) (Campaign, error) {
	limit := sql.NullInt64{}
	if arg.RedemptionLimit != nil {
		limit = sql.NullInt64{Int64: *arg.RedemptionLimit, Valid: true}
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, status, redemption_limit, limit_per_user, benefit_type, benefit_value, starts_at, ends_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.Name, CampaignStatusActive, limit, arg.LimitPerUser,
		arg.BenefitType, arg.BenefitValue, formatNullTime(arg.StartsAt), formatNullTime(arg.EndsAt),
	)
	if err != nil {
		return Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	return q.GetCampaign(ctx, arg.ID)
}

func (q *Queries) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	var campaign Campaign
	var limit sql.NullInt64
	var startsAt, endsAt sql.NullString
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, status, redemption_count, redemption_limit, limit_per_user, benefit_type, benefit_value, starts_at, ends_at
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&campaign.ID, &campaign.Name, &campaign.Status, &campaign.RedemptionCount,
		&limit, &campaign.LimitPerUser, &campaign.BenefitType, &campaign.BenefitValue,
		&startsAt, &endsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	if limit.Valid {
		campaign.RedemptionLimit = &limit.Int64
	}
	if campaign.StartsAt, err = parseNullTime(startsAt); err != nil {
		return Campaign{}, err
	}
	if campaign.EndsAt, err = parseNullTime(endsAt); err != nil {
		return Campaign{}, err
	}
	return campaign, nil
}

// ReserveCampaignSlot increments the campaign's redemption counter if the
// campaign is active, inside its validity window, and below its redemption
// limit. The check and the increment are a single UPDATE statement so two
// callers racing for the last slot can never both win; the returned bool is
// the RowsAffected signal.
func (q *Queries) ReserveCampaignSlot(ctx context.Context, id string, now time.Time) (bool, error) {
	ts := formatTime(now)
	result, err := q.db.ExecContext(ctx,
		`UPDATE campaigns
		 SET redemption_count = redemption_count + 1, updated_at = ?
		 WHERE id = ?
		   AND status = ?
		   AND (starts_at IS NULL OR starts_at <= ?)
		   AND (ends_at IS NULL OR ends_at >= ?)
		   AND (redemption_limit IS NULL OR redemption_count < redemption_limit)`,
		ts, id, CampaignStatusActive, ts, ts,
	)
	if err != nil {
		return false, fmt.Errorf("reserve campaign slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve campaign slot: %w", err)
	}
	return rows > 0, nil
}

// ReleaseCampaignSlot decrements the redemption counter, flooring at zero.
func (q *Queries) ReleaseCampaignSlot(ctx context.Context, id string, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE campaigns
		 SET redemption_count = MAX(redemption_count - 1, 0), updated_at = ?
		 WHERE id = ?`,
		formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("release campaign slot: %w", err)
	}
	return nil
}
