// internal/api/campaigns/handlers.go
package campaigns

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/api/apiutil"
	appdb "github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/promo"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

var (
	queries     *store.Queries
	gate        *promo.Gate
	handlerOnce sync.Once
)

const campaignQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, g *promo.Gate) {
	if database == nil || g == nil {
		return
	}
	handlerOnce.Do(func() {
		queries = database.Queries
		gate = g
	})
}

type createCampaignRequest struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	RedemptionLimit *int64 `json:"redemption_limit,omitempty"`
	LimitPerUser    int64  `json:"limit_per_user"`
	BenefitType     string `json:"benefit_type"`
	BenefitValue    int64  `json:"benefit_value"`
	StartsAt        string `json:"starts_at,omitempty"`
	EndsAt          string `json:"ends_at,omitempty"`
}

type campaignResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	RedemptionCount int64  `json:"redemption_count"`
	RedemptionLimit *int64 `json:"redemption_limit,omitempty"`
	LimitPerUser    int64  `json:"limit_per_user"`
	BenefitType     string `json:"benefit_type"`
	BenefitValue    int64  `json:"benefit_value"`
	StartsAt        string `json:"starts_at,omitempty"`
	EndsAt          string `json:"ends_at,omitempty"`
}

func toResponse(c store.Campaign) campaignResponse {
	resp := campaignResponse{
		ID:              c.ID,
		Name:            c.Name,
		Status:          c.Status,
		RedemptionCount: c.RedemptionCount,
		RedemptionLimit: c.RedemptionLimit,
		LimitPerUser:    c.LimitPerUser,
		BenefitType:     c.BenefitType,
		BenefitValue:    c.BenefitValue,
	}
	if c.StartsAt != nil {
		resp.StartsAt = c.StartsAt.UTC().Format(time.RFC3339)
	}
	if c.EndsAt != nil {
		resp.EndsAt = c.EndsAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func parseOptionalTime(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apiutil.FieldError{Field: field, Reason: "must be an RFC3339 timestamp"}
	}
	utc := parsed.UTC()
	return &utc, nil
}

// POST /api/v1/campaigns
func HandleCampaignCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req createCampaignRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.BenefitType != store.BenefitTypeFixed && req.BenefitType != store.BenefitTypePercent {
		http.Error(w, "benefit_type must be fixed or percent", http.StatusBadRequest)
		return
	}
	if req.RedemptionLimit != nil && *req.RedemptionLimit < 0 {
		http.Error(w, "redemption_limit must be 0 or greater", http.StatusBadRequest)
		return
	}

	startsAt, err := parseOptionalTime(req.StartsAt, "starts_at")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	endsAt, err := parseOptionalTime(req.EndsAt, "ends_at")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	limitPerUser := req.LimitPerUser
	if limitPerUser <= 0 {
		limitPerUser = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), campaignQueryTimeout)
	defer cancel()

	campaign, err := queries.CreateCampaign(ctx, store.CreateCampaignParams{
		ID:              id,
		Name:            req.Name,
		RedemptionLimit: req.RedemptionLimit,
		LimitPerUser:    limitPerUser,
		BenefitType:     req.BenefitType,
		BenefitValue:    req.BenefitValue,
		StartsAt:        startsAt,
		EndsAt:          endsAt,
	})
	if err != nil {
		logger.Error().Err(err).Str("campaign_id", id).Msg("Failed to create campaign")
		http.Error(w, "Failed to create campaign", http.StatusInternalServerError)
		return
	}

	apiutil.WriteJSON(w, http.StatusCreated, toResponse(campaign))
}

// GET /api/v1/campaigns/{id}
func HandleCampaignGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "campaign id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), campaignQueryTimeout)
	defer cancel()

	campaign, err := queries.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Campaign not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("campaign_id", id).Msg("Failed to load campaign")
		http.Error(w, "Failed to load campaign", http.StatusInternalServerError)
		return
	}

	apiutil.WriteJSON(w, http.StatusOK, toResponse(campaign))
}

type issueCouponRequest struct {
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`
}

type couponResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
}

// POST /api/v1/coupons
func HandleCouponIssue(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if gate == nil {
		logger.Error().Msg("Coupon gate not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req issueCouponRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.CampaignID == "" {
		http.Error(w, "user_id and campaign_id are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), campaignQueryTimeout)
	defer cancel()

	coupon, err := gate.IssueCoupon(ctx, req.UserID, req.CampaignID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "Campaign not found", http.StatusNotFound)
		case errors.Is(err, promo.ErrCouponNotEligible):
			http.Error(w, "Campaign is not open for coupons", http.StatusConflict)
		case errors.Is(err, promo.ErrIssueLimitReached):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			logger.Error().Err(err).Str("campaign_id", req.CampaignID).Msg("Failed to issue coupon")
			http.Error(w, "Failed to issue coupon", http.StatusInternalServerError)
		}
		return
	}

	apiutil.WriteJSON(w, http.StatusCreated, couponResponse{
		ID:         coupon.ID,
		UserID:     coupon.UserID,
		CampaignID: coupon.CampaignID,
		Status:     coupon.Status,
	})
}
