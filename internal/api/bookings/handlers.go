// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/api/apiutil"
	"github.com/tmango-lab/fieldbooking/internal/booking"
	appdb "github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/promo"
	"github.com/tmango-lab/fieldbooking/internal/ratelimit"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

var (
	manager     *booking.Manager
	queries     *store.Queries
	limiter     *ratelimit.Limiter
	handlerOnce sync.Once
)

const bookingQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
// A nil limiter disables rate limiting.
func InitHandlers(database *appdb.DB, m *booking.Manager, l *ratelimit.Limiter) {
	if database == nil || m == nil {
		return
	}
	handlerOnce.Do(func() {
		queries = database.Queries
		manager = m
		limiter = l
	})
}

type createRequest struct {
	UserID          string `json:"user_id"`
	FieldID         string `json:"field_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	CouponID        string `json:"coupon_id,omitempty"`
}

type bookingResponse struct {
	ID              string  `json:"id"`
	FieldID         string  `json:"field_id"`
	UserID          string  `json:"user_id"`
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationMinutes int     `json:"duration_minutes"`
	TotalPrice      int64   `json:"total_price"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"payment_status"`
	CouponID        *string `json:"coupon_id,omitempty"`
	ExpiresAt       string  `json:"expires_at"`
}

func toResponse(b store.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		FieldID:         b.FieldID,
		UserID:          b.UserID,
		Date:            b.BookingDate,
		StartTime:       apiutil.FormatClockMinute(b.StartMinute),
		EndTime:         apiutil.FormatClockMinute(b.StartMinute + b.DurationMinutes),
		DurationMinutes: b.DurationMinutes,
		TotalPrice:      b.TotalPrice,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		CouponID:        b.CouponID,
		ExpiresAt:       b.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// POST /api/v1/bookings
func HandleBookingCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if manager == nil {
		logger.Error().Msg("Booking manager not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	startMinute, err := apiutil.ParseClockField(req.StartTime, "start_time")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := apiutil.ParseDateField(req.Date, "date")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if limiter != nil {
		ip := ratelimit.GetClientIP(r, false)
		if result := limiter.CheckBookingCreate(req.UserID, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(req.UserID, ip, result.Reason)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			http.Error(w, "Too many booking attempts", http.StatusTooManyRequests)
			return
		}
		limiter.RecordBookingCreate(req.UserID, ip)
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	created, err := manager.Create(ctx, booking.CreateRequest{
		UserID:          req.UserID,
		FieldID:         req.FieldID,
		BookingDate:     date,
		StartMinute:     startMinute,
		DurationMinutes: req.DurationMinutes,
		CouponID:        req.CouponID,
	})
	if err != nil {
		writeBookingError(w, r, err, "Failed to create booking")
		return
	}

	apiutil.WriteJSON(w, http.StatusCreated, toResponse(created))
}

// GET /api/v1/bookings/{id}
func HandleBookingGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "booking id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	found, err := queries.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Booking not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("booking_id", id).Msg("Failed to load booking")
		http.Error(w, "Failed to load booking", http.StatusInternalServerError)
		return
	}

	apiutil.WriteJSON(w, http.StatusOK, toResponse(found))
}

// POST /api/v1/bookings/{id}/confirm
func HandleBookingConfirm(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "confirm", func(ctx context.Context, id string) error {
		return manager.ConfirmPayment(ctx, id)
	})
}

// POST /api/v1/bookings/{id}/cancel
func HandleBookingCancel(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "cancel", func(ctx context.Context, id string) error {
		return manager.Cancel(ctx, id)
	})
}

func handleTransition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, string) error) {
	logger := log.Ctx(r.Context())
	if manager == nil || queries == nil {
		logger.Error().Msg("Booking manager not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "booking id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	if err := fn(ctx, id); err != nil {
		writeBookingError(w, r, err, "Failed to "+action+" booking")
		return
	}

	updated, err := queries.GetBooking(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str("booking_id", id).Msg("Failed to load booking after transition")
		http.Error(w, "Failed to load booking", http.StatusInternalServerError)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func writeBookingError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var slotErr booking.SlotUnavailableError
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &slotErr):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, promo.ErrCapacityExceeded),
		errors.Is(err, promo.ErrCouponNotEligible),
		errors.Is(err, booking.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
