// internal/booking/manager.go
// Package booking orchestrates the booking lifecycle: creation with conflict
// and coupon checks, payment confirmation, cancellation, and the payment
// timeout sweep. Correctness under concurrent callers relies entirely on the
// store's conditional updates; the manager holds no in-process locks.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/metrics"
	"github.com/tmango-lab/fieldbooking/internal/pricing"
	"github.com/tmango-lab/fieldbooking/internal/promo"
	"github.com/tmango-lab/fieldbooking/internal/schedule"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

const dateLayout = "2006-01-02"

// Clock abstracts time for deadline-dependent logic.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config carries the venue parameters the manager needs.
type Config struct {
	PaymentWindow time.Duration
	CutoffMinute  int
	OpenMinute    int
	CloseMinute   int
	StepMinutes   int
	SearchMode    schedule.SearchMode
}

type Manager struct {
	db    *db.DB
	gate  *promo.Gate
	cfg   Config
	clock Clock
}

func NewManager(database *db.DB, gate *promo.Gate, cfg Config) (*Manager, error) {
	if database == nil {
		return nil, errors.New("booking manager requires a database")
	}
	if gate == nil {
		return nil, errors.New("booking manager requires a coupon gate")
	}
	if cfg.PaymentWindow <= 0 {
		return nil, errors.New("payment window must be positive")
	}
	return &Manager{db: database, gate: gate, cfg: cfg, clock: realClock{}}, nil
}

// WithClock replaces the manager's time source. Intended for tests.
func (m *Manager) WithClock(clock Clock) *Manager {
	m.clock = clock
	return m
}

// CreateRequest describes a booking attempt. CouponID is optional.
type CreateRequest struct {
	UserID          string
	FieldID         string
	BookingDate     string
	StartMinute     int
	DurationMinutes int
	CouponID        string
}

func (m *Manager) validateRequest(req CreateRequest) error {
	if req.UserID == "" || req.FieldID == "" {
		return fmt.Errorf("%w: user and field are required", ErrInvalidRequest)
	}
	if _, err := time.Parse(dateLayout, req.BookingDate); err != nil {
		return fmt.Errorf("%w: booking date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	if req.StartMinute < m.cfg.OpenMinute || req.StartMinute+req.DurationMinutes > m.cfg.CloseMinute {
		return fmt.Errorf("%w: booking falls outside operating hours", ErrInvalidRequest)
	}
	return nil
}

// Create validates the slot, prices it, reserves the coupon when one is
// attached, and persists the booking as pending_payment with a payment
// deadline. The conflict check, coupon reservation, and insert share one
// transaction: a denial at any step leaves no partial state behind.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (store.Booking, error) {
	if err := m.validateRequest(req); err != nil {
		return store.Booking{}, err
	}

	now := m.clock.Now()
	bookingID := uuid.New().String()
	var created store.Booking

	err := m.db.RunInTx(ctx, func(txdb *db.DB) error {
		q := txdb.Queries

		field, err := q.GetField(ctx, req.FieldID)
		if err != nil {
			return fmt.Errorf("field %s: %w", req.FieldID, err)
		}

		existing, err := q.ListActiveBookingsForField(ctx, req.FieldID, req.BookingDate)
		if err != nil {
			return err
		}
		intervals := make([]schedule.Interval, len(existing))
		for i, b := range existing {
			intervals[i] = schedule.Interval{Start: b.StartMinute, End: b.StartMinute + b.DurationMinutes}
		}
		if schedule.HasConflict(req.StartMinute, req.DurationMinutes, intervals) {
			return SlotUnavailableError{
				FieldID:     req.FieldID,
				BookingDate: req.BookingDate,
				StartMinute: req.StartMinute,
			}
		}

		total := pricing.Compute(field.PreRate, field.PostRate, m.cfg.CutoffMinute, req.StartMinute, req.DurationMinutes)

		var couponID *string
		if req.CouponID != "" {
			reservation, err := m.gate.Reserve(ctx, q, req.CouponID, req.UserID, bookingID, now)
			if err != nil {
				return err
			}
			total = reservation.Benefit.Apply(total)
			couponID = &reservation.Coupon.ID
		}

		created, err = q.CreateBooking(ctx, store.CreateBookingParams{
			ID:              bookingID,
			FieldID:         req.FieldID,
			UserID:          req.UserID,
			BookingDate:     req.BookingDate,
			StartMinute:     req.StartMinute,
			DurationMinutes: req.DurationMinutes,
			TotalPrice:      total,
			CouponID:        couponID,
			ExpiresAt:       now.Add(m.cfg.PaymentWindow),
		})
		return err
	})
	if err != nil {
		return store.Booking{}, err
	}

	metrics.IncBookingTransition("created")
	log.Ctx(ctx).Info().
		Str("booking_id", created.ID).
		Str("field_id", created.FieldID).
		Str("date", created.BookingDate).
		Int("start_minute", created.StartMinute).
		Int64("total_price", created.TotalPrice).
		Bool("coupon", created.CouponID != nil).
		Msg("Booking created")
	return created, nil
}

// ConfirmPayment moves a pending booking to confirmed. Confirming an
// already-confirmed booking is a no-op; confirming a cancelled booking
// returns ErrInvalidTransition. The coupon, if any, stays consumed.
func (m *Manager) ConfirmPayment(ctx context.Context, bookingID string) error {
	now := m.clock.Now()
	applied, err := m.db.Queries.TransitionBookingStatus(ctx, store.TransitionBookingParams{
		ID:            bookingID,
		FromStatus:    store.BookingStatusPendingPayment,
		ToStatus:      store.BookingStatusConfirmed,
		PaymentStatus: store.PaymentStatusPaid,
	}, now)
	if err != nil {
		return err
	}
	if !applied {
		current, err := m.db.Queries.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if current.Status == store.BookingStatusConfirmed {
			return nil
		}
		return fmt.Errorf("confirm booking %s in status %s: %w", bookingID, current.Status, ErrInvalidTransition)
	}

	metrics.IncBookingTransition("confirmed")
	log.Ctx(ctx).Info().Str("booking_id", bookingID).Msg("Booking confirmed")
	return nil
}

// Cancel moves a pending booking to cancelled and releases its coupon.
// Repeated cancels are no-ops; cancelling a confirmed booking returns
// ErrInvalidTransition and never touches the coupon or counter.
func (m *Manager) Cancel(ctx context.Context, bookingID string) error {
	released, err := m.release(ctx, bookingID, m.clock.Now())
	if err != nil {
		return err
	}
	if !released {
		current, err := m.db.Queries.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if current.Status == store.BookingStatusCancelled {
			return nil
		}
		return fmt.Errorf("cancel booking %s in status %s: %w", bookingID, current.Status, ErrInvalidTransition)
	}

	metrics.IncBookingTransition("cancelled")
	log.Ctx(ctx).Info().Str("booking_id", bookingID).Msg("Booking cancelled")
	return nil
}

// ExpireTimeouts sweeps pending bookings whose payment deadline has passed,
// cancelling each and releasing its coupon. Safe to run concurrently with
// itself and with ConfirmPayment: every transition is a compare-and-swap,
// so whichever side commits first wins and the other is a no-op. Returns the
// number of bookings it expired.
func (m *Manager) ExpireTimeouts(ctx context.Context) (int, error) {
	now := m.clock.Now()
	expired, err := m.db.Queries.ListExpiredPendingBookings(ctx, now)
	if err != nil {
		return 0, err
	}

	logger := log.Ctx(ctx)
	count := 0
	for _, b := range expired {
		released, err := m.release(ctx, b.ID, now)
		if err != nil {
			logger.Error().Err(err).Str("booking_id", b.ID).Msg("Failed to expire booking")
			continue
		}
		if !released {
			// Confirmed or already swept between the list and the update.
			continue
		}
		count++
		metrics.IncBookingTransition("expired")
		logger.Info().Str("booking_id", b.ID).Time("expired_at", b.ExpiresAt).Msg("Booking expired")
	}
	return count, nil
}

// release performs the cancel transition and the coupon release in one
// transaction. It reports whether the transition applied; false means the
// booking was not in pending_payment anymore.
func (m *Manager) release(ctx context.Context, bookingID string, now time.Time) (bool, error) {
	var applied bool
	err := m.db.RunInTx(ctx, func(txdb *db.DB) error {
		q := txdb.Queries

		current, err := q.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		applied, err = q.TransitionBookingStatus(ctx, store.TransitionBookingParams{
			ID:            bookingID,
			FromStatus:    store.BookingStatusPendingPayment,
			ToStatus:      store.BookingStatusCancelled,
			PaymentStatus: current.PaymentStatus,
		}, now)
		if err != nil {
			return err
		}
		if !applied || current.CouponID == nil {
			return nil
		}
		return m.gate.Release(ctx, q, *current.CouponID, bookingID, now)
	})
	return applied && err == nil, err
}
