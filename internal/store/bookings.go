// internal/store/bookings.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	BookingStatusPendingPayment = "pending_payment"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusCancelled      = "cancelled"

	PaymentStatusPending     = "pending"
	PaymentStatusPaid        = "paid"
	PaymentStatusDepositPaid = "deposit_paid"
	PaymentStatusFailed      = "failed"
)

// Booking rows are never deleted by the normal lifecycle; cancellation is a
// status change.
type Booking struct {
	ID              string
	FieldID         string
	UserID          string
	BookingDate     string
	StartMinute     int
	DurationMinutes int
	TotalPrice      int64
	Status          string
	PaymentStatus   string
	CouponID        *string
	ExpiresAt       time.Time
}

type CreateBookingParams struct {
	ID              string
	FieldID         string
	UserID          string
	BookingDate     string
	StartMinute     int
	DurationMinutes int
	TotalPrice      int64
	CouponID        *string
	ExpiresAt       time.Time
}

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	couponID := sql.NullString{}
	if arg.CouponID != nil {
		couponID = sql.NullString{String: *arg.CouponID, Valid: true}
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO bookings (id, field_id, user_id, booking_date, start_minute, duration_minutes, total_price, status, payment_status, coupon_id, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.FieldID, arg.UserID, arg.BookingDate, arg.StartMinute, arg.DurationMinutes,
		arg.TotalPrice, BookingStatusPendingPayment, PaymentStatusPending, couponID, formatTime(arg.ExpiresAt),
	)
	if err != nil {
		return Booking{}, fmt.Errorf("create booking: %w", err)
	}
	return Booking{
		ID:              arg.ID,
		FieldID:         arg.FieldID,
		UserID:          arg.UserID,
		BookingDate:     arg.BookingDate,
		StartMinute:     arg.StartMinute,
		DurationMinutes: arg.DurationMinutes,
		TotalPrice:      arg.TotalPrice,
		Status:          BookingStatusPendingPayment,
		PaymentStatus:   PaymentStatusPending,
		CouponID:        arg.CouponID,
		ExpiresAt:       arg.ExpiresAt.UTC().Truncate(time.Second),
	}, nil
}

const bookingColumns = `id, field_id, user_id, booking_date, start_minute, duration_minutes, total_price, status, payment_status, coupon_id, expires_at`

func scanBooking(row interface{ Scan(...any) error }) (Booking, error) {
	var booking Booking
	var couponID sql.NullString
	var expiresAt string
	err := row.Scan(&booking.ID, &booking.FieldID, &booking.UserID, &booking.BookingDate,
		&booking.StartMinute, &booking.DurationMinutes, &booking.TotalPrice,
		&booking.Status, &booking.PaymentStatus, &couponID, &expiresAt)
	if err != nil {
		return Booking{}, err
	}
	if couponID.Valid {
		booking.CouponID = &couponID.String
	}
	if booking.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return Booking{}, err
	}
	return booking, nil
}

func (q *Queries) GetBooking(ctx context.Context, id string) (Booking, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// ListActiveBookingsForField returns the non-cancelled bookings for one
// field and date, ordered by start time. Cancelled rows are excluded here so
// conflict checks never see them.
func (q *Queries) ListActiveBookingsForField(ctx context.Context, fieldID, bookingDate string) ([]Booking, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE field_id = ? AND booking_date = ? AND status != ?
		 ORDER BY start_minute`,
		fieldID, bookingDate, BookingStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// ListExpiredPendingBookings returns pending-payment bookings whose payment
// deadline has passed.
func (q *Queries) ListExpiredPendingBookings(ctx context.Context, now time.Time) ([]Booking, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status = ? AND expires_at <= ?
		 ORDER BY expires_at`,
		BookingStatusPendingPayment, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

type TransitionBookingParams struct {
	ID            string
	FromStatus    string
	ToStatus      string
	PaymentStatus string
}

// TransitionBookingStatus applies a status change only when the booking is
// still in FromStatus. Whichever of two racing transitions commits first
// wins; the loser sees false.
func (q *Queries) TransitionBookingStatus(ctx context.Context, arg TransitionBookingParams, now time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		arg.ToStatus, arg.PaymentStatus, formatTime(now), arg.ID, arg.FromStatus,
	)
	if err != nil {
		return false, fmt.Errorf("transition booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition booking status: %w", err)
	}
	return rows > 0, nil
}
