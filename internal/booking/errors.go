// internal/booking/errors.go
package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a status change is requested
	// from a state that does not allow it (for example cancelling a
	// confirmed booking). Idempotent re-runs of the same transition are
	// no-ops, not errors.
	ErrInvalidTransition = errors.New("invalid booking status transition")
	// ErrInvalidRequest covers malformed booking requests: bad date, zero
	// duration, times outside the operating window.
	ErrInvalidRequest = errors.New("invalid booking request")
)

// SlotUnavailableError reports a conflict with an existing booking. The
// caller can retry with a different time.
type SlotUnavailableError struct {
	FieldID     string
	BookingDate string
	StartMinute int
}

func (e SlotUnavailableError) Error() string {
	return fmt.Sprintf("field %s has no free slot at %02d:%02d on %s",
		e.FieldID, e.StartMinute/60, e.StartMinute%60, e.BookingDate)
}
