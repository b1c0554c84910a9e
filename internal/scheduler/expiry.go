package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/booking"
)

const expiryJobTimeout = 2 * time.Minute

// RegisterExpiryJob schedules the payment-timeout sweep. The job runs every
// minute in singleton mode so overlapping sweeps queue instead of racing;
// the sweep itself is idempotent either way.
func RegisterExpiryJob(manager *booking.Manager) error {
	if manager == nil {
		return fmt.Errorf("expiry job requires booking manager")
	}

	jobName := "booking_payment_expiry"
	cronExpr := "* * * * *"
	jobLogger := log.With().
		Str("component", "booking_expiry_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), expiryJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		expired, err := manager.ExpireTimeouts(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Payment expiry sweep failed")
			return
		}
		if expired > 0 {
			jobLogger.Info().Int("expired", expired).Msg("Released unpaid bookings")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add booking expiry job: %w", err)
	}

	jobLogger.Info().Msg("Booking expiry job registered")
	return nil
}
