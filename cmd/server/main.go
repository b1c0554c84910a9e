// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tmango-lab/fieldbooking/internal/booking"
	"github.com/tmango-lab/fieldbooking/internal/config"
	"github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/metrics"
	"github.com/tmango-lab/fieldbooking/internal/promo"
	"github.com/tmango-lab/fieldbooking/internal/schedule"
	"github.com/tmango-lab/fieldbooking/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	if path, ok := os.LookupEnv("CONFIG_PATH"); ok && path != "" {
		return config.Load(path)
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func buildManager(cfg *config.Config, database *db.DB, gate *promo.Gate) (*booking.Manager, error) {
	openMinute, err := cfg.OpenMinute()
	if err != nil {
		return nil, err
	}
	closeMinute, err := cfg.CloseMinute()
	if err != nil {
		return nil, err
	}
	cutoffMinute, err := cfg.CutoffMinute()
	if err != nil {
		return nil, err
	}
	return booking.NewManager(database, gate, booking.Config{
		PaymentWindow: time.Duration(cfg.Booking.PaymentTimeoutMinutes) * time.Minute,
		CutoffMinute:  cutoffMinute,
		OpenMinute:    openMinute,
		CloseMinute:   closeMinute,
		StepMinutes:   cfg.Booking.StepMinutes,
		SearchMode:    schedule.SearchMode(cfg.Booking.SlotSearch),
	})
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	if cfg.Features.EnableMetrics {
		metrics.Register()
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	gate, err := promo.NewGate(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create coupon gate")
	}
	manager, err := buildManager(cfg, database, gate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create booking manager")
	}

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterExpiryJob(manager); err != nil {
		log.Fatal().Err(err).Msg("Failed to register expiry job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	server, err := newServer(cfg, database, gate, manager)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build server")
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
