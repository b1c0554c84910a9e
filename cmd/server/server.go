// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmango-lab/fieldbooking/internal/api"
	"github.com/tmango-lab/fieldbooking/internal/api/availability"
	"github.com/tmango-lab/fieldbooking/internal/api/bookings"
	"github.com/tmango-lab/fieldbooking/internal/api/campaigns"
	"github.com/tmango-lab/fieldbooking/internal/api/fields"
	"github.com/tmango-lab/fieldbooking/internal/booking"
	"github.com/tmango-lab/fieldbooking/internal/config"
	"github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/promo"
	"github.com/tmango-lab/fieldbooking/internal/ratelimit"
	"github.com/tmango-lab/fieldbooking/internal/schedule"
)

func newServer(cfg *config.Config, database *db.DB, gate *promo.Gate, manager *booking.Manager) (*http.Server, error) {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	if err := registerRoutes(router, cfg, database, gate, manager); err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, database *db.DB, gate *promo.Gate, manager *booking.Manager) error {
	openMinute, err := cfg.OpenMinute()
	if err != nil {
		return err
	}
	closeMinute, err := cfg.CloseMinute()
	if err != nil {
		return err
	}
	cutoffMinute, err := cfg.CutoffMinute()
	if err != nil {
		return err
	}

	var limiter *ratelimit.Limiter
	if cfg.Features.EnableRateLimit {
		limiter = ratelimit.New(nil)
	}

	bookings.InitHandlers(database, manager, limiter)
	campaigns.InitHandlers(database, gate)
	fields.InitHandlers(database, cutoffMinute)
	availability.InitHandlers(database, availability.Config{
		OpenMinute:  openMinute,
		CloseMinute: closeMinute,
		StepMinutes: cfg.Booking.StepMinutes,
		SearchMode:  schedule.SearchMode(cfg.Booking.SlotSearch),
	})

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.Features.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	// Booking lifecycle
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleBookingCreate)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookings.HandleBookingGet)
	mux.HandleFunc("POST /api/v1/bookings/{id}/confirm", bookings.HandleBookingConfirm)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookings.HandleBookingCancel)

	// Slots and pricing
	mux.HandleFunc("GET /api/v1/availability", availability.HandleAvailability)
	mux.HandleFunc("GET /api/v1/pricing/quote", fields.HandleQuote)
	mux.HandleFunc("POST /api/v1/fields", fields.HandleFieldCreate)
	mux.HandleFunc("GET /api/v1/fields", fields.HandleFieldList)

	// Campaigns and coupons
	mux.HandleFunc("POST /api/v1/campaigns", campaigns.HandleCampaignCreate)
	mux.HandleFunc("GET /api/v1/campaigns/{id}", campaigns.HandleCampaignGet)
	mux.HandleFunc("POST /api/v1/coupons", campaigns.HandleCouponIssue)

	return nil
}
