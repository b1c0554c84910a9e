// internal/api/availability/handlers.go
package availability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/api/apiutil"
	appdb "github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/schedule"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

// Config carries the venue's operating window and search settings.
type Config struct {
	OpenMinute  int
	CloseMinute int
	StepMinutes int
	SearchMode  schedule.SearchMode
}

var (
	queries     *store.Queries
	cfg         Config
	handlerOnce sync.Once
)

const availabilityQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, c Config) {
	if database == nil {
		return
	}
	handlerOnce.Do(func() {
		queries = database.Queries
		cfg = c
	})
}

type availabilityResponse struct {
	FieldID         string   `json:"field_id"`
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	FreeSlots       []string `json:"free_slots"`
}

// GET /api/v1/availability?field_id=F1&date=2026-08-30&duration_minutes=60
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	fieldID, err := apiutil.RequiredQueryParam(r, "field_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := apiutil.ParseDateField(r.URL.Query().Get("date"), "date")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	duration, err := apiutil.ParsePositiveIntField(r.URL.Query().Get("duration_minutes"), "duration_minutes")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTimeout)
	defer cancel()

	if _, err := queries.GetField(ctx, fieldID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Field not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("field_id", fieldID).Msg("Failed to load field")
		http.Error(w, "Failed to load field", http.StatusInternalServerError)
		return
	}

	existing, err := queries.ListActiveBookingsForField(ctx, fieldID, date)
	if err != nil {
		logger.Error().Err(err).Str("field_id", fieldID).Msg("Failed to load bookings")
		http.Error(w, "Failed to load bookings", http.StatusInternalServerError)
		return
	}

	intervals := make([]schedule.Interval, len(existing))
	for i, b := range existing {
		intervals[i] = schedule.Interval{Start: b.StartMinute, End: b.StartMinute + b.DurationMinutes}
	}
	starts := schedule.FindFreeSlots(intervals, cfg.OpenMinute, cfg.CloseMinute, cfg.StepMinutes, duration, cfg.SearchMode)

	// An empty list is a normal answer: the day is simply full.
	slots := make([]string, len(starts))
	for i, start := range starts {
		slots[i] = apiutil.FormatClockMinute(start)
	}

	apiutil.WriteJSON(w, http.StatusOK, availabilityResponse{
		FieldID:         fieldID,
		Date:            date,
		DurationMinutes: duration,
		FreeSlots:       slots,
	})
}
