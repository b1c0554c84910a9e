// internal/api/fields/handlers.go
package fields

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tmango-lab/fieldbooking/internal/api/apiutil"
	appdb "github.com/tmango-lab/fieldbooking/internal/db"
	"github.com/tmango-lab/fieldbooking/internal/pricing"
	"github.com/tmango-lab/fieldbooking/internal/store"
)

var (
	queries      *store.Queries
	cutoffMinute int
	handlerOnce  sync.Once
)

const fieldQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, cutoff int) {
	if database == nil {
		return
	}
	handlerOnce.Do(func() {
		queries = database.Queries
		cutoffMinute = cutoff
	})
}

type createFieldRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PreRate  int64  `json:"pre_rate"`
	PostRate int64  `json:"post_rate"`
}

type fieldResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PreRate  int64  `json:"pre_rate"`
	PostRate int64  `json:"post_rate"`
}

// POST /api/v1/fields
func HandleFieldCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req createFieldRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Name == "" {
		http.Error(w, "id and name are required", http.StatusBadRequest)
		return
	}
	if req.PreRate <= 0 || req.PostRate <= 0 {
		http.Error(w, "rates must be greater than 0", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fieldQueryTimeout)
	defer cancel()

	field, err := queries.CreateField(ctx, store.CreateFieldParams(req))
	if err != nil {
		logger.Error().Err(err).Str("field_id", req.ID).Msg("Failed to create field")
		http.Error(w, "Failed to create field", http.StatusInternalServerError)
		return
	}

	apiutil.WriteJSON(w, http.StatusCreated, fieldResponse(field))
}

// GET /api/v1/fields
func HandleFieldList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fieldQueryTimeout)
	defer cancel()

	list, err := queries.ListFields(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list fields")
		http.Error(w, "Failed to list fields", http.StatusInternalServerError)
		return
	}
	resp := make([]fieldResponse, len(list))
	for i, field := range list {
		resp[i] = fieldResponse(field)
	}

	apiutil.WriteJSON(w, http.StatusOK, resp)
}

type quoteResponse struct {
	FieldID         string `json:"field_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	TotalPrice      int64  `json:"total_price"`
}

// GET /api/v1/pricing/quote?field_id=F1&start_time=17:31&duration_minutes=60
func HandleQuote(w http.ResponseWriter, r *http.Request) {
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
	startMinute, err := apiutil.ParseClockField(r.URL.Query().Get("start_time"), "start_time")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	duration, err := apiutil.ParsePositiveIntField(r.URL.Query().Get("duration_minutes"), "duration_minutes")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fieldQueryTimeout)
	defer cancel()

	field, err := queries.GetField(ctx, fieldID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Field not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("field_id", fieldID).Msg("Failed to load field")
		http.Error(w, "Failed to load field", http.StatusInternalServerError)
		return
	}

	total := pricing.Compute(field.PreRate, field.PostRate, cutoffMinute, startMinute, duration)
	apiutil.WriteJSON(w, http.StatusOK, quoteResponse{
		FieldID:         fieldID,
		StartTime:       apiutil.FormatClockMinute(startMinute),
		DurationMinutes: duration,
		TotalPrice:      total,
	})
}
