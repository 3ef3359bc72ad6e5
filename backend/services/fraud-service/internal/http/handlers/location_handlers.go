package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/service"
)

const maxGeocodeBatch = 500

// LocationHandlers triggers charge point geocoding.
type LocationHandlers struct {
	locations *service.LocationService
	logger    *zap.Logger
}

// NewLocationHandlers returns handler.
func NewLocationHandlers(locations *service.LocationService, logger *zap.Logger) *LocationHandlers {
	return &LocationHandlers{locations: locations, logger: logger}
}

// GeocodeBatch handles POST /api/geocode-batch[?limit=].
func (h *LocationHandlers) GeocodeBatch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxGeocodeBatch {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxGeocodeBatch))
			return
		}
		limit = n
	}

	summary, err := h.locations.GeocodePending(r.Context(), limit)
	if err != nil {
		status := statusFor(err)
		h.logger.Error("geocode batch failed", zap.Error(err))
		writeError(w, status, errorMessage(err, status))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Attempts handles GET /api/geocode-attempts.
func (h *LocationHandlers) Attempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.locations.Attempts(r.Context())
	if err != nil {
		status := statusFor(err)
		h.logger.Error("list geocode attempts failed", zap.Error(err))
		writeError(w, status, errorMessage(err, status))
		return
	}
	if attempts == nil {
		attempts = []models.GeocodeAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}
