package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ventaflow/scheduling/internal/application/services"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

const defaultSlotMinutes = 30

// AvailabilityHandler serves slot queries for a resource
type AvailabilityHandler struct {
	availability *services.AvailabilityService
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(availability *services.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
	}
}

// GetAvailability handles GET /api/tenants/{tenantID}/resources/{resourceID}/availability
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenantID")
	resourceID := r.PathValue("resourceID")
	if tenantID == "" || resourceID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant ID and resource ID are required")
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	slotMinutes := defaultSlotMinutes
	if raw := r.URL.Query().Get("duration_minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "duration_minutes must be a positive integer")
			return
		}
		slotMinutes = parsed
	}

	slots, err := h.availability.ComputeSlots(r.Context(), tenantID, resourceID, window, time.Duration(slotMinutes)*time.Minute)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if slots == nil {
		slots = []entities.Interval{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
		"count": len(slots),
	})
}

// parseWindow reads the required from/to RFC3339 query parameters
func parseWindow(r *http.Request) (entities.Interval, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		return entities.Interval{}, errRequiredWindow
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return entities.Interval{}, errInvalidFrom
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return entities.Interval{}, errInvalidTo
	}
	return entities.NewInterval(from, to), nil
}

var (
	errRequiredWindow = &windowError{"from and to query parameters are required"}
	errInvalidFrom    = &windowError{"invalid from date format (use RFC3339)"}
	errInvalidTo      = &windowError{"invalid to date format (use RFC3339)"}
)

type windowError struct{ msg string }

func (e *windowError) Error() string { return e.msg }

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the error taxonomy to HTTP status codes.
// Conflicts carry their detail payload so callers see the colliding
// interval.
func respondWithAppError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		status = http.StatusConflict
	case apperrors.ErrorTypeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrorTypeRateLimited:
		status = http.StatusTooManyRequests
	case apperrors.ErrorTypeUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.ErrorTypeExternal:
		status = http.StatusBadGateway
	}

	body := map[string]interface{}{
		"error": appErr.Message,
		"type":  string(appErr.Type),
	}
	if len(appErr.Detail) > 0 {
		body["detail"] = appErr.Detail
	}
	respondWithJSON(w, status, body)
}
