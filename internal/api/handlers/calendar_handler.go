package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ventaflow/scheduling/internal/application/services"
)

// CalendarHandler handles external calendar link and sync requests
type CalendarHandler struct {
	links *services.CalendarLinkService
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(links *services.CalendarLinkService) *CalendarHandler {
	return &CalendarHandler{
		links: links,
	}
}

// LinkCalendar handles POST /api/tenants/{tenantID}/resources/{resourceID}/calendar/link
func (h *CalendarHandler) LinkCalendar(w http.ResponseWriter, r *http.Request) {
	var payload services.LinkCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	cursor, err := h.links.Link(r.Context(), r.PathValue("tenantID"), r.PathValue("resourceID"), payload)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"linked": true,
		"cursor": cursor,
	})
}

// UnlinkCalendar handles DELETE /api/tenants/{tenantID}/resources/{resourceID}/calendar/link
func (h *CalendarHandler) UnlinkCalendar(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Unlink(r.Context(), r.PathValue("tenantID"), r.PathValue("resourceID")); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"linked": false,
	})
}

// GetSyncStatus handles GET /api/tenants/{tenantID}/resources/{resourceID}/calendar/sync
func (h *CalendarHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	cursor, err := h.links.Status(r.Context(), r.PathValue("tenantID"), r.PathValue("resourceID"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cursor)
}

// TriggerSync handles POST /api/tenants/{tenantID}/resources/{resourceID}/calendar/sync
func (h *CalendarHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	cursor, err := h.links.TriggerSync(r.Context(), r.PathValue("tenantID"), r.PathValue("resourceID"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cursor)
}
