package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ventaflow/scheduling/internal/application/services"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
)

// BookingHandler handles booking lifecycle requests
type BookingHandler struct {
	bookings *services.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
	}
}

type createBookingPayload struct {
	ContactRef string    `json:"contact_ref"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Notes      string    `json:"notes"`
}

// CreateBooking handles POST /api/tenants/{tenantID}/resources/{resourceID}/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenantID")
	resourceID := r.PathValue("resourceID")

	var payload createBookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	commitment, err := h.bookings.Create(r.Context(), services.CreateBookingRequest{
		TenantID:   tenantID,
		ResourceID: resourceID,
		ContactRef: payload.ContactRef,
		StartAt:    payload.StartAt,
		EndAt:      payload.EndAt,
		Notes:      payload.Notes,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, commitment)
}

// GetBooking handles GET /api/tenants/{tenantID}/bookings/{bookingID}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	commitment, err := h.bookings.Get(r.Context(), r.PathValue("tenantID"), r.PathValue("bookingID"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, commitment)
}

// ListResourceBookings handles GET /api/tenants/{tenantID}/resources/{resourceID}/bookings
func (h *BookingHandler) ListResourceBookings(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	commitments, err := h.bookings.ListByResource(
		r.Context(), r.PathValue("tenantID"), r.PathValue("resourceID"),
		window, parseCommitmentFilter(r),
	)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": commitments,
		"count":    len(commitments),
	})
}

// ListContactBookings handles GET /api/tenants/{tenantID}/contacts/{contactRef}/bookings
func (h *BookingHandler) ListContactBookings(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	commitments, err := h.bookings.ListByContact(
		r.Context(), r.PathValue("tenantID"), r.PathValue("contactRef"),
		window, parseCommitmentFilter(r),
	)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": commitments,
		"count":    len(commitments),
	})
}

type reschedulePayload struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// RescheduleBooking handles POST /api/tenants/{tenantID}/bookings/{bookingID}/reschedule
func (h *BookingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	var payload reschedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	commitment, err := h.bookings.Reschedule(
		r.Context(), r.PathValue("tenantID"), r.PathValue("bookingID"),
		payload.StartAt, payload.EndAt,
	)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, commitment)
}

// ConfirmBooking handles POST /api/tenants/{tenantID}/bookings/{bookingID}/confirm
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	commitment, err := h.bookings.Confirm(r.Context(), r.PathValue("tenantID"), r.PathValue("bookingID"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, commitment)
}

// CompleteBooking handles POST /api/tenants/{tenantID}/bookings/{bookingID}/complete
func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	commitment, err := h.bookings.Complete(r.Context(), r.PathValue("tenantID"), r.PathValue("bookingID"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, commitment)
}

// CancelBooking handles DELETE /api/tenants/{tenantID}/bookings/{bookingID}
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	commitment, err := h.bookings.Cancel(r.Context(), r.PathValue("tenantID"), r.PathValue("bookingID"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, commitment)
}

func parseCommitmentFilter(r *http.Request) repositories.CommitmentFilter {
	filter := repositories.CommitmentFilter{}
	for _, raw := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, entities.CommitmentStatus(raw))
	}
	return filter
}
