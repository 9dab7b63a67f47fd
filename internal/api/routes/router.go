package routes

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/api/handlers"
	"github.com/ventaflow/scheduling/internal/api/middleware"
	"github.com/ventaflow/scheduling/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	availabilityHandler *handlers.AvailabilityHandler
	bookingHandler      *handlers.BookingHandler
	calendarHandler     *handlers.CalendarHandler
	eventsHandler       *handlers.EventsHandler

	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewRouter creates a new router
func NewRouter(
	availabilityHandler *handlers.AvailabilityHandler,
	bookingHandler *handlers.BookingHandler,
	calendarHandler *handlers.CalendarHandler,
	eventsHandler *handlers.EventsHandler,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		availabilityHandler: availabilityHandler,
		bookingHandler:      bookingHandler,
		calendarHandler:     calendarHandler,
		eventsHandler:       eventsHandler,
		metrics:             metrics,
		logger:              logger,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Availability endpoints
	r.mux.HandleFunc("GET /api/tenants/{tenantID}/resources/{resourceID}/availability", r.availabilityHandler.GetAvailability)

	// Booking endpoints
	r.mux.HandleFunc("POST /api/tenants/{tenantID}/resources/{resourceID}/bookings", r.bookingHandler.CreateBooking)
	r.mux.HandleFunc("GET /api/tenants/{tenantID}/resources/{resourceID}/bookings", r.bookingHandler.ListResourceBookings)
	r.mux.HandleFunc("GET /api/tenants/{tenantID}/contacts/{contactRef}/bookings", r.bookingHandler.ListContactBookings)
	r.mux.HandleFunc("GET /api/tenants/{tenantID}/bookings/{bookingID}", r.bookingHandler.GetBooking)
	r.mux.HandleFunc("POST /api/tenants/{tenantID}/bookings/{bookingID}/reschedule", r.bookingHandler.RescheduleBooking)
	r.mux.HandleFunc("POST /api/tenants/{tenantID}/bookings/{bookingID}/confirm", r.bookingHandler.ConfirmBooking)
	r.mux.HandleFunc("POST /api/tenants/{tenantID}/bookings/{bookingID}/complete", r.bookingHandler.CompleteBooking)
	r.mux.HandleFunc("DELETE /api/tenants/{tenantID}/bookings/{bookingID}", r.bookingHandler.CancelBooking)

	// External calendar endpoints
	r.mux.HandleFunc("POST /api/tenants/{tenantID}/resources/{resourceID}/calendar/link", r.calendarHandler.LinkCalendar)
	r.mux.HandleFunc("DELETE /api/tenants/{tenantID}/resources/{resourceID}/calendar/link", r.calendarHandler.UnlinkCalendar)
	r.mux.HandleFunc("GET /api/tenants/{tenantID}/resources/{resourceID}/calendar/sync", r.calendarHandler.GetSyncStatus)
	r.mux.HandleFunc("POST /api/tenants/{tenantID}/resources/{resourceID}/calendar/sync", r.calendarHandler.TriggerSync)

	// Event stream endpoint
	if r.eventsHandler != nil {
		r.mux.HandleFunc("GET /api/tenants/{tenantID}/events", r.eventsHandler.StreamTenantEvents)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so every response gets its headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(r.logger)(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
