package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/domain/providers"
)

// EventsHandler streams booking events over Server-Sent Events so admin
// UIs and agent sessions can follow schedule changes in real time
type EventsHandler struct {
	eventBus  providers.EventBus
	logger    zerolog.Logger
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventBus providers.EventBus, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		eventBus:  eventBus,
		logger:    logger.With().Str("handler", "events").Logger(),
		heartbeat: 30 * time.Second,
	}
}

// StreamTenantEvents handles GET /api/tenants/{tenantID}/events
func (h *EventsHandler) StreamTenantEvents(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenantID")
	if tenantID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The server's write timeout applies to the whole response; a stream
	// outlives it, so clear the deadline for this connection.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug().Err(err).Msg("could not clear write deadline for event stream")
	}

	channel := providers.GetTenantChannel(tenantID)
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to booking events")
		respondWithError(w, http.StatusInternalServerError, "failed to subscribe to events")
		return
	}
	// Subscription cleanup rides on the request context: the bus drops
	// this subscriber when the client disconnects.

	h.sendEvent(w, "connected", map[string]interface{}{
		"tenant_id": tenantID,
		"timestamp": time.Now().UTC(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Debug().Err(err).Msg("failed to marshal SSE payload")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
}
