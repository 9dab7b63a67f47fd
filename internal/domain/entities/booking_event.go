package entities

import (
	"time"
)

// BookingEventType identifies what happened to a booking or a resource's sync
type BookingEventType string

const (
	BookingEventCreated     BookingEventType = "booking.created"
	BookingEventRescheduled BookingEventType = "booking.rescheduled"
	BookingEventCancelled   BookingEventType = "booking.cancelled"
	BookingEventSyncDegraded  BookingEventType = "sync.degraded"
	BookingEventSyncRecovered BookingEventType = "sync.recovered"
)

// BookingEvent is published on the event bus so collaborators (admin UI,
// agent sessions) can react to schedule changes in real time.
type BookingEvent struct {
	ID           string           `json:"id"`
	Type         BookingEventType `json:"type"`
	TenantID     string           `json:"tenant_id"`
	ResourceID   string           `json:"resource_id"`
	CommitmentID string           `json:"commitment_id,omitempty"`
	Interval     *Interval        `json:"interval,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
