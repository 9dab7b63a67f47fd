package entities

import (
	"time"
)

// CommitmentStatus is the lifecycle state of a commitment
type CommitmentStatus string

const (
	CommitmentStatusScheduled CommitmentStatus = "scheduled"
	CommitmentStatusConfirmed CommitmentStatus = "confirmed"
	CommitmentStatusCompleted CommitmentStatus = "completed"
	CommitmentStatusCancelled CommitmentStatus = "cancelled"
)

// CommitmentOrigin tags which side created the commitment
type CommitmentOrigin string

const (
	CommitmentOriginLocal    CommitmentOrigin = "local"
	CommitmentOriginExternal CommitmentOrigin = "external-mirrored"
)

// SyncState tracks outbound propagation of a commitment to the tenant's
// external calendar.
type SyncState string

const (
	// SyncStateNone applies to tenants in local calendar mode
	SyncStateNone SyncState = "none"

	// SyncStatePending marks a commitment that is valid locally but whose
	// external push has not succeeded yet ("scheduled-unsynced")
	SyncStatePending SyncState = "pending"

	// SyncStateSynced means the external provider holds a matching event
	SyncStateSynced SyncState = "synced"
)

// Commitment is a scheduled interval for one resource. The local store is
// the source of truth: commitments soft-terminate to cancelled/completed
// and are never deleted.
type Commitment struct {
	ID              string           `json:"id" db:"id"`
	TenantID        string           `json:"tenant_id" db:"tenant_id"`
	ResourceID      string           `json:"resource_id" db:"resource_id"`
	ContactRef      string           `json:"contact_ref" db:"contact_ref"`
	StartAt         time.Time        `json:"start_at" db:"start_at"`
	EndAt           time.Time        `json:"end_at" db:"end_at"`
	Status          CommitmentStatus `json:"status" db:"status"`
	Origin          CommitmentOrigin `json:"origin" db:"origin"`
	SyncState       SyncState        `json:"sync_state" db:"sync_state"`
	ExternalEventID *string          `json:"external_event_id,omitempty" db:"external_event_id"`
	Notes           string           `json:"notes" db:"notes"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// Interval returns the commitment's half-open interval
func (c *Commitment) Interval() Interval {
	return NewInterval(c.StartAt, c.EndAt)
}

// Obstructs reports whether the commitment counts against availability.
// Only scheduled and confirmed commitments hold their interval.
func (c *Commitment) Obstructs() bool {
	return c.Status == CommitmentStatusScheduled || c.Status == CommitmentStatusConfirmed
}

// Terminal reports whether the commitment reached an end state
func (c *Commitment) Terminal() bool {
	return c.Status == CommitmentStatusCompleted || c.Status == CommitmentStatusCancelled
}
