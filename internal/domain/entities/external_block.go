package entities

import (
	"time"
)

// ExternalBlock is a busy interval mirrored from the tenant's external
// calendar provider. Blocks are owned exclusively by the reconciliation
// service: the availability engine only reads them, and they remain
// authoritative obstructions until the next sync cycle refreshes or
// removes them.
type ExternalBlock struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	ResourceID string    `json:"resource_id" db:"resource_id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	StartAt    time.Time `json:"start_at" db:"start_at"`
	EndAt      time.Time `json:"end_at" db:"end_at"`
	Summary    string    `json:"summary" db:"summary"`
	PulledAt   time.Time `json:"pulled_at" db:"pulled_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Interval returns the block's half-open interval
func (b *ExternalBlock) Interval() Interval {
	return NewInterval(b.StartAt, b.EndAt)
}
