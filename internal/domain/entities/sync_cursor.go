package entities

import (
	"time"
)

// SyncHealth describes the state of reconciliation for a resource
type SyncHealth string

const (
	// SyncHealthOK means the last pull succeeded
	SyncHealthOK SyncHealth = "ok"

	// SyncHealthDegraded means pulls are failing transiently; mirrored
	// blocks are stale-but-safe until the provider recovers
	SyncHealthDegraded SyncHealth = "degraded"

	// SyncHealthUnauthorized means the tenant's grant was revoked or
	// expired; sync is paused until the calendar is re-linked
	SyncHealthUnauthorized SyncHealth = "unauthorized"
)

// SyncCursor is per-resource bookkeeping of the last successful
// reconciliation, used to make pulls incremental and to drive the
// just-in-time freshness check.
type SyncCursor struct {
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	ResourceID   string     `json:"resource_id" db:"resource_id"`
	LastSyncAt   time.Time  `json:"last_sync_at" db:"last_sync_at"`
	Health       SyncHealth `json:"health" db:"health"`
	FailureCount int        `json:"failure_count" db:"failure_count"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// StaleAt reports whether the cursor is older than the freshness
// threshold at the given instant. A zero cursor is always stale.
func (c *SyncCursor) StaleAt(now time.Time, threshold time.Duration) bool {
	if c == nil || c.LastSyncAt.IsZero() {
		return true
	}
	return now.Sub(c.LastSyncAt) > threshold
}
