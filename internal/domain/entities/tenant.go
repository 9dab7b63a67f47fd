package entities

import (
	"time"
)

// CalendarMode selects where a tenant's schedule truth lives
type CalendarMode string

const (
	// CalendarModeLocal keeps the schedule purely in the local store
	CalendarModeLocal CalendarMode = "local"

	// CalendarModeExternal mirrors the schedule to a linked external provider
	CalendarModeExternal CalendarMode = "external"
)

// Tenant is the isolation boundary for all scheduling data.
// No operation may cross tenants.
type Tenant struct {
	ID            string       `json:"id" db:"id"`
	Name          string       `json:"name" db:"name"`
	CalendarMode  CalendarMode `json:"calendar_mode" db:"calendar_mode"`
	Provider      string       `json:"provider" db:"provider"`
	CredentialRef string       `json:"credential_ref" db:"credential_ref"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// UsesExternalCalendar reports whether bookings must be propagated outward
func (t *Tenant) UsesExternalCalendar() bool {
	return t.CalendarMode == CalendarModeExternal
}
