package providers

import (
	"context"
	"time"

	"github.com/ventaflow/scheduling/internal/domain/entities"
)

// CalendarRef scopes every provider call. External event identifiers are
// never assumed unique across tenants, so they always travel with this ref.
type CalendarRef struct {
	TenantID   string
	ResourceID string
	CalendarID string
}

// BusyInterval is one opaque busy period reported by an external provider
type BusyInterval struct {
	ExternalID string
	Start      time.Time
	End        time.Time
	Summary    string
}

// CalendarProvider defines the capability set for external calendar
// services (Google Calendar, Outlook, etc.). One implementation exists per
// supported provider; tenants select a variant at configuration time.
//
// Implementations classify failures through pkg/errors: UNAUTHORIZED for
// revoked grants (never retried), RATE_LIMITED and UNAVAILABLE for
// transient conditions (retried with backoff by callers).
type CalendarProvider interface {
	// PullBusyIntervals enumerates busy periods in the window
	PullBusyIntervals(ctx context.Context, ref CalendarRef, window entities.Interval) ([]BusyInterval, error)

	// PushEvent creates an event for the commitment and returns the
	// provider's event identifier
	PushEvent(ctx context.Context, ref CalendarRef, commitment *entities.Commitment) (string, error)

	// UpdateEvent moves or edits an existing event
	UpdateEvent(ctx context.Context, ref CalendarRef, externalID string, commitment *entities.Commitment) error

	// DeleteEvent removes an event; deleting an already-absent event is
	// not an error
	DeleteEvent(ctx context.Context, ref CalendarRef, externalID string) error
}

// CredentialStore resolves a tenant's opaque credential reference into
// provider credentials. Backed by Vault in production.
type CredentialStore interface {
	// Resolve returns the secret material for a credential reference
	Resolve(ctx context.Context, credentialRef string) (map[string]string, error)
}
