package providers

import (
	"context"

	"github.com/ventaflow/scheduling/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// booking events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.BookingEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// Event channel constants
const (
	// EventChannelBookings carries every booking event across tenants
	EventChannelBookings = "bookings:all"

	// EventChannelTenantPrefix is the prefix for tenant-scoped channels
	EventChannelTenantPrefix = "bookings:tenant:"
)

// GetTenantChannel returns the channel name for a specific tenant
func GetTenantChannel(tenantID string) string {
	return EventChannelTenantPrefix + tenantID
}
