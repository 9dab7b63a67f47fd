package calendar

import (
	"context"
	"fmt"
	"sync"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
)

// MockAdapter is an in-memory calendar provider for local development and
// tests. It behaves like a real provider: events pushed to it show up as
// busy intervals on the next pull, and busy intervals can be seeded to
// simulate changes made through the provider's own interface.
type MockAdapter struct {
	mu     sync.Mutex
	events map[string]map[string]providers.BusyInterval
	nextID int
}

// NewMockAdapter creates a mock calendar provider
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		events: make(map[string]map[string]providers.BusyInterval),
	}
}

// SeedBusy registers a busy interval as if it had been created through the
// provider's own interface, returning its external id
func (m *MockAdapter) SeedBusy(ref providers.CalendarRef, interval entities.Interval, summary string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	m.calendarLocked(ref)[id] = providers.BusyInterval{
		ExternalID: id,
		Start:      interval.Start,
		End:        interval.End,
		Summary:    summary,
	}
	return id
}

// RemoveBusy deletes a busy interval upstream, simulating an external
// cancellation
func (m *MockAdapter) RemoveBusy(ref providers.CalendarRef, externalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calendarLocked(ref), externalID)
}

// PullBusyIntervals enumerates busy periods in the window
func (m *MockAdapter) PullBusyIntervals(ctx context.Context, ref providers.CalendarRef, window entities.Interval) ([]providers.BusyInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var busy []providers.BusyInterval
	for _, event := range m.calendarLocked(ref) {
		if window.Overlaps(entities.NewInterval(event.Start, event.End)) {
			busy = append(busy, event)
		}
	}
	return busy, nil
}

// PushEvent records the commitment as an event and returns its id
func (m *MockAdapter) PushEvent(ctx context.Context, ref providers.CalendarRef, commitment *entities.Commitment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	m.calendarLocked(ref)[id] = providers.BusyInterval{
		ExternalID: id,
		Start:      commitment.StartAt.UTC(),
		End:        commitment.EndAt.UTC(),
		Summary:    commitment.ContactRef,
	}
	return id, nil
}

// UpdateEvent moves an existing event
func (m *MockAdapter) UpdateEvent(ctx context.Context, ref providers.CalendarRef, externalID string, commitment *entities.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cal := m.calendarLocked(ref)
	if _, ok := cal[externalID]; !ok {
		return fmt.Errorf("event %s not found", externalID)
	}
	cal[externalID] = providers.BusyInterval{
		ExternalID: externalID,
		Start:      commitment.StartAt.UTC(),
		End:        commitment.EndAt.UTC(),
		Summary:    commitment.ContactRef,
	}
	return nil
}

// DeleteEvent removes an event; deleting an absent event is a no-op
func (m *MockAdapter) DeleteEvent(ctx context.Context, ref providers.CalendarRef, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calendarLocked(ref), externalID)
	return nil
}

func (m *MockAdapter) calendarLocked(ref providers.CalendarRef) map[string]providers.BusyInterval {
	key := ref.TenantID + ":" + ref.ResourceID + ":" + ref.CalendarID
	if m.events[key] == nil {
		m.events[key] = make(map[string]providers.BusyInterval)
	}
	return m.events[key]
}

func (m *MockAdapter) newID() string {
	m.nextID++
	return fmt.Sprintf("mock-evt-%d", m.nextID)
}
