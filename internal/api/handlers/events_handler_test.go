package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
)

type channelEventBus struct {
	mu       sync.Mutex
	channels map[string]chan *entities.BookingEvent
}

func newChannelEventBus() *channelEventBus {
	return &channelEventBus{channels: make(map[string]chan *entities.BookingEvent)}
}

func (b *channelEventBus) Publish(ctx context.Context, channel string, event *entities.BookingEvent) error {
	b.mu.Lock()
	ch, ok := b.channels[channel]
	b.mu.Unlock()
	if ok {
		ch <- event
	}
	return nil
}

func (b *channelEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.BookingEvent, 8)
	b.channels[channel] = ch
	return ch, nil
}

func (b *channelEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }
func (b *channelEventBus) Close() error                                          { return nil }

// The stream must outlive the server's write timeout: heartbeats and
// events keep flowing after the deadline that would apply to a plain
// response has passed.
func TestStreamTenantEvents_OutlivesServerWriteTimeout(t *testing.T) {
	bus := newChannelEventBus()
	handler := NewEventsHandler(bus, zerolog.Nop())
	handler.heartbeat = 50 * time.Millisecond

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tenants/{tenantID}/events", handler.StreamTenantEvents)

	server := httptest.NewUnstartedServer(mux)
	server.Config.WriteTimeout = 200 * time.Millisecond
	server.Start()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/tenants/tenant-1/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(2 * time.Second)
	heartbeats := 0
	published := false
	streamStart := time.Now()

	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		require.NoError(t, err, "stream closed early after %v", time.Since(streamStart))

		switch {
		case strings.HasPrefix(line, "event: heartbeat"):
			heartbeats++
		case strings.HasPrefix(line, "event: booking.created"):
			require.True(t, published)
			assert.Greater(t, time.Since(streamStart), server.Config.WriteTimeout)
			assert.GreaterOrEqual(t, heartbeats, 4)
			return
		}

		// Once the write timeout has clearly elapsed, prove the
		// connection still delivers real events
		if !published && time.Since(streamStart) > 2*server.Config.WriteTimeout {
			published = true
			err := bus.Publish(context.Background(), providers.GetTenantChannel("tenant-1"), &entities.BookingEvent{
				ID:       "e1",
				Type:     entities.BookingEventCreated,
				TenantID: "tenant-1",
			})
			require.NoError(t, err)
		}
	}

	t.Fatal("booking event never arrived over the stream")
}
