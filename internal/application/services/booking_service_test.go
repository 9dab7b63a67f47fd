package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ventaflow/scheduling/internal/application/services"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

type bookingFixture struct {
	service     *services.BookingService
	commitments *fakeCommitmentRepo
	blocks      *fakeBlockRepo
	provider    *MockCalendarProvider
	bus         *fakeEventBus
}

func newBookingFixture(t *testing.T, mode entities.CalendarMode) *bookingFixture {
	t.Helper()

	tenantRepo := newFakeTenantRepo(testTenant(mode))
	resourceRepo := newFakeResourceRepo(testResource())
	commitmentRepo := newFakeCommitmentRepo()
	blockRepo := newFakeBlockRepo()
	provider := new(MockCalendarProvider)
	bus := &fakeEventBus{}

	availability := services.NewAvailabilityService(
		tenantRepo, resourceRepo, commitmentRepo, blockRepo,
		nil, nil, zerolog.Nop(),
	)
	booking := services.NewBookingService(
		tenantRepo, resourceRepo, commitmentRepo, availability,
		&staticProviderSource{provider: provider}, services.NewResourceLocker(),
		bus, nil, nil, nil, zerolog.Nop(),
	)

	return &bookingFixture{
		service:     booking,
		commitments: commitmentRepo,
		blocks:      blockRepo,
		provider:    provider,
		bus:         bus,
	}
}

func createRequest(interval entities.Interval) services.CreateBookingRequest {
	return services.CreateBookingRequest{
		TenantID:   "tenant-1",
		ResourceID: "resource-1",
		ContactRef: "2348012345678",
		StartAt:    interval.Start,
		EndAt:      interval.End,
	}
}

func TestBookingService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("books a free slot", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)

		commitment, err := f.service.Create(ctx, createRequest(span(9, 0, 9, 30)))
		require.NoError(t, err)

		assert.Equal(t, entities.CommitmentStatusScheduled, commitment.Status)
		assert.Equal(t, entities.CommitmentOriginLocal, commitment.Origin)
		assert.Equal(t, entities.SyncStateNone, commitment.SyncState)

		stored, err := f.commitments.GetByID(ctx, "tenant-1", commitment.ID)
		require.NoError(t, err)
		assert.Equal(t, commitment.ID, stored.ID)
		assert.Equal(t, 2, f.bus.published(entities.BookingEventCreated))
	})

	t.Run("returns the colliding interval on conflict", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)

		_, err := f.service.Create(ctx, createRequest(span(10, 0, 11, 0)))
		require.NoError(t, err)

		_, err = f.service.Create(ctx, createRequest(span(10, 30, 11, 30)))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

		appErr := err.(*apperrors.AppError)
		assert.Equal(t, span(10, 0, 11, 0), appErr.Detail["conflicting_interval"])
	})

	t.Run("back-to-back bookings never conflict", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)

		_, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		_, err = f.service.Create(ctx, createRequest(span(10, 0, 11, 0)))
		assert.NoError(t, err)
	})

	t.Run("exactly one of many concurrent requests for the same slot wins", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)

		const attempts = 8
		var wg sync.WaitGroup
		results := make(chan error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded, conflicted := 0, 0
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case apperrors.IsType(err, apperrors.ErrorTypeConflict):
				conflicted++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, attempts-1, conflicted)
	})

	t.Run("mirrored external blocks obstruct bookings", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		require.NoError(t, f.blocks.Upsert(ctx, &entities.ExternalBlock{
			ID: "b1", TenantID: "tenant-1", ResourceID: "resource-1",
			ExternalID: "evt-1", StartAt: at(9, 0), EndAt: at(10, 0),
		}))

		_, err := f.service.Create(ctx, createRequest(span(9, 30, 10, 30)))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("rejects intervals outside working hours", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)

		_, err := f.service.Create(ctx, createRequest(span(14, 0, 15, 0)))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("rejects bookings in the past", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)

		past := entities.NewInterval(
			time.Date(2020, time.January, 6, 9, 0, 0, 0, time.UTC),
			time.Date(2020, time.January, 6, 10, 0, 0, 0, time.UTC),
		)
		_, err := f.service.Create(ctx, createRequest(past))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestBookingService_ExternalPropagation(t *testing.T) {
	ctx := context.Background()

	t.Run("pushes the booking to the external calendar", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeExternal)
		f.provider.On("PushEvent", mock.Anything, mock.Anything, mock.Anything).Return("evt-9", nil)

		commitment, err := f.service.Create(ctx, createRequest(span(9, 0, 9, 30)))
		require.NoError(t, err)

		stored, err := f.commitments.GetByID(ctx, "tenant-1", commitment.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.SyncStateSynced, stored.SyncState)
		require.NotNil(t, stored.ExternalEventID)
		assert.Equal(t, "evt-9", *stored.ExternalEventID)
		f.provider.AssertNumberOfCalls(t, "PushEvent", 1)
	})

	t.Run("an unreachable provider leaves the booking valid but pending", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeExternal)
		f.provider.On("PushEvent", mock.Anything, mock.Anything, mock.Anything).
			Return("", apperrors.NewUnavailableError("provider down", nil))

		commitment, err := f.service.Create(ctx, createRequest(span(9, 0, 9, 30)))
		require.NoError(t, err)

		stored, err := f.commitments.GetByID(ctx, "tenant-1", commitment.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.SyncStatePending, stored.SyncState)
		assert.Nil(t, stored.ExternalEventID)

		// Bounded retries, then give up without failing the booking
		f.provider.AssertNumberOfCalls(t, "PushEvent", 3)
	})

	t.Run("revoked grants are not retried", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeExternal)
		f.provider.On("PushEvent", mock.Anything, mock.Anything, mock.Anything).
			Return("", apperrors.NewUnauthorizedError("grant revoked"))

		_, err := f.service.Create(ctx, createRequest(span(9, 0, 9, 30)))
		require.NoError(t, err)
		f.provider.AssertNumberOfCalls(t, "PushEvent", 1)
	})
}

func TestBookingService_Reschedule(t *testing.T) {
	ctx := context.Background()

	t.Run("moves a booking to a free slot", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		moved, err := f.service.Reschedule(ctx, "tenant-1", created.ID, at(10, 0), at(11, 0))
		require.NoError(t, err)
		assert.Equal(t, span(10, 0, 11, 0), moved.Interval())
	})

	t.Run("a booking never collides with itself", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		_, err = f.service.Reschedule(ctx, "tenant-1", created.ID, at(9, 30), at(10, 30))
		assert.NoError(t, err)
	})

	t.Run("conflicts with other bookings", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		_, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)
		other, err := f.service.Create(ctx, createRequest(span(10, 0, 11, 0)))
		require.NoError(t, err)

		_, err = f.service.Reschedule(ctx, "tenant-1", other.ID, at(9, 30), at(10, 30))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("moves the external event instead of recreating it", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeExternal)
		f.provider.On("PushEvent", mock.Anything, mock.Anything, mock.Anything).Return("evt-9", nil)
		f.provider.On("UpdateEvent", mock.Anything, mock.Anything, "evt-9", mock.Anything).Return(nil)

		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		_, err = f.service.Reschedule(ctx, "tenant-1", created.ID, at(10, 0), at(11, 0))
		require.NoError(t, err)

		f.provider.AssertNumberOfCalls(t, "PushEvent", 1)
		f.provider.AssertNumberOfCalls(t, "UpdateEvent", 1)
	})

	t.Run("terminal bookings cannot move", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)
		_, err = f.service.Cancel(ctx, "tenant-1", created.ID)
		require.NoError(t, err)

		_, err = f.service.Reschedule(ctx, "tenant-1", created.ID, at(10, 0), at(11, 0))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestBookingService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("frees the slot for new bookings", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		cancelled, err := f.service.Cancel(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.CommitmentStatusCancelled, cancelled.Status)

		_, err = f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		assert.NoError(t, err)
	})

	t.Run("cancelling twice is a no-op", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeLocal)
		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		_, err = f.service.Cancel(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		again, err := f.service.Cancel(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.CommitmentStatusCancelled, again.Status)
	})

	t.Run("a booking that never reached the provider cancels cleanly", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeExternal)
		f.provider.On("PushEvent", mock.Anything, mock.Anything, mock.Anything).
			Return("", apperrors.NewUnavailableError("provider down", nil))

		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		_, err = f.service.Cancel(ctx, "tenant-1", created.ID)
		require.NoError(t, err)

		stored, err := f.commitments.GetByID(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.SyncStateNone, stored.SyncState)
		f.provider.AssertNotCalled(t, "DeleteEvent")
	})

	t.Run("removes the mirrored external event", func(t *testing.T) {
		f := newBookingFixture(t, entities.CalendarModeExternal)
		f.provider.On("PushEvent", mock.Anything, mock.Anything, mock.Anything).Return("evt-9", nil)
		f.provider.On("DeleteEvent", mock.Anything, mock.Anything, "evt-9").Return(nil)

		created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
		require.NoError(t, err)

		_, err = f.service.Cancel(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		f.provider.AssertNumberOfCalls(t, "DeleteEvent", 1)
	})
}

func TestBookingService_Confirm(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t, entities.CalendarModeLocal)

	created, err := f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
	require.NoError(t, err)

	confirmed, err := f.service.Confirm(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CommitmentStatusConfirmed, confirmed.Status)

	// Confirmed commitments still obstruct
	_, err = f.service.Create(ctx, createRequest(span(9, 0, 10, 0)))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}
