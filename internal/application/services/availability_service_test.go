package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventaflow/scheduling/internal/application/services"
	"github.com/ventaflow/scheduling/internal/domain/entities"
)

// workday is a fixed future date used across scheduling tests
var workday = time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2030, time.January, 7, hour, minute, 0, 0, time.UTC)
}

func span(startHour, startMin, endHour, endMin int) entities.Interval {
	return entities.NewInterval(at(startHour, startMin), at(endHour, endMin))
}

func testTenant(mode entities.CalendarMode) *entities.Tenant {
	return &entities.Tenant{
		ID:           "tenant-1",
		Name:         "Acme Distribution",
		CalendarMode: mode,
		Provider:     "mock",
	}
}

func testResource() *entities.Resource {
	return &entities.Resource{
		ID:       "resource-1",
		TenantID: "tenant-1",
		Name:     "Adaeze",
		Timezone: "UTC",
		WorkingHours: []entities.DayHours{
			{Weekday: workday.Weekday(), Open: "09:00", Close: "12:00"},
		},
		CalendarID: "primary",
		IsActive:   true,
	}
}

func scheduledCommitment(id string, interval entities.Interval) *entities.Commitment {
	return &entities.Commitment{
		ID:         id,
		TenantID:   "tenant-1",
		ResourceID: "resource-1",
		ContactRef: "2348012345678",
		StartAt:    interval.Start,
		EndAt:      interval.End,
		Status:     entities.CommitmentStatusScheduled,
		Origin:     entities.CommitmentOriginLocal,
		SyncState:  entities.SyncStateNone,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func newAvailabilityFixture(t *testing.T, mode entities.CalendarMode, freshener services.Freshener) (*services.AvailabilityService, *fakeCommitmentRepo, *fakeBlockRepo) {
	t.Helper()
	tenantRepo := newFakeTenantRepo(testTenant(mode))
	resourceRepo := newFakeResourceRepo(testResource())
	commitmentRepo := newFakeCommitmentRepo()
	blockRepo := newFakeBlockRepo()
	svc := services.NewAvailabilityService(
		tenantRepo, resourceRepo, commitmentRepo, blockRepo,
		freshener, nil, zerolog.Nop(),
	)
	return svc, commitmentRepo, blockRepo
}

func TestAvailabilityService_ComputeSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("splits working hours around commitments and external blocks", func(t *testing.T) {
		svc, commitments, blocks := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)

		require.NoError(t, commitments.CreateIfFree(ctx, scheduledCommitment("c1", span(10, 0, 10, 30))))
		require.NoError(t, blocks.Upsert(ctx, &entities.ExternalBlock{
			ID: "b1", TenantID: "tenant-1", ResourceID: "resource-1",
			ExternalID: "evt-1", StartAt: at(11, 0), EndAt: at(11, 30),
		}))

		slots, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 12, 0), 30*time.Minute)
		require.NoError(t, err)

		expected := []entities.Interval{
			span(9, 0, 9, 30),
			span(9, 30, 10, 0),
			span(10, 30, 11, 0),
			span(11, 30, 12, 0),
		}
		assert.Equal(t, expected, slots)
	})

	t.Run("touching boundaries do not collide", func(t *testing.T) {
		svc, commitments, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)

		require.NoError(t, commitments.CreateIfFree(ctx, scheduledCommitment("c1", span(9, 0, 10, 0))))

		slots, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 11, 0), 60*time.Minute)
		require.NoError(t, err)

		// The hour starting exactly where the commitment ends is free
		assert.Equal(t, []entities.Interval{span(10, 0, 11, 0)}, slots)
	})

	t.Run("cancelled commitments release their interval", func(t *testing.T) {
		svc, commitments, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)

		cancelled := scheduledCommitment("c1", span(9, 0, 12, 0))
		cancelled.Status = entities.CommitmentStatusCancelled
		require.NoError(t, commitments.CreateIfFree(ctx, cancelled))

		slots, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 12, 0), 60*time.Minute)
		require.NoError(t, err)
		assert.Len(t, slots, 3)
	})

	t.Run("no slots outside working hours", func(t *testing.T) {
		svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)

		slots, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(13, 0, 18, 0), 30*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("runs just-in-time sync for externally linked tenants", func(t *testing.T) {
		freshener := &stubFreshener{}
		svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeExternal, freshener)

		_, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 12, 0), 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, freshener.callCount())
	})

	t.Run("skips just-in-time sync for local tenants", func(t *testing.T) {
		freshener := &stubFreshener{}
		svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, freshener)

		_, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 12, 0), 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 0, freshener.callCount())
	})

	t.Run("degrades to last mirrored state when refresh fails", func(t *testing.T) {
		freshener := &stubFreshener{err: assert.AnError}
		svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeExternal, freshener)

		slots, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 12, 0), 60*time.Minute)
		require.NoError(t, err)
		assert.Len(t, slots, 3)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)

		_, err := svc.ComputeSlots(ctx, "tenant-1", "resource-1", entities.NewInterval(at(12, 0), at(9, 0)), 30*time.Minute)
		assert.Error(t, err)

		_, err = svc.ComputeSlots(ctx, "tenant-1", "resource-1", span(9, 0, 12, 0), 0)
		assert.Error(t, err)
	})

	t.Run("unknown resource returns not found", func(t *testing.T) {
		svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)

		_, err := svc.ComputeSlots(ctx, "tenant-1", "missing", span(9, 0, 12, 0), 30*time.Minute)
		assert.Error(t, err)
	})
}

func TestAvailabilityService_CheckCollision(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the colliding interval", func(t *testing.T) {
		svc, commitments, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)
		require.NoError(t, commitments.CreateIfFree(ctx, scheduledCommitment("c1", span(10, 0, 11, 0))))

		conflict, err := svc.CheckCollision(ctx, "tenant-1", "resource-1", span(10, 30, 11, 30), "")
		require.NoError(t, err)
		require.NotNil(t, conflict)
		assert.Equal(t, span(10, 0, 11, 0), *conflict)
	})

	t.Run("excludes the commitment being rescheduled", func(t *testing.T) {
		svc, commitments, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)
		require.NoError(t, commitments.CreateIfFree(ctx, scheduledCommitment("c1", span(10, 0, 11, 0))))

		conflict, err := svc.CheckCollision(ctx, "tenant-1", "resource-1", span(10, 30, 11, 30), "c1")
		require.NoError(t, err)
		assert.Nil(t, conflict)
	})

	t.Run("external blocks collide like commitments", func(t *testing.T) {
		svc, _, blocks := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)
		require.NoError(t, blocks.Upsert(ctx, &entities.ExternalBlock{
			ID: "b1", TenantID: "tenant-1", ResourceID: "resource-1",
			ExternalID: "evt-1", StartAt: at(10, 0), EndAt: at(11, 0),
		}))

		conflict, err := svc.CheckCollision(ctx, "tenant-1", "resource-1", span(10, 0, 10, 30), "")
		require.NoError(t, err)
		assert.NotNil(t, conflict)
	})
}

func TestAvailabilityService_WithinWorkingHours(t *testing.T) {
	svc, _, _ := newAvailabilityFixture(t, entities.CalendarModeLocal, nil)
	resource := testResource()

	ok, err := svc.WithinWorkingHours(resource, span(9, 0, 10, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.WithinWorkingHours(resource, span(11, 30, 12, 30))
	require.NoError(t, err)
	assert.False(t, ok)
}
