package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

const (
	availabilityCacheTTLSeconds = 30
	availabilityCachePrefix     = "availability:"
)

// Freshener triggers a just-in-time reconciliation when a resource's
// mirrored calendar data is older than the freshness threshold
type Freshener interface {
	EnsureFresh(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource) error
}

// AvailabilityService computes open slots and detects collisions for a
// resource. Obstructions come from two sources that are treated
// identically: scheduled/confirmed commitments and mirrored external
// blocks. All interval math is half-open, so back-to-back bookings that
// touch at a boundary never collide.
type AvailabilityService struct {
	tenantRepo     repositories.TenantRepository
	resourceRepo   repositories.ResourceRepository
	commitmentRepo repositories.CommitmentRepository
	blockRepo      repositories.ExternalBlockRepository
	freshener      Freshener
	cache          providers.CacheProvider
	logger         zerolog.Logger
}

// NewAvailabilityService creates an availability service. The freshener
// and cache are optional.
func NewAvailabilityService(
	tenantRepo repositories.TenantRepository,
	resourceRepo repositories.ResourceRepository,
	commitmentRepo repositories.CommitmentRepository,
	blockRepo repositories.ExternalBlockRepository,
	freshener Freshener,
	cache providers.CacheProvider,
	logger zerolog.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		tenantRepo:     tenantRepo,
		resourceRepo:   resourceRepo,
		commitmentRepo: commitmentRepo,
		blockRepo:      blockRepo,
		freshener:      freshener,
		cache:          cache,
		logger:         logger.With().Str("service", "availability").Logger(),
	}
}

// ComputeSlots returns the bookable slots of the given duration inside the
// query window, ordered by start time ascending. Slots are aligned to the
// start of each free segment and packed end to end.
//
// When the tenant mirrors an external calendar, a just-in-time sync runs
// first if the resource's cursor is stale. A failed refresh degrades
// rather than blocks: slots are computed from the last mirrored state.
func (s *AvailabilityService) ComputeSlots(ctx context.Context, tenantID, resourceID string, window entities.Interval, slotDuration time.Duration) ([]entities.Interval, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if slotDuration <= 0 {
		return nil, apperrors.NewValidationError("slot duration must be positive")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resourceRepo.GetByID(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}

	if s.freshener != nil && tenant.UsesExternalCalendar() {
		if err := s.freshener.EnsureFresh(ctx, tenant, resource); err != nil {
			s.logger.Warn().Err(err).
				Str("tenant_id", tenantID).
				Str("resource_id", resourceID).
				Msg("just-in-time sync failed, serving last mirrored state")
		}
	}

	cacheKey := s.slotCacheKey(tenantID, resourceID, window, slotDuration)
	if cached, ok := s.cachedSlots(ctx, cacheKey); ok {
		return cached, nil
	}

	free, err := s.freeSegments(ctx, tenant, resource, window)
	if err != nil {
		return nil, err
	}

	var slots []entities.Interval
	for _, segment := range free {
		cursor := segment.Start
		for !cursor.Add(slotDuration).After(segment.End) {
			slots = append(slots, entities.NewInterval(cursor, cursor.Add(slotDuration)))
			cursor = cursor.Add(slotDuration)
		}
	}

	s.storeSlots(ctx, cacheKey, slots)
	return slots, nil
}

// CheckCollision returns the first obstruction overlapping the proposed
// interval, or nil when the interval is free. excludeID skips one
// commitment, used when rescheduling so a booking never collides with
// itself.
func (s *AvailabilityService) CheckCollision(ctx context.Context, tenantID, resourceID string, proposed entities.Interval, excludeID string) (*entities.Interval, error) {
	if err := proposed.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	obstructions, err := s.obstructions(ctx, tenantID, resourceID, proposed, excludeID)
	if err != nil {
		return nil, err
	}

	for _, o := range obstructions {
		if o.Overlaps(proposed) {
			hit := o
			return &hit, nil
		}
	}
	return nil, nil
}

// WithinWorkingHours reports whether the proposed interval falls entirely
// inside one of the resource's working-hour windows for its day
func (s *AvailabilityService) WithinWorkingHours(resource *entities.Resource, proposed entities.Interval) (bool, error) {
	loc, err := resource.Location()
	if err != nil {
		return false, apperrors.NewValidationError(err.Error())
	}

	hours, err := resource.HoursOn(proposed.Start, loc)
	if err != nil {
		return false, apperrors.NewValidationError(err.Error())
	}
	for _, h := range hours {
		if h.Covers(proposed) {
			return true, nil
		}
	}
	return false, nil
}

// freeSegments intersects the resource's working hours with the window and
// subtracts every obstruction, returning the remaining free intervals in
// ascending order
func (s *AvailabilityService) freeSegments(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource, window entities.Interval) ([]entities.Interval, error) {
	loc, err := resource.Location()
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	obstructions, err := s.obstructions(ctx, tenant.ID, resource.ID, window, "")
	if err != nil {
		return nil, err
	}

	var free []entities.Interval
	for day := window.Start.In(loc); day.Before(window.End.In(loc).AddDate(0, 0, 1)); day = day.AddDate(0, 0, 1) {
		hours, err := resource.HoursOn(day, loc)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		for _, h := range hours {
			segment, ok := h.Intersect(window)
			if !ok {
				continue
			}
			free = append(free, subtractAll(segment, obstructions)...)
		}
	}

	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })
	return free, nil
}

// obstructions merges obstructing commitments and mirrored external blocks
// overlapping the window, sorted by start time
func (s *AvailabilityService) obstructions(ctx context.Context, tenantID, resourceID string, window entities.Interval, excludeID string) ([]entities.Interval, error) {
	commitments, err := s.commitmentRepo.ListByResource(ctx, tenantID, resourceID, window, repositories.CommitmentFilter{
		ObstructingOnly: true,
	})
	if err != nil {
		return nil, err
	}

	blocks, err := s.blockRepo.ListByResource(ctx, tenantID, resourceID, window)
	if err != nil {
		return nil, err
	}

	obstructions := make([]entities.Interval, 0, len(commitments)+len(blocks))
	for _, c := range commitments {
		if excludeID != "" && c.ID == excludeID {
			continue
		}
		obstructions = append(obstructions, c.Interval())
	}
	for _, b := range blocks {
		obstructions = append(obstructions, b.Interval())
	}

	sort.Slice(obstructions, func(i, j int) bool { return obstructions[i].Start.Before(obstructions[j].Start) })
	return obstructions, nil
}

func subtractAll(segment entities.Interval, obstructions []entities.Interval) []entities.Interval {
	remaining := []entities.Interval{segment}
	for _, o := range obstructions {
		var next []entities.Interval
		for _, r := range remaining {
			next = append(next, r.Subtract(o)...)
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}

func (s *AvailabilityService) slotCacheKey(tenantID, resourceID string, window entities.Interval, slotDuration time.Duration) string {
	return fmt.Sprintf("%s%s:%s:%d:%d:%d",
		availabilityCachePrefix, tenantID, resourceID,
		window.Start.Unix(), window.End.Unix(), int64(slotDuration.Seconds()))
}

func (s *AvailabilityService) cachedSlots(ctx context.Context, key string) ([]entities.Interval, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var slots []entities.Interval
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (s *AvailabilityService) storeSlots(ctx context.Context, key string, slots []entities.Interval) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, availabilityCacheTTLSeconds); err != nil {
		s.logger.Debug().Err(err).Msg("failed to cache availability")
	}
}

// InvalidateResource drops every cached availability window for the
// resource. Called after any mutation that changes its schedule.
func InvalidateResource(ctx context.Context, cache providers.CacheProvider, tenantID, resourceID string) {
	if cache == nil {
		return
	}
	prefix := fmt.Sprintf("%s%s:%s:", availabilityCachePrefix, tenantID, resourceID)
	_ = cache.DeleteByPrefix(ctx, prefix)
}
