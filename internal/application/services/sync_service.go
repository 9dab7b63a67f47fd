package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	"github.com/ventaflow/scheduling/internal/infrastructure/observability"
	"github.com/ventaflow/scheduling/pkg/config"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

const (
	// syncWorkers bounds how many resources reconcile concurrently per cycle
	syncWorkers = 4

	// pendingSyncBatch is how many unsynced commitments each cycle retries
	pendingSyncBatch = 20
)

// SyncService reconciles mirrored external calendar state. It runs a
// scheduled pull-diff-upsert cycle across all externally linked resources
// and exposes a just-in-time entry point used by the availability path
// when a resource's cursor breaches the freshness threshold.
//
// Sync is idempotent: a cycle against an unchanged upstream calendar
// mutates nothing. Failures never remove mirrored blocks; the last
// successful pull stays authoritative until the provider recovers.
type SyncService struct {
	tenantRepo     repositories.TenantRepository
	resourceRepo   repositories.ResourceRepository
	commitmentRepo repositories.CommitmentRepository
	blockRepo      repositories.ExternalBlockRepository
	cursorRepo     repositories.SyncCursorRepository
	providerSource ProviderSource
	eventBus       providers.EventBus
	cache          providers.CacheProvider
	cfg            config.SyncConfig
	metrics        *observability.Metrics
	logger         zerolog.Logger

	// locker collapses concurrent just-in-time syncs of the same resource
	locker *ResourceLocker

	now func() time.Time
}

// NewSyncService creates a reconciliation service. The event bus, cache
// and metrics are optional.
func NewSyncService(
	tenantRepo repositories.TenantRepository,
	resourceRepo repositories.ResourceRepository,
	commitmentRepo repositories.CommitmentRepository,
	blockRepo repositories.ExternalBlockRepository,
	cursorRepo repositories.SyncCursorRepository,
	providerSource ProviderSource,
	eventBus providers.EventBus,
	cache providers.CacheProvider,
	cfg config.SyncConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		tenantRepo:     tenantRepo,
		resourceRepo:   resourceRepo,
		commitmentRepo: commitmentRepo,
		blockRepo:      blockRepo,
		cursorRepo:     cursorRepo,
		providerSource: providerSource,
		eventBus:       eventBus,
		cache:          cache,
		cfg:            cfg,
		metrics:        metrics,
		logger:         logger.With().Str("service", "sync").Logger(),
		locker:         NewResourceLocker(),
		now:            time.Now,
	}
}

// Start runs the scheduled reconciliation loop until the context is
// cancelled
func (s *SyncService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.logger.Info().
			Dur("interval", s.cfg.Interval).
			Dur("lookahead", s.cfg.Lookahead).
			Msg("reconciliation scheduler started")

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("reconciliation scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// RunCycle reconciles every externally linked resource once, with bounded
// concurrency. Resources whose grant was revoked are skipped until the
// calendar is re-linked.
func (s *SyncService) RunCycle(ctx context.Context) {
	resources, err := s.resourceRepo.ListExternallyLinked(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list externally linked resources")
		return
	}

	tenants := make(map[string]*entities.Tenant)
	sem := make(chan struct{}, syncWorkers)
	var wg sync.WaitGroup

	for _, resource := range resources {
		tenant, ok := tenants[resource.TenantID]
		if !ok {
			tenant, err = s.tenantRepo.GetByID(ctx, resource.TenantID)
			if err != nil {
				s.logger.Error().Err(err).Str("tenant_id", resource.TenantID).Msg("failed to load tenant for sync")
				continue
			}
			tenants[resource.TenantID] = tenant
		}

		cursor, err := s.cursorRepo.Get(ctx, resource.TenantID, resource.ID)
		if err == nil && cursor != nil && cursor.Health == entities.SyncHealthUnauthorized {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(tenant *entities.Tenant, resource *entities.Resource) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.syncResource(ctx, tenant, resource, false); err != nil {
				s.logger.Warn().Err(err).
					Str("tenant_id", tenant.ID).
					Str("resource_id", resource.ID).
					Msg("reconciliation cycle failed for resource")
			}
		}(tenant, resource)
	}

	wg.Wait()
}

// EnsureFresh runs a just-in-time sync when the resource's cursor is
// older than the freshness threshold. A resource with a revoked grant is
// left alone so availability keeps serving the last mirrored state.
func (s *SyncService) EnsureFresh(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource) error {
	if !tenant.UsesExternalCalendar() {
		return nil
	}

	cursor, err := s.cursorRepo.Get(ctx, tenant.ID, resource.ID)
	if err != nil {
		return err
	}
	if cursor != nil && cursor.Health == entities.SyncHealthUnauthorized {
		return nil
	}
	if !cursor.StaleAt(s.now(), s.cfg.FreshnessThreshold) {
		return nil
	}

	return s.syncResource(ctx, tenant, resource, false)
}

// SyncResource performs one pull-diff-upsert reconciliation of the
// resource's mirrored busy intervals, advances the cursor and retries any
// commitments still pending outbound propagation. Explicit callers sync
// regardless of cursor freshness.
func (s *SyncService) SyncResource(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource) error {
	return s.syncResource(ctx, tenant, resource, true)
}

func (s *SyncService) syncResource(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource, force bool) error {
	unlock := s.locker.Lock(tenant.ID, resource.ID)
	defer unlock()

	started := s.now()

	cursor, err := s.cursorRepo.Get(ctx, tenant.ID, resource.ID)
	if err != nil {
		return err
	}
	// Re-check staleness under the lock: a concurrent caller may have
	// just finished the same sync. Forced syncs skip the debounce.
	if !force && !cursor.StaleAt(started, minDuration(s.cfg.FreshnessThreshold/2, 10*time.Second)) {
		return nil
	}

	provider, err := s.providerSource.ProviderFor(ctx, tenant)
	if err != nil {
		s.recordFailure(ctx, tenant, resource, cursor, err)
		observability.RecordSyncCycle(ctx, s.metrics, resource.ID, s.now().Sub(started), true)
		return err
	}

	ref := providers.CalendarRef{
		TenantID:   tenant.ID,
		ResourceID: resource.ID,
		CalendarID: resource.CalendarID,
	}
	window := entities.NewInterval(started, started.Add(s.cfg.Lookahead))

	pulled, err := provider.PullBusyIntervals(ctx, ref, window)
	if err != nil {
		s.recordFailure(ctx, tenant, resource, cursor, err)
		observability.RecordSyncCycle(ctx, s.metrics, resource.ID, s.now().Sub(started), true)
		return err
	}

	changed, err := s.applyPull(ctx, tenant.ID, resource.ID, window, pulled)
	if err != nil {
		observability.RecordSyncCycle(ctx, s.metrics, resource.ID, s.now().Sub(started), true)
		return err
	}

	recovered := cursor != nil && cursor.Health != entities.SyncHealthOK
	next := &entities.SyncCursor{
		TenantID:     tenant.ID,
		ResourceID:   resource.ID,
		LastSyncAt:   started.UTC(),
		Health:       entities.SyncHealthOK,
		FailureCount: 0,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.cursorRepo.Upsert(ctx, next); err != nil {
		return err
	}

	if changed {
		InvalidateResource(ctx, s.cache, tenant.ID, resource.ID)
	}
	if recovered {
		s.publishSyncEvent(ctx, entities.BookingEventSyncRecovered, tenant.ID, resource.ID)
	}

	s.retryPendingPropagation(ctx, tenant, resource, provider, ref)

	observability.RecordSyncCycle(ctx, s.metrics, resource.ID, s.now().Sub(started), false)
	s.logger.Debug().
		Str("tenant_id", tenant.ID).
		Str("resource_id", resource.ID).
		Int("pulled", len(pulled)).
		Bool("changed", changed).
		Msg("resource reconciled")
	return nil
}

// applyPull diffs the pulled busy intervals against the mirrored blocks,
// upserting new or moved ones and removing those no longer upstream.
// Returns whether any mirrored state changed.
func (s *SyncService) applyPull(ctx context.Context, tenantID, resourceID string, window entities.Interval, pulled []providers.BusyInterval) (bool, error) {
	existing, err := s.blockRepo.ListByResource(ctx, tenantID, resourceID, window)
	if err != nil {
		return false, err
	}
	byExternalID := make(map[string]*entities.ExternalBlock, len(existing))
	for _, block := range existing {
		byExternalID[block.ExternalID] = block
	}

	nowUTC := s.now().UTC()
	changed := false
	stillValid := make([]string, 0, len(pulled))

	for _, busy := range pulled {
		if busy.ExternalID == "" || !busy.End.After(busy.Start) {
			continue
		}
		stillValid = append(stillValid, busy.ExternalID)

		interval := entities.NewInterval(busy.Start, busy.End)
		if current, ok := byExternalID[busy.ExternalID]; ok &&
			current.Interval().Equal(interval) && current.Summary == busy.Summary {
			continue
		}

		block := &entities.ExternalBlock{
			ID:         uuid.New().String(),
			TenantID:   tenantID,
			ResourceID: resourceID,
			ExternalID: busy.ExternalID,
			StartAt:    interval.Start,
			EndAt:      interval.End,
			Summary:    busy.Summary,
			PulledAt:   nowUTC,
			CreatedAt:  nowUTC,
			UpdatedAt:  nowUTC,
		}
		if err := s.blockRepo.Upsert(ctx, block); err != nil {
			return changed, err
		}
		changed = true
	}

	removed, err := s.blockRepo.DeleteNotIn(ctx, tenantID, resourceID, stillValid)
	if err != nil {
		return changed, err
	}
	return changed || removed > 0, nil
}

// recordFailure marks the cursor degraded or unauthorized without touching
// mirrored blocks, publishing a degradation event on the first transition
func (s *SyncService) recordFailure(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource, cursor *entities.SyncCursor, cause error) {
	health := entities.SyncHealthDegraded
	if apperrors.IsType(cause, apperrors.ErrorTypeUnauthorized) {
		health = entities.SyncHealthUnauthorized
	}

	next := &entities.SyncCursor{
		TenantID:   tenant.ID,
		ResourceID: resource.ID,
		Health:     health,
		UpdatedAt:  s.now().UTC(),
	}
	wasHealthy := cursor == nil || cursor.Health == entities.SyncHealthOK
	if cursor != nil {
		next.LastSyncAt = cursor.LastSyncAt
		next.FailureCount = cursor.FailureCount + 1
	} else {
		next.FailureCount = 1
	}

	if err := s.cursorRepo.Upsert(ctx, next); err != nil {
		s.logger.Error().Err(err).
			Str("resource_id", resource.ID).
			Msg("failed to persist sync cursor after failure")
	}

	logEvent := s.logger.Warn()
	if health == entities.SyncHealthUnauthorized {
		logEvent = s.logger.Error()
	}
	logEvent.Err(cause).
		Str("tenant_id", tenant.ID).
		Str("resource_id", resource.ID).
		Str("health", string(health)).
		Int("failure_count", next.FailureCount).
		Msg("calendar reconciliation failed")

	if wasHealthy {
		s.publishSyncEvent(ctx, entities.BookingEventSyncDegraded, tenant.ID, resource.ID)
	}
}

// retryPendingPropagation finishes outbound pushes that failed at booking
// time, oldest first
func (s *SyncService) retryPendingPropagation(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource, provider providers.CalendarProvider, ref providers.CalendarRef) {
	pending, err := s.commitmentRepo.ListPendingSync(ctx, tenant.ID, pendingSyncBatch)
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("failed to list commitments pending sync")
		return
	}

	for _, commitment := range pending {
		if commitment.ResourceID != resource.ID {
			continue
		}
		if err := propagateCommitment(ctx, provider, ref, commitment); err != nil {
			s.logger.Warn().Err(err).
				Str("commitment_id", commitment.ID).
				Msg("pending propagation retry failed")
			continue
		}

		commitment.SyncState = entities.SyncStateSynced
		commitment.UpdatedAt = s.now().UTC()
		if err := s.commitmentRepo.Update(ctx, commitment, false); err != nil {
			s.logger.Error().Err(err).
				Str("commitment_id", commitment.ID).
				Msg("failed to persist sync state after retry")
		}
	}
}

func (s *SyncService) publishSyncEvent(ctx context.Context, eventType entities.BookingEventType, tenantID, resourceID string) {
	if s.eventBus == nil {
		return
	}
	event := &entities.BookingEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		TenantID:   tenantID,
		ResourceID: resourceID,
		OccurredAt: s.now().UTC(),
	}
	for _, channel := range []string{providers.EventChannelBookings, providers.GetTenantChannel(tenantID)} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			s.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish sync event")
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
