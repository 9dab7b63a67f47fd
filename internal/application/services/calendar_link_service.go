package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// LinkProviderSource is a provider source whose cached providers can be
// invalidated when a tenant's calendar configuration changes
type LinkProviderSource interface {
	ProviderSource
	Invalidate(tenantID string)
}

// LinkCalendarRequest carries the input for linking a resource to an
// external calendar
type LinkCalendarRequest struct {
	Provider      string `json:"provider"`
	CredentialRef string `json:"credential_ref"`
	CalendarID    string `json:"calendar_id"`
}

// CalendarLinkService manages the binding between a resource and its
// external calendar. Linking probes the provider with the supplied
// credentials before anything is persisted, then runs an initial full
// reconciliation so availability reflects the external schedule right
// away.
type CalendarLinkService struct {
	tenantRepo     repositories.TenantRepository
	resourceRepo   repositories.ResourceRepository
	blockRepo      repositories.ExternalBlockRepository
	cursorRepo     repositories.SyncCursorRepository
	providerSource LinkProviderSource
	sync           *SyncService
	logger         zerolog.Logger

	now func() time.Time
}

// NewCalendarLinkService creates a calendar link service
func NewCalendarLinkService(
	tenantRepo repositories.TenantRepository,
	resourceRepo repositories.ResourceRepository,
	blockRepo repositories.ExternalBlockRepository,
	cursorRepo repositories.SyncCursorRepository,
	providerSource LinkProviderSource,
	sync *SyncService,
	logger zerolog.Logger,
) *CalendarLinkService {
	return &CalendarLinkService{
		tenantRepo:     tenantRepo,
		resourceRepo:   resourceRepo,
		blockRepo:      blockRepo,
		cursorRepo:     cursorRepo,
		providerSource: providerSource,
		sync:           sync,
		logger:         logger.With().Str("service", "calendar_link").Logger(),
		now:            time.Now,
	}
}

// Link binds the resource to an external calendar and switches the tenant
// to external calendar mode. The credentials are verified with a probe
// pull before the configuration is saved; nothing is persisted when the
// probe fails.
func (s *CalendarLinkService) Link(ctx context.Context, tenantID, resourceID string, req LinkCalendarRequest) (*entities.SyncCursor, error) {
	if req.Provider == "" {
		return nil, apperrors.NewValidationError("provider is required")
	}
	if req.CalendarID == "" {
		return nil, apperrors.NewValidationError("calendar_id is required")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resourceRepo.GetByID(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}

	tenant.CalendarMode = entities.CalendarModeExternal
	tenant.Provider = req.Provider
	tenant.CredentialRef = req.CredentialRef
	tenant.UpdatedAt = s.now().UTC()
	resource.CalendarID = req.CalendarID
	resource.UpdatedAt = s.now().UTC()

	// Drop any provider cached under the old credentials before probing
	s.providerSource.Invalidate(tenantID)

	provider, err := s.providerSource.ProviderFor(ctx, tenant)
	if err != nil {
		return nil, err
	}

	probeWindow := entities.NewInterval(s.now(), s.now().Add(time.Hour))
	ref := providers.CalendarRef{TenantID: tenantID, ResourceID: resourceID, CalendarID: req.CalendarID}
	if _, err := provider.PullBusyIntervals(ctx, ref, probeWindow); err != nil {
		s.providerSource.Invalidate(tenantID)
		return nil, err
	}

	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	if err := s.resourceRepo.Update(ctx, resource); err != nil {
		return nil, err
	}

	if err := s.sync.SyncResource(ctx, tenant, resource); err != nil {
		s.logger.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("resource_id", resourceID).
			Msg("initial reconciliation after linking failed, scheduler will retry")
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("resource_id", resourceID).
		Str("provider", req.Provider).
		Msg("calendar linked")

	return s.cursorRepo.Get(ctx, tenantID, resourceID)
}

// Unlink detaches the resource from its external calendar and clears its
// mirrored blocks. When no other resource of the tenant remains linked
// the tenant reverts to local calendar mode.
func (s *CalendarLinkService) Unlink(ctx context.Context, tenantID, resourceID string) error {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	resource, err := s.resourceRepo.GetByID(ctx, tenantID, resourceID)
	if err != nil {
		return err
	}

	resource.CalendarID = ""
	resource.UpdatedAt = s.now().UTC()
	if err := s.resourceRepo.Update(ctx, resource); err != nil {
		return err
	}

	if err := s.blockRepo.DeleteByResource(ctx, tenantID, resourceID); err != nil {
		return err
	}

	siblings, err := s.resourceRepo.ListByTenant(ctx, tenantID, false)
	if err != nil {
		return err
	}
	anyLinked := false
	for _, sibling := range siblings {
		if sibling.ID != resourceID && sibling.CalendarID != "" {
			anyLinked = true
			break
		}
	}
	if !anyLinked {
		tenant.CalendarMode = entities.CalendarModeLocal
		tenant.Provider = ""
		tenant.CredentialRef = ""
		tenant.UpdatedAt = s.now().UTC()
		if err := s.tenantRepo.Update(ctx, tenant); err != nil {
			return err
		}
		s.providerSource.Invalidate(tenantID)
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("resource_id", resourceID).
		Msg("calendar unlinked")
	return nil
}

// Status returns the resource's reconciliation cursor. A resource that
// was never synced has no cursor.
func (s *CalendarLinkService) Status(ctx context.Context, tenantID, resourceID string) (*entities.SyncCursor, error) {
	if _, err := s.resourceRepo.GetByID(ctx, tenantID, resourceID); err != nil {
		return nil, err
	}
	cursor, err := s.cursorRepo.Get(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}
	if cursor == nil {
		return nil, apperrors.NewNotFoundError("resource has no sync history")
	}
	return cursor, nil
}

// TriggerSync forces an immediate reconciliation of the resource,
// regardless of cursor freshness
func (s *CalendarLinkService) TriggerSync(ctx context.Context, tenantID, resourceID string) (*entities.SyncCursor, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.UsesExternalCalendar() {
		return nil, apperrors.NewValidationError("tenant is not in external calendar mode")
	}
	resource, err := s.resourceRepo.GetByID(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}

	if err := s.sync.SyncResource(ctx, tenant, resource); err != nil {
		return nil, err
	}
	return s.cursorRepo.Get(ctx, tenantID, resourceID)
}
