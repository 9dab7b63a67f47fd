package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	"github.com/ventaflow/scheduling/internal/infrastructure/observability"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
	"github.com/ventaflow/scheduling/pkg/retry"
)

// ProviderSource resolves the calendar provider for a tenant
type ProviderSource interface {
	ProviderFor(ctx context.Context, tenant *entities.Tenant) (providers.CalendarProvider, error)
}

// Notifier delivers booking messages to the contact. Delivery is best
// effort and never affects the outcome of a booking operation.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment) error
	SendRescheduleNotice(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment) error
	SendCancellationNotice(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment) error
}

// CreateBookingRequest carries the input for a new booking
type CreateBookingRequest struct {
	TenantID   string    `json:"tenant_id"`
	ResourceID string    `json:"resource_id"`
	ContactRef string    `json:"contact_ref"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Notes      string    `json:"notes"`
}

// BookingService orchestrates the commitment lifecycle. Validation and
// commit happen under per-resource mutual exclusion; external calendar
// calls always happen after the lock is released, so a slow provider
// never extends the critical section. A booking whose external push fails
// stays valid locally with sync state pending and is retried by the
// reconciliation service.
type BookingService struct {
	tenantRepo     repositories.TenantRepository
	resourceRepo   repositories.ResourceRepository
	commitmentRepo repositories.CommitmentRepository
	availability   *AvailabilityService
	providerSource ProviderSource
	locker         *ResourceLocker
	eventBus       providers.EventBus
	cache          providers.CacheProvider
	notifier       Notifier
	metrics        *observability.Metrics
	logger         zerolog.Logger

	now func() time.Time
}

// NewBookingService creates a booking service. The event bus, cache,
// notifier and metrics are optional.
func NewBookingService(
	tenantRepo repositories.TenantRepository,
	resourceRepo repositories.ResourceRepository,
	commitmentRepo repositories.CommitmentRepository,
	availability *AvailabilityService,
	providerSource ProviderSource,
	locker *ResourceLocker,
	eventBus providers.EventBus,
	cache providers.CacheProvider,
	notifier Notifier,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *BookingService {
	return &BookingService{
		tenantRepo:     tenantRepo,
		resourceRepo:   resourceRepo,
		commitmentRepo: commitmentRepo,
		availability:   availability,
		providerSource: providerSource,
		locker:         locker,
		eventBus:       eventBus,
		cache:          cache,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger.With().Str("service", "booking").Logger(),
		now:            time.Now,
	}
}

// Create books the proposed interval for the resource. On success the
// commitment is scheduled; when its interval overlaps an existing
// obstruction a conflict error is returned carrying the offending
// interval so the caller can immediately offer alternatives.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*entities.Commitment, error) {
	if req.TenantID == "" || req.ResourceID == "" {
		return nil, apperrors.NewValidationError("tenant_id and resource_id are required")
	}
	if req.ContactRef == "" {
		return nil, apperrors.NewValidationError("contact_ref is required")
	}
	proposed := entities.NewInterval(req.StartAt, req.EndAt)
	if err := proposed.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if proposed.Start.Before(s.now()) {
		return nil, apperrors.NewValidationError("cannot book an interval in the past")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resourceRepo.GetByID(ctx, req.TenantID, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.IsActive {
		return nil, apperrors.NewValidationError("resource is not accepting bookings")
	}

	withinHours, err := s.availability.WithinWorkingHours(resource, proposed)
	if err != nil {
		return nil, err
	}
	if !withinHours {
		return nil, apperrors.NewValidationError("interval falls outside the resource's working hours")
	}

	syncState := entities.SyncStateNone
	if tenant.UsesExternalCalendar() {
		syncState = entities.SyncStatePending
	}

	nowUTC := s.now().UTC()
	commitment := &entities.Commitment{
		ID:         uuid.New().String(),
		TenantID:   req.TenantID,
		ResourceID: req.ResourceID,
		ContactRef: req.ContactRef,
		StartAt:    proposed.Start,
		EndAt:      proposed.End,
		Status:     entities.CommitmentStatusScheduled,
		Origin:     entities.CommitmentOriginLocal,
		SyncState:  syncState,
		Notes:      req.Notes,
		CreatedAt:  nowUTC,
		UpdatedAt:  nowUTC,
	}

	unlock := s.locker.Lock(req.TenantID, req.ResourceID)
	conflict, err := s.availability.CheckCollision(ctx, req.TenantID, req.ResourceID, proposed, "")
	if err == nil && conflict != nil {
		err = apperrors.NewConflictError("interval overlaps an existing commitment").
			WithDetail("conflicting_interval", *conflict)
	}
	if err == nil {
		err = s.commitmentRepo.CreateIfFree(ctx, commitment)
	}
	unlock()

	observability.RecordBookingAttempt(ctx, s.metrics, "create", apperrors.IsType(err, apperrors.ErrorTypeConflict))
	if err != nil {
		return nil, err
	}

	if tenant.UsesExternalCalendar() {
		s.propagate(ctx, tenant, resource, commitment)
	}

	s.afterMutation(ctx, entities.BookingEventCreated, commitment)
	s.notify(ctx, resource, commitment, entities.BookingEventCreated)

	return commitment, nil
}

// Reschedule moves an existing commitment to a new interval under the
// same validation as a fresh booking, excluding the commitment itself
// from collision checks
func (s *BookingService) Reschedule(ctx context.Context, tenantID, commitmentID string, startAt, endAt time.Time) (*entities.Commitment, error) {
	proposed := entities.NewInterval(startAt, endAt)
	if err := proposed.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if proposed.Start.Before(s.now()) {
		return nil, apperrors.NewValidationError("cannot reschedule into the past")
	}

	commitment, err := s.commitmentRepo.GetByID(ctx, tenantID, commitmentID)
	if err != nil {
		return nil, err
	}
	if commitment.Terminal() {
		return nil, apperrors.NewValidationError("cannot reschedule a completed or cancelled booking")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resourceRepo.GetByID(ctx, tenantID, commitment.ResourceID)
	if err != nil {
		return nil, err
	}

	withinHours, err := s.availability.WithinWorkingHours(resource, proposed)
	if err != nil {
		return nil, err
	}
	if !withinHours {
		return nil, apperrors.NewValidationError("interval falls outside the resource's working hours")
	}

	commitment.StartAt = proposed.Start
	commitment.EndAt = proposed.End
	commitment.UpdatedAt = s.now().UTC()
	if tenant.UsesExternalCalendar() {
		commitment.SyncState = entities.SyncStatePending
	}

	unlock := s.locker.Lock(tenantID, commitment.ResourceID)
	conflict, err := s.availability.CheckCollision(ctx, tenantID, commitment.ResourceID, proposed, commitment.ID)
	if err == nil && conflict != nil {
		err = apperrors.NewConflictError("interval overlaps an existing commitment").
			WithDetail("conflicting_interval", *conflict)
	}
	if err == nil {
		err = s.commitmentRepo.Update(ctx, commitment, true)
	}
	unlock()

	observability.RecordBookingAttempt(ctx, s.metrics, "reschedule", apperrors.IsType(err, apperrors.ErrorTypeConflict))
	if err != nil {
		return nil, err
	}

	if tenant.UsesExternalCalendar() {
		s.propagate(ctx, tenant, resource, commitment)
	}

	s.afterMutation(ctx, entities.BookingEventRescheduled, commitment)
	s.notify(ctx, resource, commitment, entities.BookingEventRescheduled)

	return commitment, nil
}

// Confirm transitions a scheduled commitment to confirmed
func (s *BookingService) Confirm(ctx context.Context, tenantID, commitmentID string) (*entities.Commitment, error) {
	commitment, err := s.commitmentRepo.GetByID(ctx, tenantID, commitmentID)
	if err != nil {
		return nil, err
	}
	if commitment.Status == entities.CommitmentStatusConfirmed {
		return commitment, nil
	}
	if commitment.Status != entities.CommitmentStatusScheduled {
		return nil, apperrors.NewValidationError("only scheduled bookings can be confirmed")
	}

	commitment.Status = entities.CommitmentStatusConfirmed
	commitment.UpdatedAt = s.now().UTC()
	if err := s.commitmentRepo.Update(ctx, commitment, false); err != nil {
		return nil, err
	}
	return commitment, nil
}

// Complete marks a commitment as held. Completed commitments release
// their interval.
func (s *BookingService) Complete(ctx context.Context, tenantID, commitmentID string) (*entities.Commitment, error) {
	commitment, err := s.commitmentRepo.GetByID(ctx, tenantID, commitmentID)
	if err != nil {
		return nil, err
	}
	if commitment.Status == entities.CommitmentStatusCompleted {
		return commitment, nil
	}
	if commitment.Status == entities.CommitmentStatusCancelled {
		return nil, apperrors.NewValidationError("cannot complete a cancelled booking")
	}

	commitment.Status = entities.CommitmentStatusCompleted
	commitment.UpdatedAt = s.now().UTC()
	if err := s.commitmentRepo.Update(ctx, commitment, false); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, entities.BookingEventType(""), commitment)
	return commitment, nil
}

// Cancel soft-terminates a commitment, freeing its interval. Cancelling
// an already-cancelled booking is a no-op. The mirrored external event is
// removed best effort; a failed removal leaves the commitment pending so
// the reconciliation service finishes the cleanup.
func (s *BookingService) Cancel(ctx context.Context, tenantID, commitmentID string) (*entities.Commitment, error) {
	commitment, err := s.commitmentRepo.GetByID(ctx, tenantID, commitmentID)
	if err != nil {
		return nil, err
	}
	if commitment.Status == entities.CommitmentStatusCancelled {
		return commitment, nil
	}
	if commitment.Status == entities.CommitmentStatusCompleted {
		return nil, apperrors.NewValidationError("cannot cancel a completed booking")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resourceRepo.GetByID(ctx, tenantID, commitment.ResourceID)
	if err != nil {
		return nil, err
	}

	commitment.Status = entities.CommitmentStatusCancelled
	commitment.UpdatedAt = s.now().UTC()
	if tenant.UsesExternalCalendar() && commitment.ExternalEventID != nil {
		commitment.SyncState = entities.SyncStatePending
	} else if commitment.SyncState == entities.SyncStatePending {
		// Never made it upstream, so there is nothing left to clean up
		commitment.SyncState = entities.SyncStateNone
	}
	if err := s.commitmentRepo.Update(ctx, commitment, false); err != nil {
		return nil, err
	}

	if tenant.UsesExternalCalendar() && commitment.ExternalEventID != nil {
		s.propagate(ctx, tenant, resource, commitment)
	}

	s.afterMutation(ctx, entities.BookingEventCancelled, commitment)
	s.notify(ctx, resource, commitment, entities.BookingEventCancelled)

	return commitment, nil
}

// Get retrieves a commitment scoped to its tenant
func (s *BookingService) Get(ctx context.Context, tenantID, commitmentID string) (*entities.Commitment, error) {
	return s.commitmentRepo.GetByID(ctx, tenantID, commitmentID)
}

// ListByResource retrieves a resource's commitments inside the window
func (s *BookingService) ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval, filter repositories.CommitmentFilter) ([]*entities.Commitment, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return s.commitmentRepo.ListByResource(ctx, tenantID, resourceID, window, filter)
}

// ListByContact retrieves a contact's commitments inside the window
func (s *BookingService) ListByContact(ctx context.Context, tenantID, contactRef string, window entities.Interval, filter repositories.CommitmentFilter) ([]*entities.Commitment, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return s.commitmentRepo.ListByContact(ctx, tenantID, contactRef, window, filter)
}

// propagate pushes the commitment's current state to the tenant's external
// calendar with bounded retries. Failure is absorbed: the commitment keeps
// sync state pending and the reconciliation service retries it.
func (s *BookingService) propagate(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource, commitment *entities.Commitment) {
	provider, err := s.providerSource.ProviderFor(ctx, tenant)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("tenant_id", tenant.ID).
			Str("commitment_id", commitment.ID).
			Msg("calendar provider unavailable, booking left pending sync")
		return
	}

	ref := providers.CalendarRef{
		TenantID:   tenant.ID,
		ResourceID: resource.ID,
		CalendarID: resource.CalendarID,
	}

	cfg := retry.PropagationConfig()
	cfg.Retryable = apperrors.Retryable

	err = retry.DoWithLog(ctx, cfg, "calendar-propagation", func() error {
		return propagateCommitment(ctx, provider, ref, commitment)
	}, func(attempt int, err error, nextDelay time.Duration) {
		observability.RecordPropagationRetry(ctx, s.metrics, tenant.Provider)
		s.logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Str("commitment_id", commitment.ID).
			Msg("external calendar propagation failed, retrying")
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("commitment_id", commitment.ID).
			Msg("external calendar propagation exhausted, booking left pending sync")
		return
	}

	commitment.SyncState = entities.SyncStateSynced
	commitment.UpdatedAt = s.now().UTC()
	if err := s.commitmentRepo.Update(ctx, commitment, false); err != nil {
		s.logger.Error().Err(err).
			Str("commitment_id", commitment.ID).
			Msg("failed to persist sync state after propagation")
	}
}

// propagateCommitment performs one outbound reconciliation of a commitment
// against the external calendar: terminal commitments delete their
// mirrored event, live ones create or move it
func propagateCommitment(ctx context.Context, provider providers.CalendarProvider, ref providers.CalendarRef, commitment *entities.Commitment) error {
	if commitment.Terminal() {
		if commitment.ExternalEventID == nil {
			return nil
		}
		if err := provider.DeleteEvent(ctx, ref, *commitment.ExternalEventID); err != nil {
			return err
		}
		commitment.ExternalEventID = nil
		return nil
	}

	if commitment.ExternalEventID != nil {
		return provider.UpdateEvent(ctx, ref, *commitment.ExternalEventID, commitment)
	}

	externalID, err := provider.PushEvent(ctx, ref, commitment)
	if err != nil {
		return err
	}
	commitment.ExternalEventID = &externalID
	return nil
}

// afterMutation invalidates cached availability and publishes the event
func (s *BookingService) afterMutation(ctx context.Context, eventType entities.BookingEventType, commitment *entities.Commitment) {
	InvalidateResource(ctx, s.cache, commitment.TenantID, commitment.ResourceID)

	if s.eventBus == nil || eventType == "" {
		return
	}

	interval := commitment.Interval()
	event := &entities.BookingEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		TenantID:     commitment.TenantID,
		ResourceID:   commitment.ResourceID,
		CommitmentID: commitment.ID,
		Interval:     &interval,
		OccurredAt:   s.now().UTC(),
	}

	for _, channel := range []string{providers.EventChannelBookings, providers.GetTenantChannel(commitment.TenantID)} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			s.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish booking event")
		}
	}
}

func (s *BookingService) notify(ctx context.Context, resource *entities.Resource, commitment *entities.Commitment, eventType entities.BookingEventType) {
	if s.notifier == nil {
		return
	}

	var err error
	switch eventType {
	case entities.BookingEventCreated:
		err = s.notifier.SendBookingConfirmation(ctx, resource, commitment)
	case entities.BookingEventRescheduled:
		err = s.notifier.SendRescheduleNotice(ctx, resource, commitment)
	case entities.BookingEventCancelled:
		err = s.notifier.SendCancellationNotice(ctx, resource, commitment)
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("commitment_id", commitment.ID).
			Msg("failed to send booking notification")
	}
}
