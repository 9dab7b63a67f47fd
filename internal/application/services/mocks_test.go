package services_test

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// In-memory fakes. The commitment fake enforces the same atomic
// no-overlap write the Postgres adapter does, so concurrency behavior can
// be exercised without a database.

type fakeTenantRepo struct {
	mu      sync.Mutex
	tenants map[string]*entities.Tenant
}

func newFakeTenantRepo(tenants ...*entities.Tenant) *fakeTenantRepo {
	repo := &fakeTenantRepo{tenants: make(map[string]*entities.Tenant)}
	for _, t := range tenants {
		repo.tenants[t.ID] = t
	}
	return repo
}

func (r *fakeTenantRepo) GetByID(ctx context.Context, id string) (*entities.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenant, ok := r.tenants[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("tenant not found")
	}
	copied := *tenant
	return &copied, nil
}

func (r *fakeTenantRepo) Update(ctx context.Context, tenant *entities.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *tenant
	r.tenants[tenant.ID] = &copied
	return nil
}

type fakeResourceRepo struct {
	mu        sync.Mutex
	resources map[string]*entities.Resource
}

func newFakeResourceRepo(resources ...*entities.Resource) *fakeResourceRepo {
	repo := &fakeResourceRepo{resources: make(map[string]*entities.Resource)}
	for _, res := range resources {
		repo.resources[res.TenantID+":"+res.ID] = res
	}
	return repo
}

func (r *fakeResourceRepo) GetByID(ctx context.Context, tenantID, id string) (*entities.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource, ok := r.resources[tenantID+":"+id]
	if !ok {
		return nil, apperrors.NewNotFoundError("resource not found")
	}
	copied := *resource
	return &copied, nil
}

func (r *fakeResourceRepo) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*entities.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Resource
	for _, resource := range r.resources {
		if resource.TenantID != tenantID {
			continue
		}
		if activeOnly && !resource.IsActive {
			continue
		}
		copied := *resource
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeResourceRepo) ListExternallyLinked(ctx context.Context) ([]*entities.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Resource
	for _, resource := range r.resources {
		if resource.CalendarID == "" || !resource.IsActive {
			continue
		}
		copied := *resource
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeResourceRepo) Update(ctx context.Context, resource *entities.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *resource
	r.resources[resource.TenantID+":"+resource.ID] = &copied
	return nil
}

type fakeCommitmentRepo struct {
	mu    sync.Mutex
	items map[string]*entities.Commitment
}

func newFakeCommitmentRepo() *fakeCommitmentRepo {
	return &fakeCommitmentRepo{items: make(map[string]*entities.Commitment)}
}

func (r *fakeCommitmentRepo) CreateIfFree(ctx context.Context, commitment *entities.Commitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	proposed := commitment.Interval()
	for _, existing := range r.items {
		if existing.TenantID != commitment.TenantID || existing.ResourceID != commitment.ResourceID {
			continue
		}
		if existing.Obstructs() && existing.Interval().Overlaps(proposed) {
			return apperrors.NewConflictError("interval overlaps an existing commitment").
				WithDetail("conflicting_interval", existing.Interval())
		}
	}
	copied := *commitment
	r.items[commitment.ID] = &copied
	return nil
}

func (r *fakeCommitmentRepo) GetByID(ctx context.Context, tenantID, id string) (*entities.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	commitment, ok := r.items[id]
	if !ok || commitment.TenantID != tenantID {
		return nil, apperrors.NewNotFoundError("commitment not found")
	}
	copied := *commitment
	return &copied, nil
}

func (r *fakeCommitmentRepo) Update(ctx context.Context, commitment *entities.Commitment, checkOverlap bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[commitment.ID]; !ok {
		return apperrors.NewNotFoundError("commitment not found")
	}
	if checkOverlap && commitment.Obstructs() {
		proposed := commitment.Interval()
		for _, existing := range r.items {
			if existing.ID == commitment.ID ||
				existing.TenantID != commitment.TenantID ||
				existing.ResourceID != commitment.ResourceID {
				continue
			}
			if existing.Obstructs() && existing.Interval().Overlaps(proposed) {
				return apperrors.NewConflictError("interval overlaps an existing commitment").
					WithDetail("conflicting_interval", existing.Interval())
			}
		}
	}
	copied := *commitment
	r.items[commitment.ID] = &copied
	return nil
}

func (r *fakeCommitmentRepo) ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval, filter repositories.CommitmentFilter) ([]*entities.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Commitment
	for _, c := range r.items {
		if c.TenantID != tenantID || c.ResourceID != resourceID {
			continue
		}
		if !c.Interval().Overlaps(window) {
			continue
		}
		if filter.ObstructingOnly && !c.Obstructs() {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, c.Status) {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *fakeCommitmentRepo) ListByContact(ctx context.Context, tenantID, contactRef string, window entities.Interval, filter repositories.CommitmentFilter) ([]*entities.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Commitment
	for _, c := range r.items {
		if c.TenantID != tenantID || c.ContactRef != contactRef {
			continue
		}
		if !c.Interval().Overlaps(window) {
			continue
		}
		if filter.ObstructingOnly && !c.Obstructs() {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *fakeCommitmentRepo) ListPendingSync(ctx context.Context, tenantID string, limit int) ([]*entities.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Commitment
	for _, c := range r.items {
		if c.TenantID != tenantID || c.SyncState != entities.SyncStatePending {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []entities.CommitmentStatus, status entities.CommitmentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeBlockRepo struct {
	mu          sync.Mutex
	blocks      map[string]*entities.ExternalBlock
	upsertCount int
}

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{blocks: make(map[string]*entities.ExternalBlock)}
}

func blockKey(tenantID, resourceID, externalID string) string {
	return tenantID + ":" + resourceID + ":" + externalID
}

func (r *fakeBlockRepo) Upsert(ctx context.Context, block *entities.ExternalBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertCount++
	copied := *block
	r.blocks[blockKey(block.TenantID, block.ResourceID, block.ExternalID)] = &copied
	return nil
}

func (r *fakeBlockRepo) ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval) ([]*entities.ExternalBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ExternalBlock
	for _, b := range r.blocks {
		if b.TenantID != tenantID || b.ResourceID != resourceID {
			continue
		}
		if !b.Interval().Overlaps(window) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *fakeBlockRepo) DeleteNotIn(ctx context.Context, tenantID, resourceID string, stillValid []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	valid := make(map[string]struct{}, len(stillValid))
	for _, id := range stillValid {
		valid[id] = struct{}{}
	}
	removed := 0
	for key, b := range r.blocks {
		if b.TenantID != tenantID || b.ResourceID != resourceID {
			continue
		}
		if _, ok := valid[b.ExternalID]; !ok {
			delete(r.blocks, key)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeBlockRepo) DeleteByResource(ctx context.Context, tenantID, resourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, b := range r.blocks {
		if b.TenantID == tenantID && b.ResourceID == resourceID {
			delete(r.blocks, key)
		}
	}
	return nil
}

func (r *fakeBlockRepo) upserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertCount
}

func (r *fakeBlockRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blocks)
}

type fakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[string]*entities.SyncCursor
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]*entities.SyncCursor)}
}

func (r *fakeCursorRepo) Get(ctx context.Context, tenantID, resourceID string) (*entities.SyncCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cursor, ok := r.cursors[tenantID+":"+resourceID]
	if !ok {
		return nil, nil
	}
	copied := *cursor
	return &copied, nil
}

func (r *fakeCursorRepo) Upsert(ctx context.Context, cursor *entities.SyncCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *cursor
	r.cursors[cursor.TenantID+":"+cursor.ResourceID] = &copied
	return nil
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []*entities.BookingEvent
}

func (b *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.BookingEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error) {
	return make(chan *entities.BookingEvent), nil
}

func (b *fakeEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }
func (b *fakeEventBus) Close() error                                          { return nil }

func (b *fakeEventBus) published(eventType entities.BookingEventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, e := range b.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// MockCalendarProvider asserts outbound provider traffic

type MockCalendarProvider struct {
	mock.Mock
}

func (m *MockCalendarProvider) PullBusyIntervals(ctx context.Context, ref providers.CalendarRef, window entities.Interval) ([]providers.BusyInterval, error) {
	args := m.Called(ctx, ref, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.BusyInterval), args.Error(1)
}

func (m *MockCalendarProvider) PushEvent(ctx context.Context, ref providers.CalendarRef, commitment *entities.Commitment) (string, error) {
	args := m.Called(ctx, ref, commitment)
	return args.String(0), args.Error(1)
}

func (m *MockCalendarProvider) UpdateEvent(ctx context.Context, ref providers.CalendarRef, externalID string, commitment *entities.Commitment) error {
	args := m.Called(ctx, ref, externalID, commitment)
	return args.Error(0)
}

func (m *MockCalendarProvider) DeleteEvent(ctx context.Context, ref providers.CalendarRef, externalID string) error {
	args := m.Called(ctx, ref, externalID)
	return args.Error(0)
}

// staticProviderSource hands back one provider for every tenant
type staticProviderSource struct {
	provider providers.CalendarProvider
	err      error
}

func (s *staticProviderSource) ProviderFor(ctx context.Context, tenant *entities.Tenant) (providers.CalendarProvider, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.provider, nil
}

func (s *staticProviderSource) Invalidate(tenantID string) {}

// stubFreshener records just-in-time sync requests
type stubFreshener struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *stubFreshener) EnsureFresh(ctx context.Context, tenant *entities.Tenant, resource *entities.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *stubFreshener) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
