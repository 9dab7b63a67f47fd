package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// ProviderName constants for tenant calendar configuration
const (
	ProviderGoogle = "google"
	ProviderMock   = "mock"
)

// Factory builds per-tenant calendar providers. Credentials are resolved
// through the credential store at construction time and providers are
// cached per (tenant, credentialRef) so the breaker state survives across
// calls.
type Factory struct {
	credentials providers.CredentialStore
	callTimeout time.Duration

	mu    sync.Mutex
	cache map[string]providers.CalendarProvider
	mock  *MockAdapter
}

// NewFactory creates a provider factory
func NewFactory(credentials providers.CredentialStore, callTimeout time.Duration) *Factory {
	return &Factory{
		credentials: credentials,
		callTimeout: callTimeout,
		cache:       make(map[string]providers.CalendarProvider),
		mock:        NewMockAdapter(),
	}
}

// Mock exposes the shared mock adapter so development environments can
// seed busy intervals
func (f *Factory) Mock() *MockAdapter {
	return f.mock
}

// ProviderFor returns the breaker-wrapped provider for a tenant's calendar
// configuration
func (f *Factory) ProviderFor(ctx context.Context, tenant *entities.Tenant) (providers.CalendarProvider, error) {
	if tenant.Provider == "" {
		return nil, apperrors.NewValidationError("tenant has no calendar provider configured")
	}

	key := tenant.ID + ":" + tenant.Provider + ":" + tenant.CredentialRef

	f.mu.Lock()
	if cached, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	variant, err := f.buildVariant(ctx, tenant)
	if err != nil {
		return nil, err
	}

	wrapped := newResilientProvider(tenant.ID, variant, f.callTimeout)

	f.mu.Lock()
	f.cache[key] = wrapped
	f.mu.Unlock()
	return wrapped, nil
}

// Invalidate drops the cached provider for a tenant, forcing credential
// re-resolution on the next call. Used after re-linking.
func (f *Factory) Invalidate(tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.cache {
		if len(key) > len(tenantID) && key[:len(tenantID)+1] == tenantID+":" {
			delete(f.cache, key)
		}
	}
}

func (f *Factory) buildVariant(ctx context.Context, tenant *entities.Tenant) (providers.CalendarProvider, error) {
	switch tenant.Provider {
	case ProviderMock:
		return f.mock, nil
	case ProviderGoogle:
		secret, err := f.credentials.Resolve(ctx, tenant.CredentialRef)
		if err != nil {
			return nil, apperrors.NewUnauthorizedError(fmt.Sprintf("failed to resolve calendar credentials: %v", err))
		}
		token := secret["access_token"]
		if token == "" {
			return nil, apperrors.NewUnauthorizedError("calendar credentials missing access_token")
		}
		return NewGoogleAdapter(token, f.callTimeout), nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported calendar provider %q", tenant.Provider))
	}
}

// resilientProvider wraps a provider variant with a circuit breaker and a
// per-call timeout. Only transient failures (unavailable, rate limited)
// count toward tripping; grant problems pass through without opening the
// breaker.
type resilientProvider struct {
	inner       providers.CalendarProvider
	breaker     *gobreaker.CircuitBreaker
	callTimeout time.Duration
}

func newResilientProvider(tenantID string, inner providers.CalendarProvider, callTimeout time.Duration) providers.CalendarProvider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "calendar:" + tenantID,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.Retryable(err)
		},
	})
	return &resilientProvider{
		inner:       inner,
		breaker:     breaker,
		callTimeout: callTimeout,
	}
}

func (p *resilientProvider) PullBusyIntervals(ctx context.Context, ref providers.CalendarRef, window entities.Interval) ([]providers.BusyInterval, error) {
	result, err := p.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return p.inner.PullBusyIntervals(ctx, ref, window)
	})
	if err != nil {
		return nil, err
	}
	return result.([]providers.BusyInterval), nil
}

func (p *resilientProvider) PushEvent(ctx context.Context, ref providers.CalendarRef, commitment *entities.Commitment) (string, error) {
	result, err := p.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return p.inner.PushEvent(ctx, ref, commitment)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (p *resilientProvider) UpdateEvent(ctx context.Context, ref providers.CalendarRef, externalID string, commitment *entities.Commitment) error {
	_, err := p.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, p.inner.UpdateEvent(ctx, ref, externalID, commitment)
	})
	return err
}

func (p *resilientProvider) DeleteEvent(ctx context.Context, ref providers.CalendarRef, externalID string) error {
	_, err := p.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, p.inner.DeleteEvent(ctx, ref, externalID)
	})
	return err
}

func (p *resilientProvider) execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		res, err := fn(callCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			return res, apperrors.NewUnavailableError("calendar provider call timed out", err)
		}
		return res, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.NewUnavailableError("calendar provider circuit open", err)
	}
	return result, err
}
