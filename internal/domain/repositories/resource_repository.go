package repositories

import (
	"context"

	"github.com/ventaflow/scheduling/internal/domain/entities"
)

// ResourceRepository defines the interface for bookable resource operations
type ResourceRepository interface {
	// GetByID retrieves a resource scoped to its tenant
	GetByID(ctx context.Context, tenantID, id string) (*entities.Resource, error)

	// ListByTenant retrieves a tenant's resources
	ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*entities.Resource, error)

	// ListExternallyLinked retrieves all active resources of tenants in
	// external calendar mode, across tenants, for the sync scheduler
	ListExternallyLinked(ctx context.Context) ([]*entities.Resource, error)

	// Update updates a resource
	Update(ctx context.Context, resource *entities.Resource) error
}

// TenantRepository defines the interface for tenant operations
type TenantRepository interface {
	// GetByID retrieves a tenant
	GetByID(ctx context.Context, id string) (*entities.Tenant, error)

	// Update updates a tenant's calendar configuration
	Update(ctx context.Context, tenant *entities.Tenant) error
}
