package repositories

import (
	"context"

	"github.com/ventaflow/scheduling/internal/domain/entities"
)

// ExternalBlockRepository defines the interface for mirrored busy-interval
// operations. Blocks are written only by the reconciliation service.
type ExternalBlockRepository interface {
	// Upsert inserts or refreshes a block keyed by
	// (tenant_id, resource_id, external_id)
	Upsert(ctx context.Context, block *entities.ExternalBlock) error

	// ListByResource retrieves blocks for a resource within a window,
	// ordered by start time ascending
	ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval) ([]*entities.ExternalBlock, error)

	// DeleteNotIn removes blocks for the resource whose external ids are
	// absent from stillValid, returning the number removed. An empty
	// stillValid clears every block for the resource.
	DeleteNotIn(ctx context.Context, tenantID, resourceID string, stillValid []string) (int, error)

	// DeleteByResource clears all mirrored blocks for a resource, used
	// when a calendar is unlinked
	DeleteByResource(ctx context.Context, tenantID, resourceID string) error
}
