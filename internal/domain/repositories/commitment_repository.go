package repositories

import (
	"context"

	"github.com/ventaflow/scheduling/internal/domain/entities"
)

// CommitmentRepository defines the interface for commitment data operations.
// All reads return commitments ordered by start time, ascending.
type CommitmentRepository interface {
	// CreateIfFree inserts the commitment only if no scheduled or confirmed
	// commitment for the same resource overlaps its interval. The check and
	// the insert are a single atomic write; a violation returns a conflict
	// error carrying the offending interval.
	CreateIfFree(ctx context.Context, commitment *entities.Commitment) error

	// GetByID retrieves a commitment scoped to its tenant
	GetByID(ctx context.Context, tenantID, id string) (*entities.Commitment, error)

	// Update updates a commitment's mutable fields. When checkOverlap is
	// true the new interval is validated atomically against other
	// obstructing commitments of the same resource, excluding the
	// commitment itself.
	Update(ctx context.Context, commitment *entities.Commitment, checkOverlap bool) error

	// ListByResource retrieves commitments for a resource within a window
	ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval, filter CommitmentFilter) ([]*entities.Commitment, error)

	// ListByContact retrieves commitments for a contact within a window
	ListByContact(ctx context.Context, tenantID, contactRef string, window entities.Interval, filter CommitmentFilter) ([]*entities.Commitment, error)

	// ListPendingSync retrieves commitments flagged for outbound
	// propagation retry, oldest first
	ListPendingSync(ctx context.Context, tenantID string, limit int) ([]*entities.Commitment, error)
}

// CommitmentFilter narrows commitment listings
type CommitmentFilter struct {
	Statuses       []entities.CommitmentStatus
	ObstructingOnly bool
	Limit          int
	Offset         int
}

// SyncCursorRepository persists per-resource reconciliation bookkeeping
type SyncCursorRepository interface {
	// Get retrieves the cursor for a resource; a nil cursor means the
	// resource has never been synced
	Get(ctx context.Context, tenantID, resourceID string) (*entities.SyncCursor, error)

	// Upsert records the outcome of a sync attempt
	Upsert(ctx context.Context, cursor *entities.SyncCursor) error
}
