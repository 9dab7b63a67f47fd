package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// SyncCursorAdapter implements the SyncCursorRepository interface
type SyncCursorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSyncCursorAdapter creates a new sync cursor adapter
func NewSyncCursorAdapter(client *postgres.Client) repositories.SyncCursorRepository {
	return &SyncCursorAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Get retrieves the cursor for a resource; nil when never synced
func (a *SyncCursorAdapter) Get(ctx context.Context, tenantID, resourceID string) (*entities.SyncCursor, error) {
	query, args, err := a.db.Select(
		"tenant_id", "resource_id", "last_sync_at", "health", "failure_count", "updated_at",
	).From("sync_cursors").
		Where(goqu.Ex{"tenant_id": tenantID, "resource_id": resourceID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	cursor := &entities.SyncCursor{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&cursor.TenantID,
		&cursor.ResourceID,
		&cursor.LastSyncAt,
		&cursor.Health,
		&cursor.FailureCount,
		&cursor.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get sync cursor", err)
	}
	return cursor, nil
}

// Upsert records the outcome of a sync attempt
func (a *SyncCursorAdapter) Upsert(ctx context.Context, cursor *entities.SyncCursor) error {
	cursor.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Insert("sync_cursors").
		Rows(goqu.Record{
			"tenant_id":     cursor.TenantID,
			"resource_id":   cursor.ResourceID,
			"last_sync_at":  cursor.LastSyncAt,
			"health":        cursor.Health,
			"failure_count": cursor.FailureCount,
			"updated_at":    cursor.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("tenant_id, resource_id", goqu.Record{
			"last_sync_at":  cursor.LastSyncAt,
			"health":        cursor.Health,
			"failure_count": cursor.FailureCount,
			"updated_at":    cursor.UpdatedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert sync cursor", err)
	}
	return nil
}
