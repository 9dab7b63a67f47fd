package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// ExternalBlockAdapter implements the ExternalBlockRepository interface
type ExternalBlockAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewExternalBlockAdapter creates a new external block adapter
func NewExternalBlockAdapter(client *postgres.Client) repositories.ExternalBlockRepository {
	return &ExternalBlockAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert inserts or refreshes a block keyed by
// (tenant_id, resource_id, external_id)
func (a *ExternalBlockAdapter) Upsert(ctx context.Context, block *entities.ExternalBlock) error {
	record := goqu.Record{
		"id":          block.ID,
		"tenant_id":   block.TenantID,
		"resource_id": block.ResourceID,
		"external_id": block.ExternalID,
		"start_at":    block.StartAt,
		"end_at":      block.EndAt,
		"summary":     block.Summary,
		"pulled_at":   block.PulledAt,
		"created_at":  block.CreatedAt,
		"updated_at":  block.UpdatedAt,
	}

	query, args, err := a.db.Insert("external_blocks").
		Rows(record).
		OnConflict(goqu.DoUpdate("tenant_id, resource_id, external_id", goqu.Record{
			"start_at":   block.StartAt,
			"end_at":     block.EndAt,
			"summary":    block.Summary,
			"pulled_at":  block.PulledAt,
			"updated_at": block.UpdatedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert external block", err)
	}
	return nil
}

// ListByResource retrieves blocks for a resource within a window, ordered
// by start time ascending
func (a *ExternalBlockAdapter) ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval) ([]*entities.ExternalBlock, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "resource_id", "external_id",
		"start_at", "end_at", "summary", "pulled_at",
		"created_at", "updated_at",
	).From("external_blocks").
		Where(goqu.Ex{"tenant_id": tenantID, "resource_id": resourceID}).
		Where(goqu.C("start_at").Lt(window.End), goqu.C("end_at").Gt(window.Start)).
		Order(goqu.C("start_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list external blocks", err)
	}
	defer rows.Close()

	var blocks []*entities.ExternalBlock
	for rows.Next() {
		block := &entities.ExternalBlock{}
		var summary sql.NullString
		if err := rows.Scan(
			&block.ID,
			&block.TenantID,
			&block.ResourceID,
			&block.ExternalID,
			&block.StartAt,
			&block.EndAt,
			&summary,
			&block.PulledAt,
			&block.CreatedAt,
			&block.UpdatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan external block", err)
		}
		block.Summary = summary.String
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate external blocks", err)
	}
	return blocks, nil
}

// DeleteNotIn removes blocks whose external ids are absent from stillValid
func (a *ExternalBlockAdapter) DeleteNotIn(ctx context.Context, tenantID, resourceID string, stillValid []string) (int, error) {
	ds := a.db.Delete("external_blocks").
		Where(goqu.Ex{"tenant_id": tenantID, "resource_id": resourceID})
	if len(stillValid) > 0 {
		ds = ds.Where(goqu.C("external_id").NotIn(stillValid))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete external blocks", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return int(removed), nil
}

// DeleteByResource clears all mirrored blocks for a resource
func (a *ExternalBlockAdapter) DeleteByResource(ctx context.Context, tenantID, resourceID string) error {
	query, args, err := a.db.Delete("external_blocks").
		Where(goqu.Ex{"tenant_id": tenantID, "resource_id": resourceID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete external blocks", err)
	}
	return nil
}
