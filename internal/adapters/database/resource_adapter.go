package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// ResourceAdapter implements the ResourceRepository interface.
// Working-hours profiles are stored as a JSON column.
type ResourceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewResourceAdapter creates a new resource adapter
func NewResourceAdapter(client *postgres.Client) repositories.ResourceRepository {
	return &ResourceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a resource scoped to its tenant
func (a *ResourceAdapter) GetByID(ctx context.Context, tenantID, id string) (*entities.Resource, error) {
	query, args, err := a.db.Select(resourceColumns()...).
		From("resources").
		Where(goqu.Ex{"tenant_id": tenantID, "id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	resource, err := scanResource(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("resource %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get resource", err)
	}
	return resource, nil
}

// ListByTenant retrieves a tenant's resources
func (a *ResourceAdapter) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*entities.Resource, error) {
	ds := a.db.Select(resourceColumns()...).
		From("resources").
		Where(goqu.Ex{"tenant_id": tenantID}).
		Order(goqu.C("name").Asc())
	if activeOnly {
		ds = ds.Where(goqu.Ex{"is_active": true})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.listResources(ctx, query, args)
}

// ListExternallyLinked retrieves active resources of tenants in external
// calendar mode, across tenants, for the sync scheduler
func (a *ResourceAdapter) ListExternallyLinked(ctx context.Context) ([]*entities.Resource, error) {
	query, args, err := a.db.Select(
		"r.id", "r.tenant_id", "r.name", "r.timezone", "r.working_hours",
		"r.calendar_id", "r.is_active", "r.created_at", "r.updated_at",
	).From(goqu.T("resources").As("r")).
		Join(goqu.T("tenants").As("t"), goqu.On(goqu.Ex{"t.id": goqu.I("r.tenant_id")})).
		Where(goqu.Ex{
			"t.calendar_mode": entities.CalendarModeExternal,
			"r.is_active":     true,
		}).
		Where(goqu.C("calendar_id").Table("r").Neq("")).
		Order(goqu.I("r.tenant_id").Asc(), goqu.I("r.id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.listResources(ctx, query, args)
}

// Update updates a resource
func (a *ResourceAdapter) Update(ctx context.Context, resource *entities.Resource) error {
	resource.UpdatedAt = time.Now().UTC()

	hours, err := json.Marshal(resource.WorkingHours)
	if err != nil {
		return apperrors.NewInternalError("failed to encode working hours", err)
	}

	query, args, err := a.db.Update("resources").
		Set(goqu.Record{
			"name":          resource.Name,
			"timezone":      resource.Timezone,
			"working_hours": string(hours),
			"calendar_id":   resource.CalendarID,
			"is_active":     resource.IsActive,
			"updated_at":    resource.UpdatedAt,
		}).
		Where(goqu.Ex{"tenant_id": resource.TenantID, "id": resource.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update resource", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("resource %s not found", resource.ID))
	}
	return nil
}

func (a *ResourceAdapter) listResources(ctx context.Context, query string, args []interface{}) ([]*entities.Resource, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list resources", err)
	}
	defer rows.Close()

	var resources []*entities.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan resource", err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate resources", err)
	}
	return resources, nil
}

func resourceColumns() []interface{} {
	return []interface{}{
		"id", "tenant_id", "name", "timezone", "working_hours",
		"calendar_id", "is_active", "created_at", "updated_at",
	}
}

func scanResource(row rowScanner) (*entities.Resource, error) {
	resource := &entities.Resource{}
	var workingHours []byte
	var calendarID sql.NullString

	err := row.Scan(
		&resource.ID,
		&resource.TenantID,
		&resource.Name,
		&resource.Timezone,
		&workingHours,
		&calendarID,
		&resource.IsActive,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(workingHours) > 0 {
		if err := json.Unmarshal(workingHours, &resource.WorkingHours); err != nil {
			return nil, fmt.Errorf("invalid working hours payload: %w", err)
		}
	}
	resource.CalendarID = calendarID.String
	return resource, nil
}
