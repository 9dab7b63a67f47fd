package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/repositories"
	"github.com/ventaflow/scheduling/internal/infrastructure/clients/postgres"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// TenantAdapter implements the TenantRepository interface
type TenantAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTenantAdapter creates a new tenant adapter
func NewTenantAdapter(client *postgres.Client) repositories.TenantRepository {
	return &TenantAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a tenant
func (a *TenantAdapter) GetByID(ctx context.Context, id string) (*entities.Tenant, error) {
	query, args, err := a.db.Select(
		"id", "name", "calendar_mode", "provider", "credential_ref",
		"created_at", "updated_at",
	).From("tenants").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	tenant := &entities.Tenant{}
	var provider, credentialRef sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.CalendarMode,
		&provider,
		&credentialRef,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("tenant %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get tenant", err)
	}

	tenant.Provider = provider.String
	tenant.CredentialRef = credentialRef.String
	return tenant, nil
}

// Update updates a tenant's calendar configuration
func (a *TenantAdapter) Update(ctx context.Context, tenant *entities.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update("tenants").
		Set(goqu.Record{
			"calendar_mode":  tenant.CalendarMode,
			"provider":       tenant.Provider,
			"credential_ref": tenant.CredentialRef,
			"updated_at":     tenant.UpdatedAt,
		}).
		Where(goqu.Ex{"id": tenant.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update tenant", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("tenant %s not found", tenant.ID))
	}
	return nil
}
