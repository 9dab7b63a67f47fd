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

var obstructingStatuses = []entities.CommitmentStatus{
	entities.CommitmentStatusScheduled,
	entities.CommitmentStatusConfirmed,
}

// CommitmentAdapter implements the CommitmentRepository interface
type CommitmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCommitmentAdapter creates a new commitment adapter
func NewCommitmentAdapter(client *postgres.Client) repositories.CommitmentRepository {
	return &CommitmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CreateIfFree inserts the commitment under a per-resource advisory lock,
// rejecting it with a conflict when any scheduled or confirmed commitment
// of the same resource overlaps. The lock is transaction-scoped, so the
// overlap check and the insert are one atomic unit even under concurrent
// writers.
func (a *CommitmentAdapter) CreateIfFree(ctx context.Context, commitment *entities.Commitment) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := acquireResourceLock(ctx, tx, commitment.TenantID, commitment.ResourceID); err != nil {
		return err
	}

	conflicting, err := a.findObstruction(ctx, tx, commitment.TenantID, commitment.ResourceID, commitment.Interval(), "")
	if err != nil {
		return err
	}
	if conflicting != nil {
		return apperrors.NewConflictError("interval overlaps an existing commitment").
			WithDetail("conflicting_interval", *conflicting)
	}

	record := goqu.Record{
		"id":                commitment.ID,
		"tenant_id":         commitment.TenantID,
		"resource_id":       commitment.ResourceID,
		"contact_ref":       commitment.ContactRef,
		"start_at":          commitment.StartAt,
		"end_at":            commitment.EndAt,
		"status":            commitment.Status,
		"origin":            commitment.Origin,
		"sync_state":        commitment.SyncState,
		"external_event_id": commitment.ExternalEventID,
		"notes":             commitment.Notes,
		"created_at":        commitment.CreatedAt,
		"updated_at":        commitment.UpdatedAt,
	}

	query, args, err := a.db.Insert("commitments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create commitment", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// GetByID retrieves a commitment scoped to its tenant
func (a *CommitmentAdapter) GetByID(ctx context.Context, tenantID, id string) (*entities.Commitment, error) {
	query, args, err := a.db.Select(commitmentColumns()...).
		From("commitments").
		Where(goqu.Ex{"tenant_id": tenantID, "id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	commitment, err := scanCommitment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("commitment %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get commitment", err)
	}
	return commitment, nil
}

// Update updates a commitment's mutable fields. With checkOverlap the new
// interval is re-validated under the same advisory lock used by
// CreateIfFree, excluding the commitment itself.
func (a *CommitmentAdapter) Update(ctx context.Context, commitment *entities.Commitment, checkOverlap bool) error {
	commitment.UpdatedAt = time.Now().UTC()

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if checkOverlap {
		if err := acquireResourceLock(ctx, tx, commitment.TenantID, commitment.ResourceID); err != nil {
			return err
		}

		conflicting, err := a.findObstruction(ctx, tx, commitment.TenantID, commitment.ResourceID, commitment.Interval(), commitment.ID)
		if err != nil {
			return err
		}
		if conflicting != nil {
			return apperrors.NewConflictError("interval overlaps an existing commitment").
				WithDetail("conflicting_interval", *conflicting)
		}
	}

	record := goqu.Record{
		"start_at":          commitment.StartAt,
		"end_at":            commitment.EndAt,
		"status":            commitment.Status,
		"sync_state":        commitment.SyncState,
		"external_event_id": commitment.ExternalEventID,
		"notes":             commitment.Notes,
		"updated_at":        commitment.UpdatedAt,
	}

	query, args, err := a.db.Update("commitments").
		Set(record).
		Where(goqu.Ex{"tenant_id": commitment.TenantID, "id": commitment.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update commitment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("commitment %s not found", commitment.ID))
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// ListByResource retrieves commitments for a resource within a window,
// ordered by start time ascending
func (a *CommitmentAdapter) ListByResource(ctx context.Context, tenantID, resourceID string, window entities.Interval, filter repositories.CommitmentFilter) ([]*entities.Commitment, error) {
	ds := a.db.Select(commitmentColumns()...).
		From("commitments").
		Where(goqu.Ex{"tenant_id": tenantID, "resource_id": resourceID}).
		Where(goqu.C("start_at").Lt(window.End), goqu.C("end_at").Gt(window.Start)).
		Order(goqu.C("start_at").Asc())

	return a.listCommitments(ctx, applyCommitmentFilter(ds, filter))
}

// ListByContact retrieves commitments for a contact within a window,
// ordered by start time ascending
func (a *CommitmentAdapter) ListByContact(ctx context.Context, tenantID, contactRef string, window entities.Interval, filter repositories.CommitmentFilter) ([]*entities.Commitment, error) {
	ds := a.db.Select(commitmentColumns()...).
		From("commitments").
		Where(goqu.Ex{"tenant_id": tenantID, "contact_ref": contactRef}).
		Where(goqu.C("start_at").Lt(window.End), goqu.C("end_at").Gt(window.Start)).
		Order(goqu.C("start_at").Asc())

	return a.listCommitments(ctx, applyCommitmentFilter(ds, filter))
}

// ListPendingSync retrieves commitments awaiting external propagation,
// oldest first
func (a *CommitmentAdapter) ListPendingSync(ctx context.Context, tenantID string, limit int) ([]*entities.Commitment, error) {
	ds := a.db.Select(commitmentColumns()...).
		From("commitments").
		Where(goqu.Ex{
			"tenant_id":  tenantID,
			"sync_state": entities.SyncStatePending,
			"status":     obstructingStatuses,
		}).
		Order(goqu.C("created_at").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	return a.listCommitments(ctx, ds)
}

func (a *CommitmentAdapter) listCommitments(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Commitment, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list commitments", err)
	}
	defer rows.Close()

	var commitments []*entities.Commitment
	for rows.Next() {
		commitment, err := scanCommitment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan commitment", err)
		}
		commitments = append(commitments, commitment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate commitments", err)
	}
	return commitments, nil
}

// findObstruction returns the interval of the first scheduled or confirmed
// commitment overlapping the proposed interval, or nil when the interval
// is free. Overlap uses half-open semantics: start < end AND end > start.
func (a *CommitmentAdapter) findObstruction(ctx context.Context, tx *sql.Tx, tenantID, resourceID string, proposed entities.Interval, excludeID string) (*entities.Interval, error) {
	ds := a.db.Select("start_at", "end_at").
		From("commitments").
		Where(goqu.Ex{
			"tenant_id":   tenantID,
			"resource_id": resourceID,
			"status":      obstructingStatuses,
		}).
		Where(goqu.C("start_at").Lt(proposed.End), goqu.C("end_at").Gt(proposed.Start)).
		Order(goqu.C("start_at").Asc()).
		Limit(1)
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build overlap query", err)
	}

	var start, end time.Time
	err = tx.QueryRowContext(ctx, query, args...).Scan(&start, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to check for overlap", err)
	}

	conflicting := entities.NewInterval(start, end)
	return &conflicting, nil
}

// acquireResourceLock takes the transaction-scoped advisory lock for a
// (tenant, resource) pair. Released automatically at commit/rollback.
func acquireResourceLock(ctx context.Context, tx *sql.Tx, tenantID, resourceID string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", tenantID+":"+resourceID); err != nil {
		return apperrors.NewInternalError("failed to acquire resource lock", err)
	}
	return nil
}

func applyCommitmentFilter(ds *goqu.SelectDataset, filter repositories.CommitmentFilter) *goqu.SelectDataset {
	if filter.ObstructingOnly {
		ds = ds.Where(goqu.C("status").In(obstructingStatuses))
	} else if len(filter.Statuses) > 0 {
		ds = ds.Where(goqu.C("status").In(filter.Statuses))
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}
	return ds
}

func commitmentColumns() []interface{} {
	return []interface{}{
		"id", "tenant_id", "resource_id", "contact_ref",
		"start_at", "end_at", "status", "origin", "sync_state",
		"external_event_id", "notes", "created_at", "updated_at",
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommitment(row rowScanner) (*entities.Commitment, error) {
	commitment := &entities.Commitment{}
	var externalEventID, notes sql.NullString

	err := row.Scan(
		&commitment.ID,
		&commitment.TenantID,
		&commitment.ResourceID,
		&commitment.ContactRef,
		&commitment.StartAt,
		&commitment.EndAt,
		&commitment.Status,
		&commitment.Origin,
		&commitment.SyncState,
		&externalEventID,
		&notes,
		&commitment.CreatedAt,
		&commitment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if externalEventID.Valid {
		commitment.ExternalEventID = &externalEventID.String
	}
	commitment.Notes = notes.String
	return commitment, nil
}
