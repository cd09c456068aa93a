package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/oparadev/personnelbase/internal/domain"
)

// PostgresPersonnelRepository implements domain.PersonnelRepository using PostgreSQL
type PostgresPersonnelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPersonnelRepository creates a new personnel repository
func NewPostgresPersonnelRepository(db *sql.DB, logger *slog.Logger) *PostgresPersonnelRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPersonnelRepository{db: db, logger: logger}
}

const personnelColumns = `id, tenant_id, first_name, last_name, middle_name, army_number,
	phone_number, rank, bank_name, bank_sort_code, acct_number, sub_sector,
	location, remark, status, is_deleted, created_at`

func scanPersonnel(row interface{ Scan(...interface{}) error }) (*domain.Personnel, error) {
	p := &domain.Personnel{}
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.FirstName,
		&p.LastName,
		&p.MiddleName,
		&p.ArmyNumber,
		&p.PhoneNumber,
		&p.Rank,
		&p.Bank.Name,
		&p.Bank.SortCode,
		&p.AcctNumber,
		&p.SubSector,
		&p.Location,
		&p.Remark,
		&p.Status,
		&p.IsDeleted,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new record, generating its id when absent.
func (r *PostgresPersonnelRepository) Create(ctx context.Context, p *domain.Personnel) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO personnels (id, tenant_id, first_name, last_name, middle_name, army_number,
			phone_number, rank, bank_name, bank_sort_code, acct_number, sub_sector,
			location, remark, status, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		p.ID,
		p.TenantID,
		p.FirstName,
		p.LastName,
		p.MiddleName,
		p.ArmyNumber,
		p.PhoneNumber,
		p.Rank,
		p.Bank.Name,
		p.Bank.SortCode,
		p.AcctNumber,
		p.SubSector,
		p.Location,
		p.Remark,
		p.Status,
		p.IsDeleted,
	).Scan(&p.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("personnel with this army_number already exists in this db")
		}
		r.logger.Error("failed to create personnel",
			slog.String("tenant_id", p.TenantID),
			slog.String("army_number", p.ArmyNumber),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create personnel: %w", err)
	}
	return nil
}

// GetByID retrieves a record by id, soft-deleted or not.
func (r *PostgresPersonnelRepository) GetByID(ctx context.Context, id string) (*domain.Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnels WHERE id = $1`
	p, err := scanPersonnel(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("personnel not found")
		}
		return nil, fmt.Errorf("failed to get personnel: %w", err)
	}
	return p, nil
}

// Update persists the whole record under its id.
func (r *PostgresPersonnelRepository) Update(ctx context.Context, p *domain.Personnel) error {
	query := `
		UPDATE personnels
		SET tenant_id = $1, first_name = $2, last_name = $3, middle_name = $4,
			army_number = $5, phone_number = $6, rank = $7, bank_name = $8,
			bank_sort_code = $9, acct_number = $10, sub_sector = $11,
			location = $12, remark = $13, status = $14, is_deleted = $15
		WHERE id = $16
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		p.TenantID,
		p.FirstName,
		p.LastName,
		p.MiddleName,
		p.ArmyNumber,
		p.PhoneNumber,
		p.Rank,
		p.Bank.Name,
		p.Bank.SortCode,
		p.AcctNumber,
		p.SubSector,
		p.Location,
		p.Remark,
		p.Status,
		p.IsDeleted,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("personnel with this army_number already exists in this db")
		}
		return fmt.Errorf("failed to update personnel: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("personnel not found")
	}
	return nil
}

// SoftDelete hides a record from default listings without removing it.
func (r *PostgresPersonnelRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE personnels SET is_deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete personnel: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("personnel not found")
	}
	return nil
}

// SoftDeleteMany marks every matching id deleted in one statement and
// reports how many rows matched.
func (r *PostgresPersonnelRepository) SoftDeleteMany(ctx context.Context, ids []string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE personnels SET is_deleted = TRUE WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete personnels: %w", err)
	}
	return res.RowsAffected()
}

// Exists checks whether (tenantID, armyNumber) is already occupied by a row
// other than excludeID. No is_deleted filter: soft-deleted rows keep their
// uniqueness slot.
func (r *PostgresPersonnelRepository) Exists(ctx context.Context, tenantID, armyNumber, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM personnels
			WHERE tenant_id = $1 AND army_number = $2 AND id <> $3
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tenantID, armyNumber, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check personnel uniqueness: %w", err)
	}
	return exists, nil
}

// List returns one page of records plus the total match count.
func (r *PostgresPersonnelRepository) List(ctx context.Context, q domain.PersonnelQuery) ([]*domain.Personnel, int, error) {
	where := "TRUE"
	args := []interface{}{}
	if q.TenantID != "" {
		args = append(args, q.TenantID)
		where += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if q.TenantIDs != nil {
		args = append(args, pq.Array(q.TenantIDs))
		where += fmt.Sprintf(" AND tenant_id = ANY($%d)", len(args))
	}
	if !q.IncludeDeleted {
		where += " AND is_deleted = FALSE"
	}
	if q.Search != "" {
		args = append(args, searchPattern(q.Search))
		n := len(args)
		where += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR middle_name ILIKE $%d OR army_number ILIKE $%d)", n, n, n, n)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personnels WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count personnels: %w", err)
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM personnels
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, personnelColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list personnels", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list personnels: %w", err)
	}
	defer rows.Close()

	var out []*domain.Personnel
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan personnel: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// DeleteByTenant removes every record owned by a tenant. Safe to re-run.
func (r *PostgresPersonnelRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM personnels WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete personnels for tenant: %w", err)
	}
	return nil
}

// DeleteOrphans removes records whose tenant row no longer exists.
func (r *PostgresPersonnelRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM personnels WHERE tenant_id NOT IN (SELECT id FROM tenants)`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned personnels: %w", err)
	}
	return res.RowsAffected()
}

// Count counts records matching the analytics filter. Zero-valued filter
// fields are open.
func (r *PostgresPersonnelRepository) Count(ctx context.Context, f domain.PersonnelCountFilter) (int, error) {
	where := "TRUE"
	args := []interface{}{}
	if f.TenantID != "" {
		args = append(args, f.TenantID)
		where += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Deleted != nil {
		args = append(args, *f.Deleted)
		where += fmt.Sprintf(" AND is_deleted = $%d", len(args))
	}
	if !f.CreatedFrom.IsZero() {
		args = append(args, f.CreatedFrom)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.CreatedTo.IsZero() {
		args = append(args, f.CreatedTo)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personnels WHERE `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count personnels: %w", err)
	}
	return total, nil
}
