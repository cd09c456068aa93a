package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/oparadev/personnelbase/internal/domain"
)

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTenantRepository creates a new tenant repository
func NewPostgresTenantRepository(db *sql.DB, logger *slog.Logger) *PostgresTenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTenantRepository{db: db, logger: logger}
}

// Create inserts a new tenant, generating its id when absent.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	query := `
		INSERT INTO tenants (id, name, short_code, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, tenant.ID, tenant.Name, tenant.ShortCode, tenant.Description).Scan(&tenant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("db with this short_code already exists")
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	query := `
		SELECT id, name, short_code, description, created_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.ShortCode, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("db not found")
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// GetByShortCode retrieves a tenant by its unique short code.
func (r *PostgresTenantRepository) GetByShortCode(ctx context.Context, shortCode string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	query := `
		SELECT id, name, short_code, description, created_at
		FROM tenants
		WHERE short_code = $1
	`
	err := r.db.QueryRowContext(ctx, query, shortCode).Scan(
		&t.ID, &t.Name, &t.ShortCode, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("db not found")
		}
		return nil, fmt.Errorf("failed to get tenant by short_code: %w", err)
	}
	return t, nil
}

// Update persists the mutable tenant fields.
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $1, short_code = $2, description = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, tenant.Name, tenant.ShortCode, tenant.Description, tenant.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("db with this short_code already exists")
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("db not found")
	}
	return nil
}

// Delete removes a tenant row. Deleting an already-absent tenant reports
// NotFound so a caller can distinguish a repeat from a first run.
func (r *PostgresTenantRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("db not found")
	}
	return nil
}

// List returns one page of tenants plus the total match count.
func (r *PostgresTenantRepository) List(ctx context.Context, q domain.TenantQuery) ([]*domain.Tenant, int, error) {
	where := "TRUE"
	args := []interface{}{}
	if q.IDs != nil {
		args = append(args, pq.Array(q.IDs))
		where += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	if q.Search != "" {
		args = append(args, searchPattern(q.Search))
		n := len(args)
		where += fmt.Sprintf(" AND (name ILIKE $%d OR short_code ILIKE $%d)", n, n)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM tenants WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT id, name, short_code, description, created_at
		FROM tenants
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		t := &domain.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.ShortCode, &t.Description, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// CountCreatedBetween counts tenants created inside [from, to]. Zero bounds
// are open.
func (r *PostgresTenantRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	where := "TRUE"
	args := []interface{}{}
	if !from.IsZero() {
		args = append(args, from)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants WHERE `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}
	return total, nil
}
