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

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, first_name, last_name, army_number, role, access_all_db,
	allowed_tenant_ids, password_hash, generated_password_hash, must_change_password, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	user := &domain.User{}
	var allowed pq.StringArray
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.ArmyNumber,
		&user.Role,
		&user.AccessAllDB,
		&allowed,
		&user.PasswordHash,
		&user.GeneratedPasswordHash,
		&user.MustChangePassword,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.AllowedTenantIDs = []string(allowed)
	return user, nil
}

// Create inserts a new user, generating its id when absent.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
		INSERT INTO users (id, first_name, last_name, army_number, role, access_all_db,
			allowed_tenant_ids, password_hash, generated_password_hash, must_change_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.ArmyNumber,
		user.Role,
		user.AccessAllDB,
		pq.Array(user.AllowedTenantIDs),
		user.PasswordHash,
		user.GeneratedPasswordHash,
		user.MustChangePassword,
	).Scan(&user.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("user with this army_number already exists")
		}
		r.logger.Error("failed to create user",
			slog.String("army_number", user.ArmyNumber),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByArmyNumber retrieves a user by army number.
func (r *PostgresUserRepository) GetByArmyNumber(ctx context.Context, armyNumber string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE army_number = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, armyNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user by army_number: %w", err)
	}
	return user, nil
}

// Update persists the mutable user fields. Role, army number and created_at
// never change after creation, so they are not part of the statement.
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, allowed_tenant_ids = $3,
			password_hash = $4, generated_password_hash = $5, must_change_password = $6
		WHERE id = $7
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		pq.Array(user.AllowedTenantIDs),
		user.PasswordHash,
		user.GeneratedPasswordHash,
		user.MustChangePassword,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

// Delete removes a user row.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

// List returns one page of users plus the total match count.
func (r *PostgresUserRepository) List(ctx context.Context, q domain.UserQuery) ([]*domain.User, int, error) {
	where := "TRUE"
	args := []interface{}{}
	if q.ExcludeRole != "" {
		args = append(args, q.ExcludeRole)
		where += fmt.Sprintf(" AND role <> $%d", len(args))
	}
	if q.Search != "" {
		args = append(args, searchPattern(q.Search))
		n := len(args)
		where += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR army_number ILIKE $%d)", n, n, n)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, userColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}

// RemoveTenantFromAllowLists pulls tenantID out of every allow-list that
// contains it. Running it again is a no-op.
func (r *PostgresUserRepository) RemoveTenantFromAllowLists(ctx context.Context, tenantID string) error {
	query := `
		UPDATE users
		SET allowed_tenant_ids = array_remove(allowed_tenant_ids, $1)
		WHERE $1 = ANY(allowed_tenant_ids)
	`
	if _, err := r.db.ExecContext(ctx, query, tenantID); err != nil {
		return fmt.Errorf("failed to prune allow-lists: %w", err)
	}
	return nil
}

// PruneDanglingTenantRefs drops allow-list entries whose tenant row is gone.
func (r *PostgresUserRepository) PruneDanglingTenantRefs(ctx context.Context) (int64, error) {
	query := `
		UPDATE users
		SET allowed_tenant_ids = (
			SELECT COALESCE(array_agg(t), '{}')
			FROM unnest(allowed_tenant_ids) AS t
			WHERE t IN (SELECT id FROM tenants)
		)
		WHERE EXISTS (
			SELECT 1 FROM unnest(allowed_tenant_ids) AS t
			WHERE t NOT IN (SELECT id FROM tenants)
		)
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune dangling tenant refs: %w", err)
	}
	return res.RowsAffected()
}

// CountByRole counts accounts holding a role.
func (r *PostgresUserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count users by role: %w", err)
	}
	return total, nil
}

// CountCreatedBetween counts users created inside [from, to]. Zero bounds
// are open.
func (r *PostgresUserRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}
