package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Migrate applies the schema. Statements are idempotent so the list can run
// on every startup. The unique indexes are the authority of record for the
// uniqueness rules: services pre-check for friendlier errors, but a 23505
// from here is what actually wins a race.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			short_code TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS tenants_short_code_idx ON tenants (short_code);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			army_number TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			access_all_db BOOLEAN NOT NULL DEFAULT FALSE,
			allowed_tenant_ids TEXT[] NOT NULL DEFAULT '{}',
			password_hash TEXT NOT NULL,
			generated_password_hash TEXT NOT NULL DEFAULT '',
			must_change_password BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_army_number_idx ON users (army_number);`,
		`CREATE TABLE IF NOT EXISTS personnels (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			middle_name TEXT NOT NULL DEFAULT '',
			army_number TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			rank TEXT NOT NULL,
			bank_name TEXT NOT NULL,
			bank_sort_code TEXT NOT NULL DEFAULT '',
			acct_number TEXT NOT NULL,
			sub_sector TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			remark TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS personnels_tenant_army_number_idx ON personnels (tenant_id, army_number);`,
		`CREATE INDEX IF NOT EXISTS personnels_tenant_idx ON personnels (tenant_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-index breach.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchPattern builds a substring ILIKE pattern, escaping LIKE
// metacharacters so user input always matches literally.
func searchPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}
