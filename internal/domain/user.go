package domain

import (
	"context"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents an account managed by administrators. Regular users are
// scoped to AllowedTenantIDs; admins (or any account with AccessAllDB) see
// every tenant. ArmyNumber, Role and CreatedAt are immutable after creation.
type User struct {
	ID               string   `json:"id"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	ArmyNumber       string   `json:"army_number"`
	Role             Role     `json:"role"`
	AccessAllDB      bool     `json:"access_all_db"`
	AllowedTenantIDs []string `json:"allowed_dbs"`
	// PasswordHash is the active credential. GeneratedPasswordHash holds a
	// still-pending admin-issued credential; both are accepted as the "old"
	// password until the user completes a change.
	PasswordHash          string    `json:"-"`
	GeneratedPasswordHash string    `json:"-"`
	MustChangePassword    bool      `json:"must_change_password"`
	CreatedAt             time.Time `json:"created_at"`
}

// UserPatch is a partial update to the mutable user fields.
type UserPatch struct {
	FirstName        *string  `json:"first_name"`
	LastName         *string  `json:"last_name"`
	AllowedTenantIDs []string `json:"allowed_dbs"`
}

// UserQuery narrows a user listing.
type UserQuery struct {
	Search      string
	ExcludeRole Role
	Offset      int
	Limit       int
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByArmyNumber(ctx context.Context, armyNumber string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q UserQuery) ([]*User, int, error)
	// RemoveTenantFromAllowLists pulls a tenant id out of every user's
	// allow-list. Re-running it for an already-pruned id is a no-op.
	RemoveTenantFromAllowLists(ctx context.Context, tenantID string) error
	// PruneDanglingTenantRefs removes allow-list entries that no longer
	// reference an existing tenant, returning the number of users touched.
	PruneDanglingTenantRefs(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}
