package domain

import (
	"context"
	"time"
)

// Tenant represents an isolated organizational unit ("DB" to API clients).
// Every personnel record belongs to exactly one tenant, and user accounts
// carry an allow-list of tenant ids they may act on.
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ShortCode   string    `json:"short_code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TenantPatch is a partial update. Nil fields are left untouched; id and
// created_at are not patchable at all.
type TenantPatch struct {
	Name        *string `json:"name"`
	ShortCode   *string `json:"short_code"`
	Description *string `json:"description"`
}

// TenantQuery narrows a tenant listing.
type TenantQuery struct {
	// IDs restricts results to the given tenant ids. Nil means unrestricted;
	// an empty non-nil slice matches nothing.
	IDs    []string
	Search string
	Offset int
	Limit  int
}

// TenantRepository defines data access for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByShortCode(ctx context.Context, shortCode string) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q TenantQuery) ([]*Tenant, int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}
