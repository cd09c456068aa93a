package security

import (
	"fmt"
	"slices"

	"github.com/oparadev/personnelbase/internal/domain"
)

// SessionClaims is the authenticated identity carried from token decoding to
// every authorization check. Nothing else survives between requests.
type SessionClaims struct {
	UserID           string
	Role             domain.Role
	AccessAllDB      bool
	AllowedTenantIDs []string
}

// Scope is the set of tenants a session may act on: either every tenant or
// an explicit allow-list.
type Scope struct {
	All       bool
	TenantIDs []string
}

// Contains reports whether tenantID falls inside the scope.
func (s Scope) Contains(tenantID string) bool {
	return s.All || slices.Contains(s.TenantIDs, tenantID)
}

// Empty reports whether the scope can never match a tenant.
func (s Scope) Empty() bool {
	return !s.All && len(s.TenantIDs) == 0
}

// RequireAdmin fails unless the session belongs to an administrator.
func RequireAdmin(c SessionClaims) error {
	if c.Role != domain.RoleAdmin {
		return domain.Forbidden("admin access required")
	}
	return nil
}

// ResolveTenantScope derives the tenant scope from the session claims.
// Admins and accounts flagged access_all_db see every tenant regardless of
// their allow-list contents; everyone else gets the literal allow-list,
// which may be empty.
func ResolveTenantScope(c SessionClaims) Scope {
	if c.Role == domain.RoleAdmin || c.AccessAllDB {
		return Scope{All: true}
	}
	ids := c.AllowedTenantIDs
	if ids == nil {
		ids = []string{}
	}
	return Scope{TenantIDs: ids}
}

// AuthorizeTenant fails unless the session's scope covers tenantID.
func AuthorizeTenant(c SessionClaims, tenantID string) error {
	if !ResolveTenantScope(c).Contains(tenantID) {
		return domain.Forbidden(fmt.Sprintf("access denied to db %s", tenantID))
	}
	return nil
}
