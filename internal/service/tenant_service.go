package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/observability/metrics"
	"github.com/oparadev/personnelbase/internal/reliability/retry"
	"github.com/oparadev/personnelbase/internal/security"
	"github.com/oparadev/personnelbase/internal/security/audit"
)

// TenantService manages the lifecycle of tenants ("DBs"). All mutations are
// admin only; listings are narrowed to the caller's tenant scope.
type TenantService struct {
	tenantRepo    domain.TenantRepository
	userRepo      domain.UserRepository
	personnelRepo domain.PersonnelRepository
	retryCfg      *retry.Config
	audit         *audit.Logger
	logger        *slog.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(
	tenantRepo domain.TenantRepository,
	userRepo domain.UserRepository,
	personnelRepo domain.PersonnelRepository,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *TenantService {
	if logger == nil {
		logger = slog.Default()
	}

	return &TenantService{
		tenantRepo:    tenantRepo,
		userRepo:      userRepo,
		personnelRepo: personnelRepo,
		retryCfg:      retry.DefaultConfig(),
		audit:         auditLogger,
		logger:        logger,
	}
}

// CreateTenantInput carries the fields a new tenant is built from.
type CreateTenantInput struct {
	Name        string `json:"name"`
	ShortCode   string `json:"short_code"`
	Description string `json:"description"`
}

// Create registers a new tenant. Short codes are unique across the system.
func (s *TenantService) Create(ctx context.Context, claims security.SessionClaims, in CreateTenantInput) (*domain.Tenant, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.ShortCode = strings.TrimSpace(in.ShortCode)
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.ShortCode == "" {
		missing = append(missing, "short_code")
	}
	if len(missing) > 0 {
		return nil, domain.Validation("missing required fields", map[string]any{"fields": missing})
	}

	if _, err := s.tenantRepo.GetByShortCode(ctx, in.ShortCode); err == nil {
		return nil, domain.Conflict("db with this short_code already exists")
	} else if domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}

	tenant := &domain.Tenant{
		Name:        in.Name,
		ShortCode:   in.ShortCode,
		Description: in.Description,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("tenant created",
		slog.String("tenant_id", tenant.ID),
		slog.String("short_code", tenant.ShortCode),
	)
	return tenant, nil
}

// Get returns a tenant the caller's scope covers.
func (s *TenantService) Get(ctx context.Context, claims security.SessionClaims, id string) (*domain.Tenant, error) {
	if err := security.AuthorizeTenant(claims, id); err != nil {
		return nil, err
	}
	return s.tenantRepo.GetByID(ctx, id)
}

// List returns one page of tenants visible to the caller. A caller whose
// scope is empty gets an empty page without touching the store.
func (s *TenantService) List(ctx context.Context, claims security.SessionClaims, search string, page, limit int) (domain.Page[*domain.Tenant], error) {
	page, limit = domain.ClampPage(page, limit)

	scope := security.ResolveTenantScope(claims)
	if scope.Empty() {
		return domain.NewPage[*domain.Tenant](nil, 0, page, limit), nil
	}

	q := domain.TenantQuery{
		Search: search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	if !scope.All {
		q.IDs = scope.TenantIDs
	}

	tenants, total, err := s.tenantRepo.List(ctx, q)
	if err != nil {
		return domain.Page[*domain.Tenant]{}, err
	}
	return domain.NewPage(tenants, total, page, limit), nil
}

// Update applies a partial update. Fields outside the patch surface (id,
// created_at) are never touched regardless of what the client sent.
func (s *TenantService) Update(ctx context.Context, claims security.SessionClaims, id string, patch domain.TenantPatch) (*domain.Tenant, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return nil, err
	}

	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		tenant.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.ShortCode != nil {
		tenant.ShortCode = strings.TrimSpace(*patch.ShortCode)
	}
	if patch.Description != nil {
		tenant.Description = *patch.Description
	}
	if tenant.Name == "" || tenant.ShortCode == "" {
		return nil, domain.Validation("name and short_code cannot be empty", nil)
	}

	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Delete removes a tenant and cascades: its personnel records are hard
// deleted and the tenant id is pruned from every user allow-list. The steps
// run sequentially and each is idempotent, so a failed cascade can be retried
// end to end without harm. There is no cross-step transaction; the reconcile
// worker sweeps up anything a crash leaves behind.
func (s *TenantService) Delete(ctx context.Context, claims security.SessionClaims, id string) error {
	if err := security.RequireAdmin(claims); err != nil {
		return err
	}

	if _, err := s.tenantRepo.GetByID(ctx, id); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"delete tenant", func(ctx context.Context) error {
			err := s.tenantRepo.Delete(ctx, id)
			if domain.KindOf(err) == domain.KindNotFound {
				return nil
			}
			return err
		}},
		{"delete tenant personnel", func(ctx context.Context) error {
			return s.personnelRepo.DeleteByTenant(ctx, id)
		}},
		{"prune user allow-lists", func(ctx context.Context) error {
			return s.userRepo.RemoveTenantFromAllowLists(ctx, id)
		}},
	}

	for _, step := range steps {
		_, err := retry.Do(ctx, s.retryCfg, s.logger, step.name, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, step.fn(ctx)
		})
		if err != nil {
			s.audit.LogTenantDeletion(ctx, claims.UserID, id, "failed", step.name)
			metrics.ObserveCascade("error")
			return fmt.Errorf("tenant cascade step %q failed: %w", step.name, err)
		}
	}

	s.audit.LogTenantDeletion(ctx, claims.UserID, id, "success", "")
	metrics.ObserveCascade("success")
	s.logger.Info("tenant deleted", slog.String("tenant_id", id))
	return nil
}
