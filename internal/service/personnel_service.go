package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/observability/metrics"
	"github.com/oparadev/personnelbase/internal/security"
)

// PersonnelService manages tenant-scoped personnel records.
type PersonnelService struct {
	personnelRepo domain.PersonnelRepository
	tenantRepo    domain.TenantRepository
	logger        *slog.Logger
}

// NewPersonnelService creates a new personnel service
func NewPersonnelService(
	personnelRepo domain.PersonnelRepository,
	tenantRepo domain.TenantRepository,
	logger *slog.Logger,
) *PersonnelService {
	if logger == nil {
		logger = slog.Default()
	}

	return &PersonnelService{
		personnelRepo: personnelRepo,
		tenantRepo:    tenantRepo,
		logger:        logger,
	}
}

// Create registers a personnel record in a tenant the caller may act on.
// Army numbers are unique per tenant and a soft-deleted record still occupies
// its slot.
func (s *PersonnelService) Create(ctx context.Context, claims security.SessionClaims, p domain.Personnel) (*domain.Personnel, error) {
	if p.Status == "" {
		p.Status = domain.StatusActive
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := security.AuthorizeTenant(claims, p.TenantID); err != nil {
		return nil, err
	}
	if _, err := s.tenantRepo.GetByID(ctx, p.TenantID); err != nil {
		return nil, err
	}

	taken, err := s.personnelRepo.Exists(ctx, p.TenantID, p.ArmyNumber, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Conflict("personnel with this army_number already exists in this db")
	}

	p.ID = ""
	p.IsDeleted = false
	if err := s.personnelRepo.Create(ctx, &p); err != nil {
		return nil, err
	}

	s.logger.Info("personnel created",
		slog.String("personnel_id", p.ID),
		slog.String("tenant_id", p.TenantID),
	)
	return &p, nil
}

// Get returns a record by id. Unlike the listings, a direct id lookup is not
// re-checked against the caller's tenant scope.
func (s *PersonnelService) Get(ctx context.Context, id string) (*domain.Personnel, error) {
	return s.personnelRepo.GetByID(ctx, id)
}

// Update overlays a patch on the stored record, revalidates the whole result
// and persists it. Moving a record to another tenant requires the target
// tenant to exist and be inside the caller's scope.
func (s *PersonnelService) Update(ctx context.Context, claims security.SessionClaims, id string, patch domain.PersonnelPatch) (*domain.Personnel, error) {
	current, err := s.personnelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate := patch.Apply(*current)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if err := security.AuthorizeTenant(claims, candidate.TenantID); err != nil {
		return nil, err
	}
	if candidate.TenantID != current.TenantID {
		if _, err := s.tenantRepo.GetByID(ctx, candidate.TenantID); err != nil {
			return nil, err
		}
	}

	taken, err := s.personnelRepo.Exists(ctx, candidate.TenantID, candidate.ArmyNumber, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Conflict("personnel with this army_number already exists in this db")
	}

	if err := s.personnelRepo.Update(ctx, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// SoftDelete hides a record from default listings. The row and its
// army-number slot survive.
func (s *PersonnelService) SoftDelete(ctx context.Context, claims security.SessionClaims, id string) error {
	p, err := s.personnelRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := security.AuthorizeTenant(claims, p.TenantID); err != nil {
		return err
	}
	return s.personnelRepo.SoftDelete(ctx, id)
}

// BulkSoftDelete soft-deletes a batch of records by id. Malformed ids fail
// the whole request before anything is touched; ids that match nothing are
// counted, and a batch matching zero rows is an error.
func (s *PersonnelService) BulkSoftDelete(ctx context.Context, claims security.SessionClaims, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, domain.Validation("ids are required", nil)
	}
	var malformed []string
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			malformed = append(malformed, id)
		}
	}
	if len(malformed) > 0 {
		return 0, domain.Validation("malformed ids", map[string]any{"ids": malformed})
	}

	deleted, err := s.personnelRepo.SoftDeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, domain.NotFound("no personnel records matched the given ids")
	}

	s.logger.Info("personnel bulk soft-deleted",
		slog.Int64("deleted", deleted),
		slog.Int("requested", len(ids)),
		slog.String("user_id", claims.UserID),
	)
	return deleted, nil
}

// BulkFailure records why one row of a bulk upload was rejected.
type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkCreateResult summarizes a bulk upload.
type BulkCreateResult struct {
	Created  int           `json:"inserted"`
	Failures []BulkFailure `json:"failed"`
}

// BulkCreate inserts a batch of records into one tenant. The first record
// names the tenant for the whole batch; rows pointing elsewhere are rejected
// individually. Rows are processed in order, so a duplicate army number later
// in the batch loses to the earlier row.
func (s *PersonnelService) BulkCreate(ctx context.Context, claims security.SessionClaims, records []domain.Personnel) (*BulkCreateResult, error) {
	if len(records) == 0 {
		return nil, domain.Validation("records are required", nil)
	}

	tenantID := records[0].TenantID
	if tenantID == "" {
		return nil, domain.Validation("db_id is required", nil)
	}
	if err := security.AuthorizeTenant(claims, tenantID); err != nil {
		return nil, err
	}
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	result := &BulkCreateResult{Failures: []BulkFailure{}}
	for i := range records {
		p := records[i]
		if p.TenantID != tenantID {
			result.Failures = append(result.Failures, BulkFailure{Index: i, Error: fmt.Sprintf("db_id does not match batch db %s", tenantID)})
			continue
		}
		if p.Status == "" {
			p.Status = domain.StatusActive
		}
		if err := p.Validate(); err != nil {
			result.Failures = append(result.Failures, BulkFailure{Index: i, Error: err.Error()})
			continue
		}

		taken, err := s.personnelRepo.Exists(ctx, tenantID, p.ArmyNumber, "")
		if err != nil {
			return nil, err
		}
		if taken {
			result.Failures = append(result.Failures, BulkFailure{Index: i, Error: "personnel with this army_number already exists in this db"})
			continue
		}

		p.ID = ""
		p.IsDeleted = false
		if err := s.personnelRepo.Create(ctx, &p); err != nil {
			if domain.KindOf(err) == domain.KindConflict {
				result.Failures = append(result.Failures, BulkFailure{Index: i, Error: err.Error()})
				continue
			}
			return nil, err
		}
		result.Created++
	}

	s.logger.Info("personnel bulk upload finished",
		slog.String("tenant_id", tenantID),
		slog.Int("created", result.Created),
		slog.Int("failed", len(result.Failures)),
	)
	metrics.ObserveBulkUploadRows("created", result.Created)
	metrics.ObserveBulkUploadRows("rejected", len(result.Failures))
	return result, nil
}

// ListByTenant returns one page of a tenant's records. A search term lifts
// the soft-delete filter: matching records are surfaced whether deleted
// or not.
func (s *PersonnelService) ListByTenant(ctx context.Context, claims security.SessionClaims, tenantID, search string, page, limit int) (domain.Page[*domain.Personnel], error) {
	if err := security.AuthorizeTenant(claims, tenantID); err != nil {
		return domain.Page[*domain.Personnel]{}, err
	}
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return domain.Page[*domain.Personnel]{}, err
	}

	page, limit = domain.ClampPage(page, limit)
	records, total, err := s.personnelRepo.List(ctx, domain.PersonnelQuery{
		TenantID:       tenantID,
		Search:         search,
		IncludeDeleted: search != "",
		Offset:         (page - 1) * limit,
		Limit:          limit,
	})
	if err != nil {
		return domain.Page[*domain.Personnel]{}, err
	}
	return domain.NewPage(records, total, page, limit), nil
}

// List returns one page of records across every tenant the caller may see.
// A caller with an empty scope gets an empty page without touching the
// store. Search behaves as in ListByTenant.
func (s *PersonnelService) List(ctx context.Context, claims security.SessionClaims, search string, page, limit int) (domain.Page[*domain.Personnel], error) {
	page, limit = domain.ClampPage(page, limit)

	scope := security.ResolveTenantScope(claims)
	if scope.Empty() {
		return domain.NewPage[*domain.Personnel](nil, 0, page, limit), nil
	}

	q := domain.PersonnelQuery{
		Search:         search,
		IncludeDeleted: search != "",
		Offset:         (page - 1) * limit,
		Limit:          limit,
	}
	if !scope.All {
		q.TenantIDs = scope.TenantIDs
	}

	records, total, err := s.personnelRepo.List(ctx, q)
	if err != nil {
		return domain.Page[*domain.Personnel]{}, err
	}
	return domain.NewPage(records, total, page, limit), nil
}
