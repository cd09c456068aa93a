package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/oparadev/personnelbase/internal/domain"
)

type personnelFixture struct {
	svc           *PersonnelService
	personnelRepo *memPersonnelRepo
	tenantRepo    *memTenantRepo
}

func newPersonnelFixture(t *testing.T) *personnelFixture {
	t.Helper()
	store := newMemStore()
	f := &personnelFixture{
		personnelRepo: &memPersonnelRepo{s: store},
		tenantRepo:    &memTenantRepo{s: store},
	}
	f.svc = NewPersonnelService(f.personnelRepo, f.tenantRepo, testLogger())
	return f
}

func (f *personnelFixture) seedTenant(t *testing.T, shortCode string) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{Name: shortCode, ShortCode: shortCode}
	if err := f.tenantRepo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("seed tenant %s: %v", shortCode, err)
	}
	return tenant
}

func TestCreateConflictsWithSoftDeletedRecord(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	created, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.SoftDelete(ctx, adminClaims(), created.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// The soft-deleted row still owns its army number slot.
	_, err = f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict against soft-deleted record, got %v", err)
	}
}

func TestCreateAllowsSameArmyNumberAcrossTenants(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	alpha := f.seedTenant(t, "alpha")
	bravo := f.seedTenant(t, "bravo")

	if _, err := f.svc.Create(ctx, adminClaims(), validPersonnel(alpha.ID, "20000001")); err != nil {
		t.Fatalf("create in alpha: %v", err)
	}
	if _, err := f.svc.Create(ctx, adminClaims(), validPersonnel(bravo.ID, "20000001")); err != nil {
		t.Fatalf("create in bravo: %v", err)
	}
}

func TestCreateRejectsOutOfScopeTenant(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	alpha := f.seedTenant(t, "alpha")
	bravo := f.seedTenant(t, "bravo")

	_, err := f.svc.Create(ctx, userClaims(bravo.ID), validPersonnel(alpha.ID, "20000001"))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateReportsAllMissingFields(t *testing.T) {
	f := newPersonnelFixture(t)
	tenant := f.seedTenant(t, "alpha")

	p := validPersonnel(tenant.ID, "20000001")
	p.FirstName = ""
	p.Rank = ""
	_, err := f.svc.Create(context.Background(), adminClaims(), p)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	data, ok := domain.DataOf(err).(map[string]any)
	if !ok {
		t.Fatalf("expected structured field data, got %v", domain.DataOf(err))
	}
	fields, ok := data["fields"].([]string)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected both missing fields reported, got %v", data["fields"])
	}
}

func TestGetByIDSkipsScopeCheck(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	created, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Direct id lookups are not narrowed to the caller's tenant scope.
	got, err := f.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected record %s, got %s", created.ID, got.ID)
	}
}

func TestUpdateMergesPatchThenValidates(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	created, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rank := "WO"
	updated, err := f.svc.Update(ctx, adminClaims(), created.ID, domain.PersonnelPatch{Rank: &rank})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Rank != "WO" {
		t.Fatalf("expected patched rank, got %q", updated.Rank)
	}
	if updated.FirstName != created.FirstName || updated.ArmyNumber != created.ArmyNumber {
		t.Fatal("untouched fields must survive a patch")
	}

	empty := ""
	_, err = f.svc.Update(ctx, adminClaims(), created.ID, domain.PersonnelPatch{FirstName: &empty})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error when patch blanks a required field, got %v", err)
	}

	bad := domain.PersonnelStatus("retired")
	_, err = f.svc.Update(ctx, adminClaims(), created.ID, domain.PersonnelPatch{Status: &bad})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdateUniquenessExcludesSelf(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	created, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000002"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Re-saving the same army number on the same record is not a conflict.
	rank := "Cpl"
	if _, err := f.svc.Update(ctx, adminClaims(), created.ID, domain.PersonnelPatch{Rank: &rank}); err != nil {
		t.Fatalf("update keeping army number: %v", err)
	}

	// Taking another record's army number is.
	stolen := other.ArmyNumber
	_, err = f.svc.Update(ctx, adminClaims(), created.ID, domain.PersonnelPatch{ArmyNumber: &stolen})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBulkSoftDeleteValidatesBeforeMutating(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	created, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.BulkSoftDelete(ctx, adminClaims(), nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}

	_, err = f.svc.BulkSoftDelete(ctx, adminClaims(), []string{created.ID, "not-a-uuid"})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for malformed id, got %v", err)
	}
	still, err := f.personnelRepo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if still.IsDeleted {
		t.Fatal("a rejected batch must not mutate anything")
	}

	_, err = f.svc.BulkSoftDelete(ctx, adminClaims(), []string{uuid.NewString()})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found for a zero-match batch, got %v", err)
	}

	deleted, err := f.svc.BulkSoftDelete(ctx, adminClaims(), []string{created.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 matched row, got %d", deleted)
	}
}

func TestBulkCreateRecordsFailuresByIndex(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")
	other := f.seedTenant(t, "bravo")

	if _, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000009")); err != nil {
		t.Fatalf("seed existing record: %v", err)
	}

	invalid := validPersonnel(tenant.ID, "20000003")
	invalid.PhoneNumber = ""
	wrongTenant := validPersonnel(other.ID, "20000004")

	batch := []domain.Personnel{
		validPersonnel(tenant.ID, "20000001"), // ok
		validPersonnel(tenant.ID, "20000009"), // duplicate against the store
		invalid,                               // fails validation
		wrongTenant,                           // points outside the batch tenant
		validPersonnel(tenant.ID, "20000001"), // duplicate against row 0
		validPersonnel(tenant.ID, "20000005"), // ok
	}

	result, err := f.svc.BulkCreate(ctx, adminClaims(), batch)
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if result.Created != 2 {
		t.Fatalf("expected 2 created rows, got %d", result.Created)
	}
	wantFailed := []int{1, 2, 3, 4}
	if len(result.Failures) != len(wantFailed) {
		t.Fatalf("expected %d failures, got %+v", len(wantFailed), result.Failures)
	}
	for i, idx := range wantFailed {
		if result.Failures[i].Index != idx {
			t.Fatalf("expected failure at index %d, got %+v", idx, result.Failures[i])
		}
	}
}

func TestListSearchSurfacesSoftDeleted(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	created, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.SoftDelete(ctx, adminClaims(), created.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// Without a search term the deleted record is hidden.
	page, err := f.svc.ListByTenant(ctx, adminClaims(), tenant.ID, "", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Meta.Total != 0 {
		t.Fatalf("expected soft-deleted record hidden, got %d", page.Meta.Total)
	}

	// A search term replaces the soft-delete filter entirely.
	found, err := f.svc.ListByTenant(ctx, adminClaims(), tenant.ID, "20000001", 1, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if found.Meta.Total != 1 || !found.Items[0].IsDeleted {
		t.Fatalf("expected the soft-deleted record in search results, got %+v", found.Items)
	}
}

func TestListEmptyScopeReturnsEmptyPage(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	if _, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001")); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := f.svc.List(ctx, userClaims(), "", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 || page.Meta.Total != 0 || page.Meta.PageCount != 1 {
		t.Fatalf("expected deterministic empty page, got %+v", page)
	}

	scoped, err := f.svc.List(ctx, userClaims(tenant.ID), "", 1, 10)
	if err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if scoped.Meta.Total != 1 {
		t.Fatalf("expected scoped listing to see the record, got %+v", scoped.Meta)
	}
}

func TestAccessAllDBWidensScope(t *testing.T) {
	f := newPersonnelFixture(t)
	ctx := context.Background()
	tenant := f.seedTenant(t, "alpha")

	if _, err := f.svc.Create(ctx, adminClaims(), validPersonnel(tenant.ID, "20000001")); err != nil {
		t.Fatalf("create: %v", err)
	}

	claims := userClaims()
	claims.AccessAllDB = true
	page, err := f.svc.List(ctx, claims, "", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Meta.Total != 1 {
		t.Fatalf("expected access_all_db caller to see every tenant, got %+v", page.Meta)
	}
}
