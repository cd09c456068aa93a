package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oparadev/personnelbase/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// validPersonnel builds a record that passes Validate, for tests to tweak.
func validPersonnel(tenantID, armyNumber string) domain.Personnel {
	return domain.Personnel{
		TenantID:    tenantID,
		FirstName:   "Musa",
		LastName:    "Bello",
		ArmyNumber:  armyNumber,
		PhoneNumber: "08030000000",
		Rank:        "Sgt",
		Bank:        domain.Bank{Name: "First Bank", SortCode: "011"},
		AcctNumber:  "0123456789",
		SubSector:   "HQ",
		Status:      domain.StatusActive,
	}
}

// memStore backs the in-memory repository fakes the service tests run
// against. It mimics the Postgres semantics the services rely on: unique
// indexes, soft-delete visibility and cascade helpers.
type memStore struct {
	mu         sync.Mutex
	tenants    map[string]*domain.Tenant
	users      map[string]*domain.User
	personnels map[string]*domain.Personnel
	clock      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		tenants:    map[string]*domain.Tenant{},
		users:      map[string]*domain.User{},
		personnels: map[string]*domain.Personnel{},
		clock:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick hands out strictly increasing timestamps so listings have a stable
// created_at order.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memTenantRepo struct{ s *memStore }

func (r *memTenantRepo) Create(_ context.Context, tenant *domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tenants {
		if t.ShortCode == tenant.ShortCode {
			return domain.Conflict("db with this short_code already exists")
		}
	}
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	tenant.CreatedAt = r.s.tick()
	cp := *tenant
	r.s.tenants[tenant.ID] = &cp
	return nil
}

func (r *memTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, domain.NotFound("db not found")
	}
	cp := *t
	return &cp, nil
}

func (r *memTenantRepo) GetByShortCode(_ context.Context, shortCode string) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tenants {
		if t.ShortCode == shortCode {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.NotFound("db not found")
}

func (r *memTenantRepo) Update(_ context.Context, tenant *domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tenants[tenant.ID]
	if !ok {
		return domain.NotFound("db not found")
	}
	for _, t := range r.s.tenants {
		if t.ID != tenant.ID && t.ShortCode == tenant.ShortCode {
			return domain.Conflict("db with this short_code already exists")
		}
	}
	cp := *tenant
	cp.CreatedAt = stored.CreatedAt
	r.s.tenants[tenant.ID] = &cp
	return nil
}

func (r *memTenantRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[id]; !ok {
		return domain.NotFound("db not found")
	}
	delete(r.s.tenants, id)
	return nil
}

func (r *memTenantRepo) List(_ context.Context, q domain.TenantQuery) ([]*domain.Tenant, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Tenant
	for _, t := range r.s.tenants {
		if q.IDs != nil {
			found := false
			for _, id := range q.IDs {
				if id == t.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if q.Search != "" && !contains(t.Name, q.Search) && !contains(t.ShortCode, q.Search) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return paginate(out, q.Offset, q.Limit), total, nil
}

func (r *memTenantRepo) CountCreatedBetween(_ context.Context, from, to time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.tenants {
		if !from.IsZero() && t.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && t.CreatedAt.After(to) {
			continue
		}
		n++
	}
	return n, nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ArmyNumber == user.ArmyNumber {
			return domain.Conflict("user with this army_number already exists")
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = r.s.tick()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByArmyNumber(_ context.Context, armyNumber string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ArmyNumber == armyNumber {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFound("user not found")
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[user.ID]
	if !ok {
		return domain.NotFound("user not found")
	}
	cp := *user
	cp.ArmyNumber = stored.ArmyNumber
	cp.Role = stored.Role
	cp.CreatedAt = stored.CreatedAt
	r.s.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return domain.NotFound("user not found")
	}
	delete(r.s.users, id)
	return nil
}

func (r *memUserRepo) List(_ context.Context, q domain.UserQuery) ([]*domain.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.User
	for _, u := range r.s.users {
		if q.ExcludeRole != "" && u.Role == q.ExcludeRole {
			continue
		}
		if q.Search != "" && !contains(u.FirstName, q.Search) && !contains(u.LastName, q.Search) && !contains(u.ArmyNumber, q.Search) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return paginate(out, q.Offset, q.Limit), total, nil
}

func (r *memUserRepo) RemoveTenantFromAllowLists(_ context.Context, tenantID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		kept := u.AllowedTenantIDs[:0]
		for _, id := range u.AllowedTenantIDs {
			if id != tenantID {
				kept = append(kept, id)
			}
		}
		u.AllowedTenantIDs = kept
	}
	return nil
}

func (r *memUserRepo) PruneDanglingTenantRefs(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var touched int64
	for _, u := range r.s.users {
		kept := make([]string, 0, len(u.AllowedTenantIDs))
		for _, id := range u.AllowedTenantIDs {
			if _, ok := r.s.tenants[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(u.AllowedTenantIDs) {
			u.AllowedTenantIDs = kept
			touched++
		}
	}
	return touched, nil
}

func (r *memUserRepo) CountByRole(_ context.Context, role domain.Role) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) CountCreatedBetween(_ context.Context, from, to time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.users {
		if !from.IsZero() && u.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && u.CreatedAt.After(to) {
			continue
		}
		n++
	}
	return n, nil
}

type memPersonnelRepo struct{ s *memStore }

func (r *memPersonnelRepo) Create(_ context.Context, p *domain.Personnel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, stored := range r.s.personnels {
		if stored.TenantID == p.TenantID && stored.ArmyNumber == p.ArmyNumber {
			return domain.Conflict("personnel with this army_number already exists in this db")
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.s.tick()
	cp := *p
	r.s.personnels[p.ID] = &cp
	return nil
}

func (r *memPersonnelRepo) GetByID(_ context.Context, id string) (*domain.Personnel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.personnels[id]
	if !ok {
		return nil, domain.NotFound("personnel not found")
	}
	cp := *p
	return &cp, nil
}

func (r *memPersonnelRepo) Update(_ context.Context, p *domain.Personnel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.personnels[p.ID]
	if !ok {
		return domain.NotFound("personnel not found")
	}
	for _, other := range r.s.personnels {
		if other.ID != p.ID && other.TenantID == p.TenantID && other.ArmyNumber == p.ArmyNumber {
			return domain.Conflict("personnel with this army_number already exists in this db")
		}
	}
	cp := *p
	cp.CreatedAt = stored.CreatedAt
	r.s.personnels[p.ID] = &cp
	return nil
}

func (r *memPersonnelRepo) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.personnels[id]
	if !ok {
		return domain.NotFound("personnel not found")
	}
	p.IsDeleted = true
	return nil
}

func (r *memPersonnelRepo) SoftDeleteMany(_ context.Context, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched int64
	for _, id := range ids {
		if p, ok := r.s.personnels[id]; ok {
			p.IsDeleted = true
			matched++
		}
	}
	return matched, nil
}

func (r *memPersonnelRepo) Exists(_ context.Context, tenantID, armyNumber, excludeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.personnels {
		if p.ID != excludeID && p.TenantID == tenantID && p.ArmyNumber == armyNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPersonnelRepo) List(_ context.Context, q domain.PersonnelQuery) ([]*domain.Personnel, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Personnel
	for _, p := range r.s.personnels {
		if q.TenantID != "" && p.TenantID != q.TenantID {
			continue
		}
		if q.TenantIDs != nil {
			found := false
			for _, id := range q.TenantIDs {
				if id == p.TenantID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if !q.IncludeDeleted && p.IsDeleted {
			continue
		}
		if q.Search != "" && !contains(p.FirstName, q.Search) && !contains(p.LastName, q.Search) &&
			!contains(p.MiddleName, q.Search) && !contains(p.ArmyNumber, q.Search) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return paginate(out, q.Offset, q.Limit), total, nil
}

func (r *memPersonnelRepo) DeleteByTenant(_ context.Context, tenantID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.personnels {
		if p.TenantID == tenantID {
			delete(r.s.personnels, id)
		}
	}
	return nil
}

func (r *memPersonnelRepo) DeleteOrphans(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	for id, p := range r.s.personnels {
		if _, ok := r.s.tenants[p.TenantID]; !ok {
			delete(r.s.personnels, id)
			removed++
		}
	}
	return removed, nil
}

func (r *memPersonnelRepo) Count(_ context.Context, f domain.PersonnelCountFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.personnels {
		if f.TenantID != "" && p.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Deleted != nil && p.IsDeleted != *f.Deleted {
			continue
		}
		if !f.CreatedFrom.IsZero() && p.CreatedAt.Before(f.CreatedFrom) {
			continue
		}
		if !f.CreatedTo.IsZero() && p.CreatedAt.After(f.CreatedTo) {
			continue
		}
		n++
	}
	return n, nil
}
