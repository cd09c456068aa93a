package domain

import (
	"context"
	"fmt"
	"time"
)

// PersonnelStatus is the closed set of service statuses.
type PersonnelStatus string

const (
	StatusActive   PersonnelStatus = "active"
	StatusInactive PersonnelStatus = "inactive"
	StatusAWOL     PersonnelStatus = "awol"
	StatusDeath    PersonnelStatus = "death"
	StatusRTU      PersonnelStatus = "rtu"
	StatusPosted   PersonnelStatus = "posted"
	StatusCSE      PersonnelStatus = "cse"
)

// Valid reports whether s is a known status.
func (s PersonnelStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusAWOL, StatusDeath, StatusRTU, StatusPosted, StatusCSE:
		return true
	}
	return false
}

// Bank holds payment routing details for a personnel record.
type Bank struct {
	Name     string `json:"name"`
	SortCode string `json:"sort_code"`
}

// Personnel is a tenant-scoped personnel record. ArmyNumber is unique within
// the owning tenant; soft-deleted rows keep occupying that uniqueness slot.
type Personnel struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"db_id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	MiddleName  string          `json:"middle_name,omitempty"`
	ArmyNumber  string          `json:"army_number"`
	PhoneNumber string          `json:"phone_number"`
	Rank        string          `json:"rank"`
	Bank        Bank            `json:"bank"`
	AcctNumber  string          `json:"acct_number"`
	SubSector   string          `json:"sub_sector"`
	Location    string          `json:"location,omitempty"`
	Remark      string          `json:"remark,omitempty"`
	Status      PersonnelStatus `json:"status"`
	IsDeleted   bool            `json:"isDeleted"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the record as a whole and reports every missing or invalid
// field at once.
func (p *Personnel) Validate() error {
	var fields []string
	required := map[string]string{
		"db_id":        p.TenantID,
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"army_number":  p.ArmyNumber,
		"phone_number": p.PhoneNumber,
		"rank":         p.Rank,
		"bank.name":    p.Bank.Name,
		"acct_number":  p.AcctNumber,
		"sub_sector":   p.SubSector,
	}
	for name, v := range required {
		if v == "" {
			fields = append(fields, name)
		}
	}
	if len(fields) > 0 {
		return Validation("missing required fields", map[string]any{"fields": fields})
	}
	if !p.Status.Valid() {
		return Validation(fmt.Sprintf("invalid status %q", p.Status), nil)
	}
	return nil
}

// PersonnelPatch is a partial update. Nil fields are left untouched. The
// patch is overlaid on the stored record and the result is revalidated as a
// whole, so cross-field rules hold after every update.
type PersonnelPatch struct {
	TenantID    *string          `json:"db_id"`
	FirstName   *string          `json:"first_name"`
	LastName    *string          `json:"last_name"`
	MiddleName  *string          `json:"middle_name"`
	ArmyNumber  *string          `json:"army_number"`
	PhoneNumber *string          `json:"phone_number"`
	Rank        *string          `json:"rank"`
	Bank        *Bank            `json:"bank"`
	AcctNumber  *string          `json:"acct_number"`
	SubSector   *string          `json:"sub_sector"`
	Location    *string          `json:"location"`
	Remark      *string          `json:"remark"`
	Status      *PersonnelStatus `json:"status"`
}

// Apply overlays the patch on a copy of p and returns the candidate record.
func (patch PersonnelPatch) Apply(p Personnel) Personnel {
	if patch.TenantID != nil {
		p.TenantID = *patch.TenantID
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.MiddleName != nil {
		p.MiddleName = *patch.MiddleName
	}
	if patch.ArmyNumber != nil {
		p.ArmyNumber = *patch.ArmyNumber
	}
	if patch.PhoneNumber != nil {
		p.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Rank != nil {
		p.Rank = *patch.Rank
	}
	if patch.Bank != nil {
		p.Bank = *patch.Bank
	}
	if patch.AcctNumber != nil {
		p.AcctNumber = *patch.AcctNumber
	}
	if patch.SubSector != nil {
		p.SubSector = *patch.SubSector
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Remark != nil {
		p.Remark = *patch.Remark
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	return p
}

// PersonnelQuery narrows a personnel listing.
type PersonnelQuery struct {
	TenantID string
	// TenantIDs restricts to a caller's scope. Nil means unrestricted; an
	// empty non-nil slice matches nothing.
	TenantIDs []string
	Search    string
	// IncludeDeleted lifts the default is_deleted filter. Listings set it
	// whenever Search is present to preserve the legacy search behavior.
	IncludeDeleted bool
	Offset         int
	Limit          int
}

// PersonnelCountFilter selects records for analytics counts.
type PersonnelCountFilter struct {
	TenantID    string
	Status      PersonnelStatus
	Deleted     *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// PersonnelRepository defines data access for personnel records.
type PersonnelRepository interface {
	Create(ctx context.Context, p *Personnel) error
	GetByID(ctx context.Context, id string) (*Personnel, error)
	Update(ctx context.Context, p *Personnel) error
	SoftDelete(ctx context.Context, id string) error
	// SoftDeleteMany marks every matching id deleted and returns how many
	// rows matched. Ids with no match are ignored.
	SoftDeleteMany(ctx context.Context, ids []string) (int64, error)
	// Exists reports whether another record (excluding excludeID, which may
	// be empty) already occupies (tenantID, armyNumber). Soft-deleted rows
	// count: the slot stays taken after a soft delete.
	Exists(ctx context.Context, tenantID, armyNumber, excludeID string) (bool, error)
	List(ctx context.Context, q PersonnelQuery) ([]*Personnel, int, error)
	// DeleteByTenant removes every record owned by the tenant, deleted or
	// not. Safe to re-run.
	DeleteByTenant(ctx context.Context, tenantID string) error
	// DeleteOrphans removes records whose tenant no longer exists and
	// returns the number removed.
	DeleteOrphans(ctx context.Context) (int64, error)
	Count(ctx context.Context, f PersonnelCountFilter) (int, error)
}
