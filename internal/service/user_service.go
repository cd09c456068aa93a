package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/security"
	"github.com/oparadev/personnelbase/internal/security/audit"
	"github.com/oparadev/personnelbase/pkg/cache"
)

const tenantSummaryTTL = 30 * time.Second

// UserService manages accounts. Every operation here is admin only; regular
// users only ever touch their own credential through the auth service.
type UserService struct {
	userRepo   domain.UserRepository
	tenantRepo domain.TenantRepository
	summaries  *cache.Cache
	audit      *audit.Logger
	logger     *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo domain.UserRepository,
	tenantRepo domain.TenantRepository,
	summaries *cache.Cache,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserService{
		userRepo:   userRepo,
		tenantRepo: tenantRepo,
		summaries:  summaries,
		audit:      auditLogger,
		logger:     logger,
	}
}

// CreateUserInput carries the fields a new account is built from. Role is
// not part of the surface: accounts created through the API are always
// regular users.
type CreateUserInput struct {
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	ArmyNumber       string   `json:"army_number"`
	AccessAllDB      bool     `json:"access_all_db"`
	AllowedTenantIDs []string `json:"allowed_dbs"`
}

// CreateUserResult is the created account plus its generated credential,
// surfaced exactly once.
type CreateUserResult struct {
	User              *domain.User `json:"user"`
	GeneratedPassword string       `json:"generated_password"`
}

// TenantSummary is the compact tenant shape embedded in user listings.
type TenantSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ShortCode   string `json:"short_code"`
	Description string `json:"description"`
}

// UserView is a user with the allow-list expanded into tenant summaries.
type UserView struct {
	*domain.User
	AllowedDBs []TenantSummary `json:"allowed_dbs"`
}

// Create registers a regular user with a generated one-time credential. Every
// allow-list entry must name an existing tenant; validation stops at the
// first unknown id.
func (s *UserService) Create(ctx context.Context, claims security.SessionClaims, in CreateUserInput) (*CreateUserResult, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return nil, err
	}

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.ArmyNumber = strings.TrimSpace(in.ArmyNumber)
	var missing []string
	if in.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if in.LastName == "" {
		missing = append(missing, "last_name")
	}
	if in.ArmyNumber == "" {
		missing = append(missing, "army_number")
	}
	if len(missing) > 0 {
		return nil, domain.Validation("missing required fields", map[string]any{"fields": missing})
	}

	for _, tenantID := range in.AllowedTenantIDs {
		if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil, domain.NotFound(fmt.Sprintf("db %s not found", tenantID))
			}
			return nil, err
		}
	}

	password, err := generatePassword()
	if err != nil {
		s.logger.Error("failed to generate password", slog.String("error", err.Error()))
		return nil, domain.Internal("failed to create user")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Internal("failed to create user")
	}

	allowed := in.AllowedTenantIDs
	if allowed == nil {
		allowed = []string{}
	}
	user := &domain.User{
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		ArmyNumber:            in.ArmyNumber,
		Role:                  domain.RoleUser,
		AccessAllDB:           in.AccessAllDB,
		AllowedTenantIDs:      allowed,
		PasswordHash:          string(hash),
		GeneratedPasswordHash: string(hash),
		MustChangePassword:    true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("army_number", user.ArmyNumber),
		slog.String("created_by", claims.UserID),
	)
	return &CreateUserResult{User: user, GeneratedPassword: password}, nil
}

// Get returns an account by id.
func (s *UserService) Get(ctx context.Context, claims security.SessionClaims, id string) (*UserView, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.expand(ctx, user)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Update applies a partial update. When the patch replaces the allow-list,
// every entry is checked and all unknown ids are reported together.
func (s *UserService) Update(ctx context.Context, claims security.SessionClaims, id string, patch domain.UserPatch) (*domain.User, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.AllowedTenantIDs != nil {
		var unknown []string
		for _, tenantID := range patch.AllowedTenantIDs {
			if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
				if domain.KindOf(err) == domain.KindNotFound {
					unknown = append(unknown, tenantID)
					continue
				}
				return nil, err
			}
		}
		if len(unknown) > 0 {
			return nil, domain.NotFound(fmt.Sprintf("dbs not found: %s", strings.Join(unknown, ", ")))
		}
		user.AllowedTenantIDs = patch.AllowedTenantIDs
	}
	if patch.FirstName != nil {
		user.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		user.LastName = strings.TrimSpace(*patch.LastName)
	}
	if user.FirstName == "" || user.LastName == "" {
		return nil, domain.Validation("first_name and last_name cannot be empty", nil)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account. Administrators cannot delete themselves; that
// would strand the system without its operator.
func (s *UserService) Delete(ctx context.Context, claims security.SessionClaims, id string) error {
	if err := security.RequireAdmin(claims); err != nil {
		return err
	}
	if id == claims.UserID {
		return domain.InvalidOperation("cannot delete your own account")
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogAction(ctx, claims.UserID, "delete", "user", id, "success", "")
	return nil
}

// List returns one page of regular users with their allow-lists expanded to
// tenant summaries. Administrator accounts never appear in the listing.
func (s *UserService) List(ctx context.Context, claims security.SessionClaims, search string, page, limit int) (domain.Page[*UserView], error) {
	if err := security.RequireAdmin(claims); err != nil {
		return domain.Page[*UserView]{}, err
	}
	page, limit = domain.ClampPage(page, limit)

	users, total, err := s.userRepo.List(ctx, domain.UserQuery{
		Search:      search,
		ExcludeRole: domain.RoleAdmin,
		Offset:      (page - 1) * limit,
		Limit:       limit,
	})
	if err != nil {
		return domain.Page[*UserView]{}, err
	}

	views := make([]*UserView, 0, len(users))
	for _, user := range users {
		view, err := s.expand(ctx, user)
		if err != nil {
			return domain.Page[*UserView]{}, err
		}
		views = append(views, view)
	}
	return domain.NewPage(views, total, page, limit), nil
}

// ResetPassword sets a fresh credential for an account and returns it once.
// When newPassword is empty one is generated. Either way the account must
// change it at next login.
func (s *UserService) ResetPassword(ctx context.Context, claims security.SessionClaims, id, newPassword string) (string, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return "", err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	password := newPassword
	if password == "" {
		password, err = generatePassword()
		if err != nil {
			s.logger.Error("failed to generate password", slog.String("error", err.Error()))
			return "", domain.Internal("failed to reset password")
		}
	} else if len(password) < 8 {
		return "", domain.Validation("password must be at least 8 characters", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.Internal("failed to reset password")
	}

	user.PasswordHash = string(hash)
	user.GeneratedPasswordHash = string(hash)
	user.MustChangePassword = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.audit.LogPasswordReset(ctx, claims.UserID, id, "failed")
		return "", err
	}

	s.audit.LogPasswordReset(ctx, claims.UserID, id, "success")
	return password, nil
}

// expand resolves a user's allow-list into tenant summaries, skipping ids
// whose tenant vanished mid-cascade. Summaries are cached briefly since user
// listings hit the same handful of tenants over and over.
func (s *UserService) expand(ctx context.Context, user *domain.User) (*UserView, error) {
	summaries := make([]TenantSummary, 0, len(user.AllowedTenantIDs))
	for _, tenantID := range user.AllowedTenantIDs {
		if cached, ok := s.summaries.Get("tenant:" + tenantID); ok {
			summaries = append(summaries, cached.(TenantSummary))
			continue
		}
		tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				continue
			}
			return nil, err
		}
		summary := TenantSummary{
			ID:          tenant.ID,
			Name:        tenant.Name,
			ShortCode:   tenant.ShortCode,
			Description: tenant.Description,
		}
		s.summaries.Set("tenant:"+tenantID, summary, tenantSummaryTTL)
		summaries = append(summaries, summary)
	}
	return &UserView{User: user, AllowedDBs: summaries}, nil
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generatePassword produces a 12-character random credential from an
// alphabet with the easily confused characters removed.
func generatePassword() (string, error) {
	out := make([]byte, 12)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
