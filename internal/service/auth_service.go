package service

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/observability/metrics"
	"github.com/oparadev/personnelbase/internal/security/auth"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo domain.UserRepository
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo domain.UserRepository,
	tokens *auth.TokenManager,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login authenticates a user by army number and returns a signed token plus
// the account profile. A missing account and a wrong password produce the
// same error so callers cannot probe for valid army numbers.
func (s *AuthService) Login(ctx context.Context, armyNumber, password string) (*LoginResult, error) {
	if armyNumber == "" || password == "" {
		return nil, domain.Validation("army_number and password are required", nil)
	}

	user, err := s.userRepo.GetByArmyNumber(ctx, armyNumber)
	if err != nil {
		s.logger.Info("login attempt for unknown army number", slog.String("army_number", armyNumber))
		metrics.ObserveLogin("failure")
		return nil, domain.Unauthorized("invalid credentials")
	}

	if !verifyPassword(user, password) {
		s.logger.Info("login failed with wrong password", slog.String("army_number", armyNumber))
		metrics.ObserveLogin("failure")
		return nil, domain.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, domain.Internal("failed to generate token")
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("army_number", user.ArmyNumber),
	)
	metrics.ObserveLogin("success")

	return &LoginResult{Token: token, User: user}, nil
}

// ChangePassword rotates a user's credential. The old password is accepted if
// it matches either the active hash or a still-pending admin-generated one;
// completing the change clears the generated credential and the
// must-change flag.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.Validation("new password must be at least 8 characters", nil)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !verifyPassword(user, oldPassword) {
		return domain.Unauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return domain.Internal("failed to change password")
	}

	user.PasswordHash = string(hash)
	user.GeneratedPasswordHash = ""
	user.MustChangePassword = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update user password", slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}

// verifyPassword checks password against the active hash and, when one is
// pending, the generated hash.
func verifyPassword(user *domain.User, password string) bool {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
		return true
	}
	if user.GeneratedPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(user.GeneratedPasswordHash), []byte(password)) == nil
	}
	return false
}
