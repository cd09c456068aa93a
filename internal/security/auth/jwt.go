package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/security"
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Role        string   `json:"role"`
	ArmyNumber  string   `json:"army_number"`
	AllowedDBs  []string `json:"allowed_dbs"`
	AccessAllDB bool     `json:"access_all_db,omitempty"`
	jwt.RegisteredClaims
}

// Session converts the token payload into the claims value the
// authorization layer works with.
func (c *Claims) Session() security.SessionClaims {
	return security.SessionClaims{
		UserID:           c.Subject,
		Role:             domain.Role(c.Role),
		AccessAllDB:      c.AccessAllDB,
		AllowedTenantIDs: c.AllowedDBs,
	}
}

// TokenManager issues and decodes session tokens.
type TokenManager struct {
	secret    string
	issuer    string
	expiresIn time.Duration
}

func NewTokenManager(secret, issuer string, expiresIn time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "personnelbase"
	}
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenManager{secret: secret, issuer: issuer, expiresIn: expiresIn}
}

// Issue signs a token embedding the user's identity, role and tenant
// allow-list.
func (tm *TokenManager) Issue(user *domain.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("user id required")
	}
	now := time.Now()
	claims := Claims{
		Role:        string(user.Role),
		ArmyNumber:  user.ArmyNumber,
		AllowedDBs:  user.AllowedTenantIDs,
		AccessAllDB: user.AccessAllDB,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secret))
}

// Decode validates a token string and returns its claims.
func (tm *TokenManager) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ExtractToken pulls the bearer token out of an Authorization header.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
