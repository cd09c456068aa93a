package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oparadev/personnelbase/internal/security"
	"github.com/oparadev/personnelbase/internal/security/audit"
	"github.com/oparadev/personnelbase/internal/security/auth"
	"github.com/oparadev/personnelbase/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// publicPath reports whether a request path is reachable without a token.
func publicPath(path string) bool {
	switch path {
	case "/", "/healthz", "/readyz", "/metrics", "/auth/login":
		return true
	}
	return false
}

// JWTMiddleware decodes the bearer token and stores its claims in the
// request context. Public endpoints pass through untouched.
func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				unauthorized(w, "invalid authorization header")
				return
			}

			claims, err := tm.Decode(tokenString)
			if err != nil {
				log.Debug("token rejected", slog.String("error", err.Error()))
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

const (
	loginMaxAttempts = 10
	loginWindow      = time.Minute
)

// RateLimitMiddleware throttles authenticated callers per user id, so it
// must run after JWTMiddleware has put the claims in context. Login attempts
// carry no identity yet and get a tighter per-address limit instead.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/login" {
				addr := clientAddr(r)
				if !limiter.AllowStrict(addr, loginMaxAttempts, loginWindow) {
					log.Warn("login rate limit exceeded", slog.String("addr", addr))
					tooManyRequests(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			userID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.Subject
			}

			if !limiter.Allow(userID) {
				log.Warn("rate limit exceeded", slog.String("user_id", userID))
				tooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"message":"rate limit exceeded","statusCode":429,"data":{}}`))
}

// clientAddr returns the caller's address without the ephemeral port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuditMiddleware records admin-surface mutations before they execute.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && strings.HasPrefix(r.URL.Path, "/admin/") {
				userID := ""
				if claims := GetClaimsFromContext(r.Context()); claims != nil {
					userID = claims.Subject
				}
				auditLog.LogAction(r.Context(), userID, strings.ToLower(r.Method), r.URL.Path, r.PathValue("id"), "initiated", "")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"` + message + `","statusCode":401,"data":{}}`))
}

// GetClaimsFromContext returns the token claims stored by JWTMiddleware.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}

// GetSessionFromContext returns the session claims, or false when the
// request carries no decoded token.
func GetSessionFromContext(ctx context.Context) (security.SessionClaims, bool) {
	claims := GetClaimsFromContext(ctx)
	if claims == nil {
		return security.SessionClaims{}, false
	}
	return claims.Session(), true
}
