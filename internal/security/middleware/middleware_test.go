package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/security/audit"
	"github.com/oparadev/personnelbase/internal/security/auth"
	"github.com/oparadev/personnelbase/internal/security/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(hits *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.WriteHeader(http.StatusOK)
	})
}

// The chain decodes the token before the rate limit runs, so the limiter
// keys on the authenticated user rather than silently letting everything
// through.
func TestRateLimitThrottlesAuthenticatedUser(t *testing.T) {
	log := testLogger()
	tm := auth.NewTokenManager("test-secret", "personnelbase-test", time.Hour)
	token, err := tm.Issue(&domain.User{ID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	limiter := ratelimit.NewLimiter(2, time.Minute)
	defer limiter.Stop()

	hits := 0
	chain := JWTMiddleware(tm, log)(
		AuditMiddleware(audit.NewLogger(log))(
			RateLimitMiddleware(limiter, log)(okHandler(&hits)),
		),
	)

	var throttled int
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/personnels", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}

	if hits != 2 {
		t.Fatalf("expected 2 requests through, got %d", hits)
	}
	if throttled != 48 {
		t.Fatalf("expected 48 throttled requests, got %d", throttled)
	}
}

func TestRateLimitIsPerUser(t *testing.T) {
	log := testLogger()
	tm := auth.NewTokenManager("test-secret", "personnelbase-test", time.Hour)
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()

	hits := 0
	chain := JWTMiddleware(tm, log)(RateLimitMiddleware(limiter, log)(okHandler(&hits)))

	for _, userID := range []string{"u1", "u2"} {
		token, err := tm.Issue(&domain.User{ID: userID, Role: domain.RoleUser})
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/personnels", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("first request for %s must pass, got %d", userID, rec.Code)
		}
	}
	if hits != 2 {
		t.Fatalf("one user's bucket leaked into another's, hits=%d", hits)
	}
}

func TestLoginAttemptsThrottledPerAddress(t *testing.T) {
	log := testLogger()
	limiter := ratelimit.NewLimiter(1000, time.Minute)
	defer limiter.Stop()

	hits := 0
	chain := RateLimitMiddleware(limiter, log)(okHandler(&hits))

	var last int
	for i := 0; i <= loginMaxAttempts; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:40000"
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected attempt %d to be throttled, got %d", loginMaxAttempts+1, last)
	}
	if hits != loginMaxAttempts {
		t.Fatalf("expected %d attempts through, got %d", loginMaxAttempts, hits)
	}

	// A different address gets its own budget.
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "192.0.2.2:40000"
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh address must not be throttled, got %d", rec.Code)
	}
}

func TestPublicPathsBypassTokenCheck(t *testing.T) {
	log := testLogger()
	tm := auth.NewTokenManager("test-secret", "personnelbase-test", time.Hour)

	hits := 0
	chain := JWTMiddleware(tm, log)(okHandler(&hits))

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/auth/login"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("public path %s must pass without a token, got %d", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/personnels", nil)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected path without a token must 401, got %d", rec.Code)
	}
}

func TestClientAddrStripsPort(t *testing.T) {
	for i, tt := range []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:40000", "192.0.2.1"},
		{"[2001:db8::1]:40000", "2001:db8::1"},
		{"unix-socket", "unix-socket"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientAddr(req); got != tt.want {
			t.Errorf("case %d: clientAddr(%q) = %q, want %q", i, tt.remote, got, tt.want)
		}
	}
}
