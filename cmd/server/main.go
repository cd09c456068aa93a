package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oparadev/personnelbase/internal/handler"
	"github.com/oparadev/personnelbase/internal/infrastructure/logger"
	"github.com/oparadev/personnelbase/internal/infrastructure/redis"
	"github.com/oparadev/personnelbase/internal/observability/metrics"
	"github.com/oparadev/personnelbase/internal/observability/tracing"
	"github.com/oparadev/personnelbase/internal/repository"
	"github.com/oparadev/personnelbase/internal/security/audit"
	"github.com/oparadev/personnelbase/internal/security/auth"
	"github.com/oparadev/personnelbase/internal/security/middleware"
	"github.com/oparadev/personnelbase/internal/security/ratelimit"
	"github.com/oparadev/personnelbase/internal/service"
	"github.com/oparadev/personnelbase/internal/worker"
	"github.com/oparadev/personnelbase/pkg/cache"
	"github.com/oparadev/personnelbase/pkg/config"
	"github.com/oparadev/personnelbase/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting personnelbase server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "personnelbase", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to Postgres and apply migrations
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	db := pool.GetDB()
	if err := repository.Migrate(ctx, db); err != nil {
		log.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Redis is optional; analytics caching degrades to direct counts
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, analytics cache disabled", slog.String("error", err.Error()))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// 6. Initialize repositories
	tenantRepo := repository.NewPostgresTenantRepository(db, log)
	userRepo := repository.NewPostgresUserRepository(db, log)
	personnelRepo := repository.NewPostgresPersonnelRepository(db, log)

	// 7. Security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, time.Duration(cfg.AccessExpiresMinutes)*time.Minute)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Initialize services
	authService := service.NewAuthService(userRepo, tokenManager, log)
	tenantService := service.NewTenantService(tenantRepo, userRepo, personnelRepo, auditLogger, log)
	userService := service.NewUserService(userRepo, tenantRepo, cache.New(), auditLogger, log)
	personnelService := service.NewPersonnelService(personnelRepo, tenantRepo, log)
	analyticsService := service.NewAnalyticsService(tenantRepo, userRepo, personnelRepo, redisClient, log)

	// 9. Initialize handlers
	loginHandler := handler.NewLoginHandler(authService, log)
	authHandler := handler.NewAuthHandler(authService, log)
	tenantHandler := handler.NewTenantHandler(tenantService, log)
	userHandler := handler.NewUserHandler(userService, log)
	personnelHandler := handler.NewPersonnelHandler(personnelService, log)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	// 10. Routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", loginHandler.Login)
	mux.HandleFunc("POST /auth/change-password", authHandler.ChangePassword)

	mux.HandleFunc("POST /admin/dbs", tenantHandler.Create)
	mux.HandleFunc("GET /admin/dbs", tenantHandler.List)
	mux.HandleFunc("GET /admin/dbs/{id}", tenantHandler.Get)
	mux.HandleFunc("PATCH /admin/dbs/{id}", tenantHandler.Update)
	mux.HandleFunc("DELETE /admin/dbs/{id}", tenantHandler.Delete)

	mux.HandleFunc("POST /admin/users", userHandler.Create)
	mux.HandleFunc("GET /admin/users", userHandler.List)
	mux.HandleFunc("GET /admin/users/{id}", userHandler.Get)
	mux.HandleFunc("PATCH /admin/users/{id}", userHandler.Update)
	mux.HandleFunc("DELETE /admin/users/{id}", userHandler.Delete)
	mux.HandleFunc("POST /admin/reset-password", userHandler.ResetPassword)
	mux.HandleFunc("GET /admin/analytics", analyticsHandler.Dashboard)

	mux.HandleFunc("POST /personnels", personnelHandler.Create)
	mux.HandleFunc("GET /personnels", personnelHandler.List)
	mux.HandleFunc("GET /personnels/{id}", personnelHandler.Get)
	mux.HandleFunc("PATCH /personnels/{id}", personnelHandler.Update)
	mux.HandleFunc("DELETE /personnels/{id}", personnelHandler.Delete)
	mux.HandleFunc("GET /personnels/db/{id}", personnelHandler.ListByTenant)
	mux.HandleFunc("POST /personnels/upload", personnelHandler.BulkUpload)
	mux.HandleFunc("DELETE /personnels/bulk-delete", personnelHandler.BulkDelete)

	mux.HandleFunc("GET /analytics/db/{id}", analyticsHandler.ForTenant)

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// JWT decodes first so audit and the per-user rate limit see the caller's
	// identity in context.
	protected := middleware.ValidateJSONContentType(log)(
		middleware.JWTMiddleware(tokenManager, log)(
			middleware.AuditMiddleware(auditLogger)(
				middleware.RateLimitMiddleware(rateLimiter, log)(mux),
			),
		),
	)

	// CORS honoring configured origins. Preflights are answered here, before
	// any token check.
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		protected.ServeHTTP(w, r)
	})

	// Chain: request id -> metrics -> CORS -> content type -> JWT -> audit -> rate limit -> mux
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(handlerWithCORS),
		log,
	)
	tracedHandler := otelhttp.NewHandler(rootHandler, "personnelbase")

	// 11. Start reconcile worker in background
	reconcileWorker := worker.NewReconcileWorker(
		personnelRepo,
		userRepo,
		log,
		time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute,
	)
	go reconcileWorker.Start(ctx)

	// 12. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      tracedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop the reconcile worker
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.ContextWithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
