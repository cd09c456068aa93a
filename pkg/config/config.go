package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment              string
	ServerPort               int
	LogLevel                 string
	DatabaseHost             string
	DatabasePort             int
	DatabaseUser             string
	DatabasePassword         string
	DatabaseName             string
	DatabaseSSLMode          string
	RedisURL                 string
	JWTSecret                string
	JWTIssuer                string
	AccessExpiresMinutes     int
	RateLimitPerMinute       int
	ReconcileIntervalMinutes int
	CORSAllowedOrigins       []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	accessExpires, err := strconv.Atoi(getEnv("ACCESS_EXPIRES_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_EXPIRES_MINUTES: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	reconcileInterval, err := strconv.Atoi(getEnv("RECONCILE_INTERVAL_MINUTES", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL_MINUTES: %w", err)
	}

	return &Config{
		Environment:              getEnv("ENVIRONMENT", "development"),
		ServerPort:               port,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DatabaseHost:             getEnv("DB_HOST", "localhost"),
		DatabasePort:             dbPort,
		DatabaseUser:             getEnv("DB_USER", "personnelbase"),
		DatabasePassword:         getEnv("DB_PASSWORD", "dev"),
		DatabaseName:             getEnv("DB_NAME", "personnelbase"),
		DatabaseSSLMode:          getEnv("DB_SSLMODE", "disable"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTIssuer:                getEnv("JWT_ISSUER", "personnelbase"),
		AccessExpiresMinutes:     accessExpires,
		RateLimitPerMinute:       rateLimit,
		ReconcileIntervalMinutes: reconcileInterval,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
