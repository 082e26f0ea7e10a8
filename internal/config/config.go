package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full application configuration. It is loaded once from the
// environment at startup and treated as immutable afterwards.
type Config struct {
	// Database
	DatabaseURL        string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	DBConnMaxIdleTime  time.Duration

	// Token signing
	JWTSecretCurrent  string
	JWTSecretPrevious string
	JWTRotateKey      bool
	AccessTokenTTL    time.Duration
	AccessTokenMaxTTL time.Duration

	// Login rate limiting
	LoginMaxFailures   int
	LoginFailureWindow time.Duration

	// Server
	Port string

	// Observability
	SentryDSN string
	AppEnv    string

	// Uploads
	UploadDir     string
	UploadMaxSize int64

	// Maintenance
	CronSecret       string
	CleanupSchedule  string
	CleanupBatchSize int
}

// Load reads the configuration from the environment. Missing required
// variables are reported together in a single error.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecretCurrent = strings.TrimSpace(os.Getenv("JWT_SECRET_CURRENT"))
	if cfg.JWTSecretCurrent == "" {
		missing = append(missing, "JWT_SECRET_CURRENT")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.JWTSecretPrevious = strings.TrimSpace(os.Getenv("JWT_SECRET_PREVIOUS"))
	cfg.JWTRotateKey = envBoolOrDefault("JWT_ROTATE_KEY", false)
	cfg.AccessTokenTTL = envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15)
	cfg.AccessTokenMaxTTL = envMinutesOrDefault("ACCESS_TOKEN_MAX_TTL_MINUTES", 15)

	cfg.DBMaxOpenConns = envIntOrDefault("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envIntOrDefault("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	cfg.DBConnMaxIdleTime = envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10)

	cfg.LoginMaxFailures = envIntOrDefault("LOGIN_MAX_FAILURES", 5)
	cfg.LoginFailureWindow = envMinutesOrDefault("LOGIN_FAILURE_WINDOW_MINUTES", 15)

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.SentryDSN = strings.TrimSpace(os.Getenv("SENTRY_DSN"))
	cfg.AppEnv = envOrDefault("APP_ENV", "development")

	cfg.UploadDir = envOrDefault("UPLOAD_DIR", "uploads")
	cfg.UploadMaxSize = int64(envIntOrDefault("UPLOAD_MAX_SIZE_BYTES", 2<<20))

	cfg.CronSecret = strings.TrimSpace(os.Getenv("CRON_SECRET"))
	cfg.CleanupSchedule = envOrDefault("REVOKED_TOKEN_CLEANUP_SCHEDULE", "@every 1h")
	cfg.CleanupBatchSize = envIntOrDefault("REVOKED_TOKEN_CLEANUP_BATCH_SIZE", 500)

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
