// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Snapshot targets for the file store.
const (
	SnapshotTargetFile  = "file"
	SnapshotTargetMinIO = "minio"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// SessionConfig provides settings for cookie sessions.
type SessionConfig interface {
	GetSessionCookieName() string
	GetSessionCookieSecure() bool
	GetSessionCookieSameSite() http.SameSite
	GetSessionTTL() time.Duration
	GetSessionSweepInterval() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetPublicRateLimitPerMinute() int
}

// StoreConfig provides settings for the booking record store.
type StoreConfig interface {
	GetStoreDriver() string
	GetStoreFilePath() string
	GetStoreSnapshotTarget() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOBucketSnapshots() string
	GetMinIOSnapshotObject() string
	IsMinIOEnabled() bool
}

// RedisConfig provides Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	IsRedisEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAppBaseURL() string
}

// KafkaConfig provides settings for the domain event exporter.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaTopic() string
	IsKafkaEnabled() bool
}

// StaffConfig provides the staff directory location.
type StaffConfig interface {
	GetStaffFile() string
}

// PhoneConfig provides phone canonicalisation settings.
type PhoneConfig interface {
	GetDefaultPhoneRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	PublicRateLimitPerMinute int
	AppBaseURL               string

	StoreDriver         string
	StoreFilePath       string
	StoreSnapshotTarget string

	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	MinIOBucketSnapshots string
	MinIOSnapshotObject  string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	SessionCookieName     string
	SessionCookieSecure   bool
	SessionCookieSameSite http.SameSite
	SessionTTL            time.Duration
	SessionSweepInterval  time.Duration

	EmailEnabled     bool
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	KafkaBrokers []string
	KafkaTopic   string

	StaffFile          string
	DefaultPhoneRegion string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// SessionConfig implementation
func (c *Config) GetSessionCookieName() string            { return c.SessionCookieName }
func (c *Config) GetSessionCookieSecure() bool            { return c.SessionCookieSecure }
func (c *Config) GetSessionCookieSameSite() http.SameSite { return c.SessionCookieSameSite }
func (c *Config) GetSessionTTL() time.Duration            { return c.SessionTTL }
func (c *Config) GetSessionSweepInterval() time.Duration  { return c.SessionSweepInterval }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string               { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool             { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string          { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool           { return c.CORSAllowCreds }
func (c *Config) GetPublicRateLimitPerMinute() int { return c.PublicRateLimitPerMinute }

// StoreConfig implementation
func (c *Config) GetStoreDriver() string         { return c.StoreDriver }
func (c *Config) GetStoreFilePath() string       { return c.StoreFilePath }
func (c *Config) GetStoreSnapshotTarget() string { return c.StoreSnapshotTarget }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinIOBucketSnapshots() string { return c.MinIOBucketSnapshots }
func (c *Config) GetMinIOSnapshotObject() string  { return c.MinIOSnapshotObject }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) IsRedisEnabled() bool       { return c.RedisURL != "" }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetAppBaseURL() string       { return c.AppBaseURL }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string { return c.KafkaBrokers }
func (c *Config) GetKafkaTopic() string     { return c.KafkaTopic }
func (c *Config) IsKafkaEnabled() bool      { return len(c.KafkaBrokers) > 0 }

// StaffConfig implementation
func (c *Config) GetStaffFile() string { return c.StaffFile }

// PhoneConfig implementation
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultPhoneRegion }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv(getEnv)
}

func fromEnv(get func(key, fallback string) string) (*Config, error) {
	corsOrigins := splitCSV(get("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(get("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	env := get("APP_ENV", "development")
	cookieSecure := strings.EqualFold(get("SESSION_COOKIE_SECURE", ""), "true")
	if get("SESSION_COOKIE_SECURE", "") == "" {
		cookieSecure = strings.EqualFold(env, "production")
	}

	smtpHost := get("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(get("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                      env,
		HTTPAddr:                 get("HTTP_ADDR", ":8080"),
		DatabaseURL:              get("DATABASE_URL", ""),
		JWTAccessSecret:          get("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(get("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		PublicRateLimitPerMinute: int(mustInt64(get("PUBLIC_RATE_LIMIT_PER_MINUTE", "30"))),
		AppBaseURL:               get("APP_BASE_URL", "http://localhost:5173"),

		StoreDriver:         strings.ToLower(get("STORE_DRIVER", StoreDriverFile)),
		StoreFilePath:       get("STORE_FILE_PATH", "data/store.json"),
		StoreSnapshotTarget: strings.ToLower(get("STORE_SNAPSHOT_TARGET", SnapshotTargetFile)),

		MinIOEndpoint:        get("MINIO_ENDPOINT", ""),
		MinIOAccessKey:       get("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:       get("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:          strings.EqualFold(get("MINIO_USE_SSL", "false"), "true"),
		MinIOBucketSnapshots: get("MINIO_BUCKET_SNAPSHOTS", "booking-snapshots"),
		MinIOSnapshotObject:  get("MINIO_SNAPSHOT_OBJECT", "store.json"),

		RedisURL:         get("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(get("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   get("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: int(mustInt64(get("ASYNQ_CONCURRENCY", "5"))),

		SessionCookieName:     get("SESSION_COOKIE_NAME", "travelplan_session"),
		SessionCookieSecure:   cookieSecure,
		SessionCookieSameSite: parseSameSite(get("SESSION_COOKIE_SAMESITE", "Lax")),
		SessionTTL:            mustDuration(get("SESSION_TTL", "12h")),
		SessionSweepInterval:  mustDuration(get("SESSION_SWEEP_INTERVAL", "5m")),

		EmailEnabled:     emailEnabled && smtpHost != "",
		EmailFromName:    get("EMAIL_FROM_NAME", "Travel Desk"),
		EmailFromAddress: get("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:         smtpHost,
		SMTPPort:         int(mustInt64(get("SMTP_PORT", "587"))),
		SMTPUsername:     get("SMTP_USERNAME", ""),
		SMTPPassword:     get("SMTP_PASSWORD", ""),

		KafkaBrokers: splitCSV(get("KAFKA_BROKERS", "")),
		KafkaTopic:   get("KAFKA_TOPIC", "booking-events"),

		StaffFile:          get("STAFF_FILE", "config/staff.yaml"),
		DefaultPhoneRegion: strings.ToUpper(get("DEFAULT_PHONE_REGION", "VN")),
	}

	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.StoreDriver {
	case StoreDriverFile:
		if cfg.StoreSnapshotTarget == SnapshotTargetMinIO && !cfg.IsMinIOEnabled() {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when STORE_SNAPSHOT_TARGET is minio")
		}
		if cfg.StoreSnapshotTarget != SnapshotTargetFile && cfg.StoreSnapshotTarget != SnapshotTargetMinIO {
			return nil, fmt.Errorf("unsupported STORE_SNAPSHOT_TARGET %q", cfg.StoreSnapshotTarget)
		}
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be a positive duration")
	}
	if cfg.PublicRateLimitPerMinute <= 0 {
		cfg.PublicRateLimitPerMinute = 30
	}
	if cfg.AsynqConcurrency <= 0 {
		cfg.AsynqConcurrency = 5
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}
