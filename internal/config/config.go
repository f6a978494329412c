package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// maxPasswordBytes mirrors bcrypt's input limit.
const maxPasswordBytes = 72

type Config struct {
	Database       DatabaseConfig
	Server         ServerConfig
	Auth           AuthConfig
	PasswordPolicy PasswordPolicyConfig
	TwoFactor      TwoFactorConfig
	RateLimit      RateLimitConfig
	Email          EmailConfig
	Cleanup        CleanupConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type AuthConfig struct {
	JWTSecret            string
	AccessTokenExpiry    time.Duration
	ChallengeTokenExpiry time.Duration
	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
	TimingDelayOnSuccess bool
	AdminEmail           string
	AdminPassword        string
}

// PasswordPolicyConfig is the per-deployment password and lockout policy
type PasswordPolicyConfig struct {
	HistoryCount           int // prior passwords remembered for reuse checks
	MaxAgeDays             int // 0 disables expiration
	LockoutAttempts        int
	LockoutDurationMinutes int
	MinLength              int
	MaxLength              int
}

type TwoFactorConfig struct {
	Issuer          string
	EncryptionKey   []byte // AES-256 key for sealing TOTP secrets
	BackupCodeCount int
}

type RateLimitConfig struct {
	Enabled        bool
	Backend        string // "memory" or "redis"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SweepInterval  time.Duration
	TrustedProxies []string // CIDRs allowed to set X-Forwarded-For
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

type CleanupConfig struct {
	Interval          time.Duration
	LoginLogRetention time.Duration // 0 keeps login logs forever
}

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	encryptionKey, err := decodeEncryptionKey(getEnv("TOTP_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "resera"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			AccessTokenExpiry:    getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			ChallengeTokenExpiry: getEnvAsDuration("TWO_FACTOR_CHALLENGE_EXPIRY", 5*time.Minute),
			TimingDelayBaseMs:    getEnvAsInt("TIMING_DELAY_BASE_MS", 400),
			TimingDelayRandomMs:  getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			TimingDelayOnSuccess: getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
			AdminEmail:           getEnv("ADMIN_EMAIL", ""),
			AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		},
		PasswordPolicy: PasswordPolicyConfig{
			HistoryCount:           getEnvAsInt("PASSWORD_HISTORY_COUNT", 5),
			MaxAgeDays:             getEnvAsInt("PASSWORD_MAX_AGE_DAYS", 90),
			LockoutAttempts:        getEnvAsInt("LOCKOUT_ATTEMPTS", 5),
			LockoutDurationMinutes: getEnvAsInt("LOCKOUT_DURATION_MINUTES", 15),
			MinLength:              getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			MaxLength:              getEnvAsInt("PASSWORD_MAX_LENGTH", maxPasswordBytes),
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          getEnv("TOTP_ISSUER", "Resera"),
			EncryptionKey:   encryptionKey,
			BackupCodeCount: getEnvAsInt("BACKUP_CODE_COUNT", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Backend:        strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory)),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvAsInt("REDIS_DB", 0),
			SweepInterval:  getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Cleanup: CleanupConfig{
			Interval:          getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			LoginLogRetention: getEnvAsDuration("LOGIN_LOG_RETENTION", 90*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.PasswordPolicy.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects policies that would disable lockout or make history negative
func (p PasswordPolicyConfig) Validate() error {
	var errs []error

	if p.HistoryCount < 0 {
		errs = append(errs, fmt.Errorf("PASSWORD_HISTORY_COUNT must be >= 0 (got %d)", p.HistoryCount))
	}
	if p.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("PASSWORD_MAX_AGE_DAYS must be >= 0 (got %d)", p.MaxAgeDays))
	}
	if p.LockoutAttempts < 1 {
		errs = append(errs, fmt.Errorf("LOCKOUT_ATTEMPTS must be >= 1 (got %d)", p.LockoutAttempts))
	}
	if p.LockoutDurationMinutes < 1 {
		errs = append(errs, fmt.Errorf("LOCKOUT_DURATION_MINUTES must be >= 1 (got %d)", p.LockoutDurationMinutes))
	}
	if p.MinLength < 1 || p.MaxLength < p.MinLength {
		errs = append(errs, fmt.Errorf("password length bounds invalid (min %d, max %d)", p.MinLength, p.MaxLength))
	}
	if p.MaxLength > maxPasswordBytes {
		errs = append(errs, fmt.Errorf("PASSWORD_MAX_LENGTH must be <= %d, the bcrypt input limit (got %d)", maxPasswordBytes, p.MaxLength))
	}

	return errors.Join(errs...)
}

func (c *Config) validate() error {
	switch c.RateLimit.Backend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q (got %q)",
			RateLimitBackendMemory, RateLimitBackendRedis, c.RateLimit.Backend)
	}

	if c.Email.Enabled && c.Email.FromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is set")
	}

	if c.TwoFactor.BackupCodeCount < 1 {
		return fmt.Errorf("BACKUP_CODE_COUNT must be >= 1 (got %d)", c.TwoFactor.BackupCodeCount)
	}

	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}

	return nil
}

// decodeEncryptionKey parses the base64 TOTP sealing key, which must be 32 bytes
func decodeEncryptionKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY is required")
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must decode to 32 bytes (got %d)", len(key))
	}

	return key, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
