// Package config assembles runtime settings from defaults, an optional YAML
// file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	AppEnv    string `yaml:"app_env"`
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	SentryDSN string `yaml:"sentry_dsn"`

	DatabaseURL        string        `yaml:"database_url"`
	DBMaxOpenConns     int           `yaml:"db_max_open_conns"`
	DBMaxIdleConns     int           `yaml:"db_max_idle_conns"`
	DBConnMaxLifetime  time.Duration `yaml:"db_conn_max_lifetime"`
	DBConnMaxIdleTime  time.Duration `yaml:"db_conn_max_idle_time"`
	RunMigrations      bool          `yaml:"run_migrations"`
	UserLookupTimeout  time.Duration `yaml:"user_lookup_timeout"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	SigningSecret      string        `yaml:"jwt_secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	TokenCacheTTL      time.Duration `yaml:"token_cache_ttl"`
	RevocationEnabled  bool          `yaml:"token_revocation_enabled"`
	LoginMaxAttempts   int           `yaml:"login_max_attempts"`
	LoginLockDuration  time.Duration `yaml:"login_lock_duration"`
	LoginRateLimitMax  int           `yaml:"login_rate_limit_max"`
	LoginRateWindow    time.Duration `yaml:"login_rate_limit_window"`
	CronSecret         string        `yaml:"cron_secret"`
	AttemptRetention   time.Duration `yaml:"login_attempt_retention"`
	CleanupBatchSize   int           `yaml:"cleanup_batch_size"`
	BootstrapUsername  string        `yaml:"admin_username"`
	BootstrapPassword  string        `yaml:"admin_password"`
}

type Options struct {
	LoadDotEnv bool
}

// Defaults returns the development defaults. DatabaseURL and SigningSecret
// have no default and must be supplied.
func Defaults() Config {
	return Config{
		AppEnv:            "development",
		Port:              "8080",
		LogLevel:          "info",
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    5,
		DBConnMaxLifetime: 30 * time.Minute,
		DBConnMaxIdleTime: 10 * time.Minute,
		UserLookupTimeout: 2 * time.Second,
		BcryptCost:        bcrypt.DefaultCost,
		TokenTTL:          15 * time.Minute,
		LoginMaxAttempts:  5,
		LoginLockDuration: 15 * time.Minute,
		LoginRateLimitMax: 10,
		LoginRateWindow:   time.Minute,
		AttemptRetention:  30 * 24 * time.Hour,
		CleanupBatchSize:  500,
	}
}

func Load(options Options) (*Config, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingSetting)
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingSetting)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range", c.BcryptCost)
	}
	if (c.BootstrapUsername == "") != (c.BootstrapPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) loadEnv() {
	c.AppEnv = envOrDefault("APP_ENV", c.AppEnv)
	c.Port = envOrDefault("PORT", c.Port)
	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	c.SentryDSN = envOrDefault("SENTRY_DSN", c.SentryDSN)

	c.DatabaseURL = envOrDefault("DATABASE_URL", c.DatabaseURL)
	c.DBMaxOpenConns = envIntOrDefault("DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)
	c.DBMaxIdleConns = envIntOrDefault("DB_MAX_IDLE_CONNS", c.DBMaxIdleConns)
	c.DBConnMaxLifetime = envDurationOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", time.Minute, c.DBConnMaxLifetime)
	c.DBConnMaxIdleTime = envDurationOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", time.Minute, c.DBConnMaxIdleTime)
	c.RunMigrations = envBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", c.RunMigrations)
	c.UserLookupTimeout = envDurationOrDefault("USER_LOOKUP_TIMEOUT_MS", time.Millisecond, c.UserLookupTimeout)
	c.BcryptCost = envIntOrDefault("BCRYPT_COST", c.BcryptCost)

	c.SigningSecret = envOrDefault("JWT_SECRET", c.SigningSecret)
	c.TokenTTL = envDurationOrDefault("TOKEN_TTL_MINUTES", time.Minute, c.TokenTTL)
	c.TokenCacheTTL = envDurationOrDefault("TOKEN_CACHE_TTL_SECONDS", time.Second, c.TokenCacheTTL)
	c.RevocationEnabled = envBoolOrDefault("TOKEN_REVOCATION_ENABLED", c.RevocationEnabled)

	c.LoginMaxAttempts = envIntOrDefault("LOGIN_MAX_ATTEMPTS", c.LoginMaxAttempts)
	c.LoginLockDuration = envDurationOrDefault("LOGIN_LOCK_MINUTES", time.Minute, c.LoginLockDuration)
	c.LoginRateLimitMax = envIntOrDefault("LOGIN_RATE_LIMIT_MAX", c.LoginRateLimitMax)
	c.LoginRateWindow = envDurationOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", time.Second, c.LoginRateWindow)

	c.CronSecret = envOrDefault("CRON_SECRET", c.CronSecret)
	c.AttemptRetention = envDurationOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 24*time.Hour, c.AttemptRetention)
	c.CleanupBatchSize = envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", c.CleanupBatchSize)

	c.BootstrapUsername = envOrDefault("ADMIN_USERNAME", c.BootstrapUsername)
	c.BootstrapPassword = envOrDefault("ADMIN_PASSWORD", c.BootstrapPassword)
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

// envDurationOrDefault reads a positive integer count of unit.
func envDurationOrDefault(name string, unit time.Duration, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * unit
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
