package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the vince server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	ServiceKey ServiceKeyConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Driver derives the storage backend from the URL scheme.
// It returns "" when the scheme is not recognised.
func (d DatabaseConfig) Driver() string {
	switch {
	case strings.HasPrefix(d.URL, "postgres://"), strings.HasPrefix(d.URL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(d.URL, "file:"), strings.HasPrefix(d.URL, "sqlite://"):
		return DriverSQLite
	}
	return ""
}

// SQLiteDSN strips the sqlite:// scheme so the remainder can be handed to the
// driver. file: URLs are passed through untouched.
func (d DatabaseConfig) SQLiteDSN() string {
	return strings.TrimPrefix(d.URL, "sqlite://")
}

type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type AuthConfig struct {
	JWTSecret            string
	AdminPassword        string
	AdminPasswordHash    string
	SessionTTL           time.Duration
	SessionStrict        bool
	SessionSweepInterval time.Duration
}

type ServiceKeyConfig struct {
	Key      string
	CacheTTL time.Duration
}

type RateLimitConfig struct {
	ValidatePerMinute int
	LoginPerMinute    int
}

// minJWTSecretLen is the recommended lower bound; shorter secrets only warn.
const minJWTSecretLen = 32

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory (or its parent) is loaded first; variables
// already present in the environment take precedence.
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorage is Load for tools that only touch the database and cache.
// Auth and service key settings are read but not required.
func LoadStorage() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	loadEnvFile()

	return &Config{
		Server: ServerConfig{
			Port: envInt("VINCE_PORT", 8080),
			Env:  envString("VINCE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret:            os.Getenv("JWT_SECRET"),
			AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordHash:    os.Getenv("ADMIN_PASSWORD_HASH"),
			SessionTTL:           envDuration("SESSION_TTL", 24*time.Hour),
			SessionStrict:        envBool("SESSION_STRICT", false),
			SessionSweepInterval: envDuration("SESSION_SWEEP_INTERVAL", time.Hour),
		},
		ServiceKey: ServiceKeyConfig{
			Key:      os.Getenv("SERVICE_API_KEY"),
			CacheTTL: envDuration("SERVICE_KEY_CACHE_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			ValidatePerMinute: envInt("VALIDATE_RATE_LIMIT", 600),
			LoginPerMinute:    envInt("LOGIN_RATE_LIMIT", 10),
		},
	}
}

func (c *Config) validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Auth.SessionSweepInterval < 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must not be negative, got %s", c.Auth.SessionSweepInterval)
	}

	if c.ServiceKey.Key == "" {
		return fmt.Errorf("SERVICE_API_KEY is required")
	}

	if c.RateLimit.ValidatePerMinute <= 0 {
		return fmt.Errorf("VALIDATE_RATE_LIMIT must be positive, got %d", c.RateLimit.ValidatePerMinute)
	}
	if c.RateLimit.LoginPerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got %d", c.RateLimit.LoginPerMinute)
	}

	return nil
}

func (c *Config) validateStorage() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.Driver() == "" {
		return fmt.Errorf("DATABASE_URL must start with postgres://, postgresql://, file: or sqlite://")
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	return nil
}

// Warnings lists settings that are accepted but weak.
func (c *Config) Warnings() []string {
	var warnings []string
	if len(c.Auth.JWTSecret) < minJWTSecretLen {
		warnings = append(warnings, fmt.Sprintf("JWT_SECRET is shorter than %d bytes", minJWTSecretLen))
	}
	if !c.Redis.Enabled() {
		warnings = append(warnings, "REDIS_URL is not set; validate rate limiting and the service key cache are disabled")
	}
	if c.Auth.AdminPasswordHash == "" && c.Server.IsProduction() {
		warnings = append(warnings, "ADMIN_PASSWORD is stored in plaintext; prefer ADMIN_PASSWORD_HASH")
	}
	return warnings
}

// WriteEnvValue sets key to value in the dotenv file at path, creating the
// file if it does not exist. Other entries are preserved.
func WriteEnvValue(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read env file %s: %w", path, err)
		}
		env = map[string]string{}
	}

	env[key] = value

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write env file %s: %w", path, err)
	}
	return nil
}

// loadEnvFile loads .env from the working directory, falling back to the
// parent directory. A missing file is not an error.
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
