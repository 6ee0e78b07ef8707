package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Env       string
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	OAuth     OAuthConfig
	Tenancy   TenancyConfig
	RateLimit RateLimitConfig
	Server    ServerConfig
	Log       LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionConfig controls the cookie that carries the access token for
// browser clients. The Authorization header always takes precedence.
type SessionConfig struct {
	CookieName   string
	CookieDomain string // shared by all institute subdomains, e.g. ".campus.example.com"
	CookieSecure bool
}

// OAuthConfig holds Google sign-in settings. Sign-in is off unless a client
// id is set.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string //nolint:gosec // G117: OAuth client secret config
	GoogleRedirectURL  string
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c OAuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// TenancyConfig holds institute resolution settings.
type TenancyConfig struct {
	// BaseDomain is the domain institutes are served under. With it set,
	// "alpha.campus.example.com" resolves to institute "alpha".
	BaseDomain string
}

// RateLimitConfig holds token-bucket settings.
type RateLimitConfig struct {
	AuthRPS     float64 // per client IP on login and refresh
	AuthBurst   int
	TenantRPS   float64 // per institute on scoped routes
	TenantBurst int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// LogConfig holds zerolog settings.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("CAMPUS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("CAMPUS_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CAMPUS_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("CAMPUS_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("CAMPUS_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cookieSecure, err := getEnvBool("CAMPUS_COOKIE_SECURE", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	authRPS, err := getEnvFloat("CAMPUS_RATE_LIMIT_AUTH_RPS", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	authBurst, err := getEnvInt("CAMPUS_RATE_LIMIT_AUTH_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	tenantRPS, err := getEnvFloat("CAMPUS_RATE_LIMIT_TENANT_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	tenantBurst, err := getEnvInt("CAMPUS_RATE_LIMIT_TENANT_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("CAMPUS_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("CAMPUS_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("CAMPUS_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Env: strings.ToLower(getEnv("CAMPUS_ENV", EnvDevelopment)),
		Database: DatabaseConfig{
			Host:     getEnv("CAMPUS_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("CAMPUS_DB_USER", "campus"),
			Password: getEnv("CAMPUS_DB_PASSWORD", ""),
			DBName:   getEnv("CAMPUS_DB_NAME", "campus_dev"),
			SSLMode:  getEnv("CAMPUS_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("CAMPUS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CAMPUS_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("CAMPUS_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Session: SessionConfig{
			CookieName:   getEnv("CAMPUS_COOKIE_NAME", "campus_session"),
			CookieDomain: getEnv("CAMPUS_COOKIE_DOMAIN", ""),
			CookieSecure: cookieSecure,
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("CAMPUS_OAUTH_GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("CAMPUS_OAUTH_GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("CAMPUS_OAUTH_GOOGLE_REDIRECT_URL", ""),
		},
		Tenancy: TenancyConfig{
			BaseDomain: strings.ToLower(strings.Trim(getEnv("CAMPUS_BASE_DOMAIN", ""), ".")),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:     authRPS,
			AuthBurst:   authBurst,
			TenantRPS:   tenantRPS,
			TenantBurst: tenantBurst,
		},
		Server: ServerConfig{
			Addr:         getEnv("CAMPUS_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("CAMPUS_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("CAMPUS_LOG_FORMAT", "json")),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// Production reports whether the deployment is production.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("CAMPUS_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}

	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("CAMPUS_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("CAMPUS_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" && c.Production() {
		log.Warn().Msg("CAMPUS_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}
	if !c.Session.CookieSecure && c.Production() {
		return errors.New("CAMPUS_COOKIE_SECURE must be true in production")
	}
	if c.Session.CookieName == "" {
		return errors.New("CAMPUS_COOKIE_NAME must not be empty")
	}
	if c.OAuth.GoogleEnabled() {
		if c.OAuth.GoogleClientSecret == "" {
			return errors.New("CAMPUS_OAUTH_GOOGLE_CLIENT_SECRET is required when CAMPUS_OAUTH_GOOGLE_CLIENT_ID is set")
		}
		if c.OAuth.GoogleRedirectURL == "" {
			return errors.New("CAMPUS_OAUTH_GOOGLE_REDIRECT_URL is required when CAMPUS_OAUTH_GOOGLE_CLIENT_ID is set")
		}
	}
	if strings.ContainsAny(c.Tenancy.BaseDomain, ":/ ") {
		return fmt.Errorf("CAMPUS_BASE_DOMAIN must be a bare domain name, got %q", c.Tenancy.BaseDomain)
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("CAMPUS_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("CAMPUS_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("CAMPUS_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("CAMPUS_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return fmt.Errorf("CAMPUS_JWT_REFRESH_TTL (%s) must not be shorter than CAMPUS_JWT_ACCESS_TTL (%s)", c.JWT.RefreshTTL, c.JWT.AccessTTL)
	}
	if c.RateLimit.AuthRPS <= 0 || c.RateLimit.AuthBurst < 1 {
		return fmt.Errorf("CAMPUS_RATE_LIMIT_AUTH_RPS/BURST must be positive, got %g/%d", c.RateLimit.AuthRPS, c.RateLimit.AuthBurst)
	}
	if c.RateLimit.TenantRPS <= 0 || c.RateLimit.TenantBurst < 1 {
		return fmt.Errorf("CAMPUS_RATE_LIMIT_TENANT_RPS/BURST must be positive, got %g/%d", c.RateLimit.TenantRPS, c.RateLimit.TenantBurst)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CAMPUS_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CAMPUS_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("CAMPUS_LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("CAMPUS_LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
