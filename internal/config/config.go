package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"ENV" default:"development"`

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// Token configuration
	Token TokenConfig

	// Session cookie configuration
	Cookie CookieConfig

	// CORS configuration
	CORS CORSConfig

	// Login rate limiting configuration
	RateLimit RateLimitConfig
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"require"`
}

// ConnectionString returns the PostgreSQL connection string
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// TokenConfig holds signing and lifetime configuration for issued tokens
type TokenConfig struct {
	SecretKey string        `envconfig:"TOKEN_SECRET_KEY" required:"true"`
	TTL       time.Duration `envconfig:"TOKEN_TTL" default:"6h"`

	// RefreshGrace bounds how long past expiry a signature-valid token is
	// still accepted by the refresh endpoint.
	RefreshGrace time.Duration `envconfig:"TOKEN_REFRESH_GRACE" default:"1h"`
}

// CookieConfig holds the auth_token cookie attributes
type CookieConfig struct {
	// SameSite is "lax" or "strict" depending on deployment context
	SameSite string `envconfig:"COOKIE_SAME_SITE" default:"lax"`
	Secure   bool   `envconfig:"COOKIE_SECURE" default:"false"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// RateLimitConfig holds login attempt limiting configuration
type RateLimitConfig struct {
	MaxAttempts     int           `envconfig:"RATE_LIMIT_MAX_ATTEMPTS" default:"5"`
	LockoutDuration time.Duration `envconfig:"RATE_LIMIT_LOCKOUT_DURATION" default:"15m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
