// Package container provides dependency injection and lifecycle management
// for the travel claims service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Auth configuration for bearer tokens
	Auth AuthConfig

	// Storage configuration for receipts
	Storage StorageConfig

	// Payout collaborator configuration
	Payout PayoutConfig

	// RateLimit configuration
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// StorageConfig holds receipt storage settings.
type StorageConfig struct {
	// Driver is "local" or "minio"
	Driver string

	// LocalDir is the base directory of the local driver
	LocalDir string

	// MinIO settings, used by the minio driver
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	// MaxReceiptBytes caps a single receipt
	MaxReceiptBytes int64
}

// PayoutConfig holds payout collaborator settings.
type PayoutConfig struct {
	Timeout         time.Duration
	SimulateFailure bool

	// LedgerPath is the xlsx payout ledger; empty disables it
	LedgerPath string
}

// RateLimitConfig holds API rate limit settings.
type RateLimitConfig struct {
	Enabled bool

	// Rate in limiter notation, e.g. "300-M"
	Rate string

	// RedisURL shares counters between instances; empty keeps them in memory
	RedisURL string
}

// DefaultConfig returns a Config with sensible defaults.
// The JWT secret has no default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/claims.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Auth: AuthConfig{
			Issuer:   "travel-claims",
			TokenTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:          "local",
			LocalDir:        "data/receipts",
			MinIOBucket:     "claim-receipts",
			MaxReceiptBytes: 10 << 20,
		},
		Payout: PayoutConfig{
			Timeout:    15 * time.Second,
			LedgerPath: "data/payout_ledger.xlsx",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    "300-M",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required")
		}
	case "minio":
		if c.Storage.MinIOEndpoint == "" || c.Storage.MinIOBucket == "" {
			return fmt.Errorf("storage.minio endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.MaxReceiptBytes <= 0 {
		return fmt.Errorf("storage.max_receipt_bytes must be positive")
	}

	if c.RateLimit.Enabled {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit.Rate); err != nil {
			return fmt.Errorf("ratelimit.rate: %w", err)
		}
	}

	return nil
}
