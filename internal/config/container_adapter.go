package config

import (
	"github.com/garyjia/travel-claims/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
			TokenTTL:  c.Auth.TokenTTL,
		},
		Storage: container.StorageConfig{
			Driver:          c.Storage.Driver,
			LocalDir:        c.Storage.LocalDir,
			MinIOEndpoint:   c.Storage.MinIO.Endpoint,
			MinIOAccessKey:  c.Storage.MinIO.AccessKey,
			MinIOSecretKey:  c.Storage.MinIO.SecretKey,
			MinIOBucket:     c.Storage.MinIO.Bucket,
			MinIOUseSSL:     c.Storage.MinIO.UseSSL,
			MaxReceiptBytes: c.Server.MaxReceiptBytes,
		},
		Payout: container.PayoutConfig{
			Timeout:         c.Payout.Timeout,
			SimulateFailure: c.Payout.SimulateFailure,
			LedgerPath:      c.Payout.LedgerPath,
		},
		RateLimit: container.RateLimitConfig{
			Enabled:  c.RateLimit.Enabled,
			Rate:     c.RateLimit.Rate,
			RedisURL: c.RateLimit.RedisURL,
		},
	}
}
