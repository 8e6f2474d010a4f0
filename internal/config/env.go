// internal/config/env.go
package config

import (
	"os"
	"strconv"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("SENTINEL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Server.LogLevel = GetEnvOrDefault("SENTINEL_LOG_LEVEL", cfg.Server.LogLevel)

	// Database settings
	if host := os.Getenv("SENTINEL_DB_HOST"); host != "" {
		cfg.Database.Host = host
		cfg.Database.Enabled = true
	}
	if port := os.Getenv("SENTINEL_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	cfg.Database.Database = GetEnvOrDefault("SENTINEL_DB_NAME", cfg.Database.Database)
	cfg.Database.User = GetEnvOrDefault("SENTINEL_DB_USER", cfg.Database.User)
	cfg.Database.Password = GetEnvOrDefault("SENTINEL_DB_PASSWORD", cfg.Database.Password)
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
