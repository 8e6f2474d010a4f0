// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("empty path yields validated defaults", func(t *testing.T) {
		cfg, err := Load("")

		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 5, cfg.ErrorHandler.CircuitBreakerThreshold)
		assert.Equal(t, 60*time.Second, cfg.ErrorHandler.CircuitBreakerTimeout)
		assert.Equal(t, 0.8, cfg.Diagnostics.CriticalThreshold)
		assert.False(t, cfg.Database.Enabled)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentinel.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9191
  log_level: debug
error_handler:
  circuit_breaker_threshold: 8
diagnostics:
  monitoring_interval: 30s
  components: [database, api]
`), 0o600))

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 9191, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.LogLevel)
		assert.Equal(t, 8, cfg.ErrorHandler.CircuitBreakerThreshold)
		assert.Equal(t, 30*time.Second, cfg.Diagnostics.MonitoringInterval)
		assert.Equal(t, []string{"database", "api"}, cfg.Diagnostics.Components)
	})

	t.Run("environment overrides file and defaults", func(t *testing.T) {
		t.Setenv("SENTINEL_PORT", "7070")
		t.Setenv("SENTINEL_DB_HOST", "db.internal")
		t.Setenv("SENTINEL_DB_NAME", "sentinel_audit")

		cfg, err := Load("")

		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.True(t, cfg.Database.Enabled)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "sentinel_audit", cfg.Database.Database)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("unset variables keep the existing value", func(t *testing.T) {
		t.Setenv("SENTINEL_DB_USER", "auditor")

		cfg := Default()
		cfg.Database.User = "postgres"
		cfg.Database.Password = "hunter2"
		LoadFromEnv(cfg)

		assert.Equal(t, "auditor", cfg.Database.User)
		assert.Equal(t, "hunter2", cfg.Database.Password)
	})

	t.Run("invalid configurations are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
diagnostics:
  critical_threshold: 0.2
  warning_threshold: 0.6
`), 0o600))

		_, err := Load(path)
		assert.ErrorContains(t, err, "critical_threshold")
	})
}
