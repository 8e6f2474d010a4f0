// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	ErrorHandler ErrorHandlerConfig `yaml:"error_handler"`
	Diagnostics  DiagnosticConfig   `yaml:"diagnostics"`
	Alerting     AlertingConfig     `yaml:"alerting"`
	Database     DatabaseConfig     `yaml:"database"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type ErrorHandlerConfig struct {
	LogLevel                string        `yaml:"log_level"`
	EnableRetry             bool          `yaml:"enable_retry"`
	MaxRetries              int           `yaml:"max_retries"`
	RetryBaseDelay          time.Duration `yaml:"retry_base_delay"`
	EnableFallback          bool          `yaml:"enable_fallback"`
	EnableCircuitBreaker    bool          `yaml:"enable_circuit_breaker"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout"`
}

type DiagnosticConfig struct {
	EnableRealTimeMonitoring bool          `yaml:"enable_real_time_monitoring"`
	MonitoringInterval       time.Duration `yaml:"monitoring_interval"`
	HealthCheckTimeout       time.Duration `yaml:"health_check_timeout"`
	MaxRetries               int           `yaml:"max_retries"`
	EnableAutoRemediation    bool          `yaml:"enable_auto_remediation"`
	CriticalThreshold        float64       `yaml:"critical_threshold"`
	WarningThreshold         float64       `yaml:"warning_threshold"`
	Components               []string      `yaml:"components"`
}

type AlertingConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ActionTimeout time.Duration `yaml:"action_timeout"`
	EmailEndpoint string        `yaml:"email_endpoint"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		ErrorHandler: ErrorHandlerConfig{
			LogLevel:                "error",
			EnableRetry:             true,
			MaxRetries:              3,
			RetryBaseDelay:          time.Second,
			EnableFallback:          true,
			EnableCircuitBreaker:    true,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   60 * time.Second,
		},
		Diagnostics: DiagnosticConfig{
			EnableRealTimeMonitoring: true,
			MonitoringInterval:       time.Minute,
			HealthCheckTimeout:       10 * time.Second,
			MaxRetries:               3,
			EnableAutoRemediation:    false,
			CriticalThreshold:        0.8,
			WarningThreshold:         0.6,
		},
		Alerting: AlertingConfig{
			Enabled:       true,
			ActionTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// Load reads a YAML file over the defaults and then applies environment
// overrides. An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.ErrorHandler.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	if c.ErrorHandler.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("config: circuit_breaker_threshold must be positive")
	}
	if c.Diagnostics.CriticalThreshold < c.Diagnostics.WarningThreshold {
		return fmt.Errorf("config: critical_threshold must not be below warning_threshold")
	}
	if c.Database.Enabled && c.Database.Database == "" {
		return fmt.Errorf("config: database name is required when database is enabled")
	}
	return nil
}
