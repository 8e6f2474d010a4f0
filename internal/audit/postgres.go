// internal/audit/postgres.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/clinovault/sentinel/internal/alerting"
	"github.com/clinovault/sentinel/internal/diagnostic"
	"github.com/clinovault/sentinel/internal/faults"
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// PostgresSink persists audit records to PostgreSQL.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a pooled connection to the audit database.
func NewPostgresSink(cfg Config) (*PostgresSink, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresSink{db: db}, nil
}

// Close closes the database connection
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for health probes.
func (s *PostgresSink) DB() *sql.DB {
	return s.db
}

// CreateTables creates the audit tables.
func (s *PostgresSink) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS processed_errors (
			id VARCHAR(255) PRIMARY KEY,
			code VARCHAR(64) NOT NULL,
			type VARCHAR(64) NOT NULL,
			severity VARCHAR(32) NOT NULL,
			message TEXT NOT NULL,
			user_message TEXT,
			component VARCHAR(255),
			action VARCHAR(255),
			recoverable BOOLEAN NOT NULL,
			retryable BOOLEAN NOT NULL,
			context JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id VARCHAR(255) PRIMARY KEY,
			severity VARCHAR(32) NOT NULL,
			message TEXT NOT NULL,
			component VARCHAR(255) NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			recommendation TEXT,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id VARCHAR(255) PRIMARY KEY,
			rule_id VARCHAR(255) NOT NULL,
			severity VARCHAR(32) NOT NULL,
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			component VARCHAR(255),
			metric VARCHAR(255),
			threshold DOUBLE PRECISION,
			value DOUBLE PRECISION,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_at TIMESTAMP,
			fired_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostic_reports (
			id VARCHAR(255) PRIMARY KEY,
			overall_health VARCHAR(32) NOT NULL,
			summary TEXT,
			report JSONB NOT NULL,
			execution_time_ms BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	return nil
}

// RecordError persists a classified error.
func (s *PostgresSink) RecordError(ctx context.Context, perr *faults.ProcessedError) error {
	contextJSON, err := json.Marshal(perr.Context)
	if err != nil {
		return fmt.Errorf("encode error context: %w", err)
	}

	query := `INSERT INTO processed_errors
		(id, code, type, severity, message, user_message, component, action, recoverable, retryable, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, query,
		perr.ID, string(perr.Code), string(perr.Type), string(perr.Severity),
		perr.Message, perr.UserMessage, perr.Context.Component, perr.Context.Action,
		perr.Recoverable, perr.Retryable, contextJSON)
	if err != nil {
		return fmt.Errorf("insert processed error: %w", err)
	}
	return nil
}

// RecordIssue persists a diagnostic issue.
func (s *PostgresSink) RecordIssue(ctx context.Context, issue diagnostic.Issue) error {
	query := `INSERT INTO issues
		(id, severity, message, component, resolved, recommendation, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET resolved = EXCLUDED.resolved`
	_, err := s.db.ExecContext(ctx, query,
		issue.ID, string(issue.Severity), issue.Message, issue.Component,
		issue.Resolved, issue.Recommendation, issue.Timestamp)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// RecordAlert persists a fired alert, updating resolution on conflict.
func (s *PostgresSink) RecordAlert(ctx context.Context, alert *alerting.Alert) error {
	query := `INSERT INTO alerts
		(id, rule_id, severity, title, message, component, metric, threshold, value, resolved, resolved_at, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			resolved = EXCLUDED.resolved,
			resolved_at = EXCLUDED.resolved_at`
	_, err := s.db.ExecContext(ctx, query,
		alert.ID, alert.RuleID, string(alert.Severity), alert.Title, alert.Message,
		alert.Component, alert.Metric, alert.Threshold, alert.Value,
		alert.Resolved, alert.ResolvedAt, alert.Timestamp)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecordReport persists a completed diagnostic report as JSON.
func (s *PostgresSink) RecordReport(ctx context.Context, report *diagnostic.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	query := `INSERT INTO diagnostic_reports
		(id, overall_health, summary, report, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, query,
		report.ID, string(report.OverallHealth), report.Summary,
		reportJSON, report.ExecutionTime.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert diagnostic report: %w", err)
	}
	return nil
}
