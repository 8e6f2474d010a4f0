// internal/diagnostic/session.go
package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/clinovault/sentinel/internal/recovery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trigger records what started a session.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerAutomatic Trigger = "automatic"
	TriggerError     Trigger = "error"
)

// SessionStatus is the lifecycle state of a diagnostic run.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Action is one step performed during a session, kept for the audit trail.
type Action struct {
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	Component string        `json:"component"`
	Result    string        `json:"result"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Session is one end-to-end diagnostic run.
type Session struct {
	ID        string        `json:"id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Trigger   Trigger       `json:"trigger"`
	Actions   []Action      `json:"actions"`
	Status    SessionStatus `json:"status"`
	Report    *Report       `json:"report,omitempty"`

	mu sync.Mutex
}

func (s *Session) record(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Actions = append(s.Actions, a)
}

// Config mirrors the diagnostic configuration surface.
type Config struct {
	EnableRealTimeMonitoring bool
	MonitoringInterval       time.Duration
	HealthCheckTimeout       time.Duration
	MaxRetries               int
	EnableAutoRemediation    bool
	CriticalThreshold        float64
	WarningThreshold         float64
	Components               []string
}

// DefaultConfig returns the defaults the original deployment runs with.
func DefaultConfig() Config {
	return Config{
		MonitoringInterval: time.Minute,
		HealthCheckTimeout: 10 * time.Second,
		MaxRetries:         3,
		CriticalThreshold:  0.8,
		WarningThreshold:   0.6,
	}
}

// Remediator hands critical issues to the recovery dispatcher when
// auto-remediation is enabled.
type Remediator interface {
	ExecuteRecovery(ctx context.Context, perr *faults.ProcessedError) recovery.Result
}

// Engine runs health checks and produces diagnostic reports.
type Engine struct {
	registry   *Registry
	cfg        Config
	classifier *faults.Classifier
	remediator Remediator
	logger     *zap.Logger

	mu         sync.Mutex
	lastReport *Report
	sessions   []*Session
	monitoring bool
	stopCh     chan struct{}
}

// EngineOption configures the engine
type EngineOption func(*Engine)

// WithRemediator enables auto-remediation through the dispatcher
func WithRemediator(r Remediator) EngineOption {
	return func(e *Engine) {
		e.remediator = r
	}
}

// WithEngineLogger adds logging
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a diagnostic engine over a check registry.
func NewEngine(registry *Registry, cfg Config, opts ...EngineOption) *Engine {
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 10 * time.Second
	}
	if cfg.MonitoringInterval <= 0 {
		cfg.MonitoringInterval = time.Minute
	}
	e := &Engine{
		registry:   registry,
		cfg:        cfg,
		classifier: faults.NewClassifier(),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes every enabled check and closes with a report. Components
// run in parallel; one component's retries stay sequential. Cancellation
// discards collected results and marks the session cancelled.
func (e *Engine) Run(ctx context.Context, trigger Trigger) (report *Report, err error) {
	session := &Session{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
		Trigger:   trigger,
		Status:    SessionRunning,
	}
	e.mu.Lock()
	e.sessions = append(e.sessions, session)
	if len(e.sessions) > 20 {
		e.sessions = e.sessions[len(e.sessions)-20:]
	}
	e.mu.Unlock()

	defer func() {
		session.mu.Lock()
		session.EndTime = time.Now().UTC()
		if r := recover(); r != nil {
			// A registry/aggregation fault, not an individual probe failing.
			session.Status = SessionFailed
			report = nil
			err = fmt.Errorf("diagnostic: session failed: %v", r)
			e.logger.Error("diagnostic session failed", zap.Any("panic", r))
		}
		session.mu.Unlock()
	}()

	start := time.Now()
	grouped := e.registry.enabledByComponent(e.cfg.Components)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports []ComponentReport
	)

	for component, checks := range grouped {
		wg.Add(1)
		go func(component string, checks []Check) {
			defer wg.Done()
			cr := e.runComponent(ctx, session, component, checks)
			mu.Lock()
			reports = append(reports, cr)
			mu.Unlock()
		}(component, checks)
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Abandoned mid-run: nothing collected is published.
		session.mu.Lock()
		session.Status = SessionCancelled
		session.mu.Unlock()
		e.logger.Warn("diagnostic session cancelled",
			zap.String("session_id", session.ID))
		return nil, ctx.Err()
	}

	report = buildReport(reports, time.Since(start))

	session.mu.Lock()
	session.Status = SessionCompleted
	session.Report = report
	session.mu.Unlock()

	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	e.logger.Info("diagnostic session completed",
		zap.String("session_id", session.ID),
		zap.String("overall_health", string(report.OverallHealth)),
		zap.Int("components", len(report.Components)),
		zap.Int("critical_issues", len(report.CriticalIssues)),
		zap.Duration("execution_time", report.ExecutionTime))

	return report, nil
}

// runComponent executes one component's checks sequentially, retrying each
// up to its own budget before giving up on that probe for this session.
func (e *Engine) runComponent(ctx context.Context, session *Session, component string, checks []Check) ComponentReport {
	var (
		results   []Result
		issues    []Issue
		metrics   = make(map[string]float64)
		totalTime time.Duration
		failures  int
	)

	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}

		retries := check.Retries
		if retries <= 0 {
			retries = e.cfg.MaxRetries
		}

		actionStart := time.Now()
		var result Result
		for attempt := 0; attempt <= retries; attempt++ {
			result = e.runProbe(ctx, check)
			if result.Status == StatusHealthy || ctx.Err() != nil {
				break
			}
		}

		results = append(results, result)
		totalTime += result.ResponseTime
		for k, v := range result.Metrics {
			metrics[k] = v
		}

		outcome := "success"
		if result.Status != StatusHealthy {
			outcome = "failure"
			failures++
			issues = append(issues, Issue{
				ID:             uuid.NewString(),
				Severity:       severityForResult(result),
				Message:        result.Message,
				Component:      component,
				Timestamp:      result.Timestamp,
				Recommendation: recommendationForCheck(check.Name),
			})
		}
		session.record(Action{
			Timestamp: actionStart,
			Action:    "health_check",
			Component: component,
			Result:    outcome,
			Details:   fmt.Sprintf("executed %s: %s", check.Name, result.Message),
			Duration:  time.Since(actionStart),
		})
	}

	status := StatusUnknown
	errorRate := 0.0
	var avgTime time.Duration
	if len(results) > 0 {
		status = StatusHealthy
		for _, r := range results {
			status = status.Worse(r.Status)
		}
		errorRate = float64(failures) / float64(len(results))
		avgTime = totalTime / time.Duration(len(results))

		switch {
		case errorRate >= e.cfg.CriticalThreshold && e.cfg.CriticalThreshold > 0:
			status = status.Worse(StatusUnhealthy)
		case errorRate >= e.cfg.WarningThreshold && e.cfg.WarningThreshold > 0:
			status = status.Worse(StatusDegraded)
		}
	} else {
		issues = append(issues, Issue{
			ID:             uuid.NewString(),
			Severity:       faults.SeverityMedium,
			Message:        "no health checks executed for this component",
			Component:      component,
			Timestamp:      time.Now().UTC(),
			Recommendation: "configure health checks for this component",
		})
	}

	return ComponentReport{
		Name:         component,
		Status:       status,
		ResponseTime: avgTime,
		ErrorRate:    errorRate,
		Issues:       issues,
		Metrics:      metrics,
		LastChecked:  time.Now().UTC(),
	}
}

// runProbe bounds a single probe execution by the check timeout and
// contains panics; a crashed or timed-out probe becomes an unhealthy
// result carrying the captured error.
func (e *Engine) runProbe(ctx context.Context, check Check) Result {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = e.cfg.HealthCheckTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{
					Status:  StatusUnhealthy,
					Message: fmt.Sprintf("health check panicked: %v", r),
					Err:     fmt.Errorf("panic: %v", r),
				}
			}
		}()
		done <- check.Probe(probeCtx)
	}()

	var result Result
	select {
	case result = <-done:
	case <-probeCtx.Done():
		// In-flight probe is abandoned, not awaited further.
		result = Result{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("health check timeout after %v", timeout),
			Err:     probeCtx.Err(),
		}
	}

	result.ResponseTime = time.Since(start)
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	return result
}

func severityForResult(r Result) faults.ErrorSeverity {
	if r.Err != nil && !errors.Is(r.Err, context.DeadlineExceeded) &&
		!errors.Is(r.Err, context.Canceled) {
		return faults.SeverityCritical
	}
	if r.Status == StatusUnhealthy {
		return faults.SeverityHigh
	}
	return faults.SeverityMedium
}

// recommendationForCheck maps well-known checks to operator guidance.
func recommendationForCheck(name string) string {
	known := map[string]string{
		"database-connection":    "check database connection and credentials",
		"api-health":             "verify API server status and configuration",
		"authentication-service": "verify authentication service configuration",
		"environment-config":     "review environment variables and configuration files",
	}
	if rec, ok := known[name]; ok {
		return rec
	}
	return "review component configuration and dependencies"
}

// LastReport returns the most recent completed report, nil before the
// first run.
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

// Sessions returns recent sessions, newest last.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// StartMonitoring launches the periodic diagnostic loop. When
// auto-remediation is on, critical issues are handed to the dispatcher.
func (e *Engine) StartMonitoring(ctx context.Context) {
	e.mu.Lock()
	if e.monitoring {
		e.mu.Unlock()
		return
	}
	e.monitoring = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.MonitoringInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				report, err := e.Run(ctx, TriggerAutomatic)
				if err != nil {
					e.logger.Error("scheduled diagnostic failed", zap.Error(err))
					continue
				}
				e.remediate(ctx, report)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopMonitoring halts the periodic loop.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.monitoring {
		return
	}
	e.monitoring = false
	close(e.stopCh)
}

// remediate routes critical issues into the recovery dispatcher.
func (e *Engine) remediate(ctx context.Context, report *Report) {
	if !e.cfg.EnableAutoRemediation || e.remediator == nil {
		return
	}

	for _, issue := range report.CriticalIssues {
		perr := e.classifier.Classify(errors.New(issue.Message), faults.ErrorContext{
			Component: issue.Component,
			Action:    "health_check",
			Timestamp: issue.Timestamp,
		})
		result := e.remediator.ExecuteRecovery(ctx, perr)
		e.logger.Info("auto-remediation attempted",
			zap.String("issue_id", issue.ID),
			zap.String("component", issue.Component),
			zap.Bool("success", result.Success))
	}
}
