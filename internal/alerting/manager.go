// internal/alerting/manager.go
package alerting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/clinovault/sentinel/internal/recovery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers alerts over outbound channels. Implementations are
// injected; the manager never builds transport itself.
type Notifier interface {
	SendWebhook(ctx context.Context, endpoint string, alert *Alert) error
	SendEmail(ctx context.Context, recipient string, alert *Alert) error
}

// Remediator routes alert-driven recovery into the dispatcher.
type Remediator interface {
	ExecuteRecovery(ctx context.Context, perr *faults.ProcessedError) recovery.Result
}

// Manager evaluates metric rules, fires alerts under cooldown control and
// dispatches their actions.
type Manager struct {
	mu         sync.Mutex
	rules      map[string]*Rule
	alerts     map[string]*Alert
	lastFired  map[string]time.Time
	notifier   Notifier
	remediator Remediator
	classifier *faults.Classifier
	logger     *zap.Logger

	actionTimeout time.Duration
}

// ManagerOption configures the manager
type ManagerOption func(*Manager)

// WithNotifier sets the outbound delivery channel
func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithManagerRemediator enables recovery actions
func WithManagerRemediator(r Remediator) ManagerOption {
	return func(m *Manager) {
		m.remediator = r
	}
}

// WithManagerLogger adds logging
func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithActionTimeout bounds each alert action
func WithActionTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.actionTimeout = d
	}
}

// NewManager creates an alert manager with no rules registered.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		rules:         make(map[string]*Rule),
		alerts:        make(map[string]*Alert),
		lastFired:     make(map[string]time.Time),
		classifier:    faults.NewClassifier(),
		logger:        zap.NewNop(),
		actionTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// AddRule registers a rule. Rules are disabled only explicitly.
func (m *Manager) AddRule(rule *Rule) error {
	if rule == nil {
		return errors.New("alerting: rule is required")
	}
	if rule.Name == "" {
		return errors.New("alerting: rule name is required")
	}
	if rule.Metric == "" {
		return errors.New("alerting: rule metric is required")
	}
	if !rule.Condition.Valid() {
		return fmt.Errorf("alerting: unknown condition %q", rule.Condition)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if _, exists := m.rules[rule.ID]; exists {
		return fmt.Errorf("alerting: rule %s already exists", rule.ID)
	}
	if rule.Severity == "" {
		rule.Severity = faults.SeverityMedium
	}
	if rule.Cooldown == 0 {
		rule.Cooldown = 5 * time.Minute
	}
	rule.Enabled = true

	m.rules[rule.ID] = rule
	return nil
}

// RemoveRule deletes a rule by id.
func (m *Manager) RemoveRule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[id]; !exists {
		return fmt.Errorf("alerting: rule %s not found", id)
	}
	delete(m.rules, id)
	return nil
}

// SetRuleEnabled flips a rule without removing its cooldown history.
func (m *Manager) SetRuleEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, exists := m.rules[id]
	if !exists {
		return fmt.Errorf("alerting: rule %s not found", id)
	}
	rule.Enabled = enabled
	return nil
}

// Rules returns all rules sorted by name.
func (m *Manager) Rules() []*Rule {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]*Rule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// CheckRules evaluates every enabled rule against the latest matching
// metric and fires alerts for breached rules. The cooldown check and the
// fired-timestamp update happen under one lock, so concurrent evaluations
// of the same breach emit a single alert. Suppressed breaches create
// nothing. Fired alerts are dispatched after evaluation so one slow
// action cannot stall other rules.
func (m *Manager) CheckRules(ctx context.Context, metrics []Metric) []*Alert {
	now := time.Now().UTC()

	m.mu.Lock()
	var fired []*Alert
	for _, rule := range m.rules {
		if !rule.Enabled {
			continue
		}

		metric, ok := latestMetric(metrics, rule)
		if !ok || !rule.Condition.Holds(metric.Value, rule.Threshold) {
			continue
		}

		if m.suppressed(rule, now) {
			continue
		}

		alert := &Alert{
			ID:        uuid.NewString(),
			RuleID:    rule.ID,
			Type:      "threshold",
			Severity:  rule.Severity,
			Title:     rule.Name,
			Message: fmt.Sprintf("%s: %s %s %.2f (observed %.2f)",
				rule.Name, rule.Metric, rule.Condition, rule.Threshold, metric.Value),
			Component: metric.Component,
			Metric:    rule.Metric,
			Threshold: rule.Threshold,
			Value:     metric.Value,
			Timestamp: now,
		}
		m.alerts[alert.ID] = alert
		m.lastFired[rule.ID] = now
		fired = append(fired, alert)
	}
	m.mu.Unlock()

	for _, alert := range fired {
		m.TriggerAlert(ctx, alert)
	}
	return fired
}

// suppressed reports whether a breach of this rule must not produce a new
// alert. Suppression lasts exactly one cooldown window from the last fire;
// a breach after the window fires again even while the earlier alert is
// still unresolved. Caller holds the lock.
func (m *Manager) suppressed(rule *Rule, now time.Time) bool {
	last, ok := m.lastFired[rule.ID]
	return ok && now.Sub(last) < rule.Cooldown
}

// latestMetric finds the newest metric matching the rule's metric name
// and, when set, its component.
func latestMetric(metrics []Metric, rule *Rule) (Metric, bool) {
	var (
		best  Metric
		found bool
	)
	for _, metric := range metrics {
		if metric.Name != rule.Metric {
			continue
		}
		if rule.Component != "" && metric.Component != rule.Component {
			continue
		}
		if !found || metric.Timestamp.After(best.Timestamp) {
			best = metric
			found = true
		}
	}
	return best, found
}

// TriggerAlert runs every enabled action of the owning rule. Action
// errors and panics are contained so one broken channel cannot block the
// rest.
func (m *Manager) TriggerAlert(ctx context.Context, alert *Alert) {
	m.mu.Lock()
	rule, exists := m.rules[alert.RuleID]
	m.mu.Unlock()
	if !exists {
		m.logger.Warn("alert fired for unknown rule",
			zap.String("alert_id", alert.ID),
			zap.String("rule_id", alert.RuleID))
		return
	}

	for _, action := range rule.Actions {
		if !action.Enabled {
			continue
		}
		if err := m.runAction(ctx, action, alert); err != nil {
			m.logger.Error("alert action failed",
				zap.String("alert_id", alert.ID),
				zap.String("action", string(action.Type)),
				zap.Error(err))
		}
	}
}

func (m *Manager) runAction(ctx context.Context, action Action, alert *Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("alerting: action %s panicked: %v", action.Type, r)
		}
	}()

	timeout := action.Timeout
	if timeout <= 0 {
		timeout = m.actionTimeout
	}
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch action.Type {
	case ActionLog:
		fields := []zap.Field{
			zap.String("alert_id", alert.ID),
			zap.String("severity", string(alert.Severity)),
			zap.String("component", alert.Component),
			zap.Float64("value", alert.Value),
			zap.Float64("threshold", alert.Threshold),
		}
		if alert.Severity == faults.SeverityCritical || alert.Severity == faults.SeverityHigh {
			m.logger.Error(alert.Message, fields...)
		} else {
			m.logger.Warn(alert.Message, fields...)
		}
		return nil
	case ActionWebhook:
		if m.notifier == nil {
			return errors.New("alerting: no notifier configured")
		}
		return m.notifier.SendWebhook(actionCtx, action.Target, alert)
	case ActionEmail:
		if m.notifier == nil {
			return errors.New("alerting: no notifier configured")
		}
		return m.notifier.SendEmail(actionCtx, action.Target, alert)
	case ActionRecovery:
		if m.remediator == nil {
			return errors.New("alerting: no remediator configured")
		}
		perr := m.classifier.Classify(errors.New(alert.Message), faults.ErrorContext{
			Component: alert.Component,
			Action:    "alert_recovery",
			Timestamp: alert.Timestamp,
		})
		result := m.remediator.ExecuteRecovery(actionCtx, perr)
		if !result.Success {
			return fmt.Errorf("alerting: recovery action did not succeed: %s", result.Message)
		}
		return nil
	default:
		return fmt.Errorf("alerting: unknown action type %q", action.Type)
	}
}

// ResolveAlert marks an alert resolved. Resolving twice keeps the first
// resolution timestamp.
func (m *Manager) ResolveAlert(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, exists := m.alerts[id]
	if !exists {
		return fmt.Errorf("alerting: alert %s not found", id)
	}
	if alert.Resolved {
		return nil
	}

	now := time.Now().UTC()
	alert.Resolved = true
	alert.ResolvedAt = &now
	return nil
}

// Active returns unresolved alerts, newest first.
func (m *Manager) Active() []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []*Alert
	for _, a := range m.alerts {
		if !a.Resolved {
			alerts = append(alerts, a)
		}
	}
	sortAlerts(alerts)
	return alerts
}

// All returns every alert the manager has fired, newest first.
func (m *Manager) All() []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]*Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		alerts = append(alerts, a)
	}
	sortAlerts(alerts)
	return alerts
}

// Get returns one alert by id, nil when unknown.
func (m *Manager) Get(id string) *Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert, exists := m.alerts[id]; exists {
		copied := *alert
		return &copied
	}
	return nil
}

// Stats summarizes rule and alert counts.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	bySeverity := make(map[faults.ErrorSeverity]int)
	for _, a := range m.alerts {
		if !a.Resolved {
			active++
		}
		bySeverity[a.Severity]++
	}

	return map[string]interface{}{
		"total_rules":   len(m.rules),
		"total_alerts":  len(m.alerts),
		"active_alerts": active,
		"by_severity":   bySeverity,
	}
}

func sortAlerts(alerts []*Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
}

// DefaultRules returns the standard rule set the service ships with.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			Name:      "high-error-rate",
			Metric:    "error_rate",
			Condition: ConditionGreaterThan,
			Threshold: 0.1,
			Severity:  faults.SeverityCritical,
			Cooldown:  10 * time.Minute,
			Actions: []Action{
				{Type: ActionLog, Enabled: true},
				{Type: ActionRecovery, Enabled: true},
			},
		},
		{
			Name:      "slow-response-time",
			Metric:    "avg_response_time_ms",
			Condition: ConditionGreaterThan,
			Threshold: 5000,
			Severity:  faults.SeverityHigh,
			Cooldown:  10 * time.Minute,
			Actions:   []Action{{Type: ActionLog, Enabled: true}},
		},
		{
			Name:      "component-unavailable",
			Metric:    "health_score",
			Condition: ConditionLessThan,
			Threshold: 0.5,
			Severity:  faults.SeverityCritical,
			Cooldown:  5 * time.Minute,
			Actions: []Action{
				{Type: ActionLog, Enabled: true},
				{Type: ActionRecovery, Enabled: true},
			},
		},
		{
			Name:      "auth-failures",
			Metric:    "auth_failures",
			Condition: ConditionGreaterThan,
			Threshold: 5,
			Severity:  faults.SeverityHigh,
			Cooldown:  15 * time.Minute,
			Actions:   []Action{{Type: ActionLog, Enabled: true}},
		},
	}
}
