// internal/alerting/types.go
package alerting

import (
	"time"

	"github.com/clinovault/sentinel/internal/faults"
)

// Condition compares a metric value against a rule threshold.
type Condition string

const (
	ConditionGreaterThan Condition = "greater_than"
	ConditionLessThan    Condition = "less_than"
	ConditionEquals      Condition = "equals"
	ConditionNotEquals   Condition = "not_equals"
)

// Holds reports whether the condition is met for the given value.
func (c Condition) Holds(value, threshold float64) bool {
	switch c {
	case ConditionGreaterThan:
		return value > threshold
	case ConditionLessThan:
		return value < threshold
	case ConditionEquals:
		return value == threshold
	case ConditionNotEquals:
		return value != threshold
	default:
		return false
	}
}

// Valid reports whether the condition is a known comparison.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals, ConditionNotEquals:
		return true
	}
	return false
}

// ActionType selects how a fired alert is delivered.
type ActionType string

const (
	ActionLog      ActionType = "log"
	ActionWebhook  ActionType = "webhook"
	ActionEmail    ActionType = "email"
	ActionRecovery ActionType = "recovery"
)

// Action is one delivery step attached to a rule.
type Action struct {
	Type    ActionType    `json:"type"`
	Target  string        `json:"target,omitempty"`
	Enabled bool          `json:"enabled"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Metric is one observed numeric sample fed into rule evaluation.
type Metric struct {
	Name      string            `json:"name"`
	Component string            `json:"component,omitempty"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Rule defines when an alert fires and what happens afterwards.
type Rule struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Component string               `json:"component,omitempty"`
	Metric    string               `json:"metric"`
	Condition Condition            `json:"condition"`
	Threshold float64              `json:"threshold"`
	Severity  faults.ErrorSeverity `json:"severity"`
	Enabled   bool                 `json:"enabled"`
	Cooldown  time.Duration        `json:"cooldown"`
	Actions   []Action             `json:"actions"`
}

// Alert is one fired rule breach. Immutable except for resolution.
type Alert struct {
	ID         string               `json:"id"`
	RuleID     string               `json:"rule_id"`
	Type       string               `json:"type"`
	Severity   faults.ErrorSeverity `json:"severity"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Component  string               `json:"component,omitempty"`
	Metric     string               `json:"metric,omitempty"`
	Threshold  float64              `json:"threshold"`
	Value      float64              `json:"value"`
	Timestamp  time.Time            `json:"timestamp"`
	Resolved   bool                 `json:"resolved"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
}

// Duration returns how long the alert has been active.
func (a *Alert) Duration() time.Duration {
	if a.ResolvedAt != nil {
		return a.ResolvedAt.Sub(a.Timestamp)
	}
	return time.Since(a.Timestamp)
}
