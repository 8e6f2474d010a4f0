// internal/diagnostic/report.go
package diagnostic

import (
	"fmt"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/google/uuid"
)

// Issue is one concrete problem found during a session or derived from a
// classified error. Resolution is an explicit operator action.
type Issue struct {
	ID             string               `json:"id"`
	Severity       faults.ErrorSeverity `json:"severity"`
	Message        string               `json:"message"`
	Component      string               `json:"component"`
	Timestamp      time.Time            `json:"timestamp"`
	Resolved       bool                 `json:"resolved"`
	Recommendation string               `json:"recommendation,omitempty"`
}

// IssueFromError converts a classified error into a trackable issue.
func IssueFromError(perr *faults.ProcessedError) Issue {
	return Issue{
		ID:        uuid.NewString(),
		Severity:  perr.Severity,
		Message:   perr.Message,
		Component: perr.Context.Component,
		Timestamp: perr.Context.Timestamp,
	}
}

// Recommendation is an actionable suggestion derived from report contents.
type Recommendation struct {
	ID          string `json:"id"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Component   string `json:"component"`
}

// ComponentReport rolls up everything observed for one component in one
// session.
type ComponentReport struct {
	Name         string             `json:"name"`
	Status       Status             `json:"status"`
	ResponseTime time.Duration      `json:"response_time,omitempty"`
	ErrorRate    float64            `json:"error_rate"`
	Issues       []Issue            `json:"issues"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	LastChecked  time.Time          `json:"last_checked"`
}

// Report is the immutable output of one diagnostic session.
type Report struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	OverallHealth   Status            `json:"overall_health"`
	Components      []ComponentReport `json:"components"`
	Recommendations []Recommendation  `json:"recommendations"`
	CriticalIssues  []Issue           `json:"critical_issues"`
	Summary         string            `json:"summary"`
	ExecutionTime   time.Duration     `json:"execution_time"`
}

// buildReport aggregates component reports into the session report.
// Overall health is strictly the worst component status; running it twice
// on the same inputs yields the same shape.
func buildReport(components []ComponentReport, executionTime time.Duration) *Report {
	overall := StatusUnknown
	if len(components) > 0 {
		overall = StatusHealthy
		for _, c := range components {
			overall = overall.Worse(c.Status)
		}
	}

	var all []Issue
	for _, c := range components {
		all = append(all, c.Issues...)
	}

	var criticals []Issue
	for _, issue := range all {
		if issue.Severity == faults.SeverityCritical {
			criticals = append(criticals, issue)
		}
	}

	return &Report{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		OverallHealth:   overall,
		Components:      components,
		Recommendations: deriveRecommendations(components, all, criticals),
		CriticalIssues:  criticals,
		Summary:         buildSummary(overall, components, criticals),
		ExecutionTime:   executionTime,
	}
}

// deriveRecommendations applies the report-level heuristics: critical
// issues, slow components, high error rates.
func deriveRecommendations(components []ComponentReport, issues, criticals []Issue) []Recommendation {
	var recs []Recommendation

	if len(criticals) > 0 {
		recs = append(recs, Recommendation{
			ID:          uuid.NewString(),
			Priority:    "critical",
			Title:       "Address critical issues",
			Description: fmt.Sprintf("%d critical issues require immediate attention", len(criticals)),
			Action:      "Review and resolve critical issues in affected components",
			Component:   "system",
		})
	}

	slow := 0
	for _, c := range components {
		if c.ResponseTime > 5*time.Second {
			slow++
		}
	}
	if slow > 0 {
		recs = append(recs, Recommendation{
			ID:          uuid.NewString(),
			Priority:    "medium",
			Title:       "Optimize performance",
			Description: fmt.Sprintf("%d components showing slow response times", slow),
			Action:      "Investigate and optimize slow-performing components",
			Component:   "performance",
		})
	}

	noisy := 0
	for _, c := range components {
		if c.ErrorRate > 0.1 {
			noisy++
		}
	}
	if noisy > 0 {
		recs = append(recs, Recommendation{
			ID:          uuid.NewString(),
			Priority:    "high",
			Title:       "Reduce error rates",
			Description: fmt.Sprintf("%d components with high error rates", noisy),
			Action:      "Investigate and fix components with high error rates",
			Component:   "reliability",
		})
	}

	// Repeated issues in one component point at something structural.
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.Component]++
	}
	for component, n := range counts {
		if n >= 3 {
			recs = append(recs, Recommendation{
				ID:          uuid.NewString(),
				Priority:    "high",
				Title:       "Recurring failures in " + component,
				Description: fmt.Sprintf("%d issues recorded for %s in a single session", n, component),
				Action:      "Review component configuration and its dependencies",
				Component:   component,
			})
		}
	}

	return recs
}

func buildSummary(overall Status, components []ComponentReport, criticals []Issue) string {
	healthy := 0
	for _, c := range components {
		if c.Status == StatusHealthy {
			healthy++
		}
	}

	summary := fmt.Sprintf("System status: %s. %d/%d components healthy. ",
		overall, healthy, len(components))
	if len(criticals) > 0 {
		summary += fmt.Sprintf("%d critical issues require immediate attention.", len(criticals))
	} else {
		summary += "No critical issues detected."
	}
	return summary
}
