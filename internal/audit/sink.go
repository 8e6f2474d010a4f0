// internal/audit/sink.go
package audit

import (
	"context"
	"sync"

	"github.com/clinovault/sentinel/internal/alerting"
	"github.com/clinovault/sentinel/internal/diagnostic"
	"github.com/clinovault/sentinel/internal/faults"
)

// Sink accepts audit records for classified errors, diagnostic findings
// and alerts. Implementations own persistence; callers treat failures as
// non-fatal.
type Sink interface {
	RecordError(ctx context.Context, perr *faults.ProcessedError) error
	RecordIssue(ctx context.Context, issue diagnostic.Issue) error
	RecordAlert(ctx context.Context, alert *alerting.Alert) error
	RecordReport(ctx context.Context, report *diagnostic.Report) error
}

// NopSink discards everything. Used when persistence is disabled.
type NopSink struct{}

func (NopSink) RecordError(context.Context, *faults.ProcessedError) error { return nil }
func (NopSink) RecordIssue(context.Context, diagnostic.Issue) error       { return nil }
func (NopSink) RecordAlert(context.Context, *alerting.Alert) error        { return nil }
func (NopSink) RecordReport(context.Context, *diagnostic.Report) error    { return nil }

// MemorySink keeps records in memory for tests and local runs.
type MemorySink struct {
	mu      sync.Mutex
	Errors  []*faults.ProcessedError
	Issues  []diagnostic.Issue
	Alerts  []*alerting.Alert
	Reports []*diagnostic.Report
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) RecordError(_ context.Context, perr *faults.ProcessedError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, perr)
	return nil
}

func (s *MemorySink) RecordIssue(_ context.Context, issue diagnostic.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Issues = append(s.Issues, issue)
	return nil
}

func (s *MemorySink) RecordAlert(_ context.Context, alert *alerting.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Alerts = append(s.Alerts, alert)
	return nil
}

func (s *MemorySink) RecordReport(_ context.Context, report *diagnostic.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reports = append(s.Reports, report)
	return nil
}

// Counts returns how many records of each kind were accepted.
func (s *MemorySink) Counts() (errors, issues, alerts, reports int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors), len(s.Issues), len(s.Alerts), len(s.Reports)
}
