// internal/diagnostic/health.go
package diagnostic

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents one component's operational state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnknown   Status = "unknown"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// rank orders statuses from best to worst for aggregation.
func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusUnknown:
		return 1
	case StatusDegraded:
		return 2
	case StatusUnhealthy:
		return 3
	default:
		return 3
	}
}

// Worse returns the worse of two statuses.
func (s Status) Worse(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Probe executes a single health test. Implementations must respect ctx:
// the engine bounds every invocation by the check's timeout.
type Probe func(ctx context.Context) Result

// Check describes one executable probe of one component's health.
type Check struct {
	Name      string        `json:"name"`
	Component string        `json:"component"`
	Timeout   time.Duration `json:"timeout"`
	Retries   int           `json:"retries"`
	Enabled   bool          `json:"enabled"`
	Interval  time.Duration `json:"interval,omitempty"`
	Probe     Probe         `json:"-"`
}

// Result is the immutable outcome of one probe execution.
type Result struct {
	Status       Status             `json:"status"`
	Message      string             `json:"message"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	ResponseTime time.Duration      `json:"response_time"`
	Err          error              `json:"-"`
}

// Registry holds the named health checks the engine runs.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewRegistry creates an empty check registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds or replaces a check by name.
func (r *Registry) Register(check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if check.Timeout <= 0 {
		check.Timeout = 10 * time.Second
	}
	r.checks[check.Name] = check
}

// Unregister removes a check.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checks, name)
}

// List returns all checks sorted by name.
func (r *Registry) List() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Check, 0, len(r.checks))
	for _, c := range r.checks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// enabledByComponent groups enabled checks per owning component, honoring
// an optional allow-list.
func (r *Registry) enabledByComponent(allow []string) map[string][]Check {
	allowed := func(string) bool { return true }
	if len(allow) > 0 {
		set := make(map[string]bool, len(allow))
		for _, name := range allow {
			set[name] = true
		}
		allowed = func(c string) bool { return set[c] }
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	grouped := make(map[string][]Check)
	for _, c := range r.checks {
		if !c.Enabled || !allowed(c.Component) {
			continue
		}
		grouped[c.Component] = append(grouped[c.Component], c)
	}
	for _, checks := range grouped {
		sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	}
	return grouped
}
