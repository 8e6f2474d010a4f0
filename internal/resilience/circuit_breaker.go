// internal/resilience/circuit_breaker.go
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker short-circuits a call. It
// carries the unavailable code so the classifier treats it as transient.
var ErrCircuitOpen error = faults.NewCoded(faults.CodeUnavailable, "circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, calls blocked
	StateHalfOpen              // One probe allowed through
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker guards one protected operation against cascading
// failures. One instance per operation; all state mutation happens behind
// its own mutex.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	openDuration     time.Duration
	callTimeout      time.Duration

	state       State
	failures    int
	lastFailure time.Time
	probing     bool

	logger *zap.Logger
}

// CircuitOption configures the circuit breaker
type CircuitOption func(*CircuitBreaker)

// WithFailureThreshold sets consecutive failures before opening
func WithFailureThreshold(n int) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = n
	}
}

// WithOpenDuration sets how long the breaker stays open after the last failure
func WithOpenDuration(d time.Duration) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.openDuration = d
	}
}

// WithCallTimeout bounds each protected call
func WithCallTimeout(d time.Duration) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.callTimeout = d
	}
}

// WithCircuitLogger adds logging
func WithCircuitLogger(logger *zap.Logger) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// NewCircuitBreaker creates a breaker for the named operation.
func NewCircuitBreaker(name string, opts ...CircuitOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		openDuration:     60 * time.Second,
		callTimeout:      10 * time.Second,
		state:            StateClosed,
		logger:           zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Execute runs fn with breaker protection. While open it rejects without
// invoking fn; once the open duration has elapsed exactly one probe is let
// through and its outcome decides the next state.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.openDuration {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = false
		cb.logger.Info("circuit breaker half-open", zap.String("operation", cb.name))
		fallthrough
	case StateHalfOpen:
		if cb.probing {
			// Another caller already holds the probe slot.
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}

	cb.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, cb.callTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = errors.Join(errors.New("resilience: operation timeout"), callCtx.Err())
	}

	cb.recordResult(err)
	return err
}

// recordResult updates breaker state from a call outcome.
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == StateHalfOpen {
			// Failed probe: back to open, timer restarts from now.
			cb.state = StateOpen
			cb.probing = false
			cb.logger.Warn("circuit breaker probe failed, reopening",
				zap.String("operation", cb.name),
				zap.Error(err))
			return
		}

		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.logger.Error("circuit breaker opened",
				zap.String("operation", cb.name),
				zap.Int("failures", cb.failures),
				zap.Error(err))
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failures = 0
		cb.probing = false
		cb.logger.Info("circuit breaker closed after probe",
			zap.String("operation", cb.name))
	case StateClosed:
		cb.failures = 0
	case StateOpen:
		// Success from a call admitted before the breaker opened. Only a
		// half-open probe may close it; the open timer keeps running.
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the protected operation name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Stats is a point-in-time snapshot of breaker internals.
type Stats struct {
	Operation   string    `json:"operation"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// Stats returns a snapshot for dashboards and diagnostics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Operation:   cb.name,
		State:       cb.state.String(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
	}
}

// Reset forces the breaker closed with zero failures. Administrative
// escape hatch only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probing = false
	cb.logger.Info("circuit breaker reset", zap.String("operation", cb.name))
}

// BreakerSet owns one breaker per protected operation, created lazily with
// shared defaults. Pass the set around by reference; tests build fresh ones.
type BreakerSet struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	opts     []CircuitOption
}

// NewBreakerSet creates a registry applying opts to every new breaker.
func NewBreakerSet(opts ...CircuitOption) *BreakerSet {
	return &BreakerSet{
		breakers: make(map[string]*CircuitBreaker),
		opts:     opts,
	}
}

// Get returns the breaker for an operation, creating it on first use.
func (s *BreakerSet) Get(operation string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[operation]; ok {
		return cb
	}
	cb := NewCircuitBreaker(operation, s.opts...)
	s.breakers[operation] = cb
	return cb
}

// Stats snapshots every breaker in the set.
func (s *BreakerSet) Stats() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]Stats, 0, len(s.breakers))
	for _, cb := range s.breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}

// ResetAll force-closes every breaker.
func (s *BreakerSet) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cb := range s.breakers {
		cb.Reset()
	}
}
