// internal/recovery/dispatcher.go
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"go.uber.org/zap"
)

// Result reports the outcome of one recovery attempt.
type Result struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	RetryAfter       time.Duration `json:"retry_after,omitempty"`
	FallbackRequired bool          `json:"fallback_required,omitempty"`
	Data             any           `json:"data,omitempty"`
}

// ContinueSignal in Result.Data tells a boundary consumer to clear its
// failure state even though recovery did not fully restore the component.
const ContinueSignal = "continue"

// Strategy attempts to restore functionality after one class of failure.
// Implementations are stateless descriptors; the dispatcher owns ordering
// and attempt accounting.
type Strategy interface {
	Name() string
	CanHandle(err *faults.ProcessedError) bool
	Execute(ctx context.Context, err *faults.ProcessedError) (Result, error)
	MaxRetries() int
}

// FallbackHandler runs best-effort, side-effecting cleanup when recovery
// proper has failed (cache flush, forced logout, offline mode).
type FallbackHandler interface {
	Name() string
	Handle(ctx context.Context, err *faults.ProcessedError) error
}

// funcStrategy adapts plain functions into a Strategy.
type funcStrategy struct {
	name       string
	canHandle  func(*faults.ProcessedError) bool
	execute    func(context.Context, *faults.ProcessedError) (Result, error)
	maxRetries int
}

func (s *funcStrategy) Name() string { return s.name }

func (s *funcStrategy) CanHandle(err *faults.ProcessedError) bool {
	return s.canHandle(err)
}

func (s *funcStrategy) Execute(ctx context.Context, err *faults.ProcessedError) (Result, error) {
	return s.execute(ctx, err)
}

func (s *funcStrategy) MaxRetries() int { return s.maxRetries }

// NewStrategy builds a Strategy from functions.
func NewStrategy(name string, maxRetries int,
	canHandle func(*faults.ProcessedError) bool,
	execute func(context.Context, *faults.ProcessedError) (Result, error)) Strategy {
	return &funcStrategy{
		name:       name,
		canHandle:  canHandle,
		execute:    execute,
		maxRetries: maxRetries,
	}
}

// Dispatcher maps error types to ordered strategy lists and executes the
// first applicable one. It is the last line of defense before a failure
// reaches an end user.
type Dispatcher struct {
	mu         sync.Mutex
	strategies map[faults.ErrorType][]Strategy
	fallbacks  []FallbackHandler
	attempts   map[string]int
	globalCap  int
	logger     *zap.Logger
}

// DispatcherOption configures the dispatcher
type DispatcherOption func(*Dispatcher)

// WithGlobalRetryCap bounds recovery attempts per distinct error key
func WithGlobalRetryCap(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.globalCap = n
	}
}

// WithDispatcherLogger adds logging
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		strategies: make(map[faults.ErrorType][]Strategy),
		attempts:   make(map[string]int),
		globalCap:  5,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register appends a strategy to the type's ordered list. Later
// registrations are consulted only when earlier ones decline.
func (d *Dispatcher) Register(errType faults.ErrorType, strategy Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.strategies[errType] {
		if existing.Name() == strategy.Name() {
			d.logger.Warn("strategy already registered",
				zap.String("strategy", strategy.Name()),
				zap.String("error_type", string(errType)))
			return
		}
	}

	d.strategies[errType] = append(d.strategies[errType], strategy)
	d.logger.Debug("recovery strategy registered",
		zap.String("strategy", strategy.Name()),
		zap.String("error_type", string(errType)))
}

// RegisterFallback adds a best-effort cleanup handler.
func (d *Dispatcher) RegisterFallback(handler FallbackHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbacks = append(d.fallbacks, handler)
}

// Clear removes registrations for the given types, or everything when no
// type is passed. Test teardown hook.
func (d *Dispatcher) Clear(types ...faults.ErrorType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(types) == 0 {
		d.strategies = make(map[faults.ErrorType][]Strategy)
		d.attempts = make(map[string]int)
		return
	}
	for _, t := range types {
		delete(d.strategies, t)
	}
}

// ExecuteRecovery runs the first matching strategy for the error's type.
// A missing match, an exhausted cap, or a strategy failure all yield an
// unsuccessful result with FallbackRequired set; the caller decides
// whether to invoke ExecuteFallback.
func (d *Dispatcher) ExecuteRecovery(ctx context.Context, perr *faults.ProcessedError) Result {
	key := errorKey(perr)

	d.mu.Lock()
	current := d.attempts[key]
	if current >= d.globalCap {
		d.mu.Unlock()
		d.logger.Warn("recovery attempt cap exceeded",
			zap.String("error_id", perr.ID),
			zap.String("key", key))
		return Result{
			Success:          false,
			Message:          "maximum recovery attempts exceeded",
			FallbackRequired: true,
		}
	}
	d.attempts[key] = current + 1
	ordered := append([]Strategy(nil), d.strategies[perr.Type]...)
	d.mu.Unlock()

	if len(ordered) == 0 {
		return Result{
			Success:          false,
			Message:          fmt.Sprintf("no recovery strategies registered for %s", perr.Type),
			FallbackRequired: true,
		}
	}

	for _, strategy := range ordered {
		if !strategy.CanHandle(perr) {
			continue
		}
		if current >= strategy.MaxRetries() {
			d.logger.Warn("strategy retry budget exhausted",
				zap.String("strategy", strategy.Name()),
				zap.String("error_id", perr.ID))
			return Result{
				Success:          false,
				Message:          "maximum retry attempts exceeded",
				FallbackRequired: true,
			}
		}

		d.logger.Info("attempting recovery",
			zap.String("strategy", strategy.Name()),
			zap.String("error_id", perr.ID),
			zap.String("error_type", string(perr.Type)))

		result := d.runStrategy(ctx, strategy, perr)
		if result.Success {
			d.mu.Lock()
			delete(d.attempts, key)
			d.mu.Unlock()
			d.logger.Info("recovery successful",
				zap.String("strategy", strategy.Name()),
				zap.String("error_id", perr.ID))
		}
		return result
	}

	return Result{
		Success:          false,
		Message:          fmt.Sprintf("no strategy could handle error %s", perr.ID),
		FallbackRequired: true,
	}
}

// runStrategy isolates strategy execution: a panicking or failing strategy
// becomes an unsuccessful result, never an escaped fault.
func (d *Dispatcher) runStrategy(ctx context.Context, strategy Strategy, perr *faults.ProcessedError) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("recovery strategy panicked",
				zap.String("strategy", strategy.Name()),
				zap.Any("panic", r))
			result = Result{
				Success:          false,
				Message:          "recovery strategy execution failed",
				FallbackRequired: true,
			}
		}
	}()

	result, err := strategy.Execute(ctx, perr)
	if err != nil {
		d.logger.Error("recovery strategy failed",
			zap.String("strategy", strategy.Name()),
			zap.String("error_id", perr.ID),
			zap.Error(err))
		return Result{
			Success:          false,
			Message:          "recovery strategy execution failed",
			FallbackRequired: true,
		}
	}
	return result
}

// ExecuteFallback runs every registered fallback handler. Handler errors
// are logged and swallowed; fallback is cleanup, not recovery.
func (d *Dispatcher) ExecuteFallback(ctx context.Context, perr *faults.ProcessedError) {
	d.mu.Lock()
	handlers := append([]FallbackHandler(nil), d.fallbacks...)
	d.mu.Unlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, perr); err != nil {
			d.logger.Error("fallback handler failed",
				zap.String("handler", h.Name()),
				zap.String("error_id", perr.ID),
				zap.Error(err))
		}
	}
}

// Stats reports per-key outstanding attempt counts.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]int, len(d.attempts))
	for k, v := range d.attempts {
		out[k] = v
	}
	return out
}

// errorKey groups repeated failures of the same operation so attempt caps
// apply across occurrences, not per ProcessedError id.
func errorKey(perr *faults.ProcessedError) string {
	return fmt.Sprintf("%s_%s_%s", perr.Type, perr.Context.Component, perr.Context.Action)
}
