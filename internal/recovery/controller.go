// internal/recovery/controller.go
package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"go.uber.org/zap"
)

// maxBoundaryAttempts caps how often a failure boundary asks for recovery
// before only reload/escalate remain.
const maxBoundaryAttempts = 3

// Controller sits at a rendering failure boundary. It classifies the
// caught failure, asks the dispatcher for a strategy, and keeps the
// boundary in a safe failed state until recovery succeeds or the attempt
// cap is reached.
type Controller struct {
	mu sync.Mutex

	component  string
	classifier *faults.Classifier
	dispatcher *Dispatcher
	logger     *zap.Logger

	failed   bool
	attempts int
	lastErr  *faults.ProcessedError
}

// NewController creates a boundary controller for one component.
func NewController(component string, classifier *faults.Classifier, dispatcher *Dispatcher, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		component:  component,
		classifier: classifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CaptureFailure records an unrecoverable failure at the boundary and
// returns its classification. The boundary stays failed until a recovery
// attempt clears it.
func (c *Controller) CaptureFailure(err error, action string) *faults.ProcessedError {
	perr := c.classifier.Classify(err, faults.ErrorContext{
		Component: c.component,
		Action:    action,
		Timestamp: time.Now().UTC(),
	})

	c.mu.Lock()
	c.failed = true
	c.lastErr = perr
	c.mu.Unlock()

	c.logger.Log(perr.LogLevel(), "boundary failure captured",
		zap.String("component", c.component),
		zap.String("error_id", perr.ID),
		zap.String("type", string(perr.Type)),
		zap.String("severity", string(perr.Severity)))

	return perr
}

// TryRecover asks the dispatcher for a strategy while attempts remain. A
// successful result, or one whose payload signals continue-anyway, clears
// the failure state; anything else keeps it visible and burns an attempt.
func (c *Controller) TryRecover(ctx context.Context) Result {
	c.mu.Lock()
	if !c.failed || c.lastErr == nil {
		c.mu.Unlock()
		return Result{Success: true, Message: "nothing to recover"}
	}
	if c.attempts >= maxBoundaryAttempts {
		c.mu.Unlock()
		return Result{
			Success:          false,
			Message:          "recovery attempts exhausted, reload required",
			FallbackRequired: true,
		}
	}
	perr := c.lastErr
	c.mu.Unlock()

	result := c.dispatcher.ExecuteRecovery(ctx, perr)

	c.mu.Lock()
	defer c.mu.Unlock()

	if result.Success || result.Data == ContinueSignal {
		c.failed = false
		c.attempts = 0
		c.lastErr = nil
		return result
	}

	c.attempts++
	c.logger.Warn("boundary recovery attempt failed",
		zap.String("component", c.component),
		zap.Int("attempt", c.attempts),
		zap.Int("max_attempts", maxBoundaryAttempts),
		zap.String("message", result.Message))
	return result
}

// CanRetry reports whether the boundary may still offer a retry action.
func (c *Controller) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts < maxBoundaryAttempts
}

// Failed reports whether the boundary is in its failure state.
func (c *Controller) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// LastError returns the classification of the current failure, nil when
// the boundary is healthy.
func (c *Controller) LastError() *faults.ProcessedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reset is the full-reload path: clears failure state and the counter.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = false
	c.attempts = 0
	c.lastErr = nil
}
