// internal/resilience/retry.go
package resilience

import (
	"context"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"go.uber.org/zap"
)

// Backoff selects how inter-attempt delay grows.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"       // constant delay
	BackoffLinear      Backoff = "linear"      // delay * attempt
	BackoffExponential Backoff = "exponential" // delay * 2^(attempt-1)
)

// Delay computes the wait before retry number attempt (1-based).
func (b Backoff) Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch b {
	case BackoffLinear:
		return base * time.Duration(attempt)
	case BackoffExponential:
		return base << (attempt - 1)
	default:
		return base
	}
}

// RetryPolicy re-invokes an operation on transient failure. It consults
// the classifier before every retry: caller-fault, operational and
// programming failures are deterministic and abandoned immediately.
type RetryPolicy struct {
	classifier  *faults.Classifier
	maxAttempts int
	baseDelay   time.Duration
	backoff     Backoff
	logger      *zap.Logger
}

// RetryOption configures retry behavior
type RetryOption func(*RetryPolicy)

// WithMaxAttempts sets the total attempt cap (first try included)
func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) {
		p.maxAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry
func WithBaseDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.baseDelay = d
	}
}

// WithBackoff sets the delay growth policy
func WithBackoff(b Backoff) RetryOption {
	return func(p *RetryPolicy) {
		p.backoff = b
	}
}

// WithRetryLogger adds logging to retry attempts
func WithRetryLogger(logger *zap.Logger) RetryOption {
	return func(p *RetryPolicy) {
		p.logger = logger
	}
}

// NewRetryPolicy creates a retry policy bound to a classifier.
func NewRetryPolicy(classifier *faults.Classifier, opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		classifier:  classifier,
		maxAttempts: 3,
		baseDelay:   time.Second,
		backoff:     BackoffExponential,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Execute runs fn until it succeeds, attempts are exhausted, the failure
// classifies as non-retryable, or ctx is cancelled. The last error comes
// back unmodified.
func (p *RetryPolicy) Execute(ctx context.Context, ectx faults.ErrorContext, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Debug("operation succeeded after retry",
					zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		perr := p.classifier.Classify(err, ectx)
		if !perr.Retryable {
			// Deterministic failure: replaying changes nothing.
			p.logger.Debug("failure is not retryable, abandoning",
				zap.String("type", string(perr.Type)),
				zap.String("kind", string(perr.Kind())),
				zap.Error(err))
			return lastErr
		}

		if attempt == p.maxAttempts {
			break
		}

		delay := p.backoff.Delay(p.baseDelay, attempt)
		p.logger.Warn("transient failure, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.logger.Error("operation failed after all attempts",
		zap.Int("attempts", p.maxAttempts),
		zap.Error(lastErr))

	return lastErr
}
