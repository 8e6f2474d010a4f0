// internal/recovery/strategies.go
// Built-in strategies for the failure classes the clinic platform actually
// recovers from: connectivity loss, expired sessions, bad form input.
package recovery

import (
	"context"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
)

// Pinger verifies connectivity to a dependency. Injected so strategies
// stay testable and transport-agnostic.
type Pinger func(ctx context.Context) error

// SessionRefresher re-establishes an authenticated session.
type SessionRefresher func(ctx context.Context) error

// NewNetworkStrategy probes connectivity and, when the dependency answers
// again, reports success so the caller can replay its operation.
func NewNetworkStrategy(ping Pinger) Strategy {
	return NewStrategy("network-reconnect", 3,
		func(perr *faults.ProcessedError) bool {
			return perr.Type == faults.TypeNetwork && perr.Recoverable
		},
		func(ctx context.Context, perr *faults.ProcessedError) (Result, error) {
			if err := ping(ctx); err != nil {
				return Result{
					Success:          false,
					Message:          "dependency still unreachable",
					RetryAfter:       5 * time.Second,
					FallbackRequired: true,
				}, nil
			}
			return Result{
				Success: true,
				Message: "connectivity restored",
			}, nil
		})
}

// NewAuthStrategy refreshes the session for expired-credential failures.
// Permission problems are deliberately out: re-authenticating cannot grant
// missing rights.
func NewAuthStrategy(refresh SessionRefresher) Strategy {
	return NewStrategy("session-refresh", 2,
		func(perr *faults.ProcessedError) bool {
			return perr.Type == faults.TypeAuthentication &&
				perr.Code != faults.CodePermissionDenied
		},
		func(ctx context.Context, perr *faults.ProcessedError) (Result, error) {
			if err := refresh(ctx); err != nil {
				return Result{
					Success:          false,
					Message:          "session refresh failed, re-login required",
					FallbackRequired: true,
				}, nil
			}
			return Result{
				Success: true,
				Message: "session refreshed",
			}, nil
		})
}

// NewValidationStrategy never restores anything by itself: validation
// failures need corrected input. It hands the canonical user message back
// and signals the boundary to keep rendering.
func NewValidationStrategy() Strategy {
	return NewStrategy("validation-advisory", 1,
		func(perr *faults.ProcessedError) bool {
			return perr.Type == faults.TypeValidation
		},
		func(ctx context.Context, perr *faults.ProcessedError) (Result, error) {
			return Result{
				Success: true,
				Message: perr.UserMessage,
				Data:    ContinueSignal,
			}, nil
		})
}
