// internal/faults/types.go
package faults

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// ErrorType categorizes a failure by its origin.
type ErrorType string

const (
	TypeAuthentication ErrorType = "authentication"
	TypeAuthorization  ErrorType = "authorization"
	TypeValidation     ErrorType = "validation"
	TypeNetwork        ErrorType = "network"
	TypeStorage        ErrorType = "storage"
	TypeBusinessLogic  ErrorType = "business_logic"
	TypeConfiguration  ErrorType = "configuration"
	TypeSystem         ErrorType = "system"
	TypeUnknown        ErrorType = "unknown"
)

// ErrorSeverity ranks how urgently a failure needs attention.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// Kind groups error types by how the propagation layer must treat them.
type Kind string

const (
	// KindCallerFault covers invalid input, missing entities, permission
	// problems. Never retried, surfaced verbatim with the canonical code.
	KindCallerFault Kind = "caller_fault"

	// KindOperational is a deliberate domain rejection (insufficient stock,
	// expired license). Expected, logged at warn, never retried.
	KindOperational Kind = "operational"

	// KindTransient covers failures that may clear on replay: network,
	// unavailability, deadline, quota. Eligible for retry and breaking.
	KindTransient Kind = "transient"

	// KindProgramming is everything unclassifiable. Never retried, surfaced
	// with a generic message so internals do not leak.
	KindProgramming Kind = "programming"
)

// ErrorContext describes where a failure happened. Built at the failure
// site and never mutated afterwards.
type ErrorContext struct {
	Component      string         `json:"component"`
	Action         string         `json:"action"`
	UserID         string         `json:"user_id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Environment    string         `json:"environment,omitempty"`
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// ProcessedError is a failure normalized into the shared taxonomy.
// Immutable once the classifier returns it; safe for concurrent reads.
type ProcessedError struct {
	ID          string         `json:"id"`
	Type        ErrorType      `json:"type"`
	Severity    ErrorSeverity  `json:"severity"`
	Code        Code           `json:"code"`
	Message     string         `json:"message"`
	Cause       error          `json:"-"`
	Context     ErrorContext   `json:"context"`
	Recoverable bool           `json:"recoverable"`
	Retryable   bool           `json:"retryable"`
	UserMessage string         `json:"user_message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Error implements the error interface so a ProcessedError can travel
// through plain error returns.
func (e *ProcessedError) Error() string {
	return string(e.Type) + ": " + e.Message
}

// Unwrap exposes the originating failure for errors.Is/As.
func (e *ProcessedError) Unwrap() error {
	return e.Cause
}

// Kind derives the propagation category from the code and type. All retry
// and breaker decisions read this, never a separate flag.
func (e *ProcessedError) Kind() Kind {
	switch e.Code {
	case CodeUnauthenticated, CodePermissionDenied, CodeInvalidArgument,
		CodeNotFound, CodeAlreadyExists:
		return KindCallerFault
	case CodeFailedPrecondition:
		return KindOperational
	case CodeUnavailable, CodeDeadlineExceeded, CodeResourceExhausted:
		return KindTransient
	}
	switch e.Type {
	case TypeBusinessLogic:
		return KindOperational
	case TypeNetwork, TypeSystem:
		return KindTransient
	case TypeValidation, TypeAuthorization, TypeAuthentication:
		return KindCallerFault
	}
	return KindProgramming
}

// LogLevel maps the propagation kind to the level callers should log at:
// expected rejections stay at warn, everything broken is error or worse.
func (e *ProcessedError) LogLevel() zapcore.Level {
	switch e.Kind() {
	case KindOperational, KindCallerFault:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
