// internal/faults/classifier.go
package faults

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Classifier turns raw failures into ProcessedErrors. It is stateless and
// pure: Classify never panics, never logs, and leaves audit persistence to
// the caller.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify normalizes a raw failure against the shared taxonomy. A nil
// error or an unmatchable one maps to unknown/high, non-recoverable,
// non-retryable.
func (c *Classifier) Classify(err error, ctx ErrorContext) *ProcessedError {
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now().UTC()
	}
	ctx.AdditionalData = sanitizeData(ctx.AdditionalData)

	perr := &ProcessedError{
		ID:      uuid.NewString(),
		Cause:   err,
		Context: ctx,
	}

	if err == nil {
		perr.Type = TypeUnknown
		perr.Severity = SeverityHigh
		perr.Code = CodeInternal
		perr.Message = "unknown failure (nil error)"
		perr.UserMessage = CodeInternal.UserMessage()
		return perr
	}

	// Already classified upstream: pass through untouched.
	var prior *ProcessedError
	if errors.As(err, &prior) {
		return prior
	}

	code, coded := extractCode(err)
	if coded {
		perr.Code = code
		perr.Type = typeForCode(code)
	} else {
		perr.Type = classifyMessage(err, ctx)
		perr.Code = codeForType(perr.Type, err)
	}

	perr.Message = sanitizeMessage(err.Error())
	perr.Severity = determineSeverity(err, ctx, perr.Type)
	perr.Retryable = perr.Kind() == KindTransient
	perr.Recoverable = recoverableType(perr.Type)
	perr.UserMessage = perr.Code.UserMessage()
	perr.Details = map[string]any{
		"error_code": string(perr.Code),
		"component":  ctx.Component,
		"action":     ctx.Action,
	}

	return perr
}

// extractCode pulls an explicit code off the error chain, including the
// context sentinels the standard library raises for timeouts.
func extractCode(err error) (Code, bool) {
	var coded Coded
	if errors.As(err, &coded) && coded.ErrorCode().Valid() {
		return coded.ErrorCode(), true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeDeadlineExceeded, true
	}
	if errors.Is(err, context.Canceled) {
		return CodeDeadlineExceeded, true
	}
	return "", false
}

func typeForCode(code Code) ErrorType {
	switch code {
	case CodeUnauthenticated:
		return TypeAuthentication
	case CodePermissionDenied:
		return TypeAuthorization
	case CodeInvalidArgument:
		return TypeValidation
	case CodeFailedPrecondition, CodeNotFound, CodeAlreadyExists:
		return TypeBusinessLogic
	case CodeUnavailable, CodeDeadlineExceeded:
		return TypeNetwork
	case CodeResourceExhausted:
		return TypeSystem
	default:
		return TypeUnknown
	}
}

// classifyMessage applies the declarative substring rules when no explicit
// code is available.
func classifyMessage(err error, ctx ErrorContext) ErrorType {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "permission", "forbidden", "unauthorized", "access denied"):
		return TypeAuthorization
	case containsAny(msg, "auth", "login", "credential", "token expired", "token"):
		return TypeAuthentication
	case containsAny(msg, "validation", "invalid", "required field", "required"):
		return TypeValidation
	case containsAny(msg, "network", "connection", "timeout", "unreachable", "unavailable", "fetch"):
		return TypeNetwork
	case containsAny(msg, "database", "query", "constraint", "document", "storage"):
		return TypeStorage
	case containsAny(msg, "config", "environment", "missing setting"):
		return TypeConfiguration
	case containsAny(msg, "insufficient", "stock", "quota", "not allowed by policy"):
		return TypeBusinessLogic
	case containsAny(msg, "system", "internal", "overload", "rate limit"):
		return TypeSystem
	}

	switch {
	case strings.Contains(ctx.Component, "config"):
		return TypeConfiguration
	case strings.Contains(ctx.Component, "service") ||
		strings.Contains(ctx.Action, "process") ||
		strings.Contains(ctx.Action, "calculate"):
		return TypeBusinessLogic
	}

	return TypeUnknown
}

// codeForType picks the closest canonical code for a type classified by
// message only.
func codeForType(t ErrorType, err error) Code {
	msg := strings.ToLower(err.Error())
	switch t {
	case TypeAuthentication:
		return CodeUnauthenticated
	case TypeAuthorization:
		return CodePermissionDenied
	case TypeValidation:
		return CodeInvalidArgument
	case TypeNetwork:
		if containsAny(msg, "timeout", "deadline") {
			return CodeDeadlineExceeded
		}
		return CodeUnavailable
	case TypeStorage:
		if strings.Contains(msg, "not found") {
			return CodeNotFound
		}
		return CodeUnavailable
	case TypeBusinessLogic:
		if containsAny(msg, "quota", "limit") {
			return CodeResourceExhausted
		}
		if strings.Contains(msg, "already exists") {
			return CodeAlreadyExists
		}
		if strings.Contains(msg, "not found") {
			return CodeNotFound
		}
		return CodeFailedPrecondition
	case TypeSystem:
		if containsAny(msg, "quota", "capacity", "overload", "rate limit") {
			return CodeResourceExhausted
		}
		return CodeInternal
	default:
		return CodeInternal
	}
}

func determineSeverity(err error, ctx ErrorContext, t ErrorType) ErrorSeverity {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "critical", "fatal", "crash"),
		ctx.Component == "auth" && ctx.Action == "login":
		return SeverityCritical
	case t == TypeAuthorization || t == TypeStorage ||
		strings.Contains(ctx.Component, "billing") ||
		strings.Contains(ctx.Component, "security"):
		return SeverityHigh
	case t == TypeValidation || t == TypeNetwork ||
		containsAny(msg, "not found", "timeout"):
		return SeverityMedium
	case t == TypeUnknown:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// recoverableType reports whether some registered strategy class could
// plausibly restore functionality for this type.
func recoverableType(t ErrorType) bool {
	switch t {
	case TypeNetwork, TypeAuthentication, TypeStorage, TypeSystem, TypeValidation:
		return true
	default:
		return false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var secretPattern = regexp.MustCompile(`(?i)(password|token|key|secret)[=:]\s*[^\s&]+`)

// sanitizeMessage strips credential-looking values before the message is
// logged or persisted.
func sanitizeMessage(msg string) string {
	if msg == "" {
		return "unknown error"
	}
	return secretPattern.ReplaceAllString(msg, "$1=***")
}

var sensitiveKeys = []string{"password", "token", "key", "secret", "authorization"}

func sanitizeData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		lower := strings.ToLower(k)
		masked := false
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = "***"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = sanitizeData(nested)
			continue
		}
		out[k] = v
	}
	return out
}
