// internal/faults/codes.go
package faults

// Code is a stable string identifier shared across the browser, server and
// job layers. Callers may override the message shown next to a code, never
// the code itself.
type Code string

const (
	CodeUnauthenticated    Code = "unauthenticated"
	CodePermissionDenied   Code = "permission-denied"
	CodeInvalidArgument    Code = "invalid-argument"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeNotFound           Code = "not-found"
	CodeAlreadyExists      Code = "already-exists"
	CodeResourceExhausted  Code = "resource-exhausted"
	CodeInternal           Code = "internal"
	CodeUnavailable        Code = "unavailable"
	CodeDeadlineExceeded   Code = "deadline-exceeded"
)

// canonicalMessages holds the default user-facing message per code. The
// clinic application ships in pt-BR, so the defaults do too.
var canonicalMessages = map[Code]string{
	CodeUnauthenticated:    "Erro de autenticação. Verifique suas credenciais.",
	CodePermissionDenied:   "Você não tem permissão para realizar esta ação.",
	CodeInvalidArgument:    "Dados inválidos. Verifique os campos preenchidos.",
	CodeFailedPrecondition: "Não foi possível processar a solicitação.",
	CodeNotFound:           "Registro não encontrado.",
	CodeAlreadyExists:      "Este registro já existe.",
	CodeResourceExhausted:  "Limite de uso atingido. Tente novamente em instantes.",
	CodeInternal:           "Erro interno do sistema. Tente novamente.",
	CodeUnavailable:        "Serviço temporariamente indisponível. Tente mais tarde.",
	CodeDeadlineExceeded:   "A operação demorou demais. Tente novamente.",
}

// UserMessage returns the canonical localized message for a code.
func (c Code) UserMessage() string {
	if msg, ok := canonicalMessages[c]; ok {
		return msg
	}
	return canonicalMessages[CodeInternal]
}

// Valid reports whether the code belongs to the closed taxonomy.
func (c Code) Valid() bool {
	_, ok := canonicalMessages[c]
	return ok
}

// Coded is implemented by domain errors that carry their code explicitly,
// letting the classifier skip message matching entirely.
type Coded interface {
	error
	ErrorCode() Code
}

// CodedError is the minimal Coded implementation for collaborators that
// want to raise a pre-classified failure.
type CodedError struct {
	Code    Code
	Message string
}

func (e *CodedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *CodedError) ErrorCode() Code { return e.Code }

// NewCoded builds a CodedError with an optional message override.
func NewCoded(code Code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}
