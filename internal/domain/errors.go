package domain

import "fmt"

type ErrCode string

const (
	CodeValidation        ErrCode = "VALIDATION"
	CodeNotFound          ErrCode = "NOT_FOUND"
	CodeConflict          ErrCode = "CONFLICT"
	CodeUnauthorized      ErrCode = "UNAUTHORIZED"
	CodeForbidden         ErrCode = "FORBIDDEN"
	CodeInvalidTransition ErrCode = "INVALID_STATUS_TRANSITION"
	CodeRateLimited       ErrCode = "RATE_LIMITED"
	CodeUnavailable       ErrCode = "SERVICE_UNAVAILABLE"
	CodeTransient         ErrCode = "TRANSIENT"
	CodePermanent         ErrCode = "PERMANENT"
	CodeInternal          ErrCode = "INTERNAL"
)

// AppError is the typed error carried across the core. Codes are stable;
// the HTTP edge maps them to status codes, the consumer side uses them to
// decide retryability.
type AppError struct {
	Code    ErrCode
	Message string

	// FieldErrors carries per-field validation messages (VALIDATION only).
	FieldErrors map[string]string

	// RetryAfterSeconds is set for RATE_LIMITED.
	RetryAfterSeconds int

	Err error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }

func ErrValidationFields(msg string, fields map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, FieldErrors: fields}
}

func ErrNotFound(msg string) error  { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) error  { return &AppError{Code: CodeConflict, Message: msg} }
func ErrForbidden(msg string) error { return &AppError{Code: CodeForbidden, Message: msg} }

func ErrUnauthorized(msg string) error { return &AppError{Code: CodeUnauthorized, Message: msg} }

func ErrInvalidTransition(msg string) error {
	return &AppError{Code: CodeInvalidTransition, Message: msg}
}

func ErrRateLimited(msg string, retryAfterSeconds int) error {
	return &AppError{Code: CodeRateLimited, Message: msg, RetryAfterSeconds: retryAfterSeconds}
}

func ErrUnavailable(msg string) error { return &AppError{Code: CodeUnavailable, Message: msg} }

func ErrTransient(msg string, err error) error {
	return &AppError{Code: CodeTransient, Message: msg, Err: err}
}

func ErrPermanent(msg string, err error) error {
	return &AppError{Code: CodePermanent, Message: msg, Err: err}
}

func ErrInternal(msg string, err error) error {
	return &AppError{Code: CodeInternal, Message: msg, Err: err}
}

// IsRetryable reports whether a consumer-side failure should be routed to
// the retry pipeline. Unknown errors count as retryable so that nothing is
// silently dropped; PERMANENT and validation-class failures dead-letter
// immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	ae, ok := err.(*AppError)
	if !ok {
		return true
	}
	switch ae.Code {
	case CodeTransient, CodeUnavailable, CodeInternal:
		return true
	case CodePermanent, CodeValidation, CodeNotFound, CodeConflict, CodeInvalidTransition:
		return false
	}
	return false
}
