// Package apperr defines the error taxonomy shared by every layer of the service.
//
// Domain code returns *Error values with a stable Code. The HTTP layer maps the
// code to a status and renders the message and details to the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeTenantIsolation   Code = "TENANT_ISOLATION_VIOLATION"
	CodeContextMissing    Code = "CONTEXT_MISSING"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeAlreadyConsumed   Code = "ALREADY_CONSUMED"
	CodeRateLimited       Code = "RATE_LIMIT_EXCEEDED"
	CodeTransient         Code = "TRANSIENT"
	CodeInternal          Code = "INTERNAL_ERROR"
)

type Error struct {
	Code       Code
	Message    string
	Details    map[string]any
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf reports the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeTenantIsolation:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeInsufficientStock, CodeConflict, CodeAlreadyConsumed:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Unauthorized(msg string) *Error { return New(CodeUnauthorized, msg) }

func Forbidden(required, actualRole string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: "insufficient permissions",
		Details: map[string]any{"required": required, "actual_role": actualRole},
	}
}

func TenantIsolation(msg string) *Error { return New(CodeTenantIsolation, msg) }

func ContextMissing() *Error {
	return New(CodeContextMissing, "request context is not bound")
}

func Validation(msg string) *Error { return New(CodeValidation, msg) }

func NotFound(msg string) *Error { return New(CodeNotFound, msg) }

func Conflict(msg string) *Error { return New(CodeConflict, msg) }

func InsufficientStock(productID, available, requested int64) *Error {
	return &Error{
		Code:    CodeInsufficientStock,
		Message: "insufficient stock",
		Details: map[string]any{
			"product_id": productID,
			"available":  available,
			"requested":  requested,
		},
	}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Code: CodeRateLimited, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

func Transient(msg string, err error) *Error {
	return &Error{Code: CodeTransient, Message: msg, Err: err, RetryAfter: time.Second}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal server error", Err: err}
}
