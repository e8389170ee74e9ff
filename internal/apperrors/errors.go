package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind on the wire. Codes are part of the API
// contract: clients branch on them, so they never change meaning.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodePredictionNotOpen   Code = "PREDICTION_NOT_OPEN"
	CodePredictionLocked    Code = "PREDICTION_LOCKED"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeZeroPoolSettlement  Code = "ZERO_POOL_SETTLEMENT"
	CodeUpstream            Code = "UPSTREAM_ERROR"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is the single error shape the service surfaces. Details carries
// machine-readable context (current status, available balance) the UI needs.
type Error struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the error code to its response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodePredictionNotOpen, CodePredictionLocked, CodeInvalidTransition, CodeZeroPoolSettlement:
		return http.StatusConflict
	case CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns the error with one detail key set.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// From extracts an *Error from err, wrapping unknown errors as INTERNAL_ERROR
// so handlers never leak raw database or transport messages.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(CodeInternal, "internal error")
}

// Is lets errors.Is match on code identity.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}
