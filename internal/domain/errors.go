package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrEmptyInput   = errors.New("Cannot process empty input.")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (thread, message)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Stable machine-readable codes surfaced to clients.
const (
	CodeUpstreamModelFailure = "UPSTREAM_MODEL_FAILURE"
	CodeStreamStalled        = "STREAM_STALLED"
	CodeWorkflowUnavailable  = "WORKFLOW_UNAVAILABLE"
	CodeWorkflowRejected     = "WORKFLOW_REJECTED"
	CodeWorkflowTimeout      = "WORKFLOW_TIMEOUT"
	CodeWorkflowBadResponse  = "WORKFLOW_BAD_RESPONSE"
	CodeWorkflowNotConfig    = "WORKFLOW_NOT_CONFIGURED"
)

// WorkflowError is a submission failure against the external document workflow.
// It is never retried by the caller.
type WorkflowError struct {
	Message string
	Code    string
	Err     error
}

func (e *WorkflowError) Error() string { return e.Message }

func (e *WorkflowError) Unwrap() error { return e.Err }

func (e *WorkflowError) StatusCode() int {
	if e.Code == CodeWorkflowTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// UpstreamError wraps a failed generation call to a language model provider.
type UpstreamError struct {
	Provider string
	Code     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "upstream model failure"
	}
	return "upstream model failure: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) StatusCode() int { return http.StatusBadGateway }

// ErrorCode returns the machine-readable code carried by err, if any.
func ErrorCode(err error) string {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Code
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Code != "" {
			return upErr.Code
		}
		return CodeUpstreamModelFailure
	}
	return ""
}
