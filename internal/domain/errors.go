package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in handlers.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// InvalidInputError indicates a malformed or over-limit chat request
	InvalidInputError struct {
		Message string
	}

	// InvalidModelError indicates a model identifier outside the allow-list
	InvalidModelError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// UpstreamRateLimitedError indicates the model gateway returned 429
	UpstreamRateLimitedError struct {
		Message string
	}

	// UpstreamPaymentRequiredError indicates the model gateway returned 402
	UpstreamPaymentRequiredError struct {
		Message string
	}

	// UpstreamError indicates a non-transient gateway failure after retries
	UpstreamError struct {
		Message string
	}
)

func (e *InvalidInputError) Error() string            { return e.Message }
func (e *InvalidModelError) Error() string            { return e.Message }
func (e *UnauthorizedError) Error() string            { return e.Message }
func (e *UpstreamRateLimitedError) Error() string     { return e.Message }
func (e *UpstreamPaymentRequiredError) Error() string { return e.Message }
func (e *UpstreamError) Error() string                { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *InvalidInputError) StatusCode() int            { return http.StatusBadRequest }
func (e *InvalidModelError) StatusCode() int            { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int            { return http.StatusUnauthorized }
func (e *UpstreamRateLimitedError) StatusCode() int     { return http.StatusTooManyRequests }
func (e *UpstreamPaymentRequiredError) StatusCode() int { return http.StatusPaymentRequired }
func (e *UpstreamError) StatusCode() int                { return http.StatusInternalServerError }

// Is implementations so errors.Is() matches the sentinels below
func (e *InvalidInputError) Is(target error) bool        { return target == ErrInvalidInput }
func (e *InvalidModelError) Is(target error) bool        { return target == ErrInvalidModel }
func (e *UnauthorizedError) Is(target error) bool        { return target == ErrUnauthorized }
func (e *UpstreamRateLimitedError) Is(target error) bool { return target == ErrUpstreamRateLimited }
func (e *UpstreamPaymentRequiredError) Is(target error) bool {
	return target == ErrUpstreamPaymentRequired
}
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Sentinel errors - use with errors.Is()
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidModel            = errors.New("invalid model")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrUpstreamRateLimited     = errors.New("upstream rate limited")
	ErrUpstreamPaymentRequired = errors.New("upstream payment required")
	ErrUpstream                = errors.New("upstream error")
	ErrNotFound                = errors.New("not found")

	// ErrToolExecution marks a tool failure. It never aborts a dispatch cycle;
	// the failing tool's result degrades into an apologetic message instead.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrStreamTransport marks a mid-stream transport failure. Partial content
	// already delivered to the client is retained, not discarded.
	ErrStreamTransport = errors.New("stream transport error")

	// ErrContinuationExhausted is informational: the best-effort artifact is
	// still delivered, flagged wasContinued.
	ErrContinuationExhausted = errors.New("continuation limit reached")
)

// NotFoundError indicates a resource was not found
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string        { return e.Message }
func (e *NotFoundError) StatusCode() int      { return http.StatusNotFound }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
