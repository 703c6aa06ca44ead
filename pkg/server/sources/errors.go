// Package sources holds the adapter registry and the upstream transports shared by adapters.
package sources

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnknownAdapter indicates that no factory is registered for an adapter type.
	ErrUnknownAdapter = errors.New("unknown adapter type")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that the local rate limiter rejected a request.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidResponse indicates an invalid response from the upstream.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrRPCError indicates that a JSON-RPC call returned an error object.
	ErrRPCError = errors.New("JSON-RPC error")
	// ErrInvalidConfig indicates that the adapter configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrRPCURLRequired indicates that rpc_url is required.
	ErrRPCURLRequired = errors.New("rpc_url is required")
	// ErrDatabaseURLRequired indicates that database_url is required.
	ErrDatabaseURLRequired = errors.New("database_url is required")
	// ErrAdapterClosed indicates that the adapter has been shut down.
	ErrAdapterClosed = errors.New("adapter closed")
)

// UpstreamError is a failed upstream exchange. Status is the upstream HTTP status when
// one was received.
type UpstreamError struct {
	Source string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StatusCode passes upstream 4xx/5xx statuses through and reports everything else as 502.
func (e *UpstreamError) StatusCode() int {
	if e.Status >= http.StatusBadRequest && e.Status <= 599 {
		return e.Status
	}
	return http.StatusBadGateway
}

// ErrorKind names the failure class used in error envelopes.
func (e *UpstreamError) ErrorKind() string { return "UpstreamError" }
