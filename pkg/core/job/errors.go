// Package job runs one request through validation, resolution, dispatch, extraction
// and envelope assembly.
package job

import "errors"

var (
	// ErrUnknownEndpoint indicates that the requested endpoint is not served by the adapter.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	// ErrNoEndpoints indicates that an adapter was built without endpoints.
	ErrNoEndpoints = errors.New("adapter has no endpoints")
	// ErrDuplicateEndpoint indicates that two endpoints claim the same name or alias.
	ErrDuplicateEndpoint = errors.New("duplicate endpoint name")
	// ErrIncompleteEndpoint indicates that an endpoint lacks a required hook.
	ErrIncompleteEndpoint = errors.New("endpoint is incomplete")
)
