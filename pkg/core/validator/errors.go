// Package validator checks job input against a declarative parameter schema.
package validator

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingParam indicates that a required parameter is absent.
	ErrMissingParam = errors.New("missing required parameter")
	// ErrInvalidType indicates that a parameter has the wrong type.
	ErrInvalidType = errors.New("invalid parameter type")
	// ErrInvalidRequest indicates that the request body itself is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// ValidationError reports one rejected parameter.
type ValidationError struct {
	Param  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Param, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StatusCode reports the envelope status for rejected input.
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// ErrorKind names the failure class used in error envelopes.
func (e *ValidationError) ErrorKind() string { return "ValidationError" }
