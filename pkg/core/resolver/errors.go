// Package resolver maps caller symbols to upstream identifiers.
package resolver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnresolved indicates that symbols survived every resolution tier.
	ErrUnresolved = errors.New("could not resolve symbols")
	// ErrCatalogLookup indicates that the remote catalog could not be queried.
	ErrCatalogLookup = errors.New("catalog lookup failed")
	// ErrInvalidOverrides indicates that an overrides value has the wrong shape.
	ErrInvalidOverrides = errors.New("invalid overrides")
)

// ResolutionError names every symbol that could not be resolved.
type ResolutionError struct {
	Symbols []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnresolved, strings.Join(e.Symbols, ", "))
}

func (e *ResolutionError) Unwrap() error { return ErrUnresolved }

// StatusCode reports the envelope status for resolution failures.
func (e *ResolutionError) StatusCode() int { return http.StatusBadRequest }

// ErrorKind names the failure class used in error envelopes.
func (e *ResolutionError) ErrorKind() string { return "ResolutionError" }

// CatalogError wraps a failed remote catalog lookup.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCatalogLookup, e.Err)
}

func (e *CatalogError) Unwrap() []error { return []error{ErrCatalogLookup, e.Err} }

// StatusCode reports the envelope status for catalog failures.
func (e *CatalogError) StatusCode() int { return http.StatusBadGateway }

// ErrorKind names the failure class used in error envelopes.
func (e *CatalogError) ErrorKind() string { return "UpstreamError" }

// OverridesError is returned when caller-supplied overrides cannot be parsed.
type OverridesError struct {
	Reason string
}

func (e *OverridesError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidOverrides, e.Reason)
}

func (e *OverridesError) Unwrap() error { return ErrInvalidOverrides }

// StatusCode reports the envelope status for malformed overrides.
func (e *OverridesError) StatusCode() int { return http.StatusBadRequest }

// ErrorKind names the failure class used in error envelopes.
func (e *OverridesError) ErrorKind() string { return "ValidationError" }
