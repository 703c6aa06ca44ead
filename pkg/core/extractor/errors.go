// Package extractor walks decoded response documents and coerces leaves to numbers.
package extractor

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPathMissing indicates that a path segment does not exist in the document.
	ErrPathMissing = errors.New("path missing")
	// ErrNotNumeric indicates that the value at the path is not a finite number.
	ErrNotNumeric = errors.New("value not numeric")
	// ErrInvalidPath indicates that a path definition could not be parsed.
	ErrInvalidPath = errors.New("invalid path")
)

// Kind tags the outcome of a lookup.
type Kind int

const (
	// Found means the leaf was present and numeric.
	Found Kind = iota
	// PathMissing means some segment was absent.
	PathMissing
	// NotNumeric means the leaf was present but not a finite number.
	NotNumeric
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "Found"
	case PathMissing:
		return "PathMissing"
	case NotNumeric:
		return "NotNumeric"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned when a document does not yield a number at the requested path.
type Error struct {
	Kind Kind
	Path Path
	// Segment is the first missing segment for PathMissing.
	Segment Segment
	// Value is the offending leaf for NotNumeric.
	Value interface{}
}

func (e *Error) Error() string {
	if e.Kind == PathMissing {
		return fmt.Sprintf("%s: segment %s of %s", ErrPathMissing, e.Segment, e.Path)
	}
	return fmt.Sprintf("%s: %s holds %T %v", ErrNotNumeric, e.Path, e.Value, e.Value)
}

// Unwrap maps the error to its sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	if e.Kind == PathMissing {
		return ErrPathMissing
	}
	return ErrNotNumeric
}

// StatusCode reports the envelope status for extraction failures.
func (e *Error) StatusCode() int { return http.StatusBadGateway }

// ErrorKind names the failure class used in error envelopes.
func (e *Error) ErrorKind() string { return "ExtractionError" }
