// Package envelope builds the success and error documents returned for a job.
package envelope

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnknownPartialPolicy indicates that a partial-failure policy name is not recognized.
	ErrUnknownPartialPolicy = errors.New("unknown partial policy")
	// ErrPartialBatch indicates that a batch had failed items under the fail policy.
	ErrPartialBatch = errors.New("batch has failed items")
)

// Classified is implemented by errors that know their envelope status and kind.
type Classified interface {
	error
	StatusCode() int
	ErrorKind() string
}

// AdapterError is a generic classified error for callers without their own type.
type AdapterError struct {
	Kind    string
	Status  int
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error { return e.Cause }

// StatusCode returns the envelope status.
func (e *AdapterError) StatusCode() int { return e.Status }

// ErrorKind returns the failure class.
func (e *AdapterError) ErrorKind() string { return e.Kind }

// PartialBatchError reports failed items of a batch under the fail policy.
type PartialBatchError struct {
	Failed []ItemFailure
}

// ItemFailure is one failed batch item.
type ItemFailure struct {
	Index int
	Item  interface{}
	Err   error
}

func (e *PartialBatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("[%d] %v: %v", f.Index, f.Item, f.Err))
	}
	return fmt.Sprintf("%s: %s", ErrPartialBatch, strings.Join(parts, "; "))
}

func (e *PartialBatchError) Unwrap() []error {
	errs := []error{ErrPartialBatch}
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// StatusCode is the status of the first failed item.
func (e *PartialBatchError) StatusCode() int {
	if len(e.Failed) == 0 {
		return http.StatusInternalServerError
	}
	status, _ := Classify(e.Failed[0].Err)
	return status
}

// ErrorKind returns the failure class.
func (e *PartialBatchError) ErrorKind() string { return "PartialBatchError" }

// Classify returns the envelope status and kind for err. Errors that do not carry
// their own classification are internal errors, except context deadlines, which
// are ordinary upstream failures.
func Classify(err error) (int, string) {
	var c Classified
	if errors.As(err, &c) {
		status := c.StatusCode()
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, c.ErrorKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusBadGateway, "UpstreamError"
	}
	return http.StatusInternalServerError, "AdapterError"
}
