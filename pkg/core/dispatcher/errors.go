// Package dispatcher fans upstream calls out concurrently and restores input order.
package dispatcher

import (
	"errors"
	"fmt"
)

// ErrUnknownPolicy indicates that a policy name is not recognized.
var ErrUnknownPolicy = errors.New("unknown dispatch policy")

// ItemError ties a failed call to the input position it came from.
type ItemError struct {
	Index int
	ID    string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
