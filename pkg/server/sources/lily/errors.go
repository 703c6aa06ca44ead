// Package lily reports Filecoin Send messages that carry an Ethereum address,
// read from a Lily parsed_messages table and confirmed against a Lotus node.
package lily

import "errors"

var (
	// ErrDatabaseUnavailable indicates that the message store could not be queried.
	ErrDatabaseUnavailable = errors.New("message store unavailable")
	// ErrInvalidHeight indicates an unusable start height or chain head.
	ErrInvalidHeight = errors.New("invalid height")
	// ErrInvalidValue indicates a stored message value that is not an integer.
	ErrInvalidValue = errors.New("invalid message value")
)
