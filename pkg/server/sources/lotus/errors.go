// Package lotus serves Filecoin wallet and miner state from a Lotus JSON-RPC node.
package lotus

import "errors"

var (
	// ErrInvalidBalance indicates that a node returned a balance that is not an integer.
	ErrInvalidBalance = errors.New("invalid balance")
	// ErrApproversRequired indicates that the msig endpoint has no approvers configured.
	ErrApproversRequired = errors.New("msig requires approvers")
)
