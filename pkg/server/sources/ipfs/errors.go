// Package ipfs reads numbers out of IPFS content through a node's HTTP API.
package ipfs

import "errors"

var (
	// ErrMissingTarget indicates that a request names neither a CID nor an IPNS name.
	ErrMissingTarget = errors.New("one of cid or ipns is required")
	// ErrUnknownType indicates a read type other than raw or dag.
	ErrUnknownType = errors.New("unknown read type")
	// ErrUnknownCodec indicates a raw codec the adapter cannot decode.
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrUnresolvedName indicates that the node returned no IPFS path for an IPNS name.
	ErrUnresolvedName = errors.New("IPNS name did not resolve to an IPFS path")
)
