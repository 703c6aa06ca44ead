// Package coinpaprika serves market data from the Coinpaprika REST API.
package coinpaprika

import "errors"

var (
	// ErrCoinMismatch indicates that the ticker returned is not the coin requested.
	ErrCoinMismatch = errors.New("ticker does not match requested coin")
	// ErrInvalidQuote indicates that the quote currency is not a plain symbol.
	ErrInvalidQuote = errors.New("invalid quote currency")
)
