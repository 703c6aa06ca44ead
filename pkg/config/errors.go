// Package config provides configuration loading and validation for the adapter server.
package config

import "errors"

var (
	// ErrNoAdaptersConfigured indicates that no adapter is enabled.
	ErrNoAdaptersConfigured = errors.New("at least one adapter must be enabled")
	// ErrAdapterTypeRequired indicates that an adapter has no type.
	ErrAdapterTypeRequired = errors.New("adapter type is required")
	// ErrUnknownAdapterType indicates that the adapter type is unknown.
	ErrUnknownAdapterType = errors.New("unknown adapter type")
	// ErrDuplicateAdapterName indicates that two adapters share a name.
	ErrDuplicateAdapterName = errors.New("duplicate adapter name")
	// ErrUnknownDefaultAdapter indicates that default_adapter names no enabled adapter.
	ErrUnknownDefaultAdapter = errors.New("default_adapter is not an enabled adapter")
	// ErrInvalidConcurrency indicates a negative max_concurrency.
	ErrInvalidConcurrency = errors.New("max_concurrency must be >= 0")
	// ErrInvalidTimeout indicates a non-positive request timeout.
	ErrInvalidTimeout = errors.New("request_timeout must be positive")
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
