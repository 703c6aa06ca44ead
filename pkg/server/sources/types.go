package sources

import (
	"context"
	"time"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
)

// AdapterType identifies an upstream integration.
type AdapterType string

const (
	AdapterTypeCoinpaprika AdapterType = "coinpaprika"
	AdapterTypeLotus       AdapterType = "lotus"
	AdapterTypeLily        AdapterType = "lily"
	AdapterTypeIPFS        AdapterType = "ipfs"
)

// Options carries everything a factory needs to build an adapter.
type Options struct {
	Name            string
	DefaultEndpoint string
	Dispatch        dispatcher.Policy
	MaxConcurrency  int
	Partial         envelope.PartialPolicy
	Verbose         bool
	// Overrides are operator overrides layered over the adapter's bundled table.
	Overrides resolver.Table
	// Config is the adapter specific section of the configuration.
	Config map[string]interface{}
	Logger *logging.Logger
}

// Adapter defines the interface that all adapters must implement
type Adapter interface {
	// Name returns the unique name of this adapter
	Name() string

	// Type returns the type of this adapter
	Type() AdapterType

	// Endpoints returns the endpoint names this adapter serves
	Endpoints() []string

	// DefaultEndpoint returns the endpoint used when a request names none
	DefaultEndpoint() string

	// Execute runs one job
	Execute(ctx context.Context, req validator.Request) *envelope.Envelope

	// IsHealthy returns whether recent jobs reached the upstream
	IsHealthy() bool

	// LastUpdate returns the time of the last successful job
	LastUpdate() time.Time

	// Close releases upstream connections
	Close() error
}

// Factory creates a new Adapter instance
type Factory func(opts Options) (Adapter, error)
