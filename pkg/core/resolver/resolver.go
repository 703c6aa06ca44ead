package resolver

import (
	"context"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/logging"
	"github.com/StrathCole/external-adapter-go/pkg/metrics"
)

// Tier identifies which layer resolved a symbol.
type Tier int

const (
	// TierRequest is the caller-supplied override table.
	TierRequest Tier = iota + 1
	// TierStatic is the override table bundled with the adapter.
	TierStatic
	// TierCatalog is the remote catalog lookup.
	TierCatalog
)

func (t Tier) String() string {
	switch t {
	case TierRequest:
		return "request"
	case TierStatic:
		return "static"
	case TierCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// Catalog looks up canonical ids for symbols the override tables do not know.
// The returned map may omit symbols the catalog does not recognize.
type Catalog interface {
	Lookup(ctx context.Context, symbols []string) (map[string]string, error)
}

// CatalogFunc adapts a function to the Catalog interface.
type CatalogFunc func(ctx context.Context, symbols []string) (map[string]string, error)

// Lookup calls f.
func (f CatalogFunc) Lookup(ctx context.Context, symbols []string) (map[string]string, error) {
	return f(ctx, symbols)
}

// IdentityCatalog resolves every symbol to itself. Used where caller input is
// already the upstream identifier (wallet addresses, contract ids).
var IdentityCatalog = CatalogFunc(func(_ context.Context, symbols []string) (map[string]string, error) {
	out := make(map[string]string, len(symbols))
	for _, s := range symbols {
		out[s] = strings.TrimSpace(s)
	}
	return out, nil
})

// Resolution is the resolved id for the symbol at Index in the input.
type Resolution struct {
	Index  int
	Symbol string
	ID     string
	Tier   Tier
}

// Resolver resolves symbols through request overrides, static overrides and a catalog,
// in that order. A Resolver holds no per-request state and may be shared.
type Resolver struct {
	adapter string
	static  Table
	catalog Catalog
	logger  *logging.Logger
}

// New creates a resolver. catalog may be nil, in which case the third tier is empty.
func New(adapter string, static Table, catalog Catalog, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Resolver{
		adapter: adapter,
		static:  static,
		catalog: catalog,
		logger:  logger,
	}
}

// Resolve maps every symbol to a canonical id. It fails with *ResolutionError if any
// symbol is unknown to all tiers, and with *CatalogError if the catalog call fails.
// The result has one entry per input symbol, in input order.
func (r *Resolver) Resolve(ctx context.Context, symbols []string, request Table) ([]Resolution, error) {
	out := make([]Resolution, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var pending []int
	for i, symbol := range symbols {
		out[i] = Resolution{Index: i, Symbol: symbol}
		if id, ok := request.Lookup(symbol); ok {
			out[i].ID, out[i].Tier = id, TierRequest
			continue
		}
		if id, ok := r.static.Lookup(symbol); ok {
			out[i].ID, out[i].Tier = id, TierStatic
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		found, err := r.lookupCatalog(ctx, symbols, pending)
		if err != nil {
			return nil, err
		}
		var unresolved []string
		seen := make(map[string]bool)
		for _, i := range pending {
			key := Fold(symbols[i])
			if id, ok := found[key]; ok {
				out[i].ID, out[i].Tier = id, TierCatalog
				continue
			}
			if !seen[key] {
				seen[key] = true
				unresolved = append(unresolved, symbols[i])
			}
		}
		if len(unresolved) > 0 {
			r.logger.Debug("Unresolved symbols", "adapter", r.adapter, "symbols", unresolved)
			return nil, &ResolutionError{Symbols: unresolved}
		}
	}

	for _, res := range out {
		metrics.RecordResolution(r.adapter, res.Tier.String())
	}
	return out, nil
}

// lookupCatalog queries the catalog once for the distinct pending symbols and returns
// its answers keyed by folded symbol.
func (r *Resolver) lookupCatalog(ctx context.Context, symbols []string, pending []int) (map[string]string, error) {
	if r.catalog == nil {
		return nil, nil
	}

	distinct := make([]string, 0, len(pending))
	seen := make(map[string]bool, len(pending))
	for _, i := range pending {
		key := Fold(symbols[i])
		if seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, symbols[i])
	}

	r.logger.Debug("Catalog lookup", "adapter", r.adapter, "symbols", distinct)
	ids, err := r.catalog.Lookup(ctx, distinct)
	metrics.RecordCatalogLookup(r.adapter, err == nil)
	if err != nil {
		return nil, &CatalogError{Err: err}
	}

	found := make(map[string]string, len(ids))
	for symbol, id := range ids {
		key := Fold(symbol)
		if !seen[key] || strings.TrimSpace(id) == "" {
			continue
		}
		found[key] = id
	}
	return found, nil
}
