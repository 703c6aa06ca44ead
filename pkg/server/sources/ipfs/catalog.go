package ipfs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

const (
	ipnsPrefix = "/ipns/"
	ipfsPrefix = "/ipfs/"
)

type nameResolveResponse struct {
	Path string `json:"Path"`
}

// NewCatalog resolves IPNS names (symbols prefixed with /ipns/) through the node's
// name/resolve call. Every other symbol is taken to be a CID and maps to itself.
func NewCatalog(client *sources.HTTPClient, apiURL string) resolver.Catalog {
	return resolver.CatalogFunc(func(ctx context.Context, symbols []string) (map[string]string, error) {
		out := make(map[string]string, len(symbols))
		for _, symbol := range symbols {
			if !strings.HasPrefix(symbol, ipnsPrefix) {
				out[symbol] = symbol
				continue
			}

			var resp nameResolveResponse
			if err := client.PostJSON(ctx, apiURL+"/api/v0/name/resolve", url.Values{"arg": {symbol}}, &resp); err != nil {
				return nil, err
			}
			cid := strings.TrimPrefix(resp.Path, ipfsPrefix)
			if cid == "" || cid == resp.Path {
				return nil, fmt.Errorf("%w: %s -> %q", ErrUnresolvedName, symbol, resp.Path)
			}
			out[symbol] = cid
		}
		return out, nil
	})
}
