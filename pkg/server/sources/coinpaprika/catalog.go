package coinpaprika

import (
	"context"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

// Coin is one entry of the /v1/coins listing.
type Coin struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Rank     int    `json:"rank"`
	IsActive bool   `json:"is_active"`
	Type     string `json:"type"`
}

// Catalog resolves symbols against the coin listing.
type Catalog struct {
	client  *sources.HTTPClient
	baseURL string
}

// NewCatalog creates a catalog reading from baseURL.
func NewCatalog(client *sources.HTTPClient, baseURL string) *Catalog {
	return &Catalog{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Lookup fetches the coin listing once and picks an id for every requested symbol.
// Symbols with no listed coin are left out of the result.
func (c *Catalog) Lookup(ctx context.Context, symbols []string) (map[string]string, error) {
	var coins []Coin
	if err := c.client.DecodeJSON(ctx, c.baseURL+"/v1/coins", nil, &coins); err != nil {
		return nil, err
	}
	return MatchCoins(coins, symbols), nil
}

// MatchCoins picks, for each symbol, the best listed coin: active coins before inactive
// ones, then the lowest positive rank, then the first listed. Unranked coins (rank 0)
// sort after ranked ones.
func MatchCoins(coins []Coin, symbols []string) map[string]string {
	wanted := make(map[string]string, len(symbols))
	for _, s := range symbols {
		wanted[resolver.Fold(s)] = s
	}

	best := make(map[string]Coin, len(symbols))
	for _, coin := range coins {
		key := resolver.Fold(coin.Symbol)
		if _, ok := wanted[key]; !ok || coin.ID == "" {
			continue
		}
		current, seen := best[key]
		if !seen || better(coin, current) {
			best[key] = coin
		}
	}

	out := make(map[string]string, len(best))
	for key, coin := range best {
		out[wanted[key]] = coin.ID
	}
	return out
}

func better(a, b Coin) bool {
	if a.IsActive != b.IsActive {
		return a.IsActive
	}
	return rankKey(a.Rank) < rankKey(b.Rank)
}

func rankKey(rank int) int {
	if rank <= 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}

var _ resolver.Catalog = (*Catalog)(nil)
