package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_CaseInsensitive(t *testing.T) {
	table := NewTable(map[string]string{"Btc": "btc-bitcoin", "EMPTY": " "})

	id, ok := table.Lookup("bTC")
	assert.True(t, ok)
	assert.Equal(t, "btc-bitcoin", id)

	_, ok = table.Lookup("EMPTY")
	assert.False(t, ok, "blank ids are dropped")
	assert.Equal(t, 1, table.Len())

	var zero Table
	_, ok = zero.Lookup("BTC")
	assert.False(t, ok)
}

func TestTable_Merge(t *testing.T) {
	base := NewTable(map[string]string{"BTC": "btc-bitcoin", "ETH": "eth-ethereum"})
	merged := base.Merge(NewTable(map[string]string{"eth": "eth-custom"}))

	id, _ := merged.Lookup("ETH")
	assert.Equal(t, "eth-custom", id)
	id, _ = merged.Lookup("BTC")
	assert.Equal(t, "btc-bitcoin", id)

	id, _ = base.Lookup("ETH")
	assert.Equal(t, "eth-ethereum", id, "merge must not mutate the receiver")
}

func TestOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coinpaprika:\n  BTC: btc-bitcoin\n  UNI: uni-uniswap\nlotus:\n  main: f01234\n"), 0o600))

	file, err := LoadOverrideFile(path)
	require.NoError(t, err)

	table := file.Table("CoinPaprika")
	assert.Equal(t, 2, table.Len())
	id, ok := table.Lookup("uni")
	assert.True(t, ok)
	assert.Equal(t, "uni-uniswap", id)

	assert.Equal(t, 0, file.Table("unknown").Len())

	_, err = LoadOverrideFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRequestOverrides(t *testing.T) {
	tests := []struct {
		name    string
		raw     interface{}
		lookup  string
		want    string
		wantErr bool
	}{
		{
			name:   "flat form",
			raw:    map[string]interface{}{"BASE": "canon-1"},
			lookup: "base",
			want:   "canon-1",
		},
		{
			name: "nested by adapter",
			raw: map[string]interface{}{
				"coinpaprika": map[string]interface{}{"ETH": "eth-ethereum"},
				"coingecko":   map[string]interface{}{"ETH": "ethereum"},
			},
			lookup: "ETH",
			want:   "eth-ethereum",
		},
		{
			name: "nested for another adapter only",
			raw: map[string]interface{}{
				"coingecko": map[string]interface{}{"ETH": "ethereum"},
			},
			lookup: "ETH",
		},
		{
			name: "nil overrides",
			raw:  nil,
		},
		{
			name:    "not an object",
			raw:     "BTC=btc",
			wantErr: true,
		},
		{
			name:    "non-string id",
			raw:     map[string]interface{}{"BTC": 1.0},
			wantErr: true,
		},
		{
			name:    "adapter entry not an object",
			raw:     map[string]interface{}{"coinpaprika": "btc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseRequestOverrides(tt.raw, "coinpaprika")
			if tt.wantErr {
				require.Error(t, err)
				var ovErr *OverridesError
				assert.True(t, errors.As(err, &ovErr))
				assert.Equal(t, 400, ovErr.StatusCode())
				return
			}
			require.NoError(t, err)
			id, ok := table.Lookup(tt.lookup)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}
