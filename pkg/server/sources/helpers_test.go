package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
)

func TestConfigGetters(t *testing.T) {
	config := map[string]interface{}{
		"base_url":   " https://api.example.com ",
		"rate_limit": 2.5,
		"burst":      4,
		"yaml_int64": int64(7),
		"blank":      "  ",
		"timeout":    "15s",
	}

	assert.Equal(t, "https://api.example.com", GetString(config, "base_url", "x"))
	assert.Equal(t, "fallback", GetString(config, "blank", "fallback"))
	assert.Equal(t, "fallback", GetString(config, "missing", "fallback"))
	assert.Equal(t, 4, GetInt(config, "burst", 1))
	assert.Equal(t, 7, GetInt(config, "yaml_int64", 1))
	assert.Equal(t, 9, GetInt(config, "missing", 9))
	assert.Equal(t, 2.5, GetFloat(config, "rate_limit", 0))
	assert.Equal(t, 4.0, GetFloat(config, "burst", 0))

	d, err := GetDuration(config, "timeout", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)

	d, err = GetDuration(config, "missing", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestGetDuration_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
	}{
		{"not a string", map[string]interface{}{"timeout": 10}},
		{"unparseable", map[string]interface{}{"timeout": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetDuration(tt.config, "timeout", time.Second)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestGetStringMap(t *testing.T) {
	m, err := GetStringMap(map[string]interface{}{
		"ids": map[string]interface{}{"BTC": "btc-bitcoin"},
	}, "ids")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"BTC": "btc-bitcoin"}, m)

	m, err = GetStringMap(map[string]interface{}{}, "ids")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = GetStringMap(map[string]interface{}{"ids": []interface{}{"BTC"}}, "ids")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = GetStringMap(map[string]interface{}{"ids": map[string]interface{}{"BTC": 1}}, "ids")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStaticTable_OperatorWins(t *testing.T) {
	bundled := resolver.OverrideFile{
		"coinpaprika": {"BTC": "btc-bitcoin", "ETH": "eth-ethereum"},
	}
	operator := resolver.NewTable(map[string]string{"eth": "eth-custom"})

	table := StaticTable(bundled, "CoinPaprika", operator)

	id, ok := table.Lookup("BTC")
	require.True(t, ok)
	assert.Equal(t, "btc-bitcoin", id)

	id, ok = table.Lookup("ETH")
	require.True(t, ok)
	assert.Equal(t, "eth-custom", id)
}

func TestGetStringSlice(t *testing.T) {
	got, err := GetStringSlice(map[string]interface{}{"approvers": []interface{}{"f01", "f02"}}, "approvers")
	require.NoError(t, err)
	assert.Equal(t, []string{"f01", "f02"}, got)

	got, err = GetStringSlice(map[string]interface{}{}, "approvers")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = GetStringSlice(map[string]interface{}{"approvers": "f01"}, "approvers")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = GetStringSlice(map[string]interface{}{"approvers": []interface{}{1}}, "approvers")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
