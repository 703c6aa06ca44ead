package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
)

const sample = `
server:
  http:
    addr: ":9000"
  websocket:
    enabled: true
adapters:
  - type: Coinpaprika
    enabled: true
    dispatch: best_effort
    partial: omit
    overrides:
      FOO: foo-token
    config:
      api_key: ${TEST_PAPRIKA_KEY}
  - type: lotus
    name: lotus-main
    enabled: false
metrics:
  enabled: true
`

func TestParse_Defaults(t *testing.T) {
	t.Setenv("TEST_PAPRIKA_KEY", "k-123")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, ":9000", cfg.Server.HTTP.Addr)
	assert.Equal(t, ":8081", cfg.Server.WebSocket.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout.ToDuration())
	assert.Equal(t, "coinpaprika", cfg.Server.DefaultAdapter)
	assert.Equal(t, ":9091", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	enabled := cfg.EnabledAdapters()
	require.Len(t, enabled, 1)
	assert.Equal(t, "coinpaprika", enabled[0].Type)
	assert.Equal(t, "k-123", enabled[0].Config["api_key"])

	lotus := cfg.Adapters[1]
	assert.Equal(t, "lotus-main", lotus.Name)
	assert.Equal(t, "fail_fast", lotus.Dispatch)
	assert.Equal(t, "fail", lotus.Partial)
}

func TestAdapterConfig_Options(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coinpaprika:\n  FOO: from-file\n  BAR: bar-token\nlotus:\n  BAZ: ignored\n"), 0o600))

	a := AdapterConfig{
		Type:           "coinpaprika",
		Name:           "paprika",
		Dispatch:       "best_effort",
		Partial:        "omit",
		MaxConcurrency: 4,
		OverridesFile:  path,
		Overrides:      map[string]string{"foo": "inline"},
	}

	opts, err := a.Options(nil)
	require.NoError(t, err)
	assert.Equal(t, "paprika", opts.Name)
	assert.Equal(t, dispatcher.BestEffort, opts.Dispatch)
	assert.Equal(t, envelope.PartialOmit, opts.Partial)
	assert.Equal(t, 4, opts.MaxConcurrency)
	assert.NotNil(t, opts.Config)
	assert.NotNil(t, opts.Logger)

	id, ok := opts.Overrides.Lookup("FOO")
	assert.True(t, ok)
	assert.Equal(t, "inline", id)
	id, ok = opts.Overrides.Lookup("bar")
	assert.True(t, ok)
	assert.Equal(t, "bar-token", id)
	_, ok = opts.Overrides.Lookup("BAZ")
	assert.False(t, ok)
}

func TestAdapterConfig_OptionsErrors(t *testing.T) {
	_, err := AdapterConfig{Name: "x", Dispatch: "sometimes", Partial: "fail"}.Options(nil)
	assert.ErrorIs(t, err, dispatcher.ErrUnknownPolicy)

	_, err = AdapterConfig{Name: "x", Dispatch: "fail_fast", Partial: "drop"}.Options(nil)
	assert.ErrorIs(t, err, envelope.ErrUnknownPartialPolicy)

	_, err = AdapterConfig{Name: "x", Dispatch: "fail_fast", Partial: "fail", OverridesFile: "/does/not/exist.yaml"}.Options(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Adapters: []AdapterConfig{{Type: "lotus", Enabled: true}}}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"no adapters", func(c *Config) { c.Adapters[0].Enabled = false }, ErrNoAdaptersConfigured},
		{"unknown type", func(c *Config) { c.Adapters[0].Type = "kraken" }, ErrUnknownAdapterType},
		{"missing type", func(c *Config) { c.Adapters[0].Type = "" }, ErrAdapterTypeRequired},
		{"bad dispatch", func(c *Config) { c.Adapters[0].Dispatch = "maybe" }, dispatcher.ErrUnknownPolicy},
		{"bad partial", func(c *Config) { c.Adapters[0].Partial = "drop" }, envelope.ErrUnknownPartialPolicy},
		{"negative concurrency", func(c *Config) { c.Adapters[0].MaxConcurrency = -1 }, ErrInvalidConcurrency},
		{"duplicate names", func(c *Config) {
			c.Adapters = append(c.Adapters, AdapterConfig{Type: "lily", Name: "LOTUS", Enabled: true, Dispatch: "fail_fast", Partial: "fail"})
		}, ErrDuplicateAdapterName},
		{"unknown default", func(c *Config) { c.Server.DefaultAdapter = "lily" }, ErrUnknownDefaultAdapter},
		{"bad timeout", func(c *Config) { c.Server.RequestTimeout = Duration(-time.Second) }, ErrInvalidTimeout},
		{"tls without cert", func(c *Config) { c.Server.HTTP.TLS.Enabled = true }, ErrTLSConfigIncomplete},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server:\n  request_timeout: soon\n"))
	assert.Error(t, err)
}
