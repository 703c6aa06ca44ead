package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Enabled && cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = ":8081"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(30 * time.Second)
	}

	for i := range cfg.Adapters {
		a := &cfg.Adapters[i]
		a.Type = strings.ToLower(strings.TrimSpace(a.Type))
		if a.Name == "" {
			a.Name = a.Type
		}
		if a.Dispatch == "" {
			a.Dispatch = dispatcher.FailFast.String()
		}
		if a.Partial == "" {
			a.Partial = envelope.PartialFail.String()
		}
	}
	if cfg.Server.DefaultAdapter == "" {
		if enabled := cfg.EnabledAdapters(); len(enabled) > 0 {
			cfg.Server.DefaultAdapter = enabled[0].Name
		}
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// EnabledAdapters returns the enabled adapters in configuration order.
func (c *Config) EnabledAdapters() []AdapterConfig {
	out := make([]AdapterConfig, 0, len(c.Adapters))
	for _, a := range c.Adapters {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// Adapter returns the enabled adapter with the given name.
func (c *Config) Adapter(name string) (AdapterConfig, bool) {
	for _, a := range c.EnabledAdapters() {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return AdapterConfig{}, false
}

// OverrideTable loads overrides_file for this adapter's type and layers the
// inline overrides over it.
func (a AdapterConfig) OverrideTable() (resolver.Table, error) {
	table := resolver.Table{}
	if a.OverridesFile != "" {
		file, err := resolver.LoadOverrideFile(a.OverridesFile)
		if err != nil {
			return resolver.Table{}, fmt.Errorf("adapter %s: %w", a.Name, err)
		}
		table = file.Table(a.Type)
	}
	return table.Merge(resolver.NewTable(a.Overrides)), nil
}

// Options converts the adapter section into factory options.
func (a AdapterConfig) Options(logger *logging.Logger) (sources.Options, error) {
	policy, err := dispatcher.ParsePolicy(a.Dispatch)
	if err != nil {
		return sources.Options{}, fmt.Errorf("adapter %s: %w", a.Name, err)
	}
	partial, err := envelope.ParsePartialPolicy(a.Partial)
	if err != nil {
		return sources.Options{}, fmt.Errorf("adapter %s: %w", a.Name, err)
	}
	overrides, err := a.OverrideTable()
	if err != nil {
		return sources.Options{}, err
	}

	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	config := a.Config
	if config == nil {
		config = map[string]interface{}{}
	}

	return sources.Options{
		Name:            a.Name,
		DefaultEndpoint: a.DefaultEndpoint,
		Dispatch:        policy,
		MaxConcurrency:  a.MaxConcurrency,
		Partial:         partial,
		Verbose:         a.Verbose,
		Overrides:       overrides,
		Config:          config,
		Logger:          logger.With("adapter", a.Name),
	}, nil
}
