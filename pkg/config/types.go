package config

import "time"

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Adapters []AdapterConfig `yaml:"adapters"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the job server
type ServerConfig struct {
	HTTP           HTTPConfig `yaml:"http"`
	WebSocket      WSConfig   `yaml:"websocket"`
	RequestTimeout Duration   `yaml:"request_timeout"`
	// DefaultAdapter serves POST /. Defaults to the first enabled adapter.
	DefaultAdapter string `yaml:"default_adapter"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string    `yaml:"addr"`
	TLS  TLSConfig `yaml:"tls"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TLSConfig holds TLS certificate configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// AdapterConfig configures one adapter instance
type AdapterConfig struct {
	Type            string `yaml:"type"`
	Name            string `yaml:"name"`
	Enabled         bool   `yaml:"enabled"`
	DefaultEndpoint string `yaml:"default_endpoint"`
	Dispatch        string `yaml:"dispatch"` // fail_fast or best_effort
	Partial         string `yaml:"partial"`  // fail or omit
	MaxConcurrency  int    `yaml:"max_concurrency"`
	Verbose         bool   `yaml:"verbose"`
	// OverridesFile is a YAML file of {adapter: {SYMBOL: id}} tables.
	OverridesFile string                 `yaml:"overrides_file"`
	Overrides     map[string]string      `yaml:"overrides"`
	Config        map[string]interface{} `yaml:"config"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
