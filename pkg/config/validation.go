package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

var knownAdapterTypes = []sources.AdapterType{
	sources.AdapterTypeCoinpaprika,
	sources.AdapterTypeLotus,
	sources.AdapterTypeLily,
	sources.AdapterTypeIPFS,
}

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	enabled := cfg.EnabledAdapters()
	if len(enabled) == 0 {
		return ErrNoAdaptersConfigured
	}
	names := make(map[string]bool, len(enabled))
	for i, a := range enabled {
		if err := validateAdapterConfig(&a); err != nil {
			return fmt.Errorf("adapter %d (%s.%s): %w", i, a.Type, a.Name, err)
		}
		key := strings.ToLower(a.Name)
		if names[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateAdapterName, a.Name)
		}
		names[key] = true
	}
	if _, ok := cfg.Adapter(cfg.Server.DefaultAdapter); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDefaultAdapter, cfg.Server.DefaultAdapter)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.RequestTimeout.ToDuration() <= 0 {
		return ErrInvalidTimeout
	}

	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.Cert == "" || cfg.HTTP.TLS.Key == "" {
			return ErrTLSConfigIncomplete
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Cert); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSCertNotFound, cfg.HTTP.TLS.Cert)
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSKeyNotFound, cfg.HTTP.TLS.Key)
		}
	}

	return nil
}

func validateAdapterConfig(cfg *AdapterConfig) error {
	if cfg.Type == "" {
		return ErrAdapterTypeRequired
	}
	typeValid := false
	for _, t := range knownAdapterTypes {
		if cfg.Type == string(t) {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return fmt.Errorf("%w: %s", ErrUnknownAdapterType, cfg.Type)
	}

	if _, err := dispatcher.ParsePolicy(cfg.Dispatch); err != nil {
		return err
	}
	if _, err := envelope.ParsePartialPolicy(cfg.Partial); err != nil {
		return err
	}
	if cfg.MaxConcurrency < 0 {
		return ErrInvalidConcurrency
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
