package sources

import (
	"fmt"
	"strings"
	"time"

	"github.com/StrathCole/external-adapter-go/pkg/core/job"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
)

// Helper functions for extracting values from adapter config maps

// GetString returns config[key] as a trimmed string, or def.
func GetString(config map[string]interface{}, key, def string) string {
	if v, ok := config[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// GetInt returns config[key] as an int, or def. YAML integers and JSON floats are accepted.
func GetInt(config map[string]interface{}, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetFloat returns config[key] as a float64, or def.
func GetFloat(config map[string]interface{}, key string, def float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// GetDuration parses config[key] as a duration string such as "10s", or returns def.
func GetDuration(config map[string]interface{}, key string, def time.Duration) (time.Duration, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a duration string, got %T", ErrInvalidConfig, key, raw)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return d, nil
}

// GetStringMap returns config[key] as map[string]string. Non-string values are an error.
func GetStringMap(config map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a map, got %T", ErrInvalidConfig, key, raw)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is %T", ErrInvalidConfig, key, k, v)
		}
		out[k] = s
	}
	return out, nil
}

// GetStringSlice returns config[key] as a list of strings. Non-string elements are an error.
func GetStringSlice(config map[string]interface{}, key string) ([]string, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, el := range v {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is %T", ErrInvalidConfig, key, i, el)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidConfig, key, raw)
	}
}

// StaticTable layers operator overrides over an adapter's bundled table.
func StaticTable(bundled resolver.OverrideFile, adapter string, operator resolver.Table) resolver.Table {
	return bundled.Table(adapter).Merge(operator)
}

// JobOptions converts factory options into executor options.
func JobOptions(opts Options) job.Options {
	return job.Options{
		Name:            opts.Name,
		DefaultEndpoint: opts.DefaultEndpoint,
		Dispatch:        opts.Dispatch,
		MaxConcurrency:  opts.MaxConcurrency,
		Partial:         opts.Partial,
		Verbose:         opts.Verbose,
		Logger:          opts.Logger,
	}
}
