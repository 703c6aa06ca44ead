package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fold normalizes a symbol for case-insensitive comparison.
func Fold(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Table is an immutable symbol -> canonical id mapping with case-insensitive keys.
// The zero value is an empty table. Tables are safe for concurrent reads.
type Table struct {
	entries map[string]string
}

// NewTable copies entries into a new table. Later duplicates (after folding) win
// in sorted key order so the result does not depend on map iteration.
func NewTable(entries map[string]string) Table {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	folded := make(map[string]string, len(entries))
	for _, k := range keys {
		id := strings.TrimSpace(entries[k])
		if id == "" {
			continue
		}
		folded[Fold(k)] = id
	}
	return Table{entries: folded}
}

// Lookup returns the canonical id for symbol, if present.
func (t Table) Lookup(symbol string) (string, bool) {
	id, ok := t.entries[Fold(symbol)]
	return id, ok
}

// Len returns the number of entries.
func (t Table) Len() int { return len(t.entries) }

// Merge returns a table holding t's entries overlaid with other's.
func (t Table) Merge(other Table) Table {
	merged := make(map[string]string, len(t.entries)+len(other.entries))
	for k, v := range t.entries {
		merged[k] = v
	}
	for k, v := range other.entries {
		merged[k] = v
	}
	return Table{entries: merged}
}

// OverrideFile is the on-disk layout of bundled overrides: adapter name -> symbol -> id.
type OverrideFile map[string]map[string]string

// ParseOverrideFile decodes a YAML (or JSON) override document.
func ParseOverrideFile(data []byte) (OverrideFile, error) {
	var file OverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse overrides: %w", err)
	}
	return file, nil
}

// LoadOverrideFile reads an override document from disk.
func LoadOverrideFile(path string) (OverrideFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}
	return ParseOverrideFile(data)
}

// Table returns the static table for one adapter. Adapter names compare case-insensitively.
func (f OverrideFile) Table(adapter string) Table {
	for name, entries := range f {
		if strings.EqualFold(name, adapter) {
			return NewTable(entries)
		}
	}
	return Table{}
}

// ParseRequestOverrides reads caller overrides from request data. Two shapes are
// accepted: a flat {SYMBOL: id} map, or a map keyed by adapter name whose value is
// such a map. Only the entry for adapter is used in the nested form.
func ParseRequestOverrides(raw interface{}, adapter string) (Table, error) {
	if raw == nil {
		return Table{}, nil
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return Table{}, &OverridesError{Reason: fmt.Sprintf("expected an object, got %T", raw)}
	}

	for name, v := range obj {
		if !strings.EqualFold(name, adapter) {
			continue
		}
		nested, ok := v.(map[string]interface{})
		if !ok {
			return Table{}, &OverridesError{Reason: fmt.Sprintf("overrides for %s must be an object", adapter)}
		}
		return flatTable(nested)
	}

	flat := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if _, nested := v.(map[string]interface{}); nested {
			// overrides addressed to a different adapter
			continue
		}
		flat[k] = v
	}
	return flatTable(flat)
}

func flatTable(obj map[string]interface{}) (Table, error) {
	entries := make(map[string]string, len(obj))
	for symbol, v := range obj {
		id, ok := v.(string)
		if !ok {
			return Table{}, &OverridesError{Reason: fmt.Sprintf("override for %s must be a string, got %T", symbol, v)}
		}
		entries[symbol] = id
	}
	return NewTable(entries), nil
}
