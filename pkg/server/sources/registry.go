package sources

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[AdapterType]Factory)
	mu       sync.RWMutex
)

// Register adds an adapter factory to the registry
func Register(adapterType AdapterType, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[adapterType] = factory
}

// Create creates a new adapter instance by type
func Create(adapterType AdapterType, opts Options) (Adapter, error) {
	mu.RLock()
	factory, ok := registry[adapterType]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, adapterType)
	}
	if opts.Name == "" {
		opts.Name = string(adapterType)
	}

	return factory(opts)
}

// List returns all registered adapter types
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
