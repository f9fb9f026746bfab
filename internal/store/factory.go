package store

import (
	"fmt"
	"sync"
)

// Builder creates a store from config.
type Builder func(config Config) (Store, error)

type factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

var globalFactory = &factory{builders: make(map[string]Builder)}

func init() {
	RegisterStoreType("sqlite", func(config Config) (Store, error) {
		return NewSQLite(config.Path)
	})
}

// RegisterStoreType registers a new store type with the global factory.
func RegisterStoreType(storeType string, builder Builder) {
	globalFactory.mu.Lock()
	defer globalFactory.mu.Unlock()
	globalFactory.builders[storeType] = builder
}

// CreateStore builds a store from config; an empty type means sqlite.
func CreateStore(config Config) (Store, error) {
	t := config.Type
	if t == "" {
		t = "sqlite"
	}
	globalFactory.mu.RLock()
	builder, ok := globalFactory.builders[t]
	globalFactory.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported store type: %s (supported: %v)", t, SupportedTypes())
	}
	return builder(config)
}

// SupportedTypes lists registered store types.
func SupportedTypes() []string {
	globalFactory.mu.RLock()
	defer globalFactory.mu.RUnlock()
	types := make([]string, 0, len(globalFactory.builders))
	for t := range globalFactory.builders {
		types = append(types, t)
	}
	return types
}
