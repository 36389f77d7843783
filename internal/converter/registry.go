package converter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bioconv/internal/logging"
)

// Constructor builds a converter. Constructors may store header items, so
// they take a context.
type Constructor func(ctx context.Context, opts Options) (Converter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register adds a converter constructor under name.
func Register(name string, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("converter name cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("converter %s: nil constructor", name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	registry[name] = ctor
	logging.ConvertDebug("Registered converter: %s", name)
	return nil
}

// MustRegister registers a converter and panics on error.
// Use this for static registration at init time.
func MustRegister(name string, ctor Constructor) {
	if err := Register(name, ctor); err != nil {
		panic(fmt.Sprintf("failed to register converter %s: %v", name, err))
	}
}

// New constructs the converter registered under name.
func New(ctx context.Context, name string, opts Options) (Converter, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownConverter, name, Names())
	}
	return ctor(ctx, opts)
}

// Names returns the registered converter names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
