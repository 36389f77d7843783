package store

import (
	"context"
	"fmt"
	"sync"

	"bioconv/internal/item"
)

// MemoryStore keeps items in memory in arrival order.
type MemoryStore struct {
	mu    sync.Mutex
	items []*item.Item
	byID  map[string]*item.Item
}

// NewMemoryStore returns an empty in-memory writer.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*item.Item)}
}

func (m *MemoryStore) Store(ctx context.Context, it *item.Item) error {
	return m.StoreAll(ctx, []*item.Item{it})
}

func (m *MemoryStore) StoreAll(_ context.Context, items []*item.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if _, dup := m.byID[it.Identifier]; dup {
			return fmt.Errorf("duplicate item identifier: %s", it.Identifier)
		}
		m.byID[it.Identifier] = it
		m.items = append(m.items, it)
	}
	return nil
}

// Items returns every stored item in arrival order.
func (m *MemoryStore) Items() []*item.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*item.Item(nil), m.items...)
}

// ByClass returns stored items of one class in arrival order.
func (m *MemoryStore) ByClass(className string) []*item.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*item.Item
	for _, it := range m.items {
		if it.ClassName == className {
			out = append(out, it)
		}
	}
	return out
}

// Get looks an item up by identifier.
func (m *MemoryStore) Get(identifier string) (*item.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byID[identifier]
	return it, ok
}

func (m *MemoryStore) Close() error {
	return nil
}
