package storage

import (
	"context"
	"sync"
)

// KV is a durable string-keyed store, namespaced by owner. It behaves like a
// browser's localStorage: whole values are read and written, with no
// versioning and last-writer-wins.
type KV interface {
	Get(ctx context.Context, owner, key string) ([]byte, bool, error)
	Put(ctx context.Context, owner, key string, value []byte) error
}

// Store is a KV backend with a lifecycle.
type Store interface {
	KV
	Ping(ctx context.Context) error
	Close() error
}

// MemoryKV is an in-process Store.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string][]byte)}
}

// Get implements KV.
func (m *MemoryKV) Get(ctx context.Context, owner, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[owner][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put implements KV.
func (m *MemoryKV) Put(ctx context.Context, owner, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[owner]
	if !ok {
		ns = make(map[string][]byte)
		m.data[owner] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

// Ping implements Store.
func (m *MemoryKV) Ping(ctx context.Context) error { return nil }

// Close implements Store.
func (m *MemoryKV) Close() error { return nil }
