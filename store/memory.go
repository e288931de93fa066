package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

// get returns the value under key as a T.
func get[T any](m *MemoryStore, key string) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var zero T
	raw, ok := m.values[key]
	if !ok {
		return zero, false, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, true, ErrWrongType
	}
	return v, true, nil
}

func (m *MemoryStore) put(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = v
}

func (m *MemoryStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	return get[bool](m, key)
}

func (m *MemoryStore) SetBool(_ context.Context, key string, v bool) error {
	m.put(key, v)
	return nil
}

func (m *MemoryStore) GetString(_ context.Context, key string) (string, bool, error) {
	return get[string](m, key)
}

func (m *MemoryStore) SetString(_ context.Context, key string, v string) error {
	m.put(key, v)
	return nil
}

func (m *MemoryStore) GetInt(_ context.Context, key string) (int64, bool, error) {
	return get[int64](m, key)
}

func (m *MemoryStore) SetInt(_ context.Context, key string, v int64) error {
	m.put(key, v)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var _ Store = (*MemoryStore)(nil)
