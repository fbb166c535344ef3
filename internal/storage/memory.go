package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps objects in process memory. Used by tests and by the
// CLI when no persistent backend is wanted.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) PutObject(ctx context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[k] = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.objects[k]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ObjectInfo, 0)
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			results = append(results, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func (m *MemoryStorage) DeleteObject(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, k)
	m.mu.Unlock()
	return nil
}

var _ ObjectStorage = (*MemoryStorage)(nil)
