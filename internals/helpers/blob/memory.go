package blob

import (
	"context"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-process Store for tests and throwaway runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// PutErr, when set, fails every Put.
	PutErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.PutErr != nil {
		return m.PutErr
	}
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.objects[clean] = memoryObject{data: cp, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return nil, "", err
	}
	m.mu.RLock()
	obj, ok := m.objects[clean]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, clean)
	m.mu.Unlock()
	return nil
}

// Keys lists stored keys (unordered).
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
