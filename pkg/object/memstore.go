package object

import (
	"fmt"
	"sync"
)

type memObject struct {
	objType ObjectType
	data    []byte
}

// MemStore is an in-memory Database. It is safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	objects map[Hash]memObject
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[Hash]memObject)}
}

// Has reports whether the store contains an object with the given hash.
func (m *MemStore) Has(h Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[h]
	return ok
}

// Write stores a copy of data and returns its content hash.
func (m *MemStore) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[h]; !ok {
		buf := make([]byte, len(data))
		copy(buf, data)
		m.objects[h] = memObject{objType: objType, data: buf}
	}
	return h, nil
}

// Read returns the type and a copy of the content of h.
func (m *MemStore) Read(h Hash) (ObjectType, []byte, error) {
	m.mu.RLock()
	obj, ok := m.objects[h]
	m.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return obj.objType, buf, nil
}

// Len returns the number of stored objects.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
