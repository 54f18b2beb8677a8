package memory

import (
	"context"
	"strings"
	"sync"

	"videojobs/internal/domain"
)

const refScheme = "mem://"

// ObjectStore keeps artifacts in memory.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewObjectStore returns an empty ObjectStore.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

func (s *ObjectStore) Put(_ context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimPrefix(key, "/")
	s.objects[key] = append([]byte(nil), data...)
	return refScheme + key, nil
}

func (s *ObjectStore) SizeOf(_ context.Context, ref string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[strings.TrimPrefix(strings.TrimPrefix(ref, refScheme), "/")]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return int64(len(data)), nil
}
