package memory

import (
	"context"
	"fmt"
	"sync"

	"videojobs/internal/domain"
)

// BatchStore keeps batch headers in memory.
type BatchStore struct {
	mu      sync.Mutex
	batches map[string]domain.Batch
}

func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[string]domain.Batch)}
}

func (s *BatchStore) CreateBatch(_ context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("%w: batch %s", domain.ErrDuplicateOperation, batch.ID)
	}
	s.batches[batch.ID] = *batch
	return nil
}

func (s *BatchStore) GetBatch(_ context.Context, batchID string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &batch, nil
}
