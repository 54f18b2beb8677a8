package memory

import (
	"context"
	"sync"

	"videojobs/internal/domain"
)

// StepLogStore keeps Step Log entries in memory.
type StepLogStore struct {
	mu      sync.Mutex
	entries map[string][]domain.StepLogEntry
}

// NewStepLogStore returns an empty StepLogStore.
func NewStepLogStore() *StepLogStore {
	return &StepLogStore{entries: make(map[string][]domain.StepLogEntry)}
}

func (s *StepLogStore) Append(_ context.Context, entry *domain.StepLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[entry.JobID]
	entry.Seq = len(entries) + 1
	s.entries[entry.JobID] = append(entries, *entry)
	return nil
}

func (s *StepLogStore) UpdateProgress(_ context.Context, jobID, stepName string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[jobID]
	open := -1
	for i, e := range entries {
		if e.StepName != stepName {
			continue
		}
		if e.SubStatus.IsTerminal() {
			return domain.ErrNotFound
		}
		open = i
	}
	if open < 0 {
		return domain.ErrNotFound
	}
	if progress > entries[open].Progress {
		entries[open].Progress = progress
	}
	return nil
}

func (s *StepLogStore) List(_ context.Context, jobID string) ([]domain.StepLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StepLogEntry(nil), s.entries[jobID]...), nil
}
