// Package memory holds in-process stores used by tests and single-binary deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"videojobs/internal/domain"
)

// JobStore keeps Job Ledger rows in memory.
type JobStore struct {
	mu    sync.Mutex
	jobs  map[string]*domain.Job
	order []string
	now   func() time.Time
}

// NewJobStore returns an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s", domain.ErrDuplicateOperation, job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	s.order = append(s.order, job.ID)
	return nil
}

func (s *JobStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *JobStore) UpdateStatus(_ context.Context, jobID string, from, to domain.JobStatus, details domain.TransitionDetails) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if job.Status != from {
		return nil, fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidTransition, jobID, job.Status, from)
	}
	s.apply(job, to, details)
	return cloneJob(job), nil
}

func (s *JobStore) ClaimNext(_ context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var queued []*domain.Job
	for _, id := range s.order {
		if job := s.jobs[id]; job.Status == domain.JobStatusQueued {
			queued = append(queued, job)
		}
	}
	if len(queued) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.SliceStable(queued, func(i, j int) bool {
		ri, rj := queued[i].Priority.Rank(), queued[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	job := queued[0]
	s.apply(job, domain.JobStatusProcessing, domain.TransitionDetails{})
	return cloneJob(job), nil
}

func (s *JobStore) SetCancelRequested(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.CancelRequested = true
	job.UpdatedAt = s.now()
	return nil
}

func (s *JobStore) ListByBatch(_ context.Context, batchID string) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, id := range s.order {
		if job := s.jobs[id]; batchID != "" && job.BatchID == batchID {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (s *JobStore) apply(job *domain.Job, to domain.JobStatus, details domain.TransitionDetails) {
	now := s.now()
	job.Status = to
	job.UpdatedAt = now
	switch to {
	case domain.JobStatusProcessing:
		job.ProcessingStartedAt = &now
	case domain.JobStatusCompleted:
		job.OutputRef = details.OutputRef
		job.OutputBytes = details.OutputBytes
		job.ErrorKind = ""
		job.ErrorDetail = ""
		job.ProcessingCompletedAt = &now
	case domain.JobStatusFailed:
		job.OutputRef = ""
		job.OutputBytes = 0
		job.ErrorKind = details.ErrorKind
		job.ErrorDetail = details.ErrorDetail
		job.ProcessingCompletedAt = &now
	}
}

func cloneJob(job *domain.Job) *domain.Job {
	c := *job
	c.Inputs = append([]domain.InputRef(nil), job.Inputs...)
	if job.ProcessingStartedAt != nil {
		t := *job.ProcessingStartedAt
		c.ProcessingStartedAt = &t
	}
	if job.ProcessingCompletedAt != nil {
		t := *job.ProcessingCompletedAt
		c.ProcessingCompletedAt = &t
	}
	return &c
}
