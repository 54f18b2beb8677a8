package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"videojobs/internal/domain"
)

// MaxBatchJobs bounds the number of jobs accepted in one batch.
const MaxBatchJobs = 50

// BatchItem is one job of a batch request.
type BatchItem struct {
	Inputs   []domain.InputRef
	Settings domain.Settings
}

// BatchRequest asks for several jobs sharing one priority.
type BatchRequest struct {
	AccountID         string
	Name              string
	Priority          domain.Priority
	Items             []BatchItem
	PreferredLanguage string
}

// CreateBatch validates every item, then admits them in order. Items turned
// away by admission are reported in Rejected; the batch fails as a whole only
// when its first item cannot be admitted.
func (s *JobService) CreateBatch(ctx context.Context, req BatchRequest) (domain.BatchView, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return domain.BatchView{}, domain.ErrUnauthorized
	}
	if s.batches == nil {
		return domain.BatchView{}, errors.New("batches are not configured")
	}
	if len(req.Items) == 0 || len(req.Items) > MaxBatchJobs {
		return domain.BatchView{}, fmt.Errorf("%w: a batch holds 1 to %d jobs", domain.ErrInvalidSettings, MaxBatchJobs)
	}
	priority, err := domain.ParsePriority(string(req.Priority))
	if err != nil {
		return domain.BatchView{}, err
	}

	batch := &domain.Batch{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		Name:      strings.TrimSpace(req.Name),
		Priority:  priority,
		CreatedAt: s.ledger.now(),
	}
	jobs := make([]*domain.Job, 0, len(req.Items))
	for i, item := range req.Items {
		job, err := s.prepare(ctx, CreateRequest{
			AccountID:         req.AccountID,
			Inputs:            item.Inputs,
			Settings:          item.Settings,
			PreferredLanguage: req.PreferredLanguage,
			Priority:          priority,
			batchID:           batch.ID,
		})
		if err != nil {
			return domain.BatchView{}, fmt.Errorf("job %d: %w", i, err)
		}
		jobs = append(jobs, job)
	}

	quota, err := s.Quota(ctx, req.AccountID)
	if err != nil {
		return domain.BatchView{}, err
	}
	first := s.admission.Admit(*quota, AdmissionRequest{Settings: jobs[0].Settings, EstimatedInputBytes: jobs[0].InputBytes})
	if !first.Allowed {
		return domain.BatchView{}, first.Err()
	}
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return domain.BatchView{}, err
	}

	var rejected []domain.BatchRejection
	for i, job := range jobs {
		if err := s.enqueue(ctx, job); err != nil {
			kind := admissionKind(err)
			if kind == "" {
				return domain.BatchView{}, fmt.Errorf("job %d: %w", i, err)
			}
			rejected = append(rejected, domain.BatchRejection{Index: i, Kind: kind, Reason: err.Error()})
		}
	}
	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("account_id", batch.AccountID).
		Int("accepted", len(jobs)-len(rejected)).
		Int("rejected", len(rejected)).
		Msg("batch: created")

	view, err := s.batchView(ctx, batch)
	if err != nil {
		return domain.BatchView{}, err
	}
	view.Rejected = rejected
	return view, nil
}

// GetBatch returns the aggregate view of an owned batch.
func (s *JobService) GetBatch(ctx context.Context, accountID, batchID string) (domain.BatchView, error) {
	batch, err := s.ownedBatch(ctx, accountID, batchID)
	if err != nil {
		return domain.BatchView{}, err
	}
	return s.batchView(ctx, batch)
}

// CancelBatch asks every unfinished job of the batch to stop.
func (s *JobService) CancelBatch(ctx context.Context, accountID, batchID string) (domain.BatchView, error) {
	batch, err := s.ownedBatch(ctx, accountID, batchID)
	if err != nil {
		return domain.BatchView{}, err
	}
	jobs, err := s.ledger.ListByBatch(ctx, batch.ID)
	if err != nil {
		return domain.BatchView{}, err
	}
	for _, job := range jobs {
		if job.Status.IsTerminal() {
			continue
		}
		if err := s.ledger.RequestCancel(ctx, job.ID); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			return domain.BatchView{}, fmt.Errorf("cancel job %s: %w", job.ID, err)
		}
	}
	return s.batchView(ctx, batch)
}

func (s *JobService) ownedBatch(ctx context.Context, accountID, batchID string) (*domain.Batch, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if s.batches == nil {
		return nil, domain.ErrNotFound
	}
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	return batch, nil
}

func (s *JobService) batchView(ctx context.Context, batch *domain.Batch) (domain.BatchView, error) {
	jobs, err := s.ledger.ListByBatch(ctx, batch.ID)
	if err != nil {
		return domain.BatchView{}, err
	}
	views := make([]domain.JobView, 0, len(jobs))
	for _, job := range jobs {
		view, err := s.read.GetJobStatus(ctx, job.ID)
		if err != nil {
			return domain.BatchView{}, err
		}
		views = append(views, view)
	}
	return SummarizeBatch(batch, views), nil
}

// SummarizeBatch folds job views into the batch view.
func SummarizeBatch(batch *domain.Batch, jobs []domain.JobView) domain.BatchView {
	view := domain.BatchView{
		BatchID:     batch.ID,
		Name:        batch.Name,
		Priority:    batch.Priority,
		TotalJobs:   len(jobs),
		JobStatuses: make(map[domain.JobStatus]int),
		CreatedAt:   batch.CreatedAt,
		Jobs:        jobs,
	}
	if view.Jobs == nil {
		view.Jobs = []domain.JobView{}
	}
	progress := 0
	for _, job := range jobs {
		view.JobStatuses[job.Status]++
		progress += job.OverallProgress
	}
	view.CompletedJobs = view.JobStatuses[domain.JobStatusCompleted]
	view.FailedJobs = view.JobStatuses[domain.JobStatusFailed]
	if view.TotalJobs > 0 {
		view.OverallProgress = progress / view.TotalJobs
	}

	switch finished := view.CompletedJobs + view.FailedJobs; {
	case view.TotalJobs == 0 || view.FailedJobs == view.TotalJobs:
		view.Status = domain.BatchStatusFailed
	case view.CompletedJobs == view.TotalJobs:
		view.Status = domain.BatchStatusCompleted
	case finished == view.TotalJobs:
		view.Status = domain.BatchStatusPartial
	case finished > 0 || view.JobStatuses[domain.JobStatusProcessing] > 0:
		view.Status = domain.BatchStatusProcessing
	default:
		view.Status = domain.BatchStatusQueued
	}
	return view
}

// admissionKind returns the rejection kind of an admission error, or "" for
// any other failure.
func admissionKind(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		return domain.KindQuotaExceeded
	case errors.Is(err, domain.ErrStorageExceeded):
		return domain.KindStorageExceeded
	case errors.Is(err, domain.ErrDurationExceeded):
		return domain.KindDurationExceeded
	}
	return ""
}
