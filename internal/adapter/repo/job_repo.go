package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobStore.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	inputs, err := json.Marshal(job.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.AccountID,
		inputs,
		settings,
		job.InputBytes,
		string(job.Status),
		job.CreatedAt,
		job.Priority.Rank(),
		job.BatchID,
	)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: job %s", domain.ErrDuplicateOperation, job.ID)
		}
		return err
	}
	return nil
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// UpdateStatus applies a transition if the stored status still equals from.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, from, to domain.JobStatus, details domain.TransitionDetails) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateJobStatus,
		jobID,
		string(from),
		string(to),
		details.OutputRef,
		details.OutputBytes,
		string(details.ErrorKind),
		details.ErrorDetail,
	)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	current, getErr := r.Get(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidTransition, jobID, current.Status, from)
}

// ClaimNext moves the next queued job to processing, highest priority first.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimNextJob))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// SetCancelRequested flags a job for cancellation.
func (r *JobRepositoryPG) SetCancelRequested(ctx context.Context, jobID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetJobCancelRequested, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByBatch returns the jobs of a batch in creation order.
func (r *JobRepositoryPG) ListByBatch(ctx context.Context, batchID string) ([]*domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByBatch, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		inputs    []byte
		settings  []byte
		status    string
		errorKind string
		started   *time.Time
		completed *time.Time
		priority  int
	)
	if err := row.Scan(
		&job.ID,
		&job.AccountID,
		&inputs,
		&settings,
		&job.InputBytes,
		&status,
		&job.OutputRef,
		&job.OutputBytes,
		&errorKind,
		&job.ErrorDetail,
		&job.CancelRequested,
		&job.CreatedAt,
		&job.UpdatedAt,
		&started,
		&completed,
		&priority,
		&job.BatchID,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseJobStatus(status)
	if err != nil {
		return nil, err
	}
	job.Status = parsed
	job.ErrorKind = domain.ErrorKind(errorKind)
	job.Priority = domain.PriorityFromRank(priority)
	job.ProcessingStartedAt = started
	job.ProcessingCompletedAt = completed
	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &job.Inputs); err != nil {
			return nil, fmt.Errorf("decode inputs: %w", err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &job.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	return &job, nil
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
