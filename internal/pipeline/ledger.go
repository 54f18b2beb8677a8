package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// Ledger owns the authoritative status of every job.
type Ledger struct {
	jobs     domain.JobStore
	accounts domain.AccountStore
	objects  domain.ObjectStore
	notify   *announcer
	logger   infra.Logger
	now      func() time.Time
}

// LedgerOptions wires the Ledger's collaborators. Objects and Notifier are optional.
type LedgerOptions struct {
	Jobs     domain.JobStore
	Steps    domain.StepLogStore
	Accounts domain.AccountStore
	Objects  domain.ObjectStore
	Catalog  Catalog
	Notifier Notifier
	Logger   infra.Logger
}

// NewLedger builds a Ledger.
func NewLedger(opts LedgerOptions) *Ledger {
	return &Ledger{
		jobs:     opts.Jobs,
		accounts: opts.Accounts,
		objects:  opts.Objects,
		notify: &announcer{
			read:     NewReadModel(opts.Jobs, opts.Steps, opts.Catalog),
			notifier: opts.Notifier,
			logger:   opts.Logger,
		},
		logger: opts.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new draft or queued job and returns its id.
func (l *Ledger) Create(ctx context.Context, job *domain.Job) (string, error) {
	if job == nil {
		return "", errors.New("ledger: job is required")
	}
	if strings.TrimSpace(job.AccountID) == "" {
		return "", errors.New("ledger: account id is required")
	}
	switch job.Status {
	case "":
		job.Status = domain.JobStatusQueued
	case domain.JobStatusDraft, domain.JobStatusQueued:
	default:
		return "", fmt.Errorf("%w: jobs cannot be created as %s", domain.ErrInvalidTransition, job.Status)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := l.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.OutputRef = ""
	job.ErrorDetail = ""
	if err := l.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("ledger: create job: %w", err)
	}
	l.logger.Info().Str("job_id", job.ID).Str("account_id", job.AccountID).Str("status", string(job.Status)).Msg("ledger: job created")
	l.notify.announce(ctx, job.ID)
	return job.ID, nil
}

// Get returns a job by id.
func (l *Ledger) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return l.jobs.Get(ctx, jobID)
}

// ListByBatch returns the jobs created for a batch.
func (l *Ledger) ListByBatch(ctx context.Context, batchID string) ([]*domain.Job, error) {
	return l.jobs.ListByBatch(ctx, batchID)
}

// Transition moves a job along the state machine. A completed job whose
// usage could not be committed returns an error wrapping ErrUsageNotRecorded.
func (l *Ledger) Transition(ctx context.Context, jobID string, to domain.JobStatus, details domain.TransitionDetails) error {
	job, err := l.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return l.transitionFrom(ctx, job, to, details, zerolog.ErrorLevel)
}

// transitionFrom applies a transition from the status observed on job.
// Rejections are logged at level.
func (l *Ledger) transitionFrom(ctx context.Context, job *domain.Job, to domain.JobStatus, details domain.TransitionDetails, level zerolog.Level) error {
	jobID := job.ID
	if !domain.CanTransition(job.Status, to) {
		return l.invalid(level, job, to, "transition not allowed")
	}

	switch to {
	case domain.JobStatusCompleted:
		details.OutputRef = strings.TrimSpace(details.OutputRef)
		if details.OutputRef == "" {
			return l.invalid(level, job, to, "output ref is required")
		}
		details.ErrorDetail = ""
		details.ErrorKind = ""
		if l.objects != nil {
			size, err := l.objects.SizeOf(ctx, details.OutputRef)
			if err != nil {
				return fmt.Errorf("ledger: verify output %q: %w", details.OutputRef, err)
			}
			details.OutputBytes = size
		}
	case domain.JobStatusFailed:
		details.ErrorDetail = strings.TrimSpace(details.ErrorDetail)
		if details.ErrorDetail == "" {
			return l.invalid(level, job, to, "error detail is required")
		}
		details.OutputRef = ""
		details.OutputBytes = 0
	case domain.JobStatusQueued, domain.JobStatusProcessing:
		details = domain.TransitionDetails{}
	case domain.JobStatusDraft:
		return l.invalid(level, job, to, "draft is an initial state")
	}

	updated, err := l.jobs.UpdateStatus(ctx, jobID, job.Status, to, details)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return l.invalid(level, job, to, "status changed concurrently")
		}
		return fmt.Errorf("ledger: update status: %w", err)
	}
	l.logger.Info().
		Str("job_id", jobID).
		Str("from", string(job.Status)).
		Str("to", string(to)).
		Msg("ledger: job transitioned")

	var sideErr error
	switch to {
	case domain.JobStatusCompleted:
		if err := l.accounts.IncrementUsage(ctx, updated.AccountID, jobID, updated.InputBytes+updated.OutputBytes); err != nil {
			l.logger.Error().Err(err).Str("job_id", jobID).Msg("ledger: increment usage failed")
			sideErr = fmt.Errorf("ledger: %w: %v", domain.ErrUsageNotRecorded, err)
		}
	case domain.JobStatusFailed:
		if err := l.accounts.Release(ctx, updated.AccountID, jobID); err != nil {
			l.logger.Warn().Err(err).Str("job_id", jobID).Msg("ledger: release reservation failed")
		}
	}
	l.notify.announce(ctx, jobID)
	return sideErr
}

// Claim hands the oldest queued job to a worker, moving it to processing.
func (l *Ledger) Claim(ctx context.Context) (*domain.Job, error) {
	job, err := l.jobs.ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("job_id", job.ID).Msg("ledger: job claimed")
	l.notify.announce(ctx, job.ID)
	return job, nil
}

// RequestCancel fails a job that has not started, or flags a running job so
// the orchestrator stops it after the current step call returns.
func (l *Ledger) RequestCancel(ctx context.Context, jobID string) error {
	for attempt := 0; attempt < 2; attempt++ {
		job, err := l.jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		switch job.Status {
		case domain.JobStatusDraft, domain.JobStatusQueued:
			err := l.transitionFrom(ctx, job, domain.JobStatusFailed, domain.TransitionDetails{
				ErrorKind:   domain.KindCancelled,
				ErrorDetail: domain.KindCancelled.Summary(),
			}, zerolog.DebugLevel)
			if errors.Is(err, domain.ErrInvalidTransition) {
				// claimed by a worker in the meantime
				continue
			}
			return err
		case domain.JobStatusProcessing:
			if err := l.jobs.SetCancelRequested(ctx, jobID); err != nil {
				return fmt.Errorf("ledger: flag cancel: %w", err)
			}
			l.logger.Info().Str("job_id", jobID).Msg("ledger: cancel requested")
			return nil
		case domain.JobStatusCompleted, domain.JobStatusFailed:
			return fmt.Errorf("%w: job already %s", domain.ErrInvalidTransition, job.Status)
		}
	}
	return fmt.Errorf("%w: job status keeps changing", domain.ErrInvalidTransition)
}

// CancelRequested reports whether a running job has been asked to stop.
func (l *Ledger) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	job, err := l.jobs.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}

func (l *Ledger) invalid(level zerolog.Level, job *domain.Job, to domain.JobStatus, reason string) error {
	l.logger.WithLevel(level).
		Str("job_id", job.ID).
		Str("from", string(job.Status)).
		Str("to", string(to)).
		Msg("ledger: invalid transition: " + reason)
	return fmt.Errorf("%w: %s -> %s: %s", domain.ErrInvalidTransition, job.Status, to, reason)
}
