package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// CreateRequest is a client request for a new job.
type CreateRequest struct {
	AccountID string
	Inputs    []domain.InputRef
	Settings  domain.Settings
	// Draft skips admission; the job waits for Submit.
	Draft bool
	// PreferredLanguage fills in a missing narration language.
	PreferredLanguage string
	// Priority orders the job in the queue; empty means medium.
	Priority domain.Priority

	batchID string
}

// ServiceOptions wires a JobService.
type ServiceOptions struct {
	Ledger    *Ledger
	Steps     *StepLog
	Read      *ReadModel
	Admission *Admission
	Accounts  domain.AccountStore
	Objects   domain.ObjectStore
	Batches   domain.BatchStore
	Tiers     map[domain.Tier]domain.Limits
	Logger    infra.Logger
}

// JobService is the entry point used by the API.
type JobService struct {
	ledger    *Ledger
	steps     *StepLog
	read      *ReadModel
	admission *Admission
	accounts  domain.AccountStore
	objects   domain.ObjectStore
	batches   domain.BatchStore
	tiers     map[domain.Tier]domain.Limits
	logger    infra.Logger
}

// NewJobService builds a JobService.
func NewJobService(opts ServiceOptions) *JobService {
	return &JobService{
		ledger:    opts.Ledger,
		steps:     opts.Steps,
		read:      opts.Read,
		admission: opts.Admission,
		accounts:  opts.Accounts,
		objects:   opts.Objects,
		batches:   opts.Batches,
		tiers:     opts.Tiers,
		logger:    opts.Logger,
	}
}

// Create validates a request and stores it as a draft or an admitted queued job.
func (s *JobService) Create(ctx context.Context, req CreateRequest) (domain.JobView, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return domain.JobView{}, domain.ErrUnauthorized
	}
	job, err := s.prepare(ctx, req)
	if err != nil {
		return domain.JobView{}, err
	}
	if req.Draft {
		if _, err := s.ledger.Create(ctx, job); err != nil {
			return domain.JobView{}, err
		}
		return s.read.GetJobStatus(ctx, job.ID)
	}

	if err := s.enqueue(ctx, job); err != nil {
		return domain.JobView{}, err
	}
	return s.read.GetJobStatus(ctx, job.ID)
}

// prepare validates a request and builds the draft job it describes.
func (s *JobService) prepare(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	settings := req.Settings
	settings.Normalize(req.PreferredLanguage)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, err
	}
	inputBytes, err := s.measureInputs(ctx, req.Inputs)
	if err != nil {
		return nil, err
	}
	return &domain.Job{
		AccountID:  req.AccountID,
		Inputs:     req.Inputs,
		Settings:   settings,
		InputBytes: inputBytes,
		Priority:   priority,
		BatchID:    req.batchID,
		Status:     domain.JobStatusDraft,
	}, nil
}

// enqueue admits a prepared job and stores it as queued.
func (s *JobService) enqueue(ctx context.Context, job *domain.Job) error {
	job.Status = domain.JobStatusQueued
	job.ID = uuid.NewString()
	if err := s.admit(ctx, job); err != nil {
		return err
	}
	if _, err := s.ledger.Create(ctx, job); err != nil {
		s.release(ctx, job)
		return err
	}
	return nil
}

// Submit runs admission for a draft and queues it.
func (s *JobService) Submit(ctx context.Context, accountID, jobID string) (domain.JobView, error) {
	job, err := s.owned(ctx, accountID, jobID)
	if err != nil {
		return domain.JobView{}, err
	}
	if job.Status != domain.JobStatusDraft {
		return domain.JobView{}, fmt.Errorf("%w: only drafts can be submitted, job is %s", domain.ErrInvalidTransition, job.Status)
	}
	if err := s.admit(ctx, job); err != nil {
		return domain.JobView{}, err
	}
	if err := s.ledger.Transition(ctx, job.ID, domain.JobStatusQueued, domain.TransitionDetails{}); err != nil {
		s.release(ctx, job)
		return domain.JobView{}, err
	}
	return s.read.GetJobStatus(ctx, job.ID)
}

// Cancel stops a job that has not reached a terminal status.
func (s *JobService) Cancel(ctx context.Context, accountID, jobID string) (domain.JobView, error) {
	if _, err := s.owned(ctx, accountID, jobID); err != nil {
		return domain.JobView{}, err
	}
	if err := s.ledger.RequestCancel(ctx, jobID); err != nil {
		return domain.JobView{}, err
	}
	return s.read.GetJobStatus(ctx, jobID)
}

// Status returns the read model of an owned job.
func (s *JobService) Status(ctx context.Context, accountID, jobID string) (domain.JobView, error) {
	if _, err := s.owned(ctx, accountID, jobID); err != nil {
		return domain.JobView{}, err
	}
	return s.read.GetJobStatus(ctx, jobID)
}

// Steps returns the Step Log of an owned job.
func (s *JobService) Steps(ctx context.Context, accountID, jobID string) ([]domain.StepLogEntry, error) {
	if _, err := s.owned(ctx, accountID, jobID); err != nil {
		return nil, err
	}
	return s.steps.Entries(ctx, jobID)
}

// Quota returns the account's usage snapshot with its tier limits.
func (s *JobService) Quota(ctx context.Context, accountID string) (*domain.Quota, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, domain.ErrUnauthorized
	}
	quota, err := s.accounts.GetQuota(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if limits, ok := s.tiers[quota.Tier]; ok {
		quota.Limits = limits
	}
	return quota, nil
}

func (s *JobService) admit(ctx context.Context, job *domain.Job) error {
	quota, err := s.Quota(ctx, job.AccountID)
	if err != nil {
		return err
	}
	req := AdmissionRequest{Settings: job.Settings, EstimatedInputBytes: job.InputBytes}
	decision := s.admission.Admit(*quota, req)
	if !decision.Allowed {
		s.logger.Info().
			Str("account_id", job.AccountID).
			Str("kind", string(decision.Kind)).
			Str("reason", decision.Reason).
			Msg("admission: job rejected")
		return decision.Err()
	}
	if err := s.accounts.Reserve(ctx, job.AccountID, job.ID, ReservationBytes(req, decision), quota.Limits); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, domain.ErrStorageExceeded) {
			s.logger.Info().Err(err).Str("account_id", job.AccountID).Msg("admission: reservation lost")
		}
		return err
	}
	return nil
}

func (s *JobService) release(ctx context.Context, job *domain.Job) {
	if err := s.accounts.Release(ctx, job.AccountID, job.ID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("admission: release reservation failed")
	}
}

func (s *JobService) owned(ctx context.Context, accountID, jobID string) (*domain.Job, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, domain.ErrUnauthorized
	}
	job, err := s.ledger.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *JobService) measureInputs(ctx context.Context, inputs []domain.InputRef) (int64, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: at least one input is required", domain.ErrInvalidSettings)
	}
	var total int64
	for i, in := range inputs {
		switch in.Kind {
		case domain.InputKindText:
			if strings.TrimSpace(in.Text) == "" {
				return 0, fmt.Errorf("%w: input %d: text is empty", domain.ErrInvalidSettings, i)
			}
			total += int64(len(in.Text))
		case domain.InputKindImage, domain.InputKindAudio:
			if strings.TrimSpace(in.Ref) == "" {
				return 0, fmt.Errorf("%w: input %d: ref is required", domain.ErrInvalidSettings, i)
			}
			if s.objects == nil {
				continue
			}
			size, err := s.objects.SizeOf(ctx, in.Ref)
			if err != nil {
				return 0, fmt.Errorf("%w: input %d: %v", domain.ErrInvalidSettings, i, err)
			}
			total += size
		default:
			return 0, fmt.Errorf("%w: input %d: unknown kind %q", domain.ErrInvalidSettings, i, in.Kind)
		}
	}
	return total, nil
}
