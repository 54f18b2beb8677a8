package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// RetryPolicy bounds how often a retryable step failure is re-invoked.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the worker defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

// Backoff returns the wait before the attempt following the given one (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay <= 0) {
		delay = p.MaxDelay
	}
	return delay
}

const defaultCancelPoll = time.Second

// OrchestratorOptions wires an Orchestrator.
type OrchestratorOptions struct {
	Ledger  *Ledger
	Steps   *StepLog
	Catalog Catalog
	// Runners are keyed by Step.Service.
	Runners    map[string]domain.StepRunner
	Retry      RetryPolicy
	CancelPoll time.Duration
	Logger     infra.Logger
}

// Orchestrator drives one claimed job through the catalog.
type Orchestrator struct {
	ledger     *Ledger
	steps      *StepLog
	catalog    Catalog
	runners    map[string]domain.StepRunner
	retry      RetryPolicy
	cancelPoll time.Duration
	logger     infra.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator validates that every catalog step has a runner.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Ledger == nil || opts.Steps == nil {
		return nil, errors.New("orchestrator: ledger and step log are required")
	}
	if opts.Catalog.Len() == 0 {
		return nil, errors.New("orchestrator: empty catalog")
	}
	runners := make(map[string]domain.StepRunner, len(opts.Runners))
	for _, step := range opts.Catalog.Steps() {
		runner, ok := opts.Runners[step.Service]
		if !ok || runner == nil {
			return nil, fmt.Errorf("orchestrator: no runner for service %q (step %q)", step.Service, step.Name)
		}
		runners[step.Service] = runner
	}
	retry := opts.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	poll := opts.CancelPoll
	if poll <= 0 {
		poll = defaultCancelPoll
	}
	return &Orchestrator{
		ledger:     opts.Ledger,
		steps:      opts.Steps,
		catalog:    opts.Catalog,
		runners:    runners,
		retry:      retry,
		cancelPoll: poll,
		logger:     opts.Logger,
		sleep:      sleepContext,
	}, nil
}

// Process runs a processing job to a terminal status. The returned error is
// the failure recorded on the job, if any.
func (o *Orchestrator) Process(ctx context.Context, job *domain.Job) error {
	// bookkeeping writes must land even when the step context is cancelled
	book := context.WithoutCancel(ctx)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cancelled atomic.Bool
	go o.watchCancel(jobCtx, job.ID, &cancelled, cancel)

	log := o.logger.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("orchestrator: processing job")

	previous, final := "", ""
	steps := o.catalog.Steps()
	for i, step := range steps {
		if cancelled.Load() || o.cancelRequested(book, job.ID) {
			return o.failJob(book, job.ID, "", domain.KindCancelled)
		}
		if ctx.Err() != nil {
			return o.failJob(book, job.ID, "", domain.KindTransient)
		}

		if err := o.steps.Start(book, job.ID, step.Name, "started"); err != nil {
			log.Error().Err(err).Str("step", step.Name).Msg("orchestrator: record step start failed")
			return o.failJob(book, job.ID, step.Name, domain.KindTransient)
		}

		out, err := o.runStep(jobCtx, book, job, step, previous)
		if err != nil {
			kind := domain.KindOf(err)
			if cancelled.Load() {
				kind = domain.KindCancelled
			}
			log.Warn().Err(err).Str("step", step.Name).Str("kind", string(kind)).Msg("orchestrator: step failed")
			if ferr := o.steps.Fail(book, job.ID, step.Name, kind, err.Error()); ferr != nil {
				log.Error().Err(ferr).Str("step", step.Name).Msg("orchestrator: record step failure failed")
			}
			return o.failJob(book, job.ID, step.Name, kind)
		}

		if err := o.steps.Complete(book, job.ID, step.Name, "completed"); err != nil {
			log.Error().Err(err).Str("step", step.Name).Msg("orchestrator: record step completion failed")
			return o.failJob(book, job.ID, step.Name, domain.KindTransient)
		}
		if out.OutputRef != "" {
			previous = out.OutputRef
		}
		if i == len(steps)-1 {
			final = out.OutputRef
		}
		log.Info().Str("step", step.Name).Str("output_ref", out.OutputRef).Int64("duration_ms", out.DurationMs).Msg("orchestrator: step completed")
	}

	if cancelled.Load() {
		return o.failJob(book, job.ID, "", domain.KindCancelled)
	}
	if final == "" {
		log.Error().Str("step", o.lastStep()).Msg("orchestrator: final step produced no output")
		return o.failJob(book, job.ID, o.lastStep(), domain.KindInvalidInput)
	}
	err := o.ledger.Transition(book, job.ID, domain.JobStatusCompleted, domain.TransitionDetails{OutputRef: final})
	switch {
	case err == nil:
		log.Info().Str("output_ref", final).Msg("orchestrator: job completed")
		return nil
	case errors.Is(err, domain.ErrUsageNotRecorded):
		log.Error().Err(err).Msg("orchestrator: job completed without usage bookkeeping")
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		log.Error().Err(err).Msg("orchestrator: complete job rejected")
		return err
	default:
		log.Error().Err(err).Msg("orchestrator: output could not be confirmed")
		return o.failJob(book, job.ID, o.lastStep(), domain.KindTransient)
	}
}

func (o *Orchestrator) runStep(ctx, book context.Context, job *domain.Job, step Step, previous string) (domain.StepOutput, error) {
	runner := o.runners[step.Service]
	in := domain.StepInput{
		JobID:          job.ID,
		AccountID:      job.AccountID,
		StepName:       step.Name,
		Inputs:         job.Inputs,
		Settings:       job.Settings,
		PreviousOutput: previous,
		ReportProgress: func(progress int) {
			if err := o.steps.ReportProgress(book, job.ID, step.Name, progress); err != nil {
				o.logger.Debug().Err(err).Str("job_id", job.ID).Str("step", step.Name).Msg("orchestrator: progress report dropped")
			}
		},
	}

	for attempt := 1; ; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
		out, err := runner.Invoke(stepCtx, in)
		timedOut := errors.Is(stepCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		var se *domain.StepError
		if !errors.As(err, &se) && (timedOut || errors.Is(err, context.DeadlineExceeded)) {
			err = domain.NewStepError(domain.KindTimeout, "step %s exceeded %s: %v", step.Name, step.Timeout, err)
		}
		kind := domain.KindOf(err)
		if !kind.Retryable() || attempt >= o.retry.MaxAttempts {
			return out, err
		}
		delay := o.retry.Backoff(attempt)
		o.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("step", step.Name).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("orchestrator: retrying step")
		if err := o.sleep(ctx, delay); err != nil {
			return out, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
	}
}

func (o *Orchestrator) failJob(ctx context.Context, jobID, step string, kind domain.ErrorKind) error {
	detail := kind.Summary()
	if step != "" {
		detail = fmt.Sprintf("%s failed: %s", step, kind.Summary())
	}
	if err := o.ledger.Transition(ctx, jobID, domain.JobStatusFailed, domain.TransitionDetails{
		ErrorKind:   kind,
		ErrorDetail: detail,
	}); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("orchestrator: mark job failed")
	}
	if kind == domain.KindCancelled {
		return fmt.Errorf("%w: %s", domain.ErrCancelled, detail)
	}
	return &domain.StepError{Kind: kind, Message: detail}
}

func (o *Orchestrator) watchCancel(ctx context.Context, jobID string, flag *atomic.Bool, cancel context.CancelFunc) {
	ticker := time.NewTicker(o.cancelPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.cancelRequested(ctx, jobID) {
				o.logger.Info().Str("job_id", jobID).Msg("orchestrator: cancelling in-flight step")
				flag.Store(true)
				cancel()
				return
			}
		}
	}
}

func (o *Orchestrator) cancelRequested(ctx context.Context, jobID string) bool {
	requested, err := o.ledger.CancelRequested(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("orchestrator: read cancel flag failed")
		}
		return false
	}
	return requested
}

func (o *Orchestrator) lastStep() string {
	steps := o.catalog.Steps()
	return steps[len(steps)-1].Name
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
