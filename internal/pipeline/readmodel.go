package pipeline

import (
	"context"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// ReadModel serves the client-facing job status. Progress is derived from the
// Step Log on every read.
type ReadModel struct {
	jobs    domain.JobStore
	steps   domain.StepLogStore
	catalog Catalog
}

// NewReadModel builds a ReadModel.
func NewReadModel(jobs domain.JobStore, steps domain.StepLogStore, catalog Catalog) *ReadModel {
	return &ReadModel{jobs: jobs, steps: steps, catalog: catalog}
}

// GetJobStatus returns the polled shape of a job.
func (r *ReadModel) GetJobStatus(ctx context.Context, jobID string) (domain.JobView, error) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.JobView{}, err
	}
	entries, err := r.steps.List(ctx, jobID)
	if err != nil {
		return domain.JobView{}, err
	}
	return View(job, entries, r.catalog), nil
}

// View combines a ledger row with its Step Log.
func View(job *domain.Job, entries []domain.StepLogEntry, catalog Catalog) domain.JobView {
	v := domain.JobView{
		JobID:           job.ID,
		Status:          job.Status,
		OverallProgress: Compute(entries, catalog),
		CurrentStepName: CurrentStep(entries, catalog),
	}
	if job.Status == domain.JobStatusFailed {
		v.ErrorDetail = job.ErrorDetail
	}
	return v
}

func updateFromView(v domain.JobView) Update {
	return Update{
		JobID:           v.JobID,
		Status:          v.Status,
		OverallProgress: v.OverallProgress,
		CurrentStep:     v.CurrentStepName,
		ErrorDetail:     v.ErrorDetail,
	}
}

// announcer publishes the current view of a job after a write.
type announcer struct {
	read     *ReadModel
	notifier Notifier
	logger   infra.Logger
}

func (a *announcer) announce(ctx context.Context, jobID string) {
	if a == nil || a.notifier == nil {
		return
	}
	view, err := a.read.GetJobStatus(ctx, jobID)
	if err != nil {
		a.logger.Warn().Err(err).Str("job_id", jobID).Msg("notify: load job view failed")
		return
	}
	a.publish(ctx, view)
}

func (a *announcer) publish(ctx context.Context, view domain.JobView) {
	if a == nil || a.notifier == nil {
		return
	}
	if err := a.notifier.Publish(ctx, updateFromView(view)); err != nil {
		a.logger.Warn().Err(err).Str("job_id", view.JobID).Msg("notify: publish failed")
	}
}
