package pipeline

import (
	"context"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// Update is a state-change event for one job.
type Update struct {
	JobID           string           `json:"job_id"`
	Status          domain.JobStatus `json:"status"`
	OverallProgress int              `json:"overall_progress"`
	CurrentStep     string           `json:"current_step_name"`
	ErrorDetail     string           `json:"error_detail,omitempty"`
}

// Notifier pushes updates to clients. Delivery is best-effort; clients recover
// the authoritative state through the read model.
type Notifier interface {
	Publish(ctx context.Context, u Update) error
}

// NoopNotifier drops every update.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, Update) error { return nil }

// MultiNotifier fans an update out to several notifiers and logs failures.
type MultiNotifier struct {
	notifiers []Notifier
	logger    infra.Logger
}

// NewMultiNotifier skips nil notifiers.
func NewMultiNotifier(logger infra.Logger, notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Publish never fails; a missed update must not affect the pipeline.
func (m *MultiNotifier) Publish(ctx context.Context, u Update) error {
	for _, n := range m.notifiers {
		if err := n.Publish(ctx, u); err != nil {
			m.logger.Warn().Err(err).Str("job_id", u.JobID).Msg("notify: publish failed")
		}
	}
	return nil
}
