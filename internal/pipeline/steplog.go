package pipeline

import (
	"context"
	"fmt"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// StepLog is the append-only per-job record of step execution. Writes are
// validated against the catalog order before they reach the store.
type StepLog struct {
	store   domain.StepLogStore
	catalog Catalog
	notify  *announcer
	now     func() time.Time
}

// NewStepLog builds a StepLog. notifier may be nil.
func NewStepLog(store domain.StepLogStore, jobs domain.JobStore, catalog Catalog, notifier Notifier, logger infra.Logger) *StepLog {
	return &StepLog{
		store:   store,
		catalog: catalog,
		notify:  &announcer{read: NewReadModel(jobs, store, catalog), notifier: notifier, logger: logger},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Entries returns a job's entries in write order.
func (l *StepLog) Entries(ctx context.Context, jobID string) ([]domain.StepLogEntry, error) {
	return l.store.List(ctx, jobID)
}

// Start records that a step began.
func (l *StepLog) Start(ctx context.Context, jobID, step, message string) error {
	return l.append(ctx, domain.StepLogEntry{
		JobID:     jobID,
		StepName:  step,
		SubStatus: domain.SubStatusStarted,
		Message:   message,
		StartedAt: l.now(),
	})
}

// Complete records a step's success.
func (l *StepLog) Complete(ctx context.Context, jobID, step, message string) error {
	return l.append(ctx, domain.StepLogEntry{
		JobID:     jobID,
		StepName:  step,
		SubStatus: domain.SubStatusCompleted,
		Message:   message,
		Progress:  100,
	})
}

// Fail records a step's failure with the collaborator's detail.
func (l *StepLog) Fail(ctx context.Context, jobID, step string, kind domain.ErrorKind, detail string) error {
	return l.append(ctx, domain.StepLogEntry{
		JobID:       jobID,
		StepName:    step,
		SubStatus:   domain.SubStatusFailed,
		Message:     kind.Summary(),
		ErrorKind:   kind,
		ErrorDetail: detail,
	})
}

// ReportProgress raises the in-flight progress of a started step.
func (l *StepLog) ReportProgress(ctx context.Context, jobID, step string, progress int) error {
	progress = clampPercent(progress)
	entries, err := l.store.List(ctx, jobID)
	if err != nil {
		return err
	}
	open, ok := openEntry(entries, step)
	if !ok {
		return fmt.Errorf("%w: step %q is not running", domain.ErrStepOutOfOrder, step)
	}
	if progress <= open.Progress {
		return nil
	}
	before := Compute(entries, l.catalog)
	if err := l.store.UpdateProgress(ctx, jobID, step, progress); err != nil {
		return err
	}
	for i := range entries {
		if entries[i].Seq == open.Seq {
			entries[i].Progress = progress
		}
	}
	if Compute(entries, l.catalog) != before {
		l.notify.announce(ctx, jobID)
	}
	return nil
}

func (l *StepLog) append(ctx context.Context, entry domain.StepLogEntry) error {
	entries, err := l.store.List(ctx, entry.JobID)
	if err != nil {
		return err
	}
	if err := CheckAppend(entries, l.catalog, entry); err != nil {
		return err
	}
	if entry.SubStatus.IsTerminal() {
		if open, ok := openEntry(entries, entry.StepName); ok {
			entry.StartedAt = open.StartedAt
		}
		done := l.now()
		entry.CompletedAt = &done
	}
	beforeProgress := Compute(entries, l.catalog)
	beforeStep := CurrentStep(entries, l.catalog)
	if err := l.store.Append(ctx, &entry); err != nil {
		return err
	}
	if entry.SubStatus == domain.SubStatusFailed {
		// published by the job's failed transition
		return nil
	}
	after := append(entries, entry)
	if Compute(after, l.catalog) != beforeProgress || CurrentStep(after, l.catalog) != beforeStep {
		l.notify.announce(ctx, entry.JobID)
	}
	return nil
}

// CheckAppend rejects entries that would break catalog order or duplicate a
// step's started or terminal record.
func CheckAppend(entries []domain.StepLogEntry, catalog Catalog, entry domain.StepLogEntry) error {
	pos, ok := catalog.Position(entry.StepName)
	if !ok {
		return fmt.Errorf("%w: unknown step %q", domain.ErrStepOutOfOrder, entry.StepName)
	}
	var started, terminal bool
	completedBefore := make(map[string]bool)
	for _, e := range entries {
		p, known := catalog.Position(e.StepName)
		if !known {
			continue
		}
		if e.SubStatus == domain.SubStatusFailed && e.StepName != entry.StepName {
			return fmt.Errorf("%w: job already failed at step %q", domain.ErrStepOutOfOrder, e.StepName)
		}
		if p > pos {
			return fmt.Errorf("%w: step %q already has entries after %q", domain.ErrStepOutOfOrder, e.StepName, entry.StepName)
		}
		if e.StepName == entry.StepName {
			if e.SubStatus == domain.SubStatusStarted {
				started = true
			} else {
				terminal = true
			}
			continue
		}
		if e.SubStatus == domain.SubStatusCompleted {
			completedBefore[e.StepName] = true
		}
	}

	switch entry.SubStatus {
	case domain.SubStatusStarted:
		if started || terminal {
			return fmt.Errorf("%w: step %q already started", domain.ErrDuplicateStepEntry, entry.StepName)
		}
		for _, prev := range catalog.steps[:pos] {
			if !completedBefore[prev.Name] {
				return fmt.Errorf("%w: step %q cannot start before %q completes", domain.ErrStepOutOfOrder, entry.StepName, prev.Name)
			}
		}
	case domain.SubStatusCompleted, domain.SubStatusFailed:
		if terminal {
			return fmt.Errorf("%w: step %q already finished", domain.ErrDuplicateStepEntry, entry.StepName)
		}
		if !started {
			return fmt.Errorf("%w: step %q finished without starting", domain.ErrStepOutOfOrder, entry.StepName)
		}
	default:
		return fmt.Errorf("%w: unknown sub status %q", domain.ErrStepOutOfOrder, entry.SubStatus)
	}
	return nil
}

func openEntry(entries []domain.StepLogEntry, step string) (domain.StepLogEntry, bool) {
	var open domain.StepLogEntry
	found := false
	for _, e := range entries {
		if e.StepName != step {
			continue
		}
		if e.SubStatus.IsTerminal() {
			return domain.StepLogEntry{}, false
		}
		open = e
		found = true
	}
	return open, found
}
