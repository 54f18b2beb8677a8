package repo

import (
	"context"
	"fmt"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/sqlinline"
)

// StepLogRepositoryPG implements domain.StepLogStore.
type StepLogRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewStepLogRepository(sql infra.SQLExecutor) *StepLogRepositoryPG {
	return &StepLogRepositoryPG{sql: sql}
}

// Append inserts the entry and stores the assigned sequence number on it.
func (r *StepLogRepositoryPG) Append(ctx context.Context, entry *domain.StepLogEntry) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertStepEntry,
		entry.JobID,
		entry.StepName,
		string(entry.SubStatus),
		entry.Message,
		entry.Progress,
		entry.StartedAt,
		entry.CompletedAt,
		string(entry.ErrorKind),
		entry.ErrorDetail,
	)
	if err := row.Scan(&entry.Seq); err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: step %q %s", domain.ErrDuplicateStepEntry, entry.StepName, entry.SubStatus)
		}
		return err
	}
	return nil
}

func (r *StepLogRepositoryPG) UpdateProgress(ctx context.Context, jobID, stepName string, progress int) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateStepProgress, jobID, stepName, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *StepLogRepositoryPG) List(ctx context.Context, jobID string) ([]domain.StepLogEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStepEntries, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StepLogEntry
	for rows.Next() {
		var (
			e         domain.StepLogEntry
			sub       string
			kind      string
			completed *time.Time
		)
		if err := rows.Scan(
			&e.JobID,
			&e.Seq,
			&e.StepName,
			&sub,
			&e.Message,
			&e.Progress,
			&e.StartedAt,
			&completed,
			&kind,
			&e.ErrorDetail,
		); err != nil {
			return nil, err
		}
		e.SubStatus = domain.SubStatus(sub)
		e.ErrorKind = domain.ErrorKind(kind)
		e.CompletedAt = completed
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.StepLogStore = (*StepLogRepositoryPG)(nil)
