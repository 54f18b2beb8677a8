package repo

import (
	"context"
	"fmt"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/sqlinline"
)

// BatchRepositoryPG implements domain.BatchStore.
type BatchRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewBatchRepository(sql infra.SQLExecutor) *BatchRepositoryPG {
	return &BatchRepositoryPG{sql: sql}
}

func (r *BatchRepositoryPG) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertBatch,
		batch.ID,
		batch.AccountID,
		batch.Name,
		batch.Priority.Rank(),
		batch.CreatedAt,
	)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: batch %s", domain.ErrDuplicateOperation, batch.ID)
		}
		return err
	}
	return nil
}

func (r *BatchRepositoryPG) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	var (
		batch    domain.Batch
		priority int
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectBatch, batchID).Scan(
		&batch.ID,
		&batch.AccountID,
		&batch.Name,
		&priority,
		&batch.CreatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	batch.Priority = domain.PriorityFromRank(priority)
	return &batch, nil
}

var _ domain.BatchStore = (*BatchRepositoryPG)(nil)
