package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/sqlinline"
)

func TestBatchRepositoryRoundTrip(t *testing.T) {
	sql := newStubSQL()
	repo := NewBatchRepository(sql)
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	err := repo.CreateBatch(context.Background(), &domain.Batch{
		ID:        "batch-1",
		AccountID: "acct-1",
		Name:      "spring promo",
		Priority:  domain.PriorityLow,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	calls := sql.executed(sqlinline.QInsertBatch)
	if len(calls) != 1 || calls[0].args[3] != 3 {
		t.Fatalf("insert calls = %#v", calls)
	}

	sql.onRow(sqlinline.QSelectBatch, "batch-1", "acct-1", "spring promo", 3, created)
	batch, err := repo.GetBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Priority != domain.PriorityLow || batch.Name != "spring promo" || !batch.CreatedAt.Equal(created) {
		t.Fatalf("batch = %+v", batch)
	}

	if _, err := repo.GetBatch(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing batch: got %v", err)
	}
}
