package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"videojobs/internal/domain"
	"videojobs/internal/sqlinline"
)

func TestJobRepositoryGet(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QSelectJob, jobRowValues("job-1", "queued")...)
	repo := NewJobRepository(sql)

	job, err := repo.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.InputBytes != 2048 {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Inputs) != 1 || job.Inputs[0].Ref != "mem://a.png" {
		t.Fatalf("inputs = %+v", job.Inputs)
	}
	if job.Settings.Quality != domain.QualityHigh || job.Settings.DurationSeconds != 45 {
		t.Fatalf("settings = %+v", job.Settings)
	}

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job: got %v", err)
	}
}

func TestJobRepositoryGet_UnknownStatus(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QSelectJob, jobRowValues("job-1", "RUNNING")...)
	if _, err := NewJobRepository(sql).Get(context.Background(), "job-1"); err == nil {
		t.Fatalf("expected status parse error")
	}
}

func TestJobRepositoryUpdateStatus_CompareAndSet(t *testing.T) {
	sql := newStubSQL()
	// the conditional update matches nothing; the follow-up read shows the job moved on
	sql.onRow(sqlinline.QSelectJob, jobRowValues("job-1", "processing")...)
	repo := NewJobRepository(sql)

	_, err := repo.UpdateStatus(context.Background(), "job-1", domain.JobStatusQueued, domain.JobStatusFailed, domain.TransitionDetails{ErrorDetail: "cancelled"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("got %v", err)
	}
	calls := sql.executed(sqlinline.QUpdateJobStatus)
	if len(calls) != 1 {
		t.Fatalf("expected one update, got %d", len(calls))
	}
	if calls[0].args[1] != "queued" || calls[0].args[2] != "failed" || calls[0].args[6] != "cancelled" {
		t.Fatalf("update args = %#v", calls[0].args)
	}
}

func TestJobRepositoryUpdateStatus_ReturnsUpdatedRow(t *testing.T) {
	sql := newStubSQL()
	values := jobRowValues("job-1", "completed")
	values[6] = "mem://out.mp4"
	values[7] = int64(99)
	sql.onRow(sqlinline.QUpdateJobStatus, values...)

	job, err := NewJobRepository(sql).UpdateStatus(context.Background(), "job-1", domain.JobStatusProcessing, domain.JobStatusCompleted, domain.TransitionDetails{OutputRef: "mem://out.mp4", OutputBytes: 99})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if job.OutputRef != "mem://out.mp4" || job.OutputBytes != 99 {
		t.Fatalf("job = %+v", job)
	}
}

func TestJobRepositoryClaimNext_EmptyQueue(t *testing.T) {
	if _, err := NewJobRepository(newStubSQL()).ClaimNext(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestJobRepositorySetCancelRequested(t *testing.T) {
	sql := newStubSQL()
	repo := NewJobRepository(sql)
	if err := repo.SetCancelRequested(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job: got %v", err)
	}
	sql.execTag[sqlinline.QSetJobCancelRequested] = pgconn.NewCommandTag("UPDATE 1")
	if err := repo.SetCancelRequested(context.Background(), "job-1"); err != nil {
		t.Fatalf("SetCancelRequested: %v", err)
	}
}

func TestJobRepositoryCreate_DuplicateID(t *testing.T) {
	sql := newStubSQL()
	sql.execErr[sqlinline.QInsertJob] = &pgconn.PgError{Code: "23505"}
	err := NewJobRepository(sql).Create(context.Background(), &domain.Job{ID: "job-1", AccountID: "acct-1", Status: domain.JobStatusQueued})
	if !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("got %v", err)
	}
}

func TestJobRepositoryCreate_PassesPriorityAndBatch(t *testing.T) {
	sql := newStubSQL()
	err := NewJobRepository(sql).Create(context.Background(), &domain.Job{
		ID:        "job-1",
		AccountID: "acct-1",
		Status:    domain.JobStatusQueued,
		Priority:  domain.PriorityUrgent,
		BatchID:   "batch-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	calls := sql.executed(sqlinline.QInsertJob)
	if len(calls) != 1 {
		t.Fatalf("expected one insert, got %d", len(calls))
	}
	if calls[0].args[7] != 0 || calls[0].args[8] != "batch-1" {
		t.Fatalf("insert args = %#v", calls[0].args)
	}
}

func TestJobRepositoryListByBatch(t *testing.T) {
	sql := newStubSQL()
	first := jobRowValues("job-1", "completed")
	first[15] = 1
	first[16] = "batch-1"
	second := jobRowValues("job-2", "queued")
	second[16] = "batch-1"
	sql.onRows(sqlinline.QListJobsByBatch, first, second)

	jobs, err := NewJobRepository(sql).ListByBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("ListByBatch: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Priority != domain.PriorityHigh || jobs[0].BatchID != "batch-1" {
		t.Fatalf("first job = %+v", jobs[0])
	}
	if jobs[1].Priority != domain.PriorityMedium || jobs[1].Status != domain.JobStatusQueued {
		t.Fatalf("second job = %+v", jobs[1])
	}
}
