package domain

import "context"

// JobStore persists Job Ledger rows.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	// UpdateStatus applies a transition only if the stored status still equals from.
	UpdateStatus(ctx context.Context, jobID string, from, to JobStatus, details TransitionDetails) (*Job, error)
	// ClaimNext moves the queued job with the highest priority to processing,
	// oldest first within a priority, and returns it or ErrNotFound.
	ClaimNext(ctx context.Context) (*Job, error)
	SetCancelRequested(ctx context.Context, jobID string) error
	// ListByBatch returns a batch's jobs in creation order.
	ListByBatch(ctx context.Context, batchID string) ([]*Job, error)
}

// BatchStore persists batch headers.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
}

// StepLogStore persists Step Log entries.
type StepLogStore interface {
	// Append stores an entry and assigns its sequence number.
	Append(ctx context.Context, entry *StepLogEntry) error
	// UpdateProgress raises the progress of the open started entry of a step.
	UpdateProgress(ctx context.Context, jobID, stepName string, progress int) error
	List(ctx context.Context, jobID string) ([]StepLogEntry, error)
}

// AccountStore is the identity/account collaborator.
type AccountStore interface {
	GetQuota(ctx context.Context, accountID string) (*Quota, error)
	// Reserve atomically re-checks the limits and holds a slot for the job.
	Reserve(ctx context.Context, accountID, jobID string, bytes int64, limits Limits) error
	// IncrementUsage commits the job's usage once; repeated calls are no-ops.
	IncrementUsage(ctx context.Context, accountID, jobID string, bytesAdded int64) error
	// Release drops an uncommitted reservation.
	Release(ctx context.Context, accountID, jobID string) error
}

// ObjectStore is the object storage collaborator.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	SizeOf(ctx context.Context, ref string) (int64, error)
}

// StepRunner invokes the external service backing one catalog step.
type StepRunner interface {
	Invoke(ctx context.Context, in StepInput) (StepOutput, error)
}
