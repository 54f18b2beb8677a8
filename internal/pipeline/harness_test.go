package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"videojobs/internal/adapter/memory"
	"videojobs/internal/domain"
)

type recordingNotifier struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (r *recordingNotifier) Publish(_ context.Context, u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return r.err
}

func (r *recordingNotifier) snapshot() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

type runnerFunc func(ctx context.Context, in domain.StepInput) (domain.StepOutput, error)

func (f runnerFunc) Invoke(ctx context.Context, in domain.StepInput) (domain.StepOutput, error) {
	return f(ctx, in)
}

type harness struct {
	jobs      *memory.JobStore
	stepStore *memory.StepLogStore
	accounts  *memory.AccountStore
	objects   *memory.ObjectStore
	catalog   Catalog
	notifier  *recordingNotifier
	ledger    *Ledger
	steps     *StepLog
	read      *ReadModel
	service   *JobService
}

func testTiers() map[domain.Tier]domain.Limits {
	return map[domain.Tier]domain.Limits{
		domain.TierFree:    {MaxVideosPerMonth: 5, MaxStorageBytes: 1 << 30, MaxVideoDurationSeconds: 300},
		domain.TierPro:     {MaxVideosPerMonth: 100, MaxStorageBytes: 20 << 30, MaxVideoDurationSeconds: 1800},
		domain.TierPremium: {MaxVideosPerMonth: domain.Unlimited, MaxStorageBytes: domain.Unlimited, MaxVideoDurationSeconds: domain.Unlimited},
	}
}

func newHarness(t *testing.T, catalog Catalog) *harness {
	t.Helper()
	logger := zerolog.Nop()
	h := &harness{
		jobs:      memory.NewJobStore(),
		stepStore: memory.NewStepLogStore(),
		accounts:  memory.NewAccountStore(domain.TierFree),
		objects:   memory.NewObjectStore(),
		catalog:   catalog,
		notifier:  &recordingNotifier{},
	}
	h.ledger = NewLedger(LedgerOptions{
		Jobs:     h.jobs,
		Steps:    h.stepStore,
		Accounts: h.accounts,
		Objects:  h.objects,
		Catalog:  catalog,
		Notifier: h.notifier,
		Logger:   logger,
	})
	h.steps = NewStepLog(h.stepStore, h.jobs, catalog, h.notifier, logger)
	h.read = NewReadModel(h.jobs, h.stepStore, catalog)
	h.service = NewJobService(ServiceOptions{
		Ledger:    h.ledger,
		Steps:     h.steps,
		Read:      h.read,
		Admission: NewAdmission(DefaultPresets()),
		Accounts:  h.accounts,
		Objects:   h.objects,
		Batches:   memory.NewBatchStore(),
		Tiers:     testTiers(),
		Logger:    logger,
	})
	return h
}

// orchestrator builds an Orchestrator whose backoff sleeps are recorded instead of waited.
func (h *harness) orchestrator(t *testing.T, runners map[string]domain.StepRunner, retry RetryPolicy) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorOptions{
		Ledger:     h.ledger,
		Steps:      h.steps,
		Catalog:    h.catalog,
		Runners:    runners,
		Retry:      retry,
		CancelPoll: 5 * time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	var mu sync.Mutex
	delays := &[]time.Duration{}
	o.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	return o, delays
}

// succeed writes an artifact per step so completion can be confirmed by storage.
func (h *harness) succeed() runnerFunc {
	return func(ctx context.Context, in domain.StepInput) (domain.StepOutput, error) {
		if in.ReportProgress != nil {
			in.ReportProgress(50)
		}
		ref, err := h.objects.Put(ctx, fmt.Sprintf("jobs/%s/%s.bin", in.JobID, in.StepName), []byte("artifact-"+in.StepName))
		if err != nil {
			return domain.StepOutput{}, err
		}
		return domain.StepOutput{OutputRef: ref, DurationMs: 1}, nil
	}
}

func (h *harness) runners(overrides map[string]domain.StepRunner) map[string]domain.StepRunner {
	out := make(map[string]domain.StepRunner)
	for _, step := range h.catalog.Steps() {
		out[step.Service] = h.succeed()
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func (h *harness) upload(t *testing.T, key string, size int) domain.InputRef {
	t.Helper()
	ref, err := h.objects.Put(context.Background(), key, make([]byte, size))
	if err != nil {
		t.Fatalf("upload %s: %v", key, err)
	}
	return domain.InputRef{Kind: domain.InputKindImage, Ref: ref}
}

func (h *harness) createQueued(t *testing.T, accountID string) domain.JobView {
	t.Helper()
	view, err := h.service.Create(context.Background(), CreateRequest{
		AccountID: accountID,
		Inputs: []domain.InputRef{
			h.upload(t, "uploads/"+accountID+"/face.png", 100),
			{Kind: domain.InputKindText, Text: "hello there"},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return view
}

func (h *harness) job(t *testing.T, jobID string) *domain.Job {
	t.Helper()
	job, err := h.jobs.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job %s: %v", jobID, err)
	}
	return job
}

func (h *harness) quota(t *testing.T, accountID string) *domain.Quota {
	t.Helper()
	q, err := h.service.Quota(context.Background(), accountID)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	return q
}

func threeStepCatalog() Catalog {
	return MustCatalog(
		Step{Name: "validation", DisplayOrder: 1, Weight: 5},
		Step{Name: "synthesis", DisplayOrder: 2, Weight: 65},
		Step{Name: "render", DisplayOrder: 3, Weight: 30},
	)
}
