package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"videojobs/internal/domain"
)

func TestJobServiceCreate_NormalizesSettings(t *testing.T) {
	h := newHarness(t, threeStepCatalog())
	view, err := h.service.Create(context.Background(), CreateRequest{
		AccountID:         "acct-1",
		Inputs:            []domain.InputRef{{Kind: domain.InputKindText, Text: "script"}},
		PreferredLanguage: "ar-EG",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job := h.job(t, view.JobID)
	want := domain.Settings{Quality: domain.QualityMedium, Speed: 1, Voice: domain.VoiceFemale, Language: "ar", DurationSeconds: 30}
	if job.Settings != want {
		t.Fatalf("settings = %+v, want %+v", job.Settings, want)
	}
	if view.Status != domain.JobStatusQueued || view.OverallProgress != 0 {
		t.Fatalf("view = %+v", view)
	}
}

func TestJobServiceCreate_RejectsBadRequests(t *testing.T) {
	h := newHarness(t, threeStepCatalog())
	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{name: "no account", req: CreateRequest{Inputs: []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}}}, want: domain.ErrUnauthorized},
		{name: "no inputs", req: CreateRequest{AccountID: "a"}, want: domain.ErrInvalidSettings},
		{name: "missing upload", req: CreateRequest{AccountID: "a", Inputs: []domain.InputRef{{Kind: domain.InputKindImage, Ref: "mem://nope.png"}}}, want: domain.ErrInvalidSettings},
		{name: "unknown input kind", req: CreateRequest{AccountID: "a", Inputs: []domain.InputRef{{Kind: "video", Ref: "x"}}}, want: domain.ErrInvalidSettings},
		{name: "bad speed", req: CreateRequest{AccountID: "a", Inputs: []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}}, Settings: domain.Settings{Speed: 3}}, want: domain.ErrInvalidSettings},
		{name: "duration over plan", req: CreateRequest{AccountID: "a", Inputs: []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}}, Settings: domain.Settings{DurationSeconds: 301}}, want: domain.ErrDurationExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.service.Create(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJobServiceCreate_QuotaExhausted(t *testing.T) {
	h := newHarness(t, threeStepCatalog())
	h.accounts.SetUsage("acct-1", 5, 0)
	_, err := h.service.Create(context.Background(), CreateRequest{
		AccountID: "acct-1",
		Inputs:    []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}},
	})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("got %v", err)
	}
	if q := h.quota(t, "acct-1"); q.PendingVideos != 0 {
		t.Fatalf("rejected job holds a reservation: %+v", q)
	}
}

func TestJobServiceCreate_ConcurrentAdmission(t *testing.T) {
	h := newHarness(t, threeStepCatalog())
	h.accounts.SetUsage("acct-1", 4, 0)

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Create(context.Background(), CreateRequest{
				AccountID: "acct-1",
				Inputs:    []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 || rejected != attempts-1 {
		t.Fatalf("accepted %d, rejected %d", accepted, rejected)
	}
}

func TestJobServiceDraftSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeStepCatalog())
	draft, err := h.service.Create(ctx, CreateRequest{
		AccountID: "acct-1",
		Inputs:    []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}},
		Draft:     true,
	})
	if err != nil {
		t.Fatalf("Create draft: %v", err)
	}
	if draft.Status != domain.JobStatusDraft {
		t.Fatalf("status = %s", draft.Status)
	}
	if q := h.quota(t, "acct-1"); q.PendingVideos != 0 {
		t.Fatalf("draft must not reserve quota: %+v", q)
	}
	if _, err := h.ledger.Claim(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("drafts must not be claimable, got %v", err)
	}

	if _, err := h.service.Submit(ctx, "acct-2", draft.JobID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign submit: got %v", err)
	}
	queued, err := h.service.Submit(ctx, "acct-1", draft.JobID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if queued.Status != domain.JobStatusQueued {
		t.Fatalf("status = %s", queued.Status)
	}
	if q := h.quota(t, "acct-1"); q.PendingVideos != 1 {
		t.Fatalf("submit must reserve quota: %+v", q)
	}
	if _, err := h.service.Submit(ctx, "acct-1", draft.JobID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second submit: got %v", err)
	}
}

func TestJobServiceSubmit_RejectedDraftStaysDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeStepCatalog())
	draft, err := h.service.Create(ctx, CreateRequest{
		AccountID: "acct-1",
		Inputs:    []domain.InputRef{{Kind: domain.InputKindText, Text: "x"}},
		Draft:     true,
	})
	if err != nil {
		t.Fatalf("Create draft: %v", err)
	}
	h.accounts.SetUsage("acct-1", 5, 0)
	if _, err := h.service.Submit(ctx, "acct-1", draft.JobID); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("Submit: got %v", err)
	}
	if job := h.job(t, draft.JobID); job.Status != domain.JobStatusDraft {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestJobServiceOwnership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeStepCatalog())
	view := h.createQueued(t, "acct-1")

	if _, err := h.service.Status(ctx, "acct-2", view.JobID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign status: got %v", err)
	}
	if _, err := h.service.Steps(ctx, "acct-2", view.JobID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign steps: got %v", err)
	}
	if _, err := h.service.Cancel(ctx, "acct-2", view.JobID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign cancel: got %v", err)
	}
	if _, err := h.service.Status(ctx, "acct-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job: got %v", err)
	}
	cancelled, err := h.service.Cancel(ctx, "acct-1", view.JobID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.JobStatusFailed || cancelled.ErrorDetail != "cancelled" {
		t.Fatalf("cancelled view: %+v", cancelled)
	}
}

func TestJobServiceQuotaAppliesTierLimits(t *testing.T) {
	h := newHarness(t, threeStepCatalog())
	h.accounts.SetTier("acct-9", domain.TierPremium)
	q := h.quota(t, "acct-9")
	if q.Tier != domain.TierPremium || q.Limits.MaxVideosPerMonth != domain.Unlimited {
		t.Fatalf("quota = %+v", q)
	}
}
