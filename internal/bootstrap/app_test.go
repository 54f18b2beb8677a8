package bootstrap

import (
	"context"
	"testing"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/pipeline"
)

func memoryConfig(t *testing.T) *infra.Config {
	t.Helper()
	return &infra.Config{
		AppEnv:             "test",
		StoreDriver:        infra.StoreDriverMemory,
		StorageBackend:     infra.StorageBackendFilesystem,
		StoragePath:        t.TempDir(),
		DefaultTier:        string(domain.TierFree),
		WorkerPoolSize:     1,
		JobPollInterval:    10 * time.Millisecond,
		CancelPollInterval: 10 * time.Millisecond,
		EventBufferSize:    64,
		InferenceTimeout:   time.Second,
	}
}

func TestNewMemoryAppProcessesJob(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, memoryConfig(t), infra.NopLogger(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	imageRef, err := app.Objects.Put(ctx, "uploads/acct-1/face.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	view, err := app.Service.Create(ctx, pipeline.CreateRequest{
		AccountID: "acct-1",
		Inputs: []domain.InputRef{
			{Kind: domain.InputKindImage, Ref: imageRef},
			{Kind: domain.InputKindText, Text: "Welcome to the show"},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if view.Status != domain.JobStatusQueued {
		t.Fatalf("status = %s, want queued", view.Status)
	}

	ran, err := app.Pool.RunOnce(ctx)
	if err != nil || !ran {
		t.Fatalf("RunOnce() = %v, %v", ran, err)
	}

	final, err := app.Service.Status(ctx, "acct-1", view.JobID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if final.Status != domain.JobStatusCompleted || final.OverallProgress != 100 {
		t.Fatalf("final view = %+v", final)
	}

	events := app.Events.Since(view.JobID, 0)
	if len(events) == 0 || events[len(events)-1].Status != domain.JobStatusCompleted {
		t.Fatalf("events = %+v", events)
	}
	for i := 1; i < len(events); i++ {
		if events[i].OverallProgress < events[i-1].OverallProgress {
			t.Fatalf("progress went backwards: %+v", events)
		}
	}

	quota, err := app.Service.Quota(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Quota() error = %v", err)
	}
	if quota.VideosThisMonth != 1 || quota.StorageUsedBytes == 0 {
		t.Fatalf("quota = %+v", quota)
	}
}

func TestNewRejectsMissingPipelineConfig(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.PipelineConfigPath = "/nonexistent/pipeline.yaml"
	if _, err := New(context.Background(), cfg, infra.NopLogger(), Options{}); err == nil {
		t.Fatalf("expected error for missing pipeline config")
	}
}
