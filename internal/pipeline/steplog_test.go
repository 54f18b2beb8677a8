package pipeline

import (
	"context"
	"errors"
	"testing"

	"videojobs/internal/domain"
)

func TestCheckAppend(t *testing.T) {
	catalog := threeStepCatalog()
	validationDone := []domain.StepLogEntry{
		entry(1, "validation", domain.SubStatusStarted, 0),
		entry(2, "validation", domain.SubStatusCompleted, 100),
	}
	tests := []struct {
		name    string
		entries []domain.StepLogEntry
		next    domain.StepLogEntry
		want    error
	}{
		{name: "first step", next: entry(0, "validation", domain.SubStatusStarted, 0)},
		{name: "skip ahead", next: entry(0, "synthesis", domain.SubStatusStarted, 0), want: domain.ErrStepOutOfOrder},
		{name: "unknown step", next: entry(0, "mystery", domain.SubStatusStarted, 0), want: domain.ErrStepOutOfOrder},
		{name: "finish without start", next: entry(0, "validation", domain.SubStatusCompleted, 100), want: domain.ErrStepOutOfOrder},
		{name: "next step after completion", entries: validationDone, next: entry(0, "synthesis", domain.SubStatusStarted, 0)},
		{name: "restart completed step", entries: validationDone, next: entry(0, "validation", domain.SubStatusStarted, 0), want: domain.ErrDuplicateStepEntry},
		{name: "second terminal", entries: validationDone, next: entry(0, "validation", domain.SubStatusFailed, 0), want: domain.ErrDuplicateStepEntry},
		{
			name:    "duplicate start",
			entries: []domain.StepLogEntry{entry(1, "validation", domain.SubStatusStarted, 0)},
			next:    entry(0, "validation", domain.SubStatusStarted, 0),
			want:    domain.ErrDuplicateStepEntry,
		},
		{
			name: "earlier step after later started",
			entries: append(append([]domain.StepLogEntry{}, validationDone...),
				entry(3, "synthesis", domain.SubStatusStarted, 0)),
			next: entry(0, "validation", domain.SubStatusFailed, 0),
			want: domain.ErrStepOutOfOrder,
		},
		{
			name: "continue after failure",
			entries: append(append([]domain.StepLogEntry{}, validationDone...),
				entry(3, "synthesis", domain.SubStatusStarted, 0),
				entry(4, "synthesis", domain.SubStatusFailed, 0)),
			next: entry(0, "render", domain.SubStatusStarted, 0),
			want: domain.ErrStepOutOfOrder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAppend(tt.entries, catalog, tt.next)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStepLogLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeStepCatalog())
	view := h.createQueued(t, "acct-1")
	id := view.JobID

	if err := h.steps.Start(ctx, id, "validation", "started"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.steps.ReportProgress(ctx, id, "validation", 60); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	// progress never goes backwards
	if err := h.steps.ReportProgress(ctx, id, "validation", 20); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	entries, _ := h.steps.Entries(ctx, id)
	if entries[0].Progress != 60 {
		t.Fatalf("progress = %d, want 60", entries[0].Progress)
	}
	if err := h.steps.Complete(ctx, id, "validation", "ok"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := h.steps.ReportProgress(ctx, id, "validation", 70); !errors.Is(err, domain.ErrStepOutOfOrder) {
		t.Fatalf("progress on finished step: got %v", err)
	}
	if err := h.steps.Start(ctx, id, "synthesis", "started"); err != nil {
		t.Fatalf("Start synthesis: %v", err)
	}
	if err := h.steps.Fail(ctx, id, "synthesis", domain.KindInvalidInput, "face not detected"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := h.steps.Start(ctx, id, "render", "started"); !errors.Is(err, domain.ErrStepOutOfOrder) {
		t.Fatalf("start after failure: got %v", err)
	}

	entries, err := h.steps.Entries(ctx, id)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i+1 {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
	}
	failed := entries[3]
	if failed.ErrorKind != domain.KindInvalidInput || failed.ErrorDetail != "face not detected" || failed.CompletedAt == nil {
		t.Fatalf("failed entry: %+v", failed)
	}
	if failed.StartedAt != entries[2].StartedAt {
		t.Fatalf("terminal entry should carry the start time")
	}
}
