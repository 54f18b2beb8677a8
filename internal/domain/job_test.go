package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanTransitionAllowsLifecycle(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
	}{
		{JobStatusDraft, JobStatusQueued},
		{JobStatusDraft, JobStatusFailed},
		{JobStatusQueued, JobStatusProcessing},
		{JobStatusQueued, JobStatusFailed},
		{JobStatusProcessing, JobStatusCompleted},
		{JobStatusProcessing, JobStatusFailed},
	}
	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransitionRejects(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
	}{
		{JobStatusDraft, JobStatusProcessing},
		{JobStatusDraft, JobStatusCompleted},
		{JobStatusQueued, JobStatusCompleted},
		{JobStatusProcessing, JobStatusQueued},
		{JobStatusCompleted, JobStatusFailed},
		{JobStatusFailed, JobStatusQueued},
		{JobStatusFailed, JobStatusProcessing},
		{"bogus", JobStatusQueued},
	}
	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	if _, err := ParseJobStatus("running"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	got, err := ParseJobStatus("queued")
	if err != nil || got != JobStatusQueued {
		t.Fatalf("ParseJobStatus(queued) = %q, %v", got, err)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewStepError(KindInvalidInput, "bad image")); got != KindInvalidInput {
		t.Fatalf("KindOf(step error) = %q", got)
	}
	wrapped := fmt.Errorf("lip_sync: %w", NewStepError(KindUnsupported, "codec"))
	if got := KindOf(wrapped); got != KindUnsupported {
		t.Fatalf("KindOf(wrapped) = %q", got)
	}
	if got := KindOf(errors.New("boom")); got != KindTransient {
		t.Fatalf("KindOf(plain) = %q, want transient", got)
	}
	if got := KindOf(ErrCancelled); got != KindCancelled {
		t.Fatalf("KindOf(cancelled) = %q", got)
	}
	if KindInvalidInput.Retryable() || !KindTimeout.Retryable() || !KindTransient.Retryable() {
		t.Fatal("unexpected retryable classification")
	}
}
