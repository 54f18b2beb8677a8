package domain

import (
	"fmt"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ParseJobStatus converts a stored value into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusDraft, JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return JobStatus(s), nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition enforces the job state machine edges. Failing a draft or queued
// job is the cancellation path.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusDraft:
		return to == JobStatusQueued || to == JobStatusFailed
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false
	default:
		return false
	}
}

// Quality enumerates output quality presets.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Voice enumerates narration voices.
type Voice string

const (
	VoiceMale   Voice = "male"
	VoiceFemale Voice = "female"
)

// InputKind classifies a job input reference.
type InputKind string

const (
	InputKindImage InputKind = "image"
	InputKindAudio InputKind = "audio"
	InputKindText  InputKind = "text"
)

// InputRef points at an uploaded input. Text inputs carry their content inline.
type InputRef struct {
	Kind InputKind `json:"kind"`
	Ref  string    `json:"ref,omitempty"`
	Text string    `json:"text,omitempty"`
}

// Settings controls how a job is rendered.
type Settings struct {
	Quality         Quality `json:"quality"`
	Speed           float64 `json:"speed"`
	Voice           Voice   `json:"voice"`
	Language        string  `json:"language"`
	DurationSeconds int     `json:"duration_seconds"`
}

// Job is one request to turn inputs into a video artifact.
type Job struct {
	ID         string
	AccountID  string
	Inputs     []InputRef
	Settings   Settings
	InputBytes int64
	Priority   Priority
	// BatchID is empty for jobs created on their own.
	BatchID               string
	Status                JobStatus
	OutputRef             string
	OutputBytes           int64
	ErrorKind             ErrorKind
	ErrorDetail           string
	CancelRequested       bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

// TransitionDetails carries the payload required by some transitions.
type TransitionDetails struct {
	OutputRef   string
	OutputBytes int64
	ErrorKind   ErrorKind
	ErrorDetail string
}

// JobView is the client-facing read model of a job.
type JobView struct {
	JobID           string    `json:"job_id"`
	Status          JobStatus `json:"status"`
	OverallProgress int       `json:"overall_progress"`
	CurrentStepName string    `json:"current_step_name"`
	ErrorDetail     string    `json:"error_detail,omitempty"`
}
