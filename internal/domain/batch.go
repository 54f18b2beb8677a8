package domain

import (
	"fmt"
	"strings"
	"time"
)

// Priority orders queued jobs for workers. Urgent jobs are claimed first.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"

	DefaultPriority = PriorityMedium
)

// ParsePriority accepts a priority name; empty means DefaultPriority.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPriority, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("%w: priority must be one of low, medium, high, urgent", ErrInvalidSettings)
	}
}

// Rank is the claim order of a priority, lowest first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// PriorityFromRank is the inverse of Rank for stored values.
func PriorityFromRank(rank int) Priority {
	switch rank {
	case 0:
		return PriorityUrgent
	case 1:
		return PriorityHigh
	case 3:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Batch groups jobs submitted together.
type Batch struct {
	ID        string
	AccountID string
	Name      string
	Priority  Priority
	CreatedAt time.Time
}

// BatchStatus summarizes the jobs of a batch.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusPartial    BatchStatus = "partially_completed"
)

// BatchRejection reports a batch item that admission turned away.
type BatchRejection struct {
	Index  int       `json:"index"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

// BatchView is the client-facing read model of a batch.
type BatchView struct {
	BatchID         string            `json:"batch_id"`
	Name            string            `json:"name"`
	Priority        Priority          `json:"priority"`
	Status          BatchStatus       `json:"status"`
	TotalJobs       int               `json:"total_jobs"`
	CompletedJobs   int               `json:"completed_jobs"`
	FailedJobs      int               `json:"failed_jobs"`
	OverallProgress int               `json:"overall_progress"`
	JobStatuses     map[JobStatus]int `json:"job_statuses"`
	CreatedAt       time.Time         `json:"created_at"`
	Jobs            []JobView         `json:"jobs"`
	Rejected        []BatchRejection  `json:"rejected,omitempty"`
}
