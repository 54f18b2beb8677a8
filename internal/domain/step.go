package domain

import "time"

// SubStatus enumerates Step Log entry kinds.
type SubStatus string

const (
	SubStatusStarted   SubStatus = "started"
	SubStatusCompleted SubStatus = "completed"
	SubStatusFailed    SubStatus = "failed"
)

// IsTerminal reports whether the entry closes its step.
func (s SubStatus) IsTerminal() bool {
	return s == SubStatusCompleted || s == SubStatusFailed
}

// StepLogEntry is one append-only record of a step's lifecycle.
type StepLogEntry struct {
	JobID       string     `json:"job_id"`
	StepName    string     `json:"step_name"`
	Seq         int        `json:"seq"`
	SubStatus   SubStatus  `json:"sub_status"`
	Message     string     `json:"message,omitempty"`
	Progress    int        `json:"progress"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// StepInput is handed to a step runner.
type StepInput struct {
	JobID          string
	AccountID      string
	StepName       string
	Inputs         []InputRef
	Settings       Settings
	PreviousOutput string
	// ReportProgress may be nil. Values are percentages of the current step.
	ReportProgress func(progress int)
}

// StepOutput is the result of a successful step invocation.
type StepOutput struct {
	OutputRef  string
	DurationMs int64
}
