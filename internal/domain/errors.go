package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidSettings    = errors.New("invalid settings")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrStorageExceeded    = errors.New("storage exceeded")
	ErrDurationExceeded   = errors.New("duration exceeded")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrStepOutOfOrder     = errors.New("step out of order")
	ErrDuplicateStepEntry = errors.New("duplicate step entry")
	ErrCancelled          = errors.New("cancelled")
	ErrDuplicateOperation = errors.New("duplicate operation")
	// ErrUsageNotRecorded means a job reached completed but its usage could
	// not be committed to the account.
	ErrUsageNotRecorded = errors.New("usage not recorded")
)

// ErrorKind classifies failures surfaced by admission and steps.
type ErrorKind string

const (
	KindQuotaExceeded     ErrorKind = "quota_exceeded"
	KindStorageExceeded   ErrorKind = "storage_exceeded"
	KindDurationExceeded  ErrorKind = "duration_exceeded"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindTimeout           ErrorKind = "timeout"
	KindTransient         ErrorKind = "transient"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindUnsupported       ErrorKind = "unsupported"
	KindCancelled         ErrorKind = "cancelled"
)

// Retryable reports whether a step failure of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindTimeout
}

// Summary is the user-facing description of a failure kind.
func (k ErrorKind) Summary() string {
	switch k {
	case KindTimeout:
		return "processing timed out"
	case KindTransient:
		return "processing service unavailable"
	case KindInvalidInput:
		return "invalid input"
	case KindUnsupported:
		return "unsupported input or settings"
	case KindCancelled:
		return "cancelled"
	case KindQuotaExceeded:
		return "monthly video quota exceeded"
	case KindStorageExceeded:
		return "storage limit exceeded"
	case KindDurationExceeded:
		return "requested duration exceeds plan limit"
	default:
		return "internal error"
	}
}

// StepError is returned by step runners.
type StepError struct {
	Kind    ErrorKind
	Message string
}

func (e *StepError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewStepError builds a StepError.
func NewStepError(kind ErrorKind, format string, args ...any) *StepError {
	return &StepError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of a step failure. Unclassified errors are transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	return KindTransient
}
