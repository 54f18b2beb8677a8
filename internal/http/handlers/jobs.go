package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"videojobs/internal/domain"
	"videojobs/internal/middleware"
	"videojobs/internal/notify"
	"videojobs/internal/pipeline"
)

const maxCreateBody = 1 << 20

type createJobRequest struct {
	Inputs   []domain.InputRef `json:"inputs"`
	Settings domain.Settings   `json:"settings"`
	Draft    bool              `json:"draft"`
	Priority domain.Priority   `json:"priority"`
}

type stepsResponse struct {
	JobID string       `json:"job_id"`
	Steps []stepRecord `json:"steps"`
}

// stepRecord is the client view of a Step Log entry. Collaborator error text
// stays server side; clients get the error kind and its summary message.
type stepRecord struct {
	StepName    string           `json:"step_name"`
	Seq         int              `json:"seq"`
	SubStatus   domain.SubStatus `json:"sub_status"`
	Message     string           `json:"message,omitempty"`
	Progress    int              `json:"progress"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	ErrorKind   domain.ErrorKind `json:"error_kind,omitempty"`
}

type eventsResponse struct {
	JobID   string        `json:"job_id"`
	Events  []eventRecord `json:"events"`
	LastSeq int64         `json:"last_seq"`
	// Latest is the cached last update, sent when no buffered events matched.
	Latest *pipeline.Update `json:"latest,omitempty"`
}

type eventRecord struct {
	Seq             int64            `json:"seq"`
	Timestamp       string           `json:"timestamp"`
	Status          domain.JobStatus `json:"status"`
	OverallProgress int              `json:"overall_progress"`
	CurrentStepName string           `json:"current_step_name"`
	ErrorDetail     string           `json:"error_detail,omitempty"`
}

func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	var req createJobRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCreateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Inputs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one input is required")
		return
	}
	view, err := a.Jobs.Create(r.Context(), pipeline.CreateRequest{
		AccountID:         accountID,
		Inputs:            req.Inputs,
		Settings:          req.Settings,
		Draft:             req.Draft,
		Priority:          req.Priority,
		PreferredLanguage: middleware.LanguageFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	code := http.StatusAccepted
	if view.Status == domain.JobStatusDraft {
		code = http.StatusCreated
	}
	w.Header().Set("Location", "/v1/jobs/"+view.JobID)
	a.json(w, code, view)
}

func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, http.StatusAccepted, a.Jobs.Submit)
}

func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, http.StatusOK, a.Jobs.Cancel)
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, http.StatusOK, a.Jobs.Status)
}

func (a *App) jobAction(w http.ResponseWriter, r *http.Request, okCode int, fn func(ctx context.Context, accountID, jobID string) (domain.JobView, error)) {
	accountID, jobID, ok := a.jobParams(w, r)
	if !ok {
		return
	}
	view, err := fn(r.Context(), accountID, jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, okCode, view)
}

func (a *App) JobSteps(w http.ResponseWriter, r *http.Request) {
	accountID, jobID, ok := a.jobParams(w, r)
	if !ok {
		return
	}
	entries, err := a.Jobs.Steps(r.Context(), accountID, jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	steps := make([]stepRecord, 0, len(entries))
	for _, e := range entries {
		steps = append(steps, stepRecord{
			StepName:    e.StepName,
			Seq:         e.Seq,
			SubStatus:   e.SubStatus,
			Message:     e.Message,
			Progress:    e.Progress,
			StartedAt:   e.StartedAt,
			CompletedAt: e.CompletedAt,
			ErrorKind:   e.ErrorKind,
		})
	}
	a.json(w, http.StatusOK, stepsResponse{JobID: jobID, Steps: steps})
}

// JobEvents returns buffered updates newer than ?since=<seq>. Clients poll
// with the last_seq of the previous response.
func (a *App) JobEvents(w http.ResponseWriter, r *http.Request) {
	accountID, jobID, ok := a.jobParams(w, r)
	if !ok {
		return
	}
	var since int64
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "since must be a non-negative integer")
			return
		}
		since = v
	}
	if _, err := a.Jobs.Status(r.Context(), accountID, jobID); err != nil {
		a.fail(w, r, err)
		return
	}
	resp := eventsResponse{JobID: jobID, Events: []eventRecord{}, LastSeq: since}
	if a.Events != nil {
		for _, evt := range a.Events.Since(jobID, since) {
			resp.Events = append(resp.Events, eventRecord{
				Seq:             evt.Seq,
				Timestamp:       evt.Timestamp.Format(time.RFC3339Nano),
				Status:          evt.Status,
				OverallProgress: evt.OverallProgress,
				CurrentStepName: evt.CurrentStep,
				ErrorDetail:     evt.ErrorDetail,
			})
			resp.LastSeq = evt.Seq
		}
	}
	if len(resp.Events) == 0 && a.Statuses != nil {
		latest, err := a.Statuses.LastStatus(r.Context(), jobID)
		switch {
		case err == nil:
			resp.Latest = &latest
		case !errors.Is(err, notify.ErrNoStatus):
			a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("http: status cache read failed")
		}
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) Quota(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	quota, err := a.Jobs.Quota(r.Context(), accountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, quota)
}

func (a *App) jobParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return "", "", false
	}
	jobID := strings.TrimSpace(chi.URLParam(r, "job_id"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return "", "", false
	}
	return accountID, jobID, true
}
