package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/notify"
	"videojobs/internal/pipeline"
)

// JobAPI is the job service surface the handlers depend on.
type JobAPI interface {
	Create(ctx context.Context, req pipeline.CreateRequest) (domain.JobView, error)
	Submit(ctx context.Context, accountID, jobID string) (domain.JobView, error)
	Cancel(ctx context.Context, accountID, jobID string) (domain.JobView, error)
	Status(ctx context.Context, accountID, jobID string) (domain.JobView, error)
	Steps(ctx context.Context, accountID, jobID string) ([]domain.StepLogEntry, error)
	Quota(ctx context.Context, accountID string) (*domain.Quota, error)

	CreateBatch(ctx context.Context, req pipeline.BatchRequest) (domain.BatchView, error)
	GetBatch(ctx context.Context, accountID, batchID string) (domain.BatchView, error)
	CancelBatch(ctx context.Context, accountID, batchID string) (domain.BatchView, error)

	Presets() []pipeline.PresetInfo
	Estimate(ctx context.Context, req pipeline.EstimateRequest) (pipeline.Estimate, error)
}

// EventFeed serves buffered job updates.
type EventFeed interface {
	Since(jobID string, seq int64) []notify.Event
}

// StatusCache returns the last update published for a job. It backs the
// events feed when the local buffer holds nothing for the job.
type StatusCache interface {
	LastStatus(ctx context.Context, jobID string) (pipeline.Update, error)
}

type App struct {
	Jobs     JobAPI
	Events   EventFeed
	Statuses StatusCache
	Logger   infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, errorBody{Error: kind, Message: msg})
}
