package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"videojobs/internal/domain"
	"videojobs/internal/middleware"
	"videojobs/internal/pipeline"
)

const maxBatchBody = 8 << 20

type batchJobRequest struct {
	Inputs   []domain.InputRef `json:"inputs"`
	Settings domain.Settings   `json:"settings"`
}

type createBatchRequest struct {
	Name     string            `json:"batch_name"`
	Priority domain.Priority   `json:"priority"`
	Jobs     []batchJobRequest `json:"jobs"`
}

func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	var req createBatchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBatchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	items := make([]pipeline.BatchItem, 0, len(req.Jobs))
	for _, j := range req.Jobs {
		items = append(items, pipeline.BatchItem{Inputs: j.Inputs, Settings: j.Settings})
	}
	view, err := a.Jobs.CreateBatch(r.Context(), pipeline.BatchRequest{
		AccountID:         accountID,
		Name:              req.Name,
		Priority:          req.Priority,
		Items:             items,
		PreferredLanguage: middleware.LanguageFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/batches/"+view.BatchID)
	a.json(w, http.StatusAccepted, view)
}

func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	a.batchAction(w, r, a.Jobs.GetBatch)
}

func (a *App) CancelBatch(w http.ResponseWriter, r *http.Request) {
	a.batchAction(w, r, a.Jobs.CancelBatch)
}

func (a *App) batchAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, accountID, batchID string) (domain.BatchView, error)) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	batchID := strings.TrimSpace(chi.URLParam(r, "batch_id"))
	if batchID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "batch_id required")
		return
	}
	view, err := fn(r.Context(), accountID, batchID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}
