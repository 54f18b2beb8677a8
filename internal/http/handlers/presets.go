package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"videojobs/internal/domain"
	"videojobs/internal/middleware"
	"videojobs/internal/pipeline"
)

type presetsResponse struct {
	Presets []pipeline.PresetInfo `json:"presets"`
}

type estimateRequest struct {
	Quality         domain.Quality `json:"quality"`
	DurationSeconds int            `json:"duration_seconds"`
	InputBytes      int64          `json:"input_bytes"`
}

func (a *App) ListPresets(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, presetsResponse{Presets: a.Jobs.Presets()})
}

// EstimatePreset previews the output size and admission outcome of a job
// without creating it.
func (a *App) EstimatePreset(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	var req estimateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCreateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	estimate, err := a.Jobs.Estimate(r.Context(), pipeline.EstimateRequest{
		AccountID:       accountID,
		Quality:         req.Quality,
		DurationSeconds: req.DurationSeconds,
		InputBytes:      req.InputBytes,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, estimate)
}
