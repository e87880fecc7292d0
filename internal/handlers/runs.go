package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
)

// RunManager edits and lists run histories.
type RunManager interface {
	UpsertRun(ctx context.Context, userID string, run models.Run) (*services.Sync, error)
	CompleteRun(ctx context.Context, userID string, run models.Run) (models.DailyGoal, []*services.Sync, error)
	RemoveRun(ctx context.Context, userID string, start time.Time) *services.Sync
	Runs(userID string) []models.Run
	LatestRuns(userID string, n int) []models.Run
}

// RunRequest is a recorded run
// swagger:model RunRequest
type RunRequest struct {
	// Sections of the path; a pause starts a new section
	Path []models.Section `json:"path"`
	// required: true
	StartTime time.Time `json:"start_time"`
	// required: true
	EndTime time.Time `json:"end_time"`
}

// RunsResponse lists runs
// swagger:model RunsResponse
type RunsResponse struct {
	Runs []models.RunView `json:"runs"`
}

// CompleteRunResponse carries the updated goal row of the run's date
// swagger:model CompleteRunResponse
type CompleteRunResponse struct {
	Day         models.DailyGoal `json:"day"`
	MutationIDs []string         `json:"mutation_ids"`
}

func decodeRun(r *http.Request) (models.Run, bool, error) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.Run{}, false, nil
	}
	run, err := models.NewRun(req.Path, req.StartTime, req.EndTime)
	return run, true, err
}

// NewListRunsHandler returns an HTTP handler listing the caller's runs.
// Without the latest parameter runs are in ascending start order, with it newest first.
// @Summary List runs
// @Tags runs
// @Produce json
// @Param latest query int false "Return only the N most recent runs"
// @Success 200 {object} handlers.RunsResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Router /me/runs [get]
// @Security BearerAuth
func NewListRunsHandler(svc RunManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middlewares.UserIDFromContext(r.Context())

		var runs []models.Run
		if latest := r.URL.Query().Get("latest"); latest != "" {
			n, err := strconv.Atoi(latest)
			if err != nil || n < 0 {
				writeBadRequest(w, "latest must be a non-negative integer")
				return
			}
			runs = svc.LatestRuns(userID, n)
		} else {
			runs = svc.Runs(userID)
		}

		views := make([]models.RunView, len(runs))
		for i, run := range runs {
			views[i] = run.View()
		}
		writeJSON(w, http.StatusOK, RunsResponse{Runs: views})
	}
}

// NewUpsertRunHandler returns an HTTP handler storing a run without touching goals.
// @Summary Store run
// @Tags runs
// @Accept json
// @Produce json
// @Param request body handlers.RunRequest true "Run"
// @Success 202 {object} handlers.AcceptedResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Router /me/runs [put]
// @Security BearerAuth
func NewUpsertRunHandler(svc RunManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok, err := decodeRun(r)
		if !ok {
			writeBadRequest(w, "Invalid request body")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		sync, err := svc.UpsertRun(r.Context(), middlewares.UserIDFromContext(r.Context()), run)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, accepted(sync))
	}
}

// NewCompleteRunHandler returns an HTTP handler storing a run and counting it towards the day's goal.
// @Summary Complete run
// @Tags runs
// @Accept json
// @Produce json
// @Param request body handlers.RunRequest true "Run"
// @Success 202 {object} handlers.CompleteRunResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Router /me/runs/complete [post]
// @Security BearerAuth
func NewCompleteRunHandler(svc RunManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok, err := decodeRun(r)
		if !ok {
			writeBadRequest(w, "Invalid request body")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		day, syncs, err := svc.CompleteRun(r.Context(), middlewares.UserIDFromContext(r.Context()), run)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CompleteRunResponse{Day: day, MutationIDs: accepted(syncs...).MutationIDs})
	}
}

// NewRemoveRunHandler returns an HTTP handler deleting the run that started at {start} (RFC 3339).
// @Summary Remove run
// @Tags runs
// @Produce json
// @Param start path string true "Start time, RFC 3339"
// @Success 202 {object} handlers.AcceptedResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Router /me/runs/{start} [delete]
// @Security BearerAuth
func NewRemoveRunHandler(svc RunManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(time.RFC3339Nano, chi.URLParam(r, "start"))
		if err != nil {
			writeBadRequest(w, "start must be an RFC 3339 timestamp")
			return
		}

		sync := svc.RemoveRun(r.Context(), middlewares.UserIDFromContext(r.Context()), start)
		writeJSON(w, http.StatusAccepted, accepted(sync))
	}
}
