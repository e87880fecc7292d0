package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
)

// GoalManager edits and reads goal rows.
type GoalManager interface {
	SetGoal(ctx context.Context, userID string, date models.Date, kind models.GoalKind, value float64) (models.DailyGoal, *services.Sync, error)
	RecordProgress(ctx context.Context, userID string, date models.Date, delta models.Triple) (models.DailyGoal, *services.Sync, error)
	DailyGoals(userID string) []models.DailyGoal
	TodayGoal(userID string) (models.DailyGoal, error)
	Today() models.Date
}

// SetGoalRequest is the body of PUT /me/goals/{kind}
// swagger:model SetGoalRequest
type SetGoalRequest struct {
	// Must be greater than zero; whole numbers for paths
	// required: true
	Value float64 `json:"value"`
	// Row whose target changes, defaults to today
	Date *models.Date `json:"date,omitempty"`
}

// ProgressRequest is the body of POST /me/progress
// swagger:model ProgressRequest
type ProgressRequest struct {
	// Day the progress belongs to, defaults to today
	Date  *models.Date  `json:"date,omitempty"`
	Delta models.Triple `json:"delta"`
}

// DayResponse carries one goal row
// swagger:model DayResponse
type DayResponse struct {
	Day         models.DailyGoal `json:"day"`
	Reached     bool             `json:"reached"`
	MutationIDs []string         `json:"mutation_ids,omitempty"`
}

// DailyGoalsResponse lists goal rows, most recent first
// swagger:model DailyGoalsResponse
type DailyGoalsResponse struct {
	Days []models.DailyGoal `json:"days"`
}

// NewSetGoalHandler returns an HTTP handler changing one goal dimension.
// @Summary Set goal
// @Tags goals
// @Accept json
// @Produce json
// @Param kind path string true "distance, time or paths"
// @Param request body handlers.SetGoalRequest true "Goal"
// @Success 202 {object} handlers.DayResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Router /me/goals/{kind} [put]
// @Security BearerAuth
func NewSetGoalHandler(svc GoalManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := models.ParseGoalKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, err)
			return
		}

		var req SetGoalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}
		date := svc.Today()
		if req.Date != nil {
			date = *req.Date
		}

		day, sync, err := svc.SetGoal(r.Context(), middlewares.UserIDFromContext(r.Context()), date, kind, req.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, DayResponse{Day: day, Reached: day.Reached(), MutationIDs: accepted(sync).MutationIDs})
	}
}

// NewRecordProgressHandler returns an HTTP handler adding progress to a day and to the lifetime totals.
// @Summary Record progress
// @Tags goals
// @Accept json
// @Produce json
// @Param request body handlers.ProgressRequest true "Progress"
// @Success 202 {object} handlers.DayResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Router /me/progress [post]
// @Security BearerAuth
func NewRecordProgressHandler(svc GoalManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProgressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}
		date := svc.Today()
		if req.Date != nil {
			date = *req.Date
		}

		day, sync, err := svc.RecordProgress(r.Context(), middlewares.UserIDFromContext(r.Context()), date, req.Delta)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, DayResponse{Day: day, Reached: day.Reached(), MutationIDs: accepted(sync).MutationIDs})
	}
}

// NewDailyGoalsHandler returns an HTTP handler listing the caller's goal history.
// @Summary Goal history
// @Tags goals
// @Produce json
// @Success 200 {object} handlers.DailyGoalsResponse
// @Router /me/goals/daily [get]
// @Security BearerAuth
func NewDailyGoalsHandler(svc GoalManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := svc.DailyGoals(middlewares.UserIDFromContext(r.Context()))
		if days == nil {
			days = []models.DailyGoal{}
		}
		writeJSON(w, http.StatusOK, DailyGoalsResponse{Days: days})
	}
}

// NewTodayGoalHandler returns an HTTP handler for today's goal row.
// @Summary Today's goal
// @Tags goals
// @Produce json
// @Success 200 {object} handlers.DayResponse
// @Failure 404 {object} handlers.ErrorResponse
// @Router /me/goals/today [get]
// @Security BearerAuth
func NewTodayGoalHandler(svc GoalManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := svc.TodayGoal(middlewares.UserIDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DayResponse{Day: day, Reached: day.Reached()})
	}
}
