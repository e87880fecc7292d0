package handlers

import (
	"net/http"

	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/stats"
)

// StatsReader computes statistics and milestones.
type StatsReader interface {
	Stats(userID string) stats.Summary
	Milestones(userID string) []models.Milestone
}

// MilestonesResponse lists the milestone catalogue with achievement dates
// swagger:model MilestonesResponse
type MilestonesResponse struct {
	Milestones []models.Milestone `json:"milestones"`
}

// NewStatsHandler returns an HTTP handler summarizing the caller's goal history.
// @Summary Statistics
// @Tags stats
// @Produce json
// @Success 200 {object} stats.Summary
// @Router /me/stats [get]
// @Security BearerAuth
func NewStatsHandler(svc StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Stats(middlewares.UserIDFromContext(r.Context())))
	}
}

// NewMilestonesHandler returns an HTTP handler evaluating milestones for the caller.
// @Summary Milestones
// @Tags stats
// @Produce json
// @Success 200 {object} handlers.MilestonesResponse
// @Router /me/milestones [get]
// @Security BearerAuth
func NewMilestonesHandler(svc StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MilestonesResponse{Milestones: svc.Milestones(middlewares.UserIDFromContext(r.Context()))})
	}
}
