package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/repositories"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
)

// ErrorResponse is returned with every non-2xx status
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Internal server error
	Error string `json:"error"`
}

// AcceptedResponse is returned for writes that committed locally
// swagger:model AcceptedResponse
type AcceptedResponse struct {
	// IDs of the mutations queued for the remote store
	MutationIDs []string `json:"mutation_ids"`
}

func accepted(syncs ...*services.Sync) AcceptedResponse {
	ids := make([]string, 0, len(syncs))
	for _, s := range syncs {
		if s == nil || s.Mutation().ID == "" {
			continue
		}
		ids = append(ids, s.Mutation().ID)
	}
	return AcceptedResponse{MutationIDs: ids}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps store errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, repositories.ErrUnknownUser):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrNotAvailable),
		errors.Is(err, repositories.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, repositories.ErrSelfEdge),
		errors.Is(err, repositories.ErrInvalidGoal),
		errors.Is(err, repositories.ErrInvalidProgress),
		errors.Is(err, models.ErrInvalidGoalKind),
		errors.Is(err, models.ErrInvalidRunSpan),
		errors.Is(err, models.ErrInvalidBirthDate),
		errors.Is(err, models.ErrInvalidProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Log.Errorw("internal server error", "err", err)
		writeJSON(w, status, ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}
