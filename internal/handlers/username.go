package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
)

// UsernameResolver answers username lookups.
type UsernameResolver interface {
	IsAvailable(username string) bool
	UserIDOf(username string) (string, bool)
}

// UsernameChanger renames accounts.
type UsernameChanger interface {
	ChangeUsername(ctx context.Context, userID, username string) (*services.Sync, error)
}

// UsernameResponse describes the state of a username
// swagger:model UsernameResponse
type UsernameResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	UserID    string `json:"user_id,omitempty"`
}

// ChangeUsernameRequest is the body of PUT /me/username
// swagger:model ChangeUsernameRequest
type ChangeUsernameRequest struct {
	// required: true
	Username string `json:"username"`
}

// NewUsernameHandler returns an HTTP handler reporting whether a username is free.
// @Summary Check a username
// @Tags identity
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} handlers.UsernameResponse
// @Router /usernames/{username} [get]
func NewUsernameHandler(svc UsernameResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		resp := UsernameResponse{Username: username, Available: svc.IsAvailable(username)}
		if id, ok := svc.UserIDOf(username); ok {
			resp.UserID = id
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// NewChangeUsernameHandler returns an HTTP handler that renames the caller.
// @Summary Change username
// @Tags identity
// @Accept json
// @Produce json
// @Param request body handlers.ChangeUsernameRequest true "New username"
// @Success 202 {object} handlers.AcceptedResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Failure 409 {object} handlers.ErrorResponse "Username already taken"
// @Router /me/username [put]
// @Security BearerAuth
func NewChangeUsernameHandler(svc UsernameChanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChangeUsernameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}

		sync, err := svc.ChangeUsername(r.Context(), middlewares.UserIDFromContext(r.Context()), req.Username)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, accepted(sync))
	}
}
