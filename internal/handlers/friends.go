package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/repositories"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
)

// FriendManager edits and lists friend sets.
type FriendManager interface {
	AddFriend(ctx context.Context, userID, friendID string) (*services.Sync, error)
	RemoveFriend(ctx context.Context, userID, friendID string) *services.Sync
	Friends(userID string) []string
	UserIDOf(username string) (string, bool)
}

// AddFriendRequest names the new friend by ID or by username
// swagger:model AddFriendRequest
type AddFriendRequest struct {
	FriendID string `json:"friend_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// FriendsResponse lists friend IDs in ascending order
// swagger:model FriendsResponse
type FriendsResponse struct {
	Friends []string `json:"friends"`
}

// NewListFriendsHandler returns an HTTP handler listing the caller's friends.
// @Summary List friends
// @Tags friends
// @Produce json
// @Success 200 {object} handlers.FriendsResponse
// @Router /me/friends [get]
// @Security BearerAuth
func NewListFriendsHandler(svc FriendManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		friends := svc.Friends(middlewares.UserIDFromContext(r.Context()))
		if friends == nil {
			friends = []string{}
		}
		writeJSON(w, http.StatusOK, FriendsResponse{Friends: friends})
	}
}

// NewAddFriendHandler returns an HTTP handler that befriends two users.
// @Summary Add friend
// @Tags friends
// @Accept json
// @Produce json
// @Param request body handlers.AddFriendRequest true "Friend"
// @Success 202 {object} handlers.AcceptedResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Failure 404 {object} handlers.ErrorResponse "Unknown user"
// @Router /me/friends [post]
// @Security BearerAuth
func NewAddFriendHandler(svc FriendManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddFriendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}

		friendID := req.FriendID
		if friendID == "" && req.Username != "" {
			id, ok := svc.UserIDOf(req.Username)
			if !ok {
				writeError(w, repositories.ErrUnknownUser)
				return
			}
			friendID = id
		}
		if friendID == "" {
			writeBadRequest(w, "friend_id or username is required")
			return
		}

		sync, err := svc.AddFriend(r.Context(), middlewares.UserIDFromContext(r.Context()), friendID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, accepted(sync))
	}
}

// NewRemoveFriendHandler returns an HTTP handler that removes a friend edge.
// @Summary Remove friend
// @Tags friends
// @Produce json
// @Param friendID path string true "Friend user ID"
// @Success 202 {object} handlers.AcceptedResponse
// @Router /me/friends/{friendID} [delete]
// @Security BearerAuth
func NewRemoveFriendHandler(svc FriendManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sync := svc.RemoveFriend(r.Context(), middlewares.UserIDFromContext(r.Context()), chi.URLParam(r, "friendID"))
		writeJSON(w, http.StatusAccepted, accepted(sync))
	}
}
