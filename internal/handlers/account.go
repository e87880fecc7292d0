package handlers

import (
	"net/http"

	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/repositories"
)

// AccountReader returns composed accounts.
type AccountReader interface {
	Account(userID string) (models.UserAccount, bool)
}

// NewAccountHandler returns an HTTP handler for the caller's account.
// @Summary Get own account
// @Tags account
// @Produce json
// @Success 200 {object} models.UserAccount
// @Failure 404 {object} handlers.ErrorResponse
// @Router /me [get]
// @Security BearerAuth
func NewAccountHandler(svc AccountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := svc.Account(middlewares.UserIDFromContext(r.Context()))
		if !ok {
			writeError(w, repositories.ErrUnknownUser)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}
