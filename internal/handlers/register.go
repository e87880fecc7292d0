package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
)

// Registerer defines the interface that the service must implement.
type Registerer interface {
	Register(ctx context.Context, in services.RegisterInput) (models.UserAccount, *services.Sync, error)
}

// TokenGenerator issues access tokens for new accounts.
type TokenGenerator interface {
	Generate(ctx context.Context, userID string) (string, error)
}

// RegisterRequest represents the JSON body for user registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	// Username
	// required: true
	// default: john_doe
	Username string `json:"username"`

	// Email
	// required: true
	// default: john@example.com
	Email string `json:"email"`

	// First name
	// required: true
	FirstName string `json:"first_name"`

	// Last name
	// required: true
	LastName string `json:"last_name"`

	// Date of birth, YYYY-MM-DD
	// required: true
	// default: 1990-05-17
	BirthDate models.Date `json:"birth_date"`

	// Initial goals, defaults to 5 km, 30 min and 1 path
	Goals *models.Triple `json:"goals,omitempty"`
}

// RegisterResponse represents a successful registration response
// swagger:model RegisterResponse
type RegisterResponse struct {
	Account     models.UserAccount `json:"account"`
	Token       string             `json:"token"`
	MutationIDs []string           `json:"mutation_ids"`
}

// NewRegisterHandler returns an HTTP handler for user registration.
// @Summary Register a new user
// @Description Creates an account, reserves its username and returns an access token.
// @Tags auth
// @Accept json
// @Produce json
// @Param registerRequest body handlers.RegisterRequest true "User registration request"
// @Success 201 {object} handlers.RegisterResponse "User successfully registered"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 409 {object} handlers.ErrorResponse "Username already taken"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /register [post]
func NewRegisterHandler(svc Registerer, tokens TokenGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}

		in := services.RegisterInput{
			Username:  req.Username,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			BirthDate: req.BirthDate,
		}
		if req.Goals != nil {
			in.Goals = *req.Goals
		}

		account, sync, err := svc.Register(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}

		token, err := tokens.Generate(r.Context(), account.UserID)
		if err != nil {
			logger.Log.Errorw("failed to generate token", "userID", account.UserID, "err", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
			return
		}

		writeJSON(w, http.StatusCreated, RegisterResponse{
			Account:     account,
			Token:       token,
			MutationIDs: accepted(sync).MutationIDs,
		})
	}
}
