package repositories

import (
	"errors"
	"sync"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

var (
	// ErrUnknownUser is returned when an operation refers to a userID without an account.
	ErrUnknownUser = errors.New("unknown user")
	// ErrAccountExists is returned when a userID is registered twice.
	ErrAccountExists = errors.New("account already exists")
)

// AccountRepository keeps the immutable registration profiles.
type AccountRepository struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{profiles: make(map[string]models.Profile)}
}

// Create stores a new profile.
func (r *AccountRepository) Create(profile models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.UserID]; ok {
		return ErrAccountExists
	}
	r.profiles[profile.UserID] = profile

	logger.Log.Infow("account created", "userID", profile.UserID, "email", profile.Email)
	return nil
}

// Get returns the profile of userID.
func (r *AccountRepository) Get(userID string) (models.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	return p, ok
}

// Exists reports whether userID is registered.
func (r *AccountRepository) Exists(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

// Delete removes the profile of userID. It only undoes a registration that could not complete.
func (r *AccountRepository) Delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.profiles, userID)
	logger.Log.Infow("account deleted", "userID", userID)
}
