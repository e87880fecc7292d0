package models

import (
	"errors"
	"strings"
	"time"
)

// Registration constraints
const (
	MinAge = 10
	MaxAge = 100
)

var (
	// ErrInvalidBirthDate is returned when the age at registration is outside [MinAge, MaxAge].
	ErrInvalidBirthDate = errors.New("date of birth must yield an age between 10 and 100")
	// ErrInvalidProfile is returned when a mandatory profile field is empty.
	ErrInvalidProfile = errors.New("email, first name and last name are required")
)

// Profile holds the fields fixed at registration.
type Profile struct {
	UserID    string    `json:"user_id"`    // Immutable account identifier
	Email     string    `json:"email"`      // Contact email
	FirstName string    `json:"first_name"` // Given name
	LastName  string    `json:"last_name"`  // Family name
	BirthDate Date      `json:"birth_date"` // Date of birth
	CreatedAt time.Time `json:"created_at"` // Registration timestamp
}

// NewProfile validates registration data against the registration time now.
func NewProfile(userID, email, firstName, lastName string, birthDate Date, now time.Time) (Profile, error) {
	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if email == "" || firstName == "" || lastName == "" {
		return Profile{}, ErrInvalidProfile
	}

	if age := AgeAt(birthDate, DateOf(now)); age < MinAge || age > MaxAge {
		return Profile{}, ErrInvalidBirthDate
	}

	return Profile{
		UserID:    userID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: birthDate,
		CreatedAt: now.UTC(),
	}, nil
}

// AgeAt returns the number of completed years between birth and day.
func AgeAt(birth, day Date) int {
	age := day.Year - birth.Year
	if day.Month < birth.Month || (day.Month == birth.Month && day.Day < birth.Day) {
		age--
	}
	return age
}

// UserAccount is the composed read model of one user.
type UserAccount struct {
	Profile
	Username string      `json:"username"`
	Goals    Triple      `json:"goals"`
	Lifetime Triple      `json:"lifetime"`
	Friends  []string    `json:"friends"`
	Runs     []RunView   `json:"runs"`
	Daily    []DailyGoal `json:"daily_goals"`
}
