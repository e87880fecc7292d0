package models

import (
	"errors"
	"fmt"
)

// ErrInvalidGoalKind is returned for an unknown goal dimension.
var ErrInvalidGoalKind = errors.New("invalid goal kind")

// GoalKind selects one dimension of a goal triple.
type GoalKind string

// Supported goal kinds
const (
	GoalDistance  GoalKind = "distance"
	GoalTime      GoalKind = "time"
	GoalPathCount GoalKind = "paths"
)

// ParseGoalKind validates a goal kind name.
func ParseGoalKind(s string) (GoalKind, error) {
	switch k := GoalKind(s); k {
	case GoalDistance, GoalTime, GoalPathCount:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGoalKind, s)
}

// Triple holds one value per goal dimension.
type Triple struct {
	Distance float64 `json:"distance_km"` // Kilometers
	Time     float64 `json:"time_min"`    // Minutes of activity
	Paths    int     `json:"paths"`       // Number of completed paths
}

// Add returns the component-wise sum.
func (t Triple) Add(o Triple) Triple {
	return Triple{Distance: t.Distance + o.Distance, Time: t.Time + o.Time, Paths: t.Paths + o.Paths}
}

// Get returns the component selected by kind.
func (t Triple) Get(kind GoalKind) float64 {
	switch kind {
	case GoalDistance:
		return t.Distance
	case GoalTime:
		return t.Time
	default:
		return float64(t.Paths)
	}
}

// With returns a copy of t with the component selected by kind replaced.
func (t Triple) With(kind GoalKind, v float64) Triple {
	switch kind {
	case GoalDistance:
		t.Distance = v
	case GoalTime:
		t.Time = v
	default:
		t.Paths = int(v)
	}
	return t
}

// DailyGoal is the target and progress of one user on one calendar date.
type DailyGoal struct {
	Date     Date   `json:"date"`
	Target   Triple `json:"target"`
	Progress Triple `json:"progress"`
}

// Reached reports whether progress meets the target on all three dimensions.
func (g DailyGoal) Reached() bool {
	return g.Progress.Distance >= g.Target.Distance &&
		g.Progress.Time >= g.Target.Time &&
		g.Progress.Paths >= g.Target.Paths
}

// GoalAndAggregate keeps the standing goals next to the lifetime totals; progress updates touch both.
type GoalAndAggregate struct {
	Goals    Triple `json:"goals"`
	Lifetime Triple `json:"lifetime"`
}

// DefaultGoals apply when registration does not specify goals.
var DefaultGoals = Triple{Distance: 5, Time: 30, Paths: 1}
