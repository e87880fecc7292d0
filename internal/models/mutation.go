package models

import "time"

// Fields mirrored to the remote store
const (
	FieldProfile  = "profile"
	FieldUsername = "username"
	FieldGoals    = "goals"
	FieldFriends  = "friends"
	FieldRuns     = "runs"
	FieldProgress = "progress"
)

// MutationOp describes how the remote side applies a Mutation.
type MutationOp string

// Supported operations
const (
	OpSet    MutationOp = "set"    // replace the field value
	OpAdd    MutationOp = "add"    // add a member / upsert a keyed entry
	OpRemove MutationOp = "remove" // remove a member / keyed entry
	OpDelta  MutationOp = "delta"  // add numeric deltas; applied at most once per ID
)

// Mutation is one remote write produced after a committed local change.
// ID is stable across retries so that delta application can be deduplicated.
type Mutation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Field     string     `json:"field"`
	Op        MutationOp `json:"op"`
	Value     any        `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
}

// ProgressDelta is the Value of a progress Mutation.
type ProgressDelta struct {
	Date  Date   `json:"date"`
	Delta Triple `json:"delta"`
}

// GoalChange is the Value of a goals Mutation.
type GoalChange struct {
	Date  Date     `json:"date"`
	Kind  GoalKind `json:"kind"`
	Value float64  `json:"value"`
}

// Milestone is a named predicate over a user's history and, once satisfied, the date it was first reached.
type Milestone struct {
	Name       string `json:"name"`
	Achieved   bool   `json:"achieved"`
	AchievedOn *Date  `json:"achieved_on,omitempty"`
}
