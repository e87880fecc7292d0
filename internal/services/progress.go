package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/repositories"
	"github.com/sbilibin2017/gw-progress-store/internal/stats"
)

// ErrInvalidUsername is returned for empty usernames.
var ErrInvalidUsername = errors.New("username must not be empty")

// IdentityIndex resolves and reserves usernames.
type IdentityIndex interface {
	IsAvailable(username string) bool
	Reserve(userID, username string) error
	Release(userID string)
	UsernameOf(userID string) (string, bool)
	UserIDOf(username string) (string, bool)
}

// AccountStore keeps registration profiles.
type AccountStore interface {
	Create(profile models.Profile) error
	Get(userID string) (models.Profile, bool)
	Exists(userID string) bool
	Delete(userID string)
}

// FriendGraph keeps symmetric friend edges.
type FriendGraph interface {
	AddEdge(a, b string) error
	RemoveEdge(a, b string)
	FriendsOf(userID string) []string
}

// RunStore keeps ordered run histories.
type RunStore interface {
	Upsert(userID string, run models.Run) bool
	Remove(userID string, start time.Time) bool
	AllOf(userID string) []models.Run
	Latest(userID string, n int) []models.Run
}

// GoalStore keeps daily goals and lifetime aggregates.
type GoalStore interface {
	Open(userID string, goals models.Triple) error
	RecordProgress(userID string, date models.Date, delta models.Triple) (models.DailyGoal, models.GoalAndAggregate, error)
	SetGoal(userID string, date models.Date, kind models.GoalKind, value float64) (models.DailyGoal, models.GoalAndAggregate, error)
	DayOrDefault(userID string, date models.Date) (models.DailyGoal, error)
	Totals(userID string) (models.GoalAndAggregate, bool)
	History(userID string) []models.DailyGoal
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	BirthDate models.Date
	Goals     models.Triple // zero value selects models.DefaultGoals
}

// registration is the Value mirrored when an account is created.
type registration struct {
	Profile  models.Profile `json:"profile"`
	Username string         `json:"username"`
	Goals    models.Triple  `json:"goals"`
}

// ProgressStore is the per-user API over identity, friends, runs and goals.
// Every write commits locally first and is then mirrored through the Replicator;
// the returned Sync reports the remote outcome without undoing the local change.
type ProgressStore struct {
	identity   IdentityIndex
	accounts   AccountStore
	graph      FriendGraph
	runs       RunStore
	goals      GoalStore
	replicator *Replicator
	clock      Clock
	milestones []stats.Milestone

	locks sync.Map // userID -> *sync.Mutex

	achievedMu sync.Mutex
	achieved   map[string]map[string]models.Date
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(
	identity IdentityIndex,
	accounts AccountStore,
	graph FriendGraph,
	runs RunStore,
	goals GoalStore,
	replicator *Replicator,
	clock Clock,
) *ProgressStore {
	if clock == nil {
		clock = SystemClock{}
	}
	if replicator == nil {
		replicator = NewReplicator(nil, 0)
	}
	return &ProgressStore{
		identity:   identity,
		accounts:   accounts,
		graph:      graph,
		runs:       runs,
		goals:      goals,
		replicator: replicator,
		clock:      clock,
		milestones: stats.Catalogue,
		achieved:   make(map[string]map[string]models.Date),
	}
}

// NewInMemoryProgressStore wires a ProgressStore to fresh in-process repositories.
func NewInMemoryProgressStore(replicator *Replicator, clock Clock) *ProgressStore {
	accounts := repositories.NewAccountRepository()
	return NewProgressStore(
		repositories.NewIdentityIndex(),
		accounts,
		repositories.NewSocialGraph(accounts),
		repositories.NewRunHistory(),
		repositories.NewGoalLedger(),
		replicator,
		clock,
	)
}

// lock serializes writes touching the given users. IDs are locked in sorted order.
func (s *ProgressStore) lock(userIDs ...string) func() {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)

	var held []*sync.Mutex
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
		m := mu.(*sync.Mutex)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *ProgressStore) mirror(userID, field string, op models.MutationOp, value any) *Sync {
	return s.replicator.Enqueue(models.Mutation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Field:     field,
		Op:        op,
		Value:     value,
		CreatedAt: s.clock.Now().UTC(),
	})
}

// Today returns the calendar day of the store's clock.
func (s *ProgressStore) Today() models.Date {
	return models.DateOf(s.clock.Now())
}

// dateOf returns the calendar day of t in the location of the store's clock.
func (s *ProgressStore) dateOf(t time.Time) models.Date {
	return models.DateOf(t.In(s.clock.Now().Location()))
}

// Register opens a new account and reserves its username.
func (s *ProgressStore) Register(ctx context.Context, in RegisterInput) (models.UserAccount, *Sync, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return models.UserAccount{}, nil, ErrInvalidUsername
	}

	userID := uuid.NewString()
	profile, err := models.NewProfile(userID, in.Email, in.FirstName, in.LastName, in.BirthDate, s.clock.Now())
	if err != nil {
		logger.Log.Warnw("registration rejected", "username", username, "error", err)
		return models.UserAccount{}, nil, err
	}

	goals := in.Goals
	if goals == (models.Triple{}) {
		goals = models.DefaultGoals
	}
	for _, kind := range []models.GoalKind{models.GoalDistance, models.GoalTime, models.GoalPathCount} {
		if err := repositories.ValidateGoal(kind, goals.Get(kind)); err != nil {
			logger.Log.Warnw("registration rejected", "username", username, "kind", kind, "error", err)
			return models.UserAccount{}, nil, err
		}
	}

	unlock := s.lock(userID)
	defer unlock()

	committed := false
	defer func() {
		if !committed {
			s.locks.Delete(userID)
		}
	}()

	if err := s.identity.Reserve(userID, username); err != nil {
		logger.Log.Warnw("registration rejected", "username", username, "error", err)
		return models.UserAccount{}, nil, err
	}
	if err := s.accounts.Create(profile); err != nil {
		s.identity.Release(userID)
		logger.Log.Errorw("failed to create account", "userID", userID, "error", err)
		return models.UserAccount{}, nil, err
	}
	if err := s.goals.Open(userID, goals); err != nil {
		s.accounts.Delete(userID)
		s.identity.Release(userID)
		logger.Log.Errorw("failed to open goal ledger", "userID", userID, "error", err)
		return models.UserAccount{}, nil, err
	}
	committed = true

	syncResult := s.mirror(userID, models.FieldProfile, models.OpSet, registration{
		Profile:  profile,
		Username: username,
		Goals:    goals,
	})

	account, _ := s.account(userID)
	return account, syncResult, nil
}

// IsAvailable reports whether username can be reserved.
func (s *ProgressStore) IsAvailable(username string) bool {
	return s.identity.IsAvailable(strings.TrimSpace(username))
}

// UserIDOf resolves a username.
func (s *ProgressStore) UserIDOf(username string) (string, bool) {
	return s.identity.UserIDOf(strings.TrimSpace(username))
}

// ChangeUsername moves userID to a new username.
func (s *ProgressStore) ChangeUsername(ctx context.Context, userID, username string) (*Sync, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	if !s.accounts.Exists(userID) {
		return nil, repositories.ErrUnknownUser
	}

	unlock := s.lock(userID)
	defer unlock()

	if current, _ := s.identity.UsernameOf(userID); current == username {
		return completedSync(models.Mutation{UserID: userID, Field: models.FieldUsername, Op: models.OpSet, Value: username}, nil), nil
	}

	if err := s.identity.Reserve(userID, username); err != nil {
		logger.Log.Warnw("username change rejected", "userID", userID, "username", username, "error", err)
		return nil, err
	}
	return s.mirror(userID, models.FieldUsername, models.OpSet, username), nil
}

// Account returns the composed account of userID.
func (s *ProgressStore) Account(userID string) (models.UserAccount, bool) {
	return s.account(userID)
}

func (s *ProgressStore) account(userID string) (models.UserAccount, bool) {
	profile, ok := s.accounts.Get(userID)
	if !ok {
		return models.UserAccount{}, false
	}
	username, _ := s.identity.UsernameOf(userID)
	totals, _ := s.goals.Totals(userID)

	runs := s.runs.AllOf(userID)
	views := make([]models.RunView, len(runs))
	for i, r := range runs {
		views[i] = r.View()
	}

	return models.UserAccount{
		Profile:  profile,
		Username: username,
		Goals:    totals.Goals,
		Lifetime: totals.Lifetime,
		Friends:  s.graph.FriendsOf(userID),
		Runs:     views,
		Daily:    s.goals.History(userID),
	}, true
}

// AddFriend connects userID and friendID.
func (s *ProgressStore) AddFriend(ctx context.Context, userID, friendID string) (*Sync, error) {
	if !s.accounts.Exists(userID) || !s.accounts.Exists(friendID) {
		logger.Log.Warnw("friend add rejected", "userID", userID, "friendID", friendID, "error", repositories.ErrUnknownUser)
		return nil, repositories.ErrUnknownUser
	}

	unlock := s.lock(userID, friendID)
	defer unlock()

	if err := s.graph.AddEdge(userID, friendID); err != nil {
		logger.Log.Warnw("friend add rejected", "userID", userID, "friendID", friendID, "error", err)
		return nil, err
	}
	return s.mirror(userID, models.FieldFriends, models.OpAdd, friendID), nil
}

// RemoveFriend disconnects userID and friendID. Absent edges are ignored.
func (s *ProgressStore) RemoveFriend(ctx context.Context, userID, friendID string) *Sync {
	if !s.accounts.Exists(userID) || !s.accounts.Exists(friendID) {
		return completedSync(models.Mutation{UserID: userID, Field: models.FieldFriends, Op: models.OpRemove, Value: friendID}, nil)
	}

	unlock := s.lock(userID, friendID)
	defer unlock()

	s.graph.RemoveEdge(userID, friendID)
	return s.mirror(userID, models.FieldFriends, models.OpRemove, friendID)
}

// Friends returns the friend IDs of userID.
func (s *ProgressStore) Friends(userID string) []string {
	return s.graph.FriendsOf(userID)
}

// UpsertRun stores run, replacing any run with the same start time.
func (s *ProgressStore) UpsertRun(ctx context.Context, userID string, run models.Run) (*Sync, error) {
	if !s.accounts.Exists(userID) {
		return nil, repositories.ErrUnknownUser
	}

	unlock := s.lock(userID)
	defer unlock()

	s.runs.Upsert(userID, run)
	return s.mirror(userID, models.FieldRuns, models.OpAdd, run.View()), nil
}

// RemoveRun deletes the run that started at start, if any.
func (s *ProgressStore) RemoveRun(ctx context.Context, userID string, start time.Time) *Sync {
	if !s.accounts.Exists(userID) {
		return completedSync(models.Mutation{UserID: userID, Field: models.FieldRuns, Op: models.OpRemove, Value: start.UTC()}, nil)
	}

	unlock := s.lock(userID)
	defer unlock()

	if !s.runs.Remove(userID, start) {
		return completedSync(models.Mutation{UserID: userID, Field: models.FieldRuns, Op: models.OpRemove, Value: start.UTC()}, nil)
	}
	return s.mirror(userID, models.FieldRuns, models.OpRemove, start.UTC())
}

// Runs returns the run history of userID in ascending start order.
func (s *ProgressStore) Runs(userID string) []models.Run {
	return s.runs.AllOf(userID)
}

// LatestRuns returns up to n runs, newest first.
func (s *ProgressStore) LatestRuns(userID string, n int) []models.Run {
	return s.runs.Latest(userID, n)
}

// RecordProgress adds delta to the row of date and to the lifetime aggregate.
func (s *ProgressStore) RecordProgress(ctx context.Context, userID string, date models.Date, delta models.Triple) (models.DailyGoal, *Sync, error) {
	if !s.accounts.Exists(userID) {
		return models.DailyGoal{}, nil, repositories.ErrUnknownUser
	}

	unlock := s.lock(userID)
	defer unlock()

	return s.recordProgress(userID, date, delta)
}

func (s *ProgressStore) recordProgress(userID string, date models.Date, delta models.Triple) (models.DailyGoal, *Sync, error) {
	day, _, err := s.goals.RecordProgress(userID, date, delta)
	if err != nil {
		logger.Log.Warnw("progress rejected", "userID", userID, "date", date.String(), "error", err)
		return models.DailyGoal{}, nil, err
	}
	s.evaluateMilestones(userID)
	return day, s.mirror(userID, models.FieldProgress, models.OpDelta, models.ProgressDelta{Date: date, Delta: delta}), nil
}

// CompleteRun stores a finished run and, when it is new, counts it as progress on its start date.
func (s *ProgressStore) CompleteRun(ctx context.Context, userID string, run models.Run) (models.DailyGoal, []*Sync, error) {
	if !s.accounts.Exists(userID) {
		return models.DailyGoal{}, nil, repositories.ErrUnknownUser
	}

	unlock := s.lock(userID)
	defer unlock()

	date := s.dateOf(run.StartTime())
	if replaced := s.runs.Upsert(userID, run); replaced {
		day, err := s.goals.DayOrDefault(userID, date)
		return day, []*Sync{s.mirror(userID, models.FieldRuns, models.OpAdd, run.View())}, err
	}
	runSync := s.mirror(userID, models.FieldRuns, models.OpAdd, run.View())

	delta := models.Triple{
		Distance: run.Distance() / 1000,
		Time:     run.Duration().Minutes(),
		Paths:    1,
	}
	day, progressSync, err := s.recordProgress(userID, date, delta)
	if err != nil {
		return models.DailyGoal{}, []*Sync{runSync}, err
	}
	return day, []*Sync{runSync, progressSync}, nil
}

// SetGoal changes the standing goal of kind and the target of the row for date.
func (s *ProgressStore) SetGoal(ctx context.Context, userID string, date models.Date, kind models.GoalKind, value float64) (models.DailyGoal, *Sync, error) {
	if !s.accounts.Exists(userID) {
		return models.DailyGoal{}, nil, repositories.ErrUnknownUser
	}

	unlock := s.lock(userID)
	defer unlock()

	day, _, err := s.goals.SetGoal(userID, date, kind, value)
	if err != nil {
		logger.Log.Warnw("goal change rejected", "userID", userID, "kind", kind, "value", value, "error", err)
		return models.DailyGoal{}, nil, err
	}
	s.evaluateMilestones(userID)
	return day, s.mirror(userID, models.FieldGoals, models.OpSet, models.GoalChange{Date: date, Kind: kind, Value: value}), nil
}

// DailyGoals returns the goal history of userID, most recent date first.
func (s *ProgressStore) DailyGoals(userID string) []models.DailyGoal {
	return s.goals.History(userID)
}

// TodayGoal returns today's row, or the row a first update today would create.
func (s *ProgressStore) TodayGoal(userID string) (models.DailyGoal, error) {
	return s.goals.DayOrDefault(userID, s.Today())
}

// Aggregate returns the standing goals and lifetime totals of userID.
func (s *ProgressStore) Aggregate(userID string) (models.GoalAndAggregate, bool) {
	return s.goals.Totals(userID)
}

// Stats summarizes the goal history of userID.
func (s *ProgressStore) Stats(userID string) stats.Summary {
	return stats.Summarize(s.goals.History(userID))
}

// Milestones evaluates the milestone catalogue for userID. Each milestone carries the day
// its predicate first held; once recorded that date never changes.
func (s *ProgressStore) Milestones(userID string) []models.Milestone {
	return s.evaluateMilestones(userID)
}

// evaluateMilestones records milestones reached for the first time. Writes call it
// so achievements are recorded as progress happens.
func (s *ProgressStore) evaluateMilestones(userID string) []models.Milestone {
	history := s.goals.History(userID)

	s.achievedMu.Lock()
	defer s.achievedMu.Unlock()

	result, newly := stats.Evaluate(s.milestones, history, s.achieved[userID])
	if len(newly) > 0 {
		if s.achieved[userID] == nil {
			s.achieved[userID] = make(map[string]models.Date)
		}
		log := logger.ForUser(userID)
		for name, on := range newly {
			s.achieved[userID][name] = on
			log.Infow("milestone achieved", "milestone", name, "date", on.String())
		}
	}
	return result
}

// Retry mirrors m again. Its ID is kept, so delta mutations are applied at most once remotely.
func (s *ProgressStore) Retry(m models.Mutation) *Sync {
	return s.replicator.Enqueue(m)
}

// Close waits for pending remote writes.
func (s *ProgressStore) Close(ctx context.Context) error {
	return s.replicator.Close(ctx)
}
