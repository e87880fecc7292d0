package repositories

import (
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

var (
	// ErrInvalidGoal is returned for goal values that are not strictly positive
	// (or not a whole number for the path count).
	ErrInvalidGoal = errors.New("goal must be greater than zero")
	// ErrInvalidProgress is returned for negative or non-finite progress deltas.
	ErrInvalidProgress = errors.New("progress delta must be non-negative")
)

type ledger struct {
	mu     sync.Mutex
	totals models.GoalAndAggregate
	days   map[models.Date]models.DailyGoal
}

// dayOrNew returns the row for date, or a fresh row targeting the standing goals.
func (l *ledger) dayOrNew(date models.Date) models.DailyGoal {
	if day, ok := l.days[date]; ok {
		return day
	}
	return models.DailyGoal{Date: date, Target: l.totals.Goals}
}

// GoalLedger holds per-date goal rows and the lifetime aggregate of every user.
// Each mutation writes the daily row and the aggregate under the same per-user lock.
type GoalLedger struct {
	mu      sync.RWMutex
	ledgers map[string]*ledger
}

func NewGoalLedger() *GoalLedger {
	return &GoalLedger{ledgers: make(map[string]*ledger)}
}

// Open creates the ledger of a newly registered user.
func (g *GoalLedger) Open(userID string, goals models.Triple) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.ledgers[userID]; ok {
		return ErrAccountExists
	}
	g.ledgers[userID] = &ledger{
		totals: models.GoalAndAggregate{Goals: goals},
		days:   make(map[models.Date]models.DailyGoal),
	}
	return nil
}

func (g *GoalLedger) ledgerOf(userID string) (*ledger, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	l, ok := g.ledgers[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	return l, nil
}

func validDelta(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// RecordProgress adds delta to the row of date and to the lifetime aggregate.
func (g *GoalLedger) RecordProgress(userID string, date models.Date, delta models.Triple) (models.DailyGoal, models.GoalAndAggregate, error) {
	if !validDelta(delta.Distance) || !validDelta(delta.Time) || delta.Paths < 0 {
		return models.DailyGoal{}, models.GoalAndAggregate{}, ErrInvalidProgress
	}

	l, err := g.ledgerOf(userID)
	if err != nil {
		return models.DailyGoal{}, models.GoalAndAggregate{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.dayOrNew(date)
	day.Progress = day.Progress.Add(delta)
	totals := l.totals
	totals.Lifetime = totals.Lifetime.Add(delta)

	l.days[date] = day
	l.totals = totals

	logger.Log.Infow("progress recorded",
		"userID", userID,
		"date", date.String(),
		"delta", delta,
		"progress", day.Progress,
		"lifetime", totals.Lifetime,
	)
	return day, totals, nil
}

// ValidateGoal checks a goal value for kind.
func ValidateGoal(kind models.GoalKind, value float64) error {
	if !(value > 0) || math.IsInf(value, 0) {
		return ErrInvalidGoal
	}
	if kind == models.GoalPathCount && value != math.Trunc(value) {
		return ErrInvalidGoal
	}
	return nil
}

// SetGoal updates the standing goal of kind and the target of the row for date.
func (g *GoalLedger) SetGoal(userID string, date models.Date, kind models.GoalKind, value float64) (models.DailyGoal, models.GoalAndAggregate, error) {
	if err := ValidateGoal(kind, value); err != nil {
		return models.DailyGoal{}, models.GoalAndAggregate{}, err
	}

	l, err := g.ledgerOf(userID)
	if err != nil {
		return models.DailyGoal{}, models.GoalAndAggregate{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A new row takes the other two standing goals before the change is applied.
	day := l.dayOrNew(date)
	day.Target = day.Target.With(kind, value)
	totals := l.totals
	totals.Goals = totals.Goals.With(kind, value)

	l.days[date] = day
	l.totals = totals

	logger.Log.Infow("goal set", "userID", userID, "date", date.String(), "kind", kind, "value", value)
	return day, totals, nil
}

// Day returns the stored row for date.
func (g *GoalLedger) Day(userID string, date models.Date) (models.DailyGoal, bool) {
	l, err := g.ledgerOf(userID)
	if err != nil {
		return models.DailyGoal{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day, ok := l.days[date]
	return day, ok
}

// DayOrDefault returns the stored row for date, or the row a first update would create.
func (g *GoalLedger) DayOrDefault(userID string, date models.Date) (models.DailyGoal, error) {
	l, err := g.ledgerOf(userID)
	if err != nil {
		return models.DailyGoal{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dayOrNew(date), nil
}

// Totals returns the standing goals and lifetime aggregate.
func (g *GoalLedger) Totals(userID string) (models.GoalAndAggregate, bool) {
	l, err := g.ledgerOf(userID)
	if err != nil {
		return models.GoalAndAggregate{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals, true
}

// History returns all rows of userID, most recent date first.
func (g *GoalLedger) History(userID string) []models.DailyGoal {
	l, err := g.ledgerOf(userID)
	if err != nil {
		return nil
	}

	l.mu.Lock()
	out := make([]models.DailyGoal, 0, len(l.days))
	for _, day := range l.days {
		out = append(out, day)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date)
	})
	return out
}
