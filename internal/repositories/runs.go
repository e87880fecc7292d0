package repositories

import (
	"slices"
	"sync"
	"time"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

type runLog struct {
	mu   sync.RWMutex
	runs []models.Run // ascending by start time, unique start times
}

// RunHistory keeps each user's runs ordered by start time.
type RunHistory struct {
	mu   sync.Mutex
	logs map[string]*runLog
}

func NewRunHistory() *RunHistory {
	return &RunHistory{logs: make(map[string]*runLog)}
}

func (h *RunHistory) logOf(userID string, create bool) *runLog {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.logs[userID]
	if !ok && create {
		l = &runLog{}
		h.logs[userID] = l
	}
	return l
}

func compareStart(r models.Run, start time.Time) int {
	return r.StartTime().Compare(start)
}

// Upsert inserts run or replaces the run with the same start time.
// It reports whether an existing run was replaced.
func (h *RunHistory) Upsert(userID string, run models.Run) bool {
	l := h.logOf(userID, true)
	l.mu.Lock()
	defer l.mu.Unlock()

	i, found := slices.BinarySearchFunc(l.runs, run.StartTime(), compareStart)
	if found {
		l.runs[i] = run
	} else {
		l.runs = slices.Insert(l.runs, i, run)
	}

	logger.Log.Infow("run stored", "userID", userID, "start", run.StartTime(), "replaced", found, "size", len(l.runs))
	return found
}

// Remove deletes the run starting at start. It reports whether a run was removed.
func (h *RunHistory) Remove(userID string, start time.Time) bool {
	l := h.logOf(userID, false)
	if l == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i, found := slices.BinarySearchFunc(l.runs, start.UTC(), compareStart)
	if !found {
		return false
	}
	l.runs = slices.Delete(l.runs, i, i+1)

	logger.Log.Infow("run removed", "userID", userID, "start", start, "size", len(l.runs))
	return true
}

// AllOf returns a snapshot of userID's runs in ascending start order.
func (h *RunHistory) AllOf(userID string) []models.Run {
	l := h.logOf(userID, false)
	if l == nil {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.runs)
}

// Latest returns up to n most recent runs, newest first.
func (h *RunHistory) Latest(userID string, n int) []models.Run {
	all := h.AllOf(userID)
	slices.Reverse(all)
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
