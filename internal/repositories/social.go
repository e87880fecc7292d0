package repositories

import (
	"errors"
	"sort"
	"sync"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
)

// ErrSelfEdge is returned when a user tries to befriend themselves.
var ErrSelfEdge = errors.New("cannot add yourself as a friend")

// UserChecker reports whether a userID is known.
type UserChecker interface {
	Exists(userID string) bool
}

// SocialGraph stores symmetric friend edges. Both halves of an edge change under one lock,
// so a reader never observes an edge on one side only.
type SocialGraph struct {
	mu      sync.RWMutex
	users   UserChecker
	friends map[string]map[string]struct{}
}

func NewSocialGraph(users UserChecker) *SocialGraph {
	return &SocialGraph{
		users:   users,
		friends: make(map[string]map[string]struct{}),
	}
}

// AddEdge connects a and b. Both must be known users.
func (g *SocialGraph) AddEdge(a, b string) error {
	if a == b {
		return ErrSelfEdge
	}
	if !g.users.Exists(a) || !g.users.Exists(b) {
		logger.Log.Debugw("add edge rejected", "a", a, "b", b)
		return ErrUnknownUser
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.link(a, b)
	g.link(b, a)

	logger.Log.Infow("friend edge added", "a", a, "b", b)
	return nil
}

func (g *SocialGraph) link(from, to string) {
	set, ok := g.friends[from]
	if !ok {
		set = make(map[string]struct{})
		g.friends[from] = set
	}
	set[to] = struct{}{}
}

// RemoveEdge disconnects a and b. Missing edges are ignored.
func (g *SocialGraph) RemoveEdge(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.friends[a], b)
	delete(g.friends[b], a)

	logger.Log.Infow("friend edge removed", "a", a, "b", b)
}

// FriendsOf returns a sorted snapshot of userID's friends.
func (g *SocialGraph) FriendsOf(userID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.friends[userID]))
	for id := range g.friends[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Connected reports whether a and b are friends.
func (g *SocialGraph) Connected(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.friends[a][b]
	return ok
}
