package repositories

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
)

// ErrNotAvailable is returned when a username is held by another user.
var ErrNotAvailable = errors.New("username is not available")

// identityShards is the number of lock stripes for each direction of the index.
const identityShards = 64

type nameShard struct {
	mu     sync.Mutex
	owners map[string]string // username -> userID
}

type idShard struct {
	mu    sync.Mutex
	names map[string]string // userID -> username
}

// IdentityIndex is the bidirectional userID <-> username map.
//
// Writers lock the userID stripe first and then the username stripes in ascending order,
// so two reservations serialize only when they share a stripe. Both directions are updated
// while all involved stripes are held, so no reader sees a forward mapping without its
// backward counterpart.
type IdentityIndex struct {
	byName [identityShards]nameShard
	byID   [identityShards]idShard
}

func NewIdentityIndex() *IdentityIndex {
	idx := &IdentityIndex{}
	for i := range idx.byName {
		idx.byName[i].owners = make(map[string]string)
		idx.byID[i].names = make(map[string]string)
	}
	return idx
}

func shardOf(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % identityShards)
}

// IsAvailable reports whether nobody currently holds username.
func (x *IdentityIndex) IsAvailable(username string) bool {
	_, taken := x.UserIDOf(username)
	return !taken
}

// UserIDOf resolves a username.
func (x *IdentityIndex) UserIDOf(username string) (string, bool) {
	s := &x.byName[shardOf(username)]
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.owners[username]
	return id, ok
}

// UsernameOf resolves a userID.
func (x *IdentityIndex) UsernameOf(userID string) (string, bool) {
	s := &x.byID[shardOf(userID)]
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.names[userID]
	return name, ok
}

// Reserve binds username to userID and releases the name userID held before.
// Reserving the name the user already holds is a no-op.
func (x *IdentityIndex) Reserve(userID, username string) error {
	ids := &x.byID[shardOf(userID)]
	ids.mu.Lock()
	defer ids.mu.Unlock()

	previous, hadPrevious := ids.names[userID]
	if hadPrevious && previous == username {
		return nil
	}

	stripes := []int{shardOf(username)}
	if hadPrevious {
		if p := shardOf(previous); p != stripes[0] {
			stripes = append(stripes, p)
		}
	}
	sort.Ints(stripes)
	for _, i := range stripes {
		x.byName[i].mu.Lock()
	}
	defer func() {
		for j := len(stripes) - 1; j >= 0; j-- {
			x.byName[stripes[j]].mu.Unlock()
		}
	}()

	target := &x.byName[shardOf(username)]
	if owner, taken := target.owners[username]; taken && owner != userID {
		logger.Log.Debugw("reserve rejected", "userID", userID, "username", username, "owner", owner)
		return ErrNotAvailable
	}

	if hadPrevious {
		delete(x.byName[shardOf(previous)].owners, previous)
	}
	target.owners[username] = userID
	ids.names[userID] = username

	logger.Log.Infow("username reserved", "userID", userID, "username", username, "previous", previous)
	return nil
}

// Release frees the username held by userID, if any.
func (x *IdentityIndex) Release(userID string) {
	ids := &x.byID[shardOf(userID)]
	ids.mu.Lock()
	defer ids.mu.Unlock()

	name, ok := ids.names[userID]
	if !ok {
		return
	}

	names := &x.byName[shardOf(name)]
	names.mu.Lock()
	delete(names.owners, name)
	names.mu.Unlock()
	delete(ids.names, userID)

	logger.Log.Infow("username released", "userID", userID, "username", name)
}
