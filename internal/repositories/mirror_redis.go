package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// applyDeltaScript adds a progress delta to the day and lifetime hashes unless the
// mutation ID was already applied. KEYS: dedup, day, lifetime. ARGV: ttl, distance, time, paths.
var applyDeltaScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1]) then
	return 0
end
redis.call('HINCRBYFLOAT', KEYS[2], 'distance', ARGV[2])
redis.call('HINCRBYFLOAT', KEYS[2], 'time', ARGV[3])
redis.call('HINCRBY', KEYS[2], 'paths', ARGV[4])
redis.call('HINCRBYFLOAT', KEYS[3], 'distance', ARGV[2])
redis.call('HINCRBYFLOAT', KEYS[3], 'time', ARGV[3])
redis.call('HINCRBY', KEYS[3], 'paths', ARGV[4])
return 1
`)

// RedisMirror mirrors mutations into Redis: one hash per user for scalar fields, a set for
// friends, a sorted set scored by start time for runs and hashes for daily and lifetime progress.
type RedisMirror struct {
	client   *redis.Client
	dedupTTL time.Duration // how long applied delta IDs are remembered
}

// NewRedisMirror creates a Redis backed mirror.
func NewRedisMirror(client *redis.Client, dedupTTL time.Duration) *RedisMirror {
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &RedisMirror{client: client, dedupTTL: dedupTTL}
}

func userKey(userID string) string     { return "user:" + userID }
func friendsKey(userID string) string  { return "user:" + userID + ":friends" }
func runsKey(userID string) string     { return "user:" + userID + ":runs" }
func lifetimeKey(userID string) string { return "user:" + userID + ":lifetime" }
func mutationKey(id string) string     { return "mutation:" + id }

func dayKey(userID string, d models.Date) string {
	return "user:" + userID + ":day:" + d.String()
}

// Put applies m to Redis.
func (r *RedisMirror) Put(ctx context.Context, m models.Mutation) error {
	var err error
	switch m.Field {
	case models.FieldProgress:
		err = r.applyProgress(ctx, m)
	case models.FieldFriends:
		err = r.applyFriend(ctx, m)
	case models.FieldRuns:
		err = r.applyRun(ctx, m)
	case models.FieldGoals:
		err = r.applyGoal(ctx, m)
	default:
		err = r.setField(ctx, m)
	}

	logger.Log.Infow(
		"mirror", "redis",
		"mutation", m.ID,
		"userID", m.UserID,
		"field", m.Field,
		"op", m.Op,
		"error", err,
	)
	return err
}

func (r *RedisMirror) setField(ctx context.Context, m models.Mutation) error {
	data, err := json.Marshal(m.Value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Field, err)
	}
	return r.client.HSet(ctx, userKey(m.UserID), m.Field, data).Err()
}

func (r *RedisMirror) applyProgress(ctx context.Context, m models.Mutation) error {
	delta, ok := m.Value.(models.ProgressDelta)
	if !ok {
		return fmt.Errorf("unexpected progress value %T", m.Value)
	}

	keys := []string{mutationKey(m.ID), dayKey(m.UserID, delta.Date), lifetimeKey(m.UserID)}
	applied, err := applyDeltaScript.Run(ctx, r.client, keys,
		int64(r.dedupTTL/time.Second),
		strconv.FormatFloat(delta.Delta.Distance, 'f', -1, 64),
		strconv.FormatFloat(delta.Delta.Time, 'f', -1, 64),
		delta.Delta.Paths,
	).Int()
	if err != nil {
		return err
	}
	if applied == 0 {
		logger.Log.Debugw("progress delta already applied", "mutation", m.ID, "userID", m.UserID)
	}
	return nil
}

func (r *RedisMirror) applyGoal(ctx context.Context, m models.Mutation) error {
	change, ok := m.Value.(models.GoalChange)
	if !ok {
		return fmt.Errorf("unexpected goal value %T", m.Value)
	}

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, userKey(m.UserID), "goal:"+string(change.Kind), change.Value)
		p.HSet(ctx, dayKey(m.UserID, change.Date), "target:"+string(change.Kind), change.Value)
		return nil
	})
	return err
}

func (r *RedisMirror) applyFriend(ctx context.Context, m models.Mutation) error {
	friendID, ok := m.Value.(string)
	if !ok {
		return fmt.Errorf("unexpected friend value %T", m.Value)
	}

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if m.Op == models.OpRemove {
			p.SRem(ctx, friendsKey(m.UserID), friendID)
			p.SRem(ctx, friendsKey(friendID), m.UserID)
		} else {
			p.SAdd(ctx, friendsKey(m.UserID), friendID)
			p.SAdd(ctx, friendsKey(friendID), m.UserID)
		}
		return nil
	})
	return err
}

func (r *RedisMirror) applyRun(ctx context.Context, m models.Mutation) error {
	if m.Op == models.OpRemove {
		start, ok := m.Value.(time.Time)
		if !ok {
			return fmt.Errorf("unexpected run key %T", m.Value)
		}
		score := strconv.FormatInt(start.UnixMilli(), 10)
		return r.client.ZRemRangeByScore(ctx, runsKey(m.UserID), score, score).Err()
	}

	run, ok := m.Value.(models.RunView)
	if !ok {
		return fmt.Errorf("unexpected run value %T", m.Value)
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	score := run.StartTime.UnixMilli()
	scoreStr := strconv.FormatInt(score, 10)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, runsKey(m.UserID), scoreStr, scoreStr)
		p.ZAdd(ctx, runsKey(m.UserID), redis.Z{Score: float64(score), Member: data})
		return nil
	})
	return err
}
