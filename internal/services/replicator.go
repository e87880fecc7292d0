package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// ErrReplicatorClosed is reported for mutations enqueued after Close.
var ErrReplicatorClosed = errors.New("replicator is closed")

// DefaultMirrorTimeout bounds a single remote write when no timeout is configured.
const DefaultMirrorTimeout = 5 * time.Second

// Mirror is the remote store port. Put must treat a repeated mutation ID as already applied.
type Mirror interface {
	Put(ctx context.Context, m models.Mutation) error
}

type userQueue struct {
	pending []*Sync
	running bool
}

// Replicator delivers mutations to the mirror in the background. Mutations of one user
// are delivered one at a time in enqueue order; different users proceed independently.
type Replicator struct {
	mirror  Mirror
	timeout time.Duration

	mu     sync.Mutex
	queues map[string]*userQueue
	closed bool
	wg     sync.WaitGroup
}

// NewReplicator creates a Replicator. A nil mirror confirms every mutation immediately.
func NewReplicator(mirror Mirror, timeout time.Duration) *Replicator {
	if timeout <= 0 {
		timeout = DefaultMirrorTimeout
	}
	return &Replicator{
		mirror:  mirror,
		timeout: timeout,
		queues:  make(map[string]*userQueue),
	}
}

// Enqueue schedules m and returns immediately.
func (r *Replicator) Enqueue(m models.Mutation) *Sync {
	if r.mirror == nil {
		return completedSync(m, nil)
	}

	s := newSync(m)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		s.complete(ErrReplicatorClosed)
		return s
	}

	q, ok := r.queues[m.UserID]
	if !ok {
		q = &userQueue{}
		r.queues[m.UserID] = q
	}
	q.pending = append(q.pending, s)
	mirrorPending.Inc()

	if !q.running {
		q.running = true
		r.wg.Add(1)
		go r.drain(m.UserID, q)
	}
	return s
}

func (r *Replicator) next(userID string, q *userQueue) *Sync {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(q.pending) == 0 {
		q.running = false
		delete(r.queues, userID)
		return nil
	}
	s := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return s
}

func (r *Replicator) drain(userID string, q *userQueue) {
	defer r.wg.Done()

	for s := r.next(userID, q); s != nil; s = r.next(userID, q) {
		mirrorPending.Dec()
		s.complete(r.put(s.mutation))
	}
}

func (r *Replicator) put(m models.Mutation) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	// A mirror that ignores ctx is abandoned when the window closes; its late result is dropped.
	result := make(chan error, 1)
	start := time.Now()
	go func() {
		result <- r.mirror.Put(ctx, m)
	}()

	var err error
	select {
	case err = <-result:
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	mirrorLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		mirrorDelivered.WithLabelValues(m.Field).Inc()
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		mirrorFailed.WithLabelValues(m.Field, "timeout").Inc()
	default:
		mirrorFailed.WithLabelValues(m.Field, "error").Inc()
	}

	logger.Log.Errorw("failed to mirror mutation",
		"mutation", m.ID,
		"userID", m.UserID,
		"field", m.Field,
		"op", m.Op,
		"error", err,
	)
	return err
}

// Close stops accepting mutations and waits until queued ones are delivered or ctx ends.
func (r *Replicator) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
