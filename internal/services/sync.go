package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// ErrRemoteSync marks failures of the remote mirror. The local change behind it is committed.
var ErrRemoteSync = errors.New("saved locally, remote sync failed")

// SyncError carries the mutation that could not be mirrored.
type SyncError struct {
	Mutation models.Mutation
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: mutation %s (%s %s): %v", ErrRemoteSync, e.Mutation.ID, e.Mutation.Field, e.Mutation.Op, e.Err)
}

func (e *SyncError) Unwrap() []error { return []error{ErrRemoteSync, e.Err} }

// Sync is the outcome of an asynchronous remote write. It completes exactly once.
type Sync struct {
	mutation models.Mutation
	done     chan struct{}
	err      error
}

func newSync(m models.Mutation) *Sync {
	return &Sync{mutation: m, done: make(chan struct{})}
}

// completedSync returns a Sync that already finished with err.
func completedSync(m models.Mutation, err error) *Sync {
	s := newSync(m)
	s.complete(err)
	return s
}

func (s *Sync) complete(err error) {
	if err != nil {
		err = &SyncError{Mutation: s.mutation, Err: err}
	}
	s.err = err
	close(s.done)
}

// Mutation returns the remote write this Sync tracks. Callers retry by passing it to Retry.
func (s *Sync) Mutation() models.Mutation { return s.mutation }

// Done is closed when the remote write finished.
func (s *Sync) Done() <-chan struct{} { return s.done }

// Err returns the outcome once Done is closed, nil before.
func (s *Sync) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the remote write finished or ctx ends.
func (s *Sync) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
