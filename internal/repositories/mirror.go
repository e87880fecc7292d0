package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// MutationSink receives mirrored mutations.
type MutationSink interface {
	Put(ctx context.Context, m models.Mutation) error
}

// FanoutMirror forwards each mutation to every configured backend.
type FanoutMirror struct {
	names []string
	sinks []MutationSink
}

// NewFanoutMirror creates an empty fan-out. Use Add to attach backends.
func NewFanoutMirror() *FanoutMirror {
	return &FanoutMirror{}
}

// Add attaches a named backend.
func (f *FanoutMirror) Add(name string, sink MutationSink) *FanoutMirror {
	f.names = append(f.names, name)
	f.sinks = append(f.sinks, sink)
	return f
}

// Len returns the number of attached backends.
func (f *FanoutMirror) Len() int { return len(f.sinks) }

// Put writes m to all backends, even when one of them fails, and joins the failures.
func (f *FanoutMirror) Put(ctx context.Context, m models.Mutation) error {
	var errs []error
	for i, sink := range f.sinks {
		if err := sink.Put(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}
