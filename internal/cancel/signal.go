// Package cancel provides the cooperative, set-once stop flag shared between a
// running job and the caller that may want to stop it.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is a set-once cancellation flag. Stages check it between units of
// work and never interrupt a unit in progress. The zero value is ready to use
// and a nil *Signal is never set.
type Signal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
}

// NewSignal returns an unset signal. Each run needs a fresh one.
func NewSignal() *Signal {
	return &Signal{}
}

// Set raises the flag. Calling it more than once has no further effect.
func (s *Signal) Set() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.set.Store(true)
		close(s.doneChan())
	})
}

// IsSet reports whether the flag has been raised.
func (s *Signal) IsSet() bool {
	return s != nil && s.set.Load()
}

// Done returns a channel closed when the flag is raised.
func (s *Signal) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.doneChan()
}

func (s *Signal) doneChan() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

// Requested reports whether work should stop at the current checkpoint:
// either the signal is set or ctx has been cancelled.
func Requested(ctx context.Context, s *Signal) bool {
	if s.IsSet() {
		return true
	}
	return ctx != nil && ctx.Err() != nil
}
