// Package handshake joins two values that arrive independently, in any order,
// from different goroutines.
//
// The audio node needs both the voice state (session id) and the voice server
// (token and endpoint) of a guild before it can open a voice connection, and
// Discord delivers them as two unrelated gateway events.
package handshake

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout         = errors.New("timed out waiting for voice handshake")
	ErrAlreadyResolved = errors.New("handshake slot already resolved")
	ErrConsumed        = errors.New("handshake already awaited")
)

// slot holds a value that can be set at most once.
type slot[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func newSlot[T any]() *slot[T] {
	return &slot[T]{done: make(chan struct{})}
}

func (s *slot[T]) resolve(v T) error {
	resolved := false
	s.once.Do(func() {
		s.value = v
		close(s.done)
		resolved = true
	})
	if !resolved {
		return ErrAlreadyResolved
	}
	return nil
}

func (s *slot[T]) isResolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Coordinator is a single use join of a state value S and a server value V.
type Coordinator[S, V any] struct {
	state    *slot[S]
	server   *slot[V]
	consumed atomic.Bool
}

func New[S, V any]() *Coordinator[S, V] {
	return &Coordinator[S, V]{
		state:  newSlot[S](),
		server: newSlot[V](),
	}
}

// ResolveState sets the state slot. A second call returns ErrAlreadyResolved
// and keeps the first value.
func (c *Coordinator[S, V]) ResolveState(v S) error {
	return c.state.resolve(v)
}

// ResolveServer sets the server slot. A second call returns ErrAlreadyResolved
// and keeps the first value.
func (c *Coordinator[S, V]) ResolveServer(v V) error {
	return c.server.resolve(v)
}

// Resolved reports which slots have been set.
func (c *Coordinator[S, V]) Resolved() (state, server bool) {
	return c.state.isResolved(), c.server.isResolved()
}

// AwaitBoth blocks until both slots are set, the timeout elapses or ctx is done.
// It can be called once; the coordinator must be discarded afterwards whatever
// the outcome.
func (c *Coordinator[S, V]) AwaitBoth(ctx context.Context, timeout time.Duration) (S, V, error) {
	var (
		zeroS S
		zeroV V
	)
	if !c.consumed.CompareAndSwap(false, true) {
		return zeroS, zeroV, ErrConsumed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for _, done := range []<-chan struct{}{c.state.done, c.server.done} {
		select {
		case <-done:
		case <-timer.C:
			return zeroS, zeroV, ErrTimeout
		case <-ctx.Done():
			return zeroS, zeroV, ctx.Err()
		}
	}
	return c.state.value, c.server.value, nil
}
