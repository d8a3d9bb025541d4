package asset

import (
	"context"
	"sync"
)

// Handle is the result of an asynchronous load. It starts pending and is
// resolved exactly once with a value or an error. Continuations registered
// with Then run once, after resolution.
type Handle[T any] struct {
	done chan struct{}

	mu    sync.Mutex
	val   T
	err   error
	conts []func(T, error)
}

func newHandle[T any]() *Handle[T] {
	return &Handle[T]{done: make(chan struct{})}
}

// Go runs fn in a new goroutine and returns a handle to its result. If ctx
// is cancelled before fn returns the handle resolves with ctx.Err() and the
// eventual result of fn is discarded.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Handle[T] {
	h := newHandle[T]()
	stop := context.AfterFunc(ctx, func() {
		var zero T
		h.resolve(zero, ctx.Err())
	})
	go func() {
		v, err := fn(ctx)
		stop()
		h.resolve(v, err)
	}()
	return h
}

// Resolved returns a handle that is already resolved.
func Resolved[T any](v T, err error) *Handle[T] {
	h := newHandle[T]()
	h.resolve(v, err)
	return h
}

// resolve stores the result and runs continuations. Calls after the first
// are ignored.
func (h *Handle[T]) resolve(v T, err error) bool {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return false
	default:
	}
	h.val, h.err = v, err
	conts := h.conts
	h.conts = nil
	close(h.done)
	h.mu.Unlock()
	for _, fn := range conts {
		fn(v, err)
	}
	return true
}

// Then registers fn to be called with the result. If the handle is already
// resolved fn is called immediately on the calling goroutine, otherwise on
// the goroutine that resolves the handle.
func (h *Handle[T]) Then(fn func(T, error)) {
	h.mu.Lock()
	select {
	case <-h.done:
		v, err := h.val, h.err
		h.mu.Unlock()
		fn(v, err)
		return
	default:
	}
	h.conts = append(h.conts, fn)
	h.mu.Unlock()
}

// Ready reports whether the handle is resolved.
func (h *Handle[T]) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on resolution.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Result returns the result of a resolved handle, or the zero value and a
// nil error while it is pending.
func (h *Handle[T]) Result() (T, error) {
	if !h.Ready() {
		var zero T
		return zero, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.val, h.err
}

// Wait blocks until the handle resolves or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
