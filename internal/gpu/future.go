package gpu

import (
	"context"
	"sync"
)

// Future resolves once an upload finished, failed or was cancelled.
type Future struct {
	done   chan struct{}
	once   sync.Once
	handle Handle
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(h Handle, err error) {
	f.once.Do(func() {
		f.handle = h
		f.err = err
		close(f.done)
	})
}

// Done is closed on resolution.
func (f *Future) Done() <-chan struct{} { return f.done }

// Ready polls without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future) Result() (Handle, error) {
	if !f.Ready() {
		return Handle{}, ErrPending
	}
	return f.handle, f.err
}

// Wait blocks until resolution or ctx is done.
func (f *Future) Wait(ctx context.Context) (Handle, error) {
	select {
	case <-f.done:
		return f.handle, f.err
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	}
}
