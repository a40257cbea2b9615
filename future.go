// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"sync"
)

// Future is a single-assignment slot holding the outcome of an
// asynchronous channel operation.
//
// A Future is resolved exactly once, either successfully or with an error.
// Later attempts to resolve it are ignored. The zero value is not usable;
// construct using [NewFuture].
type Future struct {
	done      chan struct{}
	err       error
	listeners []func(*Future)
	mu        sync.Mutex
}

// NewFuture returns a new unresolved [*Future].
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// newFailedFuture returns a [*Future] already failed with err.
func newFailedFuture(err error) *Future {
	f := NewFuture()
	f.tryFail(err)
	return f
}

// Done returns a channel closed once the [*Future] is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone returns whether the [*Future] has been resolved.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the failure cause. It returns nil while the [*Future] is
// unresolved or when it resolved successfully.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Wait blocks until the [*Future] is resolved or the context is done.
//
// Code running on an event loop must never call Wait: the loop would stop
// processing the very tasks that resolve the [*Future].
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return f.Err()
	}
}

// AddListener arranges for fn to be called once the [*Future] is resolved.
//
// When the [*Future] is already resolved, fn runs immediately in the calling
// goroutine. Otherwise, fn runs in the goroutine resolving the [*Future].
func (f *Future) AddListener(fn func(*Future)) {
	f.mu.Lock()
	if !f.IsDone() {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn(f)
}

func (f *Future) trySucceed() bool {
	return f.resolve(nil)
}

func (f *Future) tryFail(err error) bool {
	return f.resolve(err)
}

func (f *Future) resolve(err error) bool {
	f.mu.Lock()
	if f.IsDone() {
		f.mu.Unlock()
		return false
	}
	f.err = err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(f)
	}
	return true
}
