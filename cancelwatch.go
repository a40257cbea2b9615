// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc[C Channel]() *CancelWatchFunc[C] {
	return &CancelWatchFunc[C]{}
}

// CancelWatchFunc arranges for the channel to be closed when the context
// is done (cancelled or deadline exceeded). This provides responsive cleanup
// on external cancellation (e.g., SIGINT via signal.NotifyContext).
//
// The watcher is unregistered once the channel is closed, so no goroutine
// or callback outlives the channel even if the context is never cancelled.
//
// Do not use this primitive when the channel may outlive the context, e.g.,
// when handing channels over to a long-lived component.
type CancelWatchFunc[C Channel] struct{}

// Call registers a context watcher using [context.AfterFunc] that closes
// the channel when the context is done, and returns the channel unchanged.
func (op *CancelWatchFunc[C]) Call(ctx context.Context, ch C) (C, error) {
	stop := context.AfterFunc(ctx, func() {
		ch.Close(context.Background())
	})
	ch.CloseFuture().AddListener(func(*Future) {
		stop()
	})
	return ch, nil
}
