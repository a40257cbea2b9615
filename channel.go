// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// ChannelState is the lifecycle state of a channel.
//
// States are ordered: a channel only moves towards [StateClosed], so that
// comparisons such as "state < StateConnected" are meaningful.
type ChannelState int32

const (
	// StateOpen is the state of a newly created channel.
	StateOpen ChannelState = iota

	// StateBound means the channel owns a local address.
	StateBound

	// StateConnected means the channel is linked to a peer.
	StateConnected

	// StateClosed is the terminal state.
	StateClosed
)

// String implements [fmt.Stringer].
func (s ChannelState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateBound:
		return "bound"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is one endpoint of a transport driven by an [EventLoop].
//
// Methods taking a context mutate the channel and therefore run on the
// channel's loop: when ctx does not belong to that loop, the operation is
// enqueued and the returned [*Future] reports its outcome later.
type Channel interface {
	// ID returns the channel identity.
	ID() string

	// EventLoop returns the loop the channel is registered with or nil.
	EventLoop() EventLoop

	// Pipeline returns the handlers processing the channel events.
	Pipeline() *Pipeline

	// LocalAddr returns the bound address or the "any" address.
	LocalAddr() LocalAddress

	// RemoteAddr returns the peer address or the "any" address.
	RemoteAddr() LocalAddress

	// State returns the current [ChannelState].
	State() ChannelState

	// IsOpen returns whether the channel is not closed.
	IsOpen() bool

	// IsActive returns whether the channel can exchange messages.
	IsActive() bool

	// Register attaches the channel to loop.
	Register(loop EventLoop) *Future

	// Close closes the channel.
	Close(ctx context.Context) *Future

	// CloseFuture returns the [*Future] resolved once the channel is closed.
	CloseFuture() *Future
}
