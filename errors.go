// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "errors"

// State-conflict errors. These are reported synchronously (or through the
// [*Future] when the operation was marshaled onto the loop) and leave the
// channel usable once the caller corrects its state.
var (
	// ErrAlreadyConnected indicates that Connect was called on a connected channel.
	ErrAlreadyConnected = errors.New("loopchan: already connected")

	// ErrConnectionPending indicates that a connect attempt is already in flight.
	ErrConnectionPending = errors.New("loopchan: connection pending")

	// ErrAddressInUse indicates that another channel claimed the address.
	ErrAddressInUse = errors.New("loopchan: address already in use")

	// ErrAlreadyBound indicates that the channel already owns a local address.
	ErrAlreadyBound = errors.New("loopchan: already bound")

	// ErrAlreadyRegistered indicates an attempt to register a channel with a
	// second event loop.
	ErrAlreadyRegistered = errors.New("loopchan: already registered with another event loop")
)

// Connection errors.
var (
	// ErrConnectionRefused indicates that the remote address is not bound to
	// a listening [*LocalServerChannel]. A channel failing with this error
	// has been closed.
	ErrConnectionRefused = errors.New("loopchan: connection refused")

	// ErrNotYetConnected indicates a flush before the channel was connected.
	ErrNotYetConnected = errors.New("loopchan: not yet connected")

	// ErrClosedChannel indicates an operation on a closed channel.
	ErrClosedChannel = errors.New("loopchan: channel closed")
)

// Event loop errors.
var (
	// ErrEventLoopShutdown indicates that the event loop no longer accepts tasks.
	ErrEventLoopShutdown = errors.New("loopchan: event loop shut down")

	// ErrIncompatibleEventLoop indicates that the channel cannot run on the
	// given [EventLoop] implementation.
	ErrIncompatibleEventLoop = errors.New("loopchan: incompatible event loop")

	// ErrNotRegistered indicates an operation on a channel that has no event loop yet.
	ErrNotRegistered = errors.New("loopchan: channel not registered")
)

// ErrProtocolViolation is the root of unrecoverable protocol-invariant
// violations raised by pipeline stages. Such errors are never retried and
// must not be confused with recoverable I/O errors.
var ErrProtocolViolation = errors.New("loopchan: protocol violation")
