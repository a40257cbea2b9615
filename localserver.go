// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// NewLocalServerChannel returns a new [*LocalServerChannel] in [StateOpen].
//
// The cfg argument contains the common configuration for loopchan operations.
// Only clients sharing the same [Config.Registry] can connect to the server.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewLocalServerChannel(cfg *Config, logger SLogger) *LocalServerChannel {
	s := &LocalServerChannel{newChildID: cfg.NewChannelID}
	s.init(cfg, s, logger)
	return s
}

// LocalServerChannel listens on a [LocalAddress] and spawns a child
// [*LocalChannel] for each client connecting to it.
//
// Each child is delivered to the server pipeline as an inbound message, on
// the server loop, once its registration has succeeded.
type LocalServerChannel struct {
	channelBase

	// ChildInitializer is invoked with each child, typically to populate its
	// [*Pipeline]. It runs on the child loop before the child fires
	// ChannelRegistered.
	//
	// Set by [NewLocalServerChannel] to nil.
	ChildInitializer func(child *LocalChannel)

	// ChildLoops chooses the loop of each child.
	//
	// Set by [NewLocalServerChannel] to nil, meaning the server loop.
	ChildLoops LoopChooser

	newChildID func() string
}

var _ Channel = &LocalServerChannel{}

// IsActive implements [Channel]. A [*LocalServerChannel] is active while bound.
func (s *LocalServerChannel) IsActive() bool {
	return s.State() == StateBound
}

// Register implements [Channel].
func (s *LocalServerChannel) Register(loop EventLoop) *Future {
	return s.register(loop, s.doRegister)
}

func (s *LocalServerChannel) doRegister(ctx context.Context) {
	if !s.completeRegistration() {
		return
	}
	s.pipeline.fireChannelRegistered(ctx)
	s.eventLoop().AddShutdownHook(&s.channelBase, func(ctx context.Context) { s.Close(ctx) })
}

// Bind claims addr and starts accepting clients.
func (s *LocalServerChannel) Bind(ctx context.Context, addr LocalAddress) *Future {
	return s.submit(ctx, func(ctx context.Context, f *Future) {
		if err := s.doBind(s, addr); err != nil {
			f.tryFail(err)
			return
		}
		f.trySucceed()
		s.pipeline.fireChannelActive(ctx)
	})
}

// Close implements [Channel]. Close releases the address and is idempotent.
// Children already spawned are not affected.
func (s *LocalServerChannel) Close(ctx context.Context) *Future {
	loop := s.eventLoop()
	switch {
	case loop == nil:
		s.doClose(ctx)
	case loop.InEventLoop(ctx):
		s.doClose(ctx)
	default:
		if err := loop.Execute(s.doClose); err != nil {
			// the loop has terminated, so nothing else touches the channel
			s.doClose(ctx)
		}
	}
	return s.closeFuture
}

func (s *LocalServerChannel) doClose(ctx context.Context) {
	t0 := s.TimeNow()
	prev := s.markClosed(true)
	if prev == StateClosed {
		return
	}
	if prev == StateBound {
		s.pipeline.fireChannelInactive(ctx)
	}
	s.finishClose(ctx, t0)
}

// serve runs on the client loop and returns the child linked to client.
func (s *LocalServerChannel) serve(client *LocalChannel) *LocalChannel {
	child := newLocalChild(s, client)
	var loop EventLoop = s.eventLoop()
	if s.ChildLoops != nil {
		loop = s.ChildLoops.Next()
	}
	child.Register(loop).AddListener(func(f *Future) {
		if f.Err() != nil {
			// unblock the client waiting for its connect future
			_ = client.eventLoop().Execute(func(ctx context.Context) { client.Close(ctx) })
			return
		}
		_ = s.eventLoop().Execute(func(ctx context.Context) {
			if s.IsActive() {
				s.pipeline.FireMessageReceived(ctx, child)
			}
		})
	})
	return child
}
