// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// channelBase contains the state shared by [*LocalChannel] and
// [*LocalServerChannel].
//
// Fields written by other loops or read by other goroutines are atomic.
// Every other field is confined to the loop the channel is registered with.
type channelBase struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by the constructor from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by the constructor to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by the constructor from [Config.TimeNow].
	TimeNow func() time.Time

	closeFuture *Future
	id          string
	localAddr   atomic.Pointer[LocalAddress]
	pipeline    *Pipeline
	reg         atomic.Pointer[registration]
	registered  bool
	registry    *Registry
	remoteAddr  atomic.Pointer[LocalAddress]
	state       atomic.Int32
}

// registration records the loop a channel belongs to.
type registration struct {
	future *Future
	loop   *SingleThreadEventLoop
}

func (b *channelBase) init(cfg *Config, ch Channel, logger SLogger) {
	b.ErrClassifier = cfg.ErrClassifier
	b.Logger = logger
	b.TimeNow = cfg.TimeNow
	b.closeFuture = NewFuture()
	b.id = cfg.NewChannelID()
	b.pipeline = newPipeline(ch, logger)
	b.registry = cfg.Registry
}

// ID implements [Channel].
func (b *channelBase) ID() string {
	return b.id
}

// Pipeline implements [Channel].
func (b *channelBase) Pipeline() *Pipeline {
	return b.pipeline
}

// EventLoop implements [Channel].
func (b *channelBase) EventLoop() EventLoop {
	if loop := b.eventLoop(); loop != nil {
		return loop
	}
	return nil
}

func (b *channelBase) eventLoop() *SingleThreadEventLoop {
	if reg := b.reg.Load(); reg != nil {
		return reg.loop
	}
	return nil
}

// LocalAddr implements [Channel].
func (b *channelBase) LocalAddr() LocalAddress {
	if addr := b.localAddr.Load(); addr != nil {
		return *addr
	}
	return LocalAddress{}
}

// RemoteAddr implements [Channel].
func (b *channelBase) RemoteAddr() LocalAddress {
	if addr := b.remoteAddr.Load(); addr != nil {
		return *addr
	}
	return LocalAddress{}
}

// State implements [Channel].
func (b *channelBase) State() ChannelState {
	return ChannelState(b.state.Load())
}

// IsOpen implements [Channel].
func (b *channelBase) IsOpen() bool {
	return b.State() < StateClosed
}

// CloseFuture returns the [*Future] resolved once the channel is closed.
func (b *channelBase) CloseFuture() *Future {
	return b.closeFuture
}

// register attaches the channel to loop and schedules doRegister.
func (b *channelBase) register(loop EventLoop, doRegister Task) *Future {
	stl, ok := loop.(*SingleThreadEventLoop)
	if !ok {
		return newFailedFuture(ErrIncompatibleEventLoop)
	}
	reg := &registration{future: NewFuture(), loop: stl}
	if !b.reg.CompareAndSwap(nil, reg) {
		if cur := b.reg.Load(); cur.loop == stl {
			return cur.future
		}
		return newFailedFuture(ErrAlreadyRegistered)
	}
	if err := stl.Execute(doRegister); err != nil {
		reg.future.tryFail(err)
	}
	return reg.future
}

// submit runs op on the channel loop, synchronously when ctx belongs to it.
func (b *channelBase) submit(ctx context.Context, op func(ctx context.Context, f *Future)) *Future {
	loop := b.eventLoop()
	if loop == nil {
		return newFailedFuture(ErrNotRegistered)
	}
	f := NewFuture()
	if loop.InEventLoop(ctx) {
		op(ctx, f)
		return f
	}
	if err := loop.Execute(func(ctx context.Context) { op(ctx, f) }); err != nil {
		f.tryFail(err)
	}
	return f
}

// completeRegistration resolves the register future. It returns false when
// the channel was closed before its registration task ran.
func (b *channelBase) completeRegistration() bool {
	reg := b.reg.Load()
	t0 := b.TimeNow()
	if !b.IsOpen() {
		reg.future.tryFail(ErrClosedChannel)
		b.logDone("registerDone", t0, ErrClosedChannel)
		return false
	}
	b.registered = true
	reg.future.trySucceed()
	b.logDone("registerDone", t0, nil)
	return true
}

// doBind claims addr and moves the channel to [StateBound].
func (b *channelBase) doBind(ch Channel, addr LocalAddress) error {
	t0 := b.TimeNow()
	err := b.claim(ch, addr)
	b.logDone("bindDone", t0, err)
	return err
}

func (b *channelBase) claim(ch Channel, addr LocalAddress) error {
	switch state := b.State(); {
	case state == StateClosed:
		return ErrClosedChannel
	case state >= StateBound:
		return fmt.Errorf("%w: %s", ErrAlreadyBound, b.LocalAddr())
	}
	bound, err := b.registry.Claim(ch, b.LocalAddr(), addr)
	if err != nil {
		return err
	}
	b.localAddr.Store(&bound)
	b.state.Store(int32(StateBound))
	return nil
}

// markClosed moves the channel to [StateClosed] and returns the previous
// state. The address is released when release is true.
func (b *channelBase) markClosed(release bool) ChannelState {
	prev := ChannelState(b.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return prev
	}
	if addr := b.LocalAddr(); release && !addr.IsAny() {
		b.registry.Release(addr)
	}
	return prev
}

// finishClose fires the unregistration and resolves the close future.
func (b *channelBase) finishClose(ctx context.Context, t0 time.Time) {
	if b.registered {
		b.registered = false
		b.pipeline.fireChannelUnregistered(ctx)
	}
	if loop := b.eventLoop(); loop != nil {
		loop.RemoveShutdownHook(b)
	}
	b.closeFuture.trySucceed()
	b.logDone("closeDone", t0, nil)
}

func (b *channelBase) logDone(event string, t0 time.Time, err error) {
	b.Logger.Info(
		event,
		slog.String("channelID", b.id),
		slog.Any("err", err),
		slog.String("errClass", b.ErrClassifier.Classify(err)),
		slog.String("localAddr", b.LocalAddr().String()),
		slog.String("protocol", "local"),
		slog.String("remoteAddr", b.RemoteAddr().String()),
		slog.Time("t0", t0),
		slog.Time("t", b.TimeNow()),
	)
}
