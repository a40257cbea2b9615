// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// NewLocalChannel returns a new client [*LocalChannel] in [StateOpen].
//
// The cfg argument contains the common configuration for loopchan operations.
// Only channels sharing the same [Config.Registry] can reach each other.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewLocalChannel(cfg *Config, logger SLogger) *LocalChannel {
	c := &LocalChannel{}
	c.init(cfg, c, logger)
	return c
}

// LocalChannel is one endpoint of the in-process transport.
//
// A client channel becomes connected by connecting to the address of a
// [*LocalServerChannel], which spawns a server-side child channel linked to
// the client as its peer. Messages flushed by one side are delivered, in
// order and in batches, to the pipeline of the other side.
//
// All state is confined to the loop the channel is registered with. Use
// [LocalChannel.Register] before any other operation but [LocalChannel.Close].
type LocalChannel struct {
	channelBase

	activeFired    bool
	connectFuture  *Future
	connectStarted time.Time
	parent         *LocalServerChannel
	peer           atomic.Pointer[LocalChannel]
}

var _ Channel = &LocalChannel{}

// newLocalChild returns the server-side child linked to client.
func newLocalChild(parent *LocalServerChannel, client *LocalChannel) *LocalChannel {
	c := &LocalChannel{parent: parent}
	c.channelBase.ErrClassifier = parent.ErrClassifier
	c.channelBase.Logger = parent.Logger
	c.channelBase.TimeNow = parent.TimeNow
	c.closeFuture = NewFuture()
	c.id = parent.newChildID()
	c.pipeline = newPipeline(c, parent.Logger)
	c.registry = parent.registry
	local, remote := parent.LocalAddr(), client.LocalAddr()
	c.localAddr.Store(&local)
	c.remoteAddr.Store(&remote)
	c.peer.Store(client)
	return c
}

// Parent returns the server that spawned this channel or nil.
func (c *LocalChannel) Parent() *LocalServerChannel {
	return c.parent
}

// Peer returns the channel at the other end or nil.
func (c *LocalChannel) Peer() *LocalChannel {
	return c.peer.Load()
}

// IsActive implements [Channel]. A [*LocalChannel] is active while connected.
func (c *LocalChannel) IsActive() bool {
	return c.State() == StateConnected
}

// Register implements [Channel].
//
// Registering again with the same loop returns the original [*Future].
// Registering with another loop fails with [ErrAlreadyRegistered].
func (c *LocalChannel) Register(loop EventLoop) *Future {
	return c.register(loop, c.doRegister)
}

func (c *LocalChannel) doRegister(ctx context.Context) {
	if c.parent != nil && c.parent.ChildInitializer != nil {
		c.parent.ChildInitializer(c)
	}
	peer := c.peer.Load()
	linked := peer != nil && c.parent != nil
	if linked && c.IsOpen() {
		c.state.Store(int32(StateConnected))
		addr := c.parent.LocalAddr()
		peer.remoteAddr.Store(&addr)
		if !peer.state.CompareAndSwap(int32(StateBound), int32(StateConnected)) {
			// the client gave up before we could link to it
			linked = false
			c.Close(ctx)
		}
	}
	if !c.completeRegistration() {
		return
	}
	c.pipeline.fireChannelRegistered(ctx)

	if linked {
		if err := peer.eventLoop().Execute(peer.finishConnect); err != nil {
			c.Close(ctx)
			return
		}
	}

	loop := c.eventLoop()
	loop.AddShutdownHook(&c.channelBase, func(ctx context.Context) { c.Close(ctx) })
	if c.IsActive() {
		c.fireChannelActive(ctx)
	}
}

// finishConnect runs on the client loop after the server-side child has
// been registered.
func (c *LocalChannel) finishConnect(ctx context.Context) {
	if !c.IsActive() {
		return
	}
	if f := c.connectFuture; f != nil {
		c.connectFuture = nil
		f.trySucceed()
		c.logConnectDone(nil)
	}
	c.fireChannelActive(ctx)
}

func (c *LocalChannel) fireChannelActive(ctx context.Context) {
	c.activeFired = true
	c.pipeline.fireChannelActive(ctx)
}

// Bind claims addr for this channel. The "any" address allocates an
// ephemeral address.
func (c *LocalChannel) Bind(ctx context.Context, addr LocalAddress) *Future {
	return c.submit(ctx, func(ctx context.Context, f *Future) {
		if err := c.doBind(c, addr); err != nil {
			f.tryFail(err)
			return
		}
		f.trySucceed()
	})
}

// Connect connects to the [*LocalServerChannel] bound to remote.
//
// When the channel is not bound yet, it binds to local first, which may be
// the "any" address. The returned [*Future] resolves once the server-side
// child is registered and the channel is active.
//
// Connecting a connected channel fails with [ErrAlreadyConnected] and leaves
// it open; connecting while another attempt is pending fails with
// [ErrConnectionPending]. Connecting to an address without an active server
// fails with [ErrConnectionRefused] and closes the channel.
func (c *LocalChannel) Connect(ctx context.Context, remote, local LocalAddress) *Future {
	return c.submit(ctx, func(ctx context.Context, f *Future) {
		c.doConnect(ctx, remote, local, f)
	})
}

func (c *LocalChannel) doConnect(ctx context.Context, remote, local LocalAddress, f *Future) {
	t0 := c.TimeNow()
	c.logConnectStart(remote, t0)

	switch state := c.State(); {
	case state == StateClosed:
		c.failConnect(f, remote, t0, ErrClosedChannel)
		return

	case state == StateConnected:
		err := fmt.Errorf("%w: %s", ErrAlreadyConnected, c.RemoteAddr())
		c.failConnect(f, remote, t0, err)
		c.pipeline.fireExceptionCaught(ctx, err)
		return
	}

	if c.connectFuture != nil {
		c.failConnect(f, remote, t0, ErrConnectionPending)
		return
	}
	c.connectFuture = f
	c.connectStarted = t0

	if c.State() < StateBound || !local.IsAny() {
		if err := c.doBind(c, local); err != nil {
			c.abortConnect(ctx, remote, err)
			return
		}
	}

	server, _ := c.registry.Lookup(remote).(*LocalServerChannel)
	if server == nil || !server.IsActive() {
		c.abortConnect(ctx, remote, fmt.Errorf("%w: %s", ErrConnectionRefused, remote))
		return
	}
	c.peer.Store(server.serve(c))
}

// failConnect fails an attempt that never became the pending one.
func (c *LocalChannel) failConnect(f *Future, remote LocalAddress, t0 time.Time, err error) {
	f.tryFail(err)
	c.Logger.Info(
		"connectDone",
		slog.String("channelID", c.id),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.LocalAddr().String()),
		slog.String("protocol", "local"),
		slog.String("remoteAddr", remote.String()),
		slog.Time("t0", t0),
		slog.Time("t", c.TimeNow()),
	)
}

// abortConnect fails the pending attempt and closes the channel.
func (c *LocalChannel) abortConnect(ctx context.Context, remote LocalAddress, err error) {
	f := c.connectFuture
	c.connectFuture = nil
	c.failConnect(f, remote, c.connectStarted, err)
	c.pipeline.fireExceptionCaught(ctx, err)
	c.Close(ctx)
}

// Write sends msg through the pipeline towards the outbound queue. The
// returned [*Future] resolves once msg is queued: use [LocalChannel.Flush]
// to deliver queued messages to the peer.
func (c *LocalChannel) Write(ctx context.Context, msg any) *Future {
	return c.submit(ctx, func(ctx context.Context, f *Future) {
		if err := c.doWrite(ctx, msg); err != nil {
			f.tryFail(err)
			return
		}
		f.trySucceed()
	})
}

func (c *LocalChannel) doWrite(ctx context.Context, msg any) error {
	if !c.IsOpen() {
		return ErrClosedChannel
	}
	err := c.pipeline.Write(ctx, msg)
	c.logWriteDone(msg, err)
	return err
}

// Flush delivers the outbound queue to the peer as a single batch.
//
// Flushing before the channel is connected fails with [ErrNotYetConnected];
// flushing a closed channel fails with [ErrClosedChannel]. A failed flush
// does not close the channel.
func (c *LocalChannel) Flush(ctx context.Context) *Future {
	return c.submit(ctx, func(ctx context.Context, f *Future) {
		if err := c.doFlush(); err != nil {
			f.tryFail(err)
			return
		}
		f.trySucceed()
	})
}

// WriteAndFlush is like [LocalChannel.Write] followed by [LocalChannel.Flush].
func (c *LocalChannel) WriteAndFlush(ctx context.Context, msg any) *Future {
	return c.submit(ctx, func(ctx context.Context, f *Future) {
		if err := c.doWrite(ctx, msg); err != nil {
			f.tryFail(err)
			return
		}
		if err := c.doFlush(); err != nil {
			f.tryFail(err)
			return
		}
		f.trySucceed()
	})
}

func (c *LocalChannel) doFlush() error {
	switch state := c.State(); {
	case state < StateConnected:
		return ErrNotYetConnected
	case state > StateConnected:
		return ErrClosedChannel
	}
	peer := c.peer.Load()
	if peer == nil {
		return ErrClosedChannel
	}
	batch := c.pipeline.takeOutbound()
	if len(batch) <= 0 {
		return nil
	}
	err := peer.eventLoop().Execute(func(ctx context.Context) {
		peer.deliver(ctx, batch)
	})
	c.logFlushDone(len(batch), err)
	return err
}

// deliver runs on the peer loop and hands a flushed batch to the pipeline.
func (c *LocalChannel) deliver(ctx context.Context, batch []any) {
	if !c.IsOpen() {
		return
	}
	c.pipeline.inbound = append(c.pipeline.inbound, batch...)
	c.pipeline.fireInboundBufferUpdated(ctx)
}

// Close implements [Channel].
//
// Close is idempotent and always returns the same [*Future], which
// coincides with [LocalChannel.CloseFuture]. Closing a connected channel
// also closes its peer, asynchronously, on the peer loop. A connect still
// pending fails with [ErrClosedChannel].
func (c *LocalChannel) Close(ctx context.Context) *Future {
	loop := c.eventLoop()
	switch {
	case loop == nil:
		c.doClose(ctx)
	case loop.InEventLoop(ctx):
		c.doClose(ctx)
	default:
		if err := loop.Execute(c.doClose); err != nil {
			// the loop has terminated, so nothing else touches the channel
			c.doClose(ctx)
		}
	}
	return c.closeFuture
}

func (c *LocalChannel) doClose(ctx context.Context) {
	t0 := c.TimeNow()
	if prev := c.markClosed(c.parent == nil); prev == StateClosed {
		return
	}

	if peer := c.peer.Swap(nil); peer != nil && peer.IsActive() {
		if loop := peer.eventLoop(); loop != nil {
			err := loop.Execute(func(ctx context.Context) { peer.Close(ctx) })
			c.logPeerCloseScheduled(peer, err)
		}
	}

	if f := c.connectFuture; f != nil {
		c.connectFuture = nil
		f.tryFail(ErrClosedChannel)
		c.logConnectDone(ErrClosedChannel)
	}

	if c.activeFired {
		c.activeFired = false
		c.pipeline.fireChannelInactive(ctx)
	}
	c.finishClose(ctx, t0)
}

func (c *LocalChannel) logConnectStart(remote LocalAddress, t0 time.Time) {
	c.Logger.Info(
		"connectStart",
		slog.String("channelID", c.id),
		slog.String("protocol", "local"),
		slog.String("remoteAddr", remote.String()),
		slog.Time("t", t0),
	)
}

func (c *LocalChannel) logConnectDone(err error) {
	c.logDone("connectDone", c.connectStarted, err)
}

func (c *LocalChannel) logWriteDone(msg any, err error) {
	c.Logger.Debug(
		"writeDone",
		slog.String("channelID", c.id),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("messageType", fmt.Sprintf("%T", msg)),
		slog.Time("t", c.TimeNow()),
	)
}

// logPeerCloseScheduled logs the handoff of the peer close. A terminated peer
// loop has already closed the peer through its shutdown hook.
func (c *LocalChannel) logPeerCloseScheduled(peer *LocalChannel, err error) {
	c.Logger.Debug(
		"peerCloseScheduled",
		slog.String("channelID", c.id),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.LocalAddr().String()),
		slog.String("peerChannelID", peer.id),
		slog.String("protocol", "local"),
		slog.String("remoteAddr", c.RemoteAddr().String()),
		slog.Time("t", c.TimeNow()),
	)
}

func (c *LocalChannel) logFlushDone(count int, err error) {
	c.Logger.Debug(
		"flushDone",
		slog.String("channelID", c.id),
		slog.Int("count", count),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.LocalAddr().String()),
		slog.String("remoteAddr", c.RemoteAddr().String()),
		slog.Time("t", c.TimeNow()),
	)
}
