// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoServer binds a server at addr whose children echo every message.
func newEchoServer(t *testing.T, cfg *Config, loops LoopChooser, addr LocalAddress) *LocalServerChannel {
	listen := Compose3(
		NewLocalServerChannelFunc(cfg, DefaultSLogger(), func(srv *LocalServerChannel) {
			srv.ChildInitializer = func(child *LocalChannel) {
				assert.NoError(t, child.Pipeline().AddLast("echo", echoHandler{}))
			}
		}),
		NewRegisterFunc[*LocalServerChannel](loops),
		NewBindFunc(addr),
	)
	srv, err := listen.Call(context.Background(), Unit{})
	require.NoError(t, err)
	return srv
}

// echoHandler writes back every message it receives.
type echoHandler struct {
	InboundHandlerAdapter
}

func (echoHandler) MessageReceived(ctx context.Context, hc *HandlerContext, msg any) {
	hc.Channel().(*LocalChannel).WriteAndFlush(ctx, msg)
}

func TestBootstrapEcho(t *testing.T) {
	cfg := NewConfig()
	group := NewEventLoopGroup(cfg, 2, DefaultSLogger())
	defer func() {
		group.Shutdown()
		require.NoError(t, group.Wait())
	}()
	newEchoServer(t, cfg, group, NewLocalAddress("echo"))

	observer := &messageCollector{}
	dial := Compose4(
		NewLocalChannelFunc(cfg, DefaultSLogger(), func(ch *LocalChannel) {
			require.NoError(t, ch.Pipeline().AddLast("observer", observer))
		}),
		NewRegisterFunc[*LocalChannel](group),
		NewConnectFunc(NewLocalAddress("echo")),
		NewCancelWatchFunc[*LocalChannel](),
	)
	client, err := dial.Call(context.Background(), Unit{})
	require.NoError(t, err)
	assert.True(t, client.IsActive())

	require.NoError(t, waitFuture(t, client.WriteAndFlush(context.Background(), "hello")))
	require.Eventually(t, func() bool {
		return len(observer.Messages()) == 1
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, []any{"hello"}, observer.Messages())
}

func TestBindFuncClosesOnFailure(t *testing.T) {
	cfg := NewConfig()
	loop := newTestLoop(t, cfg)
	newEchoServer(t, cfg, loop, NewLocalAddress("taken"))

	var srv *LocalServerChannel
	listen := Compose3(
		NewLocalServerChannelFunc(cfg, DefaultSLogger(), func(s *LocalServerChannel) { srv = s }),
		NewRegisterFunc[*LocalServerChannel](loop),
		NewBindFunc(NewLocalAddress("taken")),
	)
	_, err := listen.Call(context.Background(), Unit{})
	require.ErrorIs(t, err, ErrAddressInUse)
	require.NoError(t, waitFuture(t, srv.CloseFuture()))
}

func TestConnectFuncClosesOnFailure(t *testing.T) {
	cfg := NewConfig()
	loop := newTestLoop(t, cfg)

	var client *LocalChannel
	dial := Compose3(
		NewLocalChannelFunc(cfg, DefaultSLogger(), func(ch *LocalChannel) { client = ch }),
		NewRegisterFunc[*LocalChannel](loop),
		NewConnectFunc(NewLocalAddress("nowhere")),
	)
	_, err := dial.Call(context.Background(), Unit{})
	require.ErrorIs(t, err, ErrConnectionRefused)
	require.NoError(t, waitFuture(t, client.CloseFuture()))
}

func TestRegisterFuncClosesOnFailure(t *testing.T) {
	cfg := NewConfig()
	dead := NewSingleThreadEventLoop(cfg, DefaultSLogger())
	dead.Shutdown()
	<-dead.Done()

	ch := NewLocalChannel(cfg, DefaultSLogger())
	_, err := NewRegisterFunc[*LocalChannel](dead).Call(context.Background(), ch)
	require.ErrorIs(t, err, ErrEventLoopShutdown)

	// with the loop gone, close runs synchronously on the caller
	assert.Equal(t, StateClosed, ch.State())
}

func TestCancelWatchFunc(t *testing.T) {
	t.Run("closes the channel when the context is done", func(t *testing.T) {
		cfg := NewConfig()
		loop := newTestLoop(t, cfg)
		newEchoServer(t, cfg, loop, NewLocalAddress("echo"))

		ctx, cancel := context.WithCancel(context.Background())
		dial := Compose4(
			NewLocalChannelFunc(cfg, DefaultSLogger(), nil),
			NewRegisterFunc[*LocalChannel](loop),
			NewConnectFunc(NewLocalAddress("echo")),
			NewCancelWatchFunc[*LocalChannel](),
		)
		client, err := dial.Call(ctx, Unit{})
		require.NoError(t, err)
		assert.True(t, client.IsOpen())

		cancel()
		require.NoError(t, waitFuture(t, client.CloseFuture()))
	})

	t.Run("closing the channel stops the watcher", func(t *testing.T) {
		cfg := NewConfig()
		ch := NewLocalChannel(cfg, DefaultSLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		got, err := NewCancelWatchFunc[*LocalChannel]().Call(ctx, ch)
		require.NoError(t, err)
		assert.Same(t, ch, got)

		ch.Close(context.Background())
		assert.True(t, ch.CloseFuture().IsDone())
		cancel()
		assert.Equal(t, StateClosed, ch.State())
	})
}
