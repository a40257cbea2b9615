// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/require"
)

// recordCapture collects log records emitted by any goroutine.
type recordCapture struct {
	mu      sync.Mutex
	records []slog.Record
}

// Messages returns the messages of the records captured so far.
func (rc *recordCapture) Messages() (out []string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, record := range rc.records {
		out = append(out, record.Message)
	}
	return
}

// Find returns the first record with the given message.
func (rc *recordCapture) Find(message string) (slog.Record, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	idx := slices.IndexFunc(rc.records, func(r slog.Record) bool { return r.Message == message })
	if idx < 0 {
		return slog.Record{}, false
	}
	return rc.records[idx], true
}

// newCapturingLogger returns a logger that captures all log records into the
// returned [*recordCapture]. The caller can inspect the records after
// exercising the code under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *recordCapture) {
	rc := &recordCapture{}
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			rc.mu.Lock()
			rc.records = append(rc.records, record)
			rc.mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), rc
}

// recordAttr returns the value of the attribute with the given key.
func recordAttr(record slog.Record, key string) (value slog.Value, found bool) {
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			value, found = attr.Value, true
			return false
		}
		return true
	})
	return
}

// newTestLoop returns a started loop that is shut down at test cleanup.
func newTestLoop(t *testing.T, cfg *Config) *SingleThreadEventLoop {
	loop := NewSingleThreadEventLoop(cfg, DefaultSLogger())
	t.Cleanup(func() {
		loop.Shutdown()
		<-loop.Done()
	})
	return loop
}

// waitFuture waits for f with a timeout and returns its error.
func waitFuture(t *testing.T, f *Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future not resolved in time")
	return err
}

// runOnLoop runs fn on loop and waits for it to complete.
func runOnLoop(t *testing.T, loop EventLoop, fn func(ctx context.Context)) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, loop.Execute(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task not executed in time")
	}
}

// blockLoop occupies loop until the returned function is called.
func blockLoop(t *testing.T, loop EventLoop) (release func()) {
	t.Helper()
	started, unblock := make(chan struct{}), make(chan struct{})
	require.NoError(t, loop.Execute(func(ctx context.Context) {
		close(started)
		<-unblock
	}))
	<-started
	return sync.OnceFunc(func() { close(unblock) })
}

// messageCollector is an inbound stage recording what reaches it.
type messageCollector struct {
	InboundHandlerAdapter
	mu       sync.Mutex
	events   []string
	errs     []error
	messages []any
}

func (mc *messageCollector) record(event string) {
	mc.mu.Lock()
	mc.events = append(mc.events, event)
	mc.mu.Unlock()
}

func (mc *messageCollector) ChannelRegistered(ctx context.Context, hc *HandlerContext) {
	mc.record("registered")
	hc.FireChannelRegistered(ctx)
}

func (mc *messageCollector) ChannelUnregistered(ctx context.Context, hc *HandlerContext) {
	mc.record("unregistered")
	hc.FireChannelUnregistered(ctx)
}

func (mc *messageCollector) ChannelActive(ctx context.Context, hc *HandlerContext) {
	mc.record("active")
	hc.FireChannelActive(ctx)
}

func (mc *messageCollector) ChannelInactive(ctx context.Context, hc *HandlerContext) {
	mc.record("inactive")
	hc.FireChannelInactive(ctx)
}

func (mc *messageCollector) MessageReceived(ctx context.Context, hc *HandlerContext, msg any) {
	mc.mu.Lock()
	mc.messages = append(mc.messages, msg)
	mc.mu.Unlock()
	hc.FireMessageReceived(ctx, msg)
}

func (mc *messageCollector) ExceptionCaught(ctx context.Context, hc *HandlerContext, err error) {
	mc.mu.Lock()
	mc.errs = append(mc.errs, err)
	mc.mu.Unlock()
	hc.FireExceptionCaught(ctx, err)
}

func (mc *messageCollector) Events() []string {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return slices.Clone(mc.events)
}

func (mc *messageCollector) Messages() []any {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return slices.Clone(mc.messages)
}

func (mc *messageCollector) Errors() []error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return slices.Clone(mc.errs)
}
