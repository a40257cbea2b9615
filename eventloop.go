// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
)

// Task is a unit of work executed by an [EventLoop].
//
// The context passed to a task identifies the loop running it, so that
// channel operations invoked with that context execute synchronously rather
// than being marshaled again. The context must not escape the task.
type Task func(ctx context.Context)

// EventLoop is a single-threaded execution context owning channel state.
type EventLoop interface {
	// Execute enqueues task for later execution on the loop. It never blocks
	// and fails only when the loop no longer accepts tasks.
	Execute(task Task) error

	// InEventLoop reports whether ctx belongs to a task running on this loop.
	InEventLoop(ctx context.Context) bool
}

// LoopChooser selects the [EventLoop] for a new channel.
type LoopChooser interface {
	Next() EventLoop
}

// eventLoopKey is the context key identifying the running loop.
type eventLoopKey struct{}

// NewSingleThreadEventLoop creates a [*SingleThreadEventLoop] and starts
// its goroutine.
//
// The cfg argument contains the common configuration for loopchan operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewSingleThreadEventLoop(cfg *Config, logger SLogger) *SingleThreadEventLoop {
	l := newSingleThreadEventLoop(cfg, logger)
	go l.run()
	return l
}

func newSingleThreadEventLoop(cfg *Config, logger SLogger) *SingleThreadEventLoop {
	return &SingleThreadEventLoop{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
		done:          make(chan struct{}),
		id:            cfg.NewChannelID(),
		wake:          make(chan struct{}, 1),
	}
}

// SingleThreadEventLoop runs tasks one at a time, in submission order, on a
// single dedicated goroutine.
//
// Tasks are never preempted: a task runs to completion before the next one
// starts. The queue is unbounded, so [SingleThreadEventLoop.Execute] never blocks.
//
// All exported fields are safe to modify after construction but before
// the first task is submitted.
type SingleThreadEventLoop struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewSingleThreadEventLoop] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewSingleThreadEventLoop] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewSingleThreadEventLoop] from [Config.TimeNow].
	TimeNow func() time.Time

	done         chan struct{}
	hooks        []shutdownHook
	id           string
	mu           sync.Mutex
	queue        []Task
	shuttingDown bool
	terminated   bool
	wake         chan struct{}
}

type shutdownHook struct {
	key  any
	task Task
}

var (
	_ EventLoop   = &SingleThreadEventLoop{}
	_ LoopChooser = &SingleThreadEventLoop{}
)

// Next implements [LoopChooser] by always choosing this loop.
func (l *SingleThreadEventLoop) Next() EventLoop {
	return l
}

// ID returns the loop identity used in logs.
func (l *SingleThreadEventLoop) ID() string {
	return l.id
}

// Execute implements [EventLoop].
//
// Tasks are accepted until the loop terminates, including while it runs its
// shutdown hooks, so that cleanup work scheduled by hooks is not lost.
func (l *SingleThreadEventLoop) Execute(task Task) error {
	runtimex.Assert(task != nil)
	l.mu.Lock()
	if l.terminated {
		l.mu.Unlock()
		return ErrEventLoopShutdown
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.signal()
	return nil
}

// InEventLoop implements [EventLoop].
func (l *SingleThreadEventLoop) InEventLoop(ctx context.Context) bool {
	running, _ := ctx.Value(eventLoopKey{}).(*SingleThreadEventLoop)
	return running == l
}

// AddShutdownHook registers task to run when the loop shuts down. The key
// identifies the hook for [SingleThreadEventLoop.RemoveShutdownHook];
// registering an existing key replaces its task.
func (l *SingleThreadEventLoop) AddShutdownHook(key any, task Task) {
	runtimex.Assert(task != nil)
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx := range l.hooks {
		if l.hooks[idx].key == key {
			l.hooks[idx].task = task
			return
		}
	}
	l.hooks = append(l.hooks, shutdownHook{key: key, task: task})
}

// RemoveShutdownHook removes the hook registered with key, if any.
func (l *SingleThreadEventLoop) RemoveShutdownHook(key any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx := range l.hooks {
		if l.hooks[idx].key == key {
			l.hooks = append(l.hooks[:idx], l.hooks[idx+1:]...)
			return
		}
	}
}

// Shutdown asks the loop to terminate and returns immediately.
//
// The loop first runs the tasks already queued, then the shutdown hooks in
// registration order, then any task the hooks scheduled. Use
// [SingleThreadEventLoop.Done] to know when it has terminated.
func (l *SingleThreadEventLoop) Shutdown() {
	l.mu.Lock()
	l.shuttingDown = true
	l.mu.Unlock()
	l.signal()
}

// Done returns a channel closed once the loop has terminated.
func (l *SingleThreadEventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *SingleThreadEventLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *SingleThreadEventLoop) run() error {
	defer close(l.done)
	ctx := context.WithValue(context.Background(), eventLoopKey{}, l)

	for {
		l.runAllTasks(ctx)
		if l.shutdownRequested() {
			break
		}
		<-l.wake
	}

	t0 := l.TimeNow()
	l.Logger.Info(
		"eventLoopShutdownStart",
		slog.String("eventLoopID", l.id),
		slog.Time("t", t0),
	)
	l.runShutdownHooks(ctx)
	for !l.confirmTermination() {
		l.runAllTasks(ctx)
	}
	l.Logger.Info(
		"eventLoopShutdownDone",
		slog.String("eventLoopID", l.id),
		slog.Time("t0", t0),
		slog.Time("t", l.TimeNow()),
	)
	return nil
}

func (l *SingleThreadEventLoop) shutdownRequested() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shuttingDown
}

func (l *SingleThreadEventLoop) confirmTermination() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		return false
	}
	l.terminated = true
	return true
}

func (l *SingleThreadEventLoop) pollTask() Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) <= 0 {
		return nil
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task
}

func (l *SingleThreadEventLoop) runAllTasks(ctx context.Context) {
	for task := l.pollTask(); task != nil; task = l.pollTask() {
		l.safeRun(ctx, task)
	}
}

func (l *SingleThreadEventLoop) runShutdownHooks(ctx context.Context) {
	for {
		l.mu.Lock()
		hooks := l.hooks
		l.hooks = nil
		l.mu.Unlock()
		if len(hooks) <= 0 {
			return
		}
		for _, hook := range hooks {
			l.safeRun(ctx, hook.task)
		}
	}
}

func (l *SingleThreadEventLoop) safeRun(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Info(
				"eventLoopTaskPanic",
				slog.String("eventLoopID", l.id),
				slog.Any("panic", r),
				slog.Time("t", l.TimeNow()),
			)
		}
	}()
	task(ctx)
}
