// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// EventLoopGroup owns a fixed set of [*SingleThreadEventLoop] and hands
// them out in round-robin order.
//
// Construct using [NewEventLoopGroup].
type EventLoopGroup struct {
	group *errgroup.Group
	loops []*SingleThreadEventLoop
	next  atomic.Uint64
}

// NewEventLoopGroup creates and starts size event loops. A size lower than
// one uses [runtime.NumCPU] loops.
//
// The cfg argument contains the common configuration for loopchan operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewEventLoopGroup(cfg *Config, size int, logger SLogger) *EventLoopGroup {
	if size < 1 {
		size = runtime.NumCPU()
	}
	g := &EventLoopGroup{group: &errgroup.Group{}}
	for range size {
		loop := newSingleThreadEventLoop(cfg, logger)
		g.loops = append(g.loops, loop)
		g.group.Go(loop.run)
	}
	return g
}

var _ LoopChooser = &EventLoopGroup{}

// Next implements [LoopChooser].
func (g *EventLoopGroup) Next() EventLoop {
	return g.NextLoop()
}

// NextLoop is like [EventLoopGroup.Next] but returns the concrete loop type.
func (g *EventLoopGroup) NextLoop() *SingleThreadEventLoop {
	idx := (g.next.Add(1) - 1) % uint64(len(g.loops))
	return g.loops[idx]
}

// Len returns the number of loops in the group.
func (g *EventLoopGroup) Len() int {
	return len(g.loops)
}

// Shutdown asks every loop to terminate and returns immediately.
func (g *EventLoopGroup) Shutdown() {
	for _, loop := range g.loops {
		loop.Shutdown()
	}
}

// Wait blocks until every loop has terminated.
func (g *EventLoopGroup) Wait() error {
	return g.group.Wait()
}
