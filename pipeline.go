// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bassosimone/runtimex"
)

// Handler is a pipeline stage. A handler must implement [InboundHandler],
// [OutboundHandler], or both.
type Handler any

// InboundHandler processes events traveling from the channel towards the
// application (head to tail).
//
// Each method must forward the event using the corresponding method of
// [*HandlerContext] unless it intends to consume it. Embed
// [InboundHandlerAdapter] to only override the events you care about.
type InboundHandler interface {
	ChannelRegistered(ctx context.Context, hc *HandlerContext)
	ChannelUnregistered(ctx context.Context, hc *HandlerContext)
	ChannelActive(ctx context.Context, hc *HandlerContext)
	ChannelInactive(ctx context.Context, hc *HandlerContext)
	MessageReceived(ctx context.Context, hc *HandlerContext, msg any)
	ExceptionCaught(ctx context.Context, hc *HandlerContext, err error)
}

// OutboundHandler processes messages traveling from the application towards
// the channel (tail to head).
//
// Write must forward zero or more messages using [HandlerContext.Write]. A
// returned error fails the write future.
type OutboundHandler interface {
	Write(ctx context.Context, hc *HandlerContext, msg any) error
}

// InboundHandlerAdapter forwards every inbound event unchanged.
type InboundHandlerAdapter struct{}

var _ InboundHandler = InboundHandlerAdapter{}

// ChannelRegistered implements [InboundHandler].
func (InboundHandlerAdapter) ChannelRegistered(ctx context.Context, hc *HandlerContext) {
	hc.FireChannelRegistered(ctx)
}

// ChannelUnregistered implements [InboundHandler].
func (InboundHandlerAdapter) ChannelUnregistered(ctx context.Context, hc *HandlerContext) {
	hc.FireChannelUnregistered(ctx)
}

// ChannelActive implements [InboundHandler].
func (InboundHandlerAdapter) ChannelActive(ctx context.Context, hc *HandlerContext) {
	hc.FireChannelActive(ctx)
}

// ChannelInactive implements [InboundHandler].
func (InboundHandlerAdapter) ChannelInactive(ctx context.Context, hc *HandlerContext) {
	hc.FireChannelInactive(ctx)
}

// MessageReceived implements [InboundHandler].
func (InboundHandlerAdapter) MessageReceived(ctx context.Context, hc *HandlerContext, msg any) {
	hc.FireMessageReceived(ctx, msg)
}

// ExceptionCaught implements [InboundHandler].
func (InboundHandlerAdapter) ExceptionCaught(ctx context.Context, hc *HandlerContext, err error) {
	hc.FireExceptionCaught(ctx, err)
}

// ErrDuplicateHandlerName indicates that the pipeline already contains a
// handler with the given name.
var ErrDuplicateHandlerName = errors.New("loopchan: duplicate handler name")

// Pipeline is the ordered chain of handlers of a channel.
//
// The pipeline is confined to the channel's loop: mutate it from a task
// running on that loop, or before the channel is registered.
type Pipeline struct {
	channel  Channel
	head     *HandlerContext
	inbound  []any
	logger   SLogger
	outbound []any
	tail     *HandlerContext
}

func newPipeline(ch Channel, logger SLogger) *Pipeline {
	p := &Pipeline{channel: ch, logger: logger}
	p.head = &HandlerContext{name: "head", handler: headHandler{}, pipeline: p}
	p.tail = &HandlerContext{name: "tail", handler: tailHandler{}, pipeline: p}
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

// Channel returns the channel owning the pipeline.
func (p *Pipeline) Channel() Channel {
	return p.channel
}

// AddFirst inserts h right after the head of the pipeline.
func (p *Pipeline) AddFirst(name string, h Handler) error {
	return p.insert(p.head, name, h)
}

// AddLast inserts h right before the tail of the pipeline.
func (p *Pipeline) AddLast(name string, h Handler) error {
	return p.insert(p.tail.prev, name, h)
}

func (p *Pipeline) insert(after *HandlerContext, name string, h Handler) error {
	runtimex.Assert(isHandler(h))
	if p.find(name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateHandlerName, name)
	}
	hc := &HandlerContext{name: name, handler: h, pipeline: p, prev: after, next: after.next}
	after.next.prev = hc
	after.next = hc
	return nil
}

// Remove removes the handler with the given name and returns it.
func (p *Pipeline) Remove(name string) (Handler, bool) {
	hc := p.find(name)
	if hc == nil {
		return nil, false
	}
	hc.prev.next = hc.next
	hc.next.prev = hc.prev
	return hc.handler, true
}

// Get returns the handler with the given name or nil.
func (p *Pipeline) Get(name string) Handler {
	if hc := p.find(name); hc != nil {
		return hc.handler
	}
	return nil
}

// Names returns the handler names in head to tail order.
func (p *Pipeline) Names() (names []string) {
	for hc := p.head.next; hc != p.tail; hc = hc.next {
		names = append(names, hc.name)
	}
	return
}

func (p *Pipeline) find(name string) *HandlerContext {
	for hc := p.head.next; hc != p.tail; hc = hc.next {
		if hc.name == name {
			return hc
		}
	}
	return nil
}

func isHandler(h Handler) bool {
	_, inbound := h.(InboundHandler)
	_, outbound := h.(OutboundHandler)
	return inbound || outbound
}

func (p *Pipeline) fireChannelRegistered(ctx context.Context) {
	p.head.FireChannelRegistered(ctx)
}

func (p *Pipeline) fireChannelUnregistered(ctx context.Context) {
	p.head.FireChannelUnregistered(ctx)
}

func (p *Pipeline) fireChannelActive(ctx context.Context) {
	p.head.FireChannelActive(ctx)
}

func (p *Pipeline) fireChannelInactive(ctx context.Context) {
	p.head.FireChannelInactive(ctx)
}

// FireMessageReceived delivers msg to the first inbound handler.
func (p *Pipeline) FireMessageReceived(ctx context.Context, msg any) {
	p.head.FireMessageReceived(ctx, msg)
}

func (p *Pipeline) fireExceptionCaught(ctx context.Context, err error) {
	p.head.FireExceptionCaught(ctx, err)
}

// fireInboundBufferUpdated delivers every message in the inbound queue,
// including the ones enqueued while delivering.
func (p *Pipeline) fireInboundBufferUpdated(ctx context.Context) {
	for len(p.inbound) > 0 {
		msg := p.inbound[0]
		p.inbound[0] = nil
		p.inbound = p.inbound[1:]
		p.FireMessageReceived(ctx, msg)
	}
}

// Write sends msg to the last outbound handler. Messages reaching the head
// are queued until the channel is flushed.
func (p *Pipeline) Write(ctx context.Context, msg any) error {
	return p.tail.Write(ctx, msg)
}

// takeOutbound returns the queued outbound messages and empties the queue.
func (p *Pipeline) takeOutbound() []any {
	batch := p.outbound
	p.outbound = nil
	return batch
}

// HandlerContext binds a handler to its position in the [*Pipeline].
type HandlerContext struct {
	handler  Handler
	name     string
	next     *HandlerContext
	pipeline *Pipeline
	prev     *HandlerContext
}

// Name returns the handler name.
func (hc *HandlerContext) Name() string {
	return hc.name
}

// Handler returns the handler.
func (hc *HandlerContext) Handler() Handler {
	return hc.handler
}

// Pipeline returns the pipeline containing the handler.
func (hc *HandlerContext) Pipeline() *Pipeline {
	return hc.pipeline
}

// Channel returns the channel owning the pipeline.
func (hc *HandlerContext) Channel() Channel {
	return hc.pipeline.channel
}

func (hc *HandlerContext) nextInbound() (InboundHandler, *HandlerContext) {
	for cur := hc.next; cur != nil; cur = cur.next {
		if h, ok := cur.handler.(InboundHandler); ok {
			return h, cur
		}
	}
	panic("loopchan: pipeline without tail")
}

// FireChannelRegistered forwards the event to the next inbound handler.
func (hc *HandlerContext) FireChannelRegistered(ctx context.Context) {
	h, next := hc.nextInbound()
	h.ChannelRegistered(ctx, next)
}

// FireChannelUnregistered forwards the event to the next inbound handler.
func (hc *HandlerContext) FireChannelUnregistered(ctx context.Context) {
	h, next := hc.nextInbound()
	h.ChannelUnregistered(ctx, next)
}

// FireChannelActive forwards the event to the next inbound handler.
func (hc *HandlerContext) FireChannelActive(ctx context.Context) {
	h, next := hc.nextInbound()
	h.ChannelActive(ctx, next)
}

// FireChannelInactive forwards the event to the next inbound handler.
func (hc *HandlerContext) FireChannelInactive(ctx context.Context) {
	h, next := hc.nextInbound()
	h.ChannelInactive(ctx, next)
}

// FireMessageReceived forwards msg to the next inbound handler.
func (hc *HandlerContext) FireMessageReceived(ctx context.Context, msg any) {
	h, next := hc.nextInbound()
	h.MessageReceived(ctx, next, msg)
}

// FireExceptionCaught forwards err to the next inbound handler.
func (hc *HandlerContext) FireExceptionCaught(ctx context.Context, err error) {
	h, next := hc.nextInbound()
	h.ExceptionCaught(ctx, next, err)
}

// Write forwards msg to the previous outbound handler. Messages reaching
// the head of the pipeline are queued until the next flush.
func (hc *HandlerContext) Write(ctx context.Context, msg any) error {
	for cur := hc.prev; cur != nil; cur = cur.prev {
		if h, ok := cur.handler.(OutboundHandler); ok {
			return h.Write(ctx, cur, msg)
		}
	}
	panic("loopchan: pipeline without head")
}

// headHandler queues outbound messages for the channel.
type headHandler struct{}

func (headHandler) Write(ctx context.Context, hc *HandlerContext, msg any) error {
	hc.pipeline.outbound = append(hc.pipeline.outbound, msg)
	return nil
}

// tailHandler terminates inbound events nobody consumed.
type tailHandler struct{}

func (tailHandler) ChannelRegistered(ctx context.Context, hc *HandlerContext)   {}
func (tailHandler) ChannelUnregistered(ctx context.Context, hc *HandlerContext) {}
func (tailHandler) ChannelActive(ctx context.Context, hc *HandlerContext)       {}
func (tailHandler) ChannelInactive(ctx context.Context, hc *HandlerContext)     {}

func (tailHandler) MessageReceived(ctx context.Context, hc *HandlerContext, msg any) {
	hc.pipeline.logger.Debug(
		"pipelineMessageDiscarded",
		slog.String("channelID", hc.Channel().ID()),
		slog.String("messageType", fmt.Sprintf("%T", msg)),
	)
}

func (tailHandler) ExceptionCaught(ctx context.Context, hc *HandlerContext, err error) {
	hc.pipeline.logger.Info(
		"pipelineExceptionUnhandled",
		slog.String("channelID", hc.Channel().ID()),
		slog.Any("err", err),
	)
}
