//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
//

package loopchan

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NewLoggingHandler returns a new [*LoggingHandler] with default logging.
//
// The cfg argument contains the common configuration for loopchan operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewLoggingHandler(cfg *Config, logger SLogger) *LoggingHandler {
	return &LoggingHandler{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// LoggingHandler is a pipeline stage logging every event crossing it.
//
// Events are forwarded unchanged. Insert it with [Pipeline.AddFirst] to
// observe what the channel exchanges, or between two stages to observe
// what the stages exchange.
//
// All fields are safe to modify after construction but before the channel
// is registered.
type LoggingHandler struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewLoggingHandler] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewLoggingHandler] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewLoggingHandler] from [Config.TimeNow].
	TimeNow func() time.Time
}

var (
	_ InboundHandler  = &LoggingHandler{}
	_ OutboundHandler = &LoggingHandler{}
)

func (h *LoggingHandler) logEvent(event string, hc *HandlerContext) {
	ch := hc.Channel()
	h.Logger.Debug(
		event,
		slog.String("channelID", ch.ID()),
		slog.String("handler", hc.Name()),
		slog.String("localAddr", ch.LocalAddr().String()),
		slog.String("protocol", "local"),
		slog.String("remoteAddr", ch.RemoteAddr().String()),
		slog.Time("t", h.TimeNow()),
	)
}

// ChannelRegistered implements [InboundHandler].
func (h *LoggingHandler) ChannelRegistered(ctx context.Context, hc *HandlerContext) {
	h.logEvent("channelRegistered", hc)
	hc.FireChannelRegistered(ctx)
}

// ChannelUnregistered implements [InboundHandler].
func (h *LoggingHandler) ChannelUnregistered(ctx context.Context, hc *HandlerContext) {
	h.logEvent("channelUnregistered", hc)
	hc.FireChannelUnregistered(ctx)
}

// ChannelActive implements [InboundHandler].
func (h *LoggingHandler) ChannelActive(ctx context.Context, hc *HandlerContext) {
	h.logEvent("channelActive", hc)
	hc.FireChannelActive(ctx)
}

// ChannelInactive implements [InboundHandler].
func (h *LoggingHandler) ChannelInactive(ctx context.Context, hc *HandlerContext) {
	h.logEvent("channelInactive", hc)
	hc.FireChannelInactive(ctx)
}

// MessageReceived implements [InboundHandler].
func (h *LoggingHandler) MessageReceived(ctx context.Context, hc *HandlerContext, msg any) {
	h.Logger.Debug(
		"messageReceived",
		slog.String("channelID", hc.Channel().ID()),
		slog.String("handler", hc.Name()),
		slog.Int("ioBytesCount", messageSize(msg)),
		slog.String("messageType", fmt.Sprintf("%T", msg)),
		slog.Time("t", h.TimeNow()),
	)
	hc.FireMessageReceived(ctx, msg)
}

// ExceptionCaught implements [InboundHandler].
func (h *LoggingHandler) ExceptionCaught(ctx context.Context, hc *HandlerContext, err error) {
	h.Logger.Debug(
		"exceptionCaught",
		slog.String("channelID", hc.Channel().ID()),
		slog.Any("err", err),
		slog.String("errClass", h.ErrClassifier.Classify(err)),
		slog.String("handler", hc.Name()),
		slog.Time("t", h.TimeNow()),
	)
	hc.FireExceptionCaught(ctx, err)
}

// Write implements [OutboundHandler].
func (h *LoggingHandler) Write(ctx context.Context, hc *HandlerContext, msg any) error {
	t0 := h.TimeNow()
	h.Logger.Debug(
		"writeStart",
		slog.String("channelID", hc.Channel().ID()),
		slog.String("handler", hc.Name()),
		slog.Int("ioBufferSize", messageSize(msg)),
		slog.String("messageType", fmt.Sprintf("%T", msg)),
		slog.Time("t", t0),
	)

	err := hc.Write(ctx, msg)

	h.Logger.Debug(
		"writeDone",
		slog.String("channelID", hc.Channel().ID()),
		slog.Any("err", err),
		slog.String("errClass", h.ErrClassifier.Classify(err)),
		slog.String("handler", hc.Name()),
		slog.Time("t0", t0),
		slog.Time("t", h.TimeNow()),
	)
	return err
}

// messageSize returns the payload size of byte-oriented messages or -1.
func messageSize(msg any) int {
	switch v := msg.(type) {
	case []byte:
		return len(v)
	case string:
		return len(v)
	case interface{ Content() []byte }:
		return len(v.Content())
	default:
		return -1
	}
}
