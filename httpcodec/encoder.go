// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bassosimone/loopchan"
	"golang.org/x/net/http/httpguts"
)

// ErrTooManyResponses indicates that the encoder saw more responses than
// requests. It wraps [loopchan.ErrProtocolViolation].
var ErrTooManyResponses = fmt.Errorf("%w: more responses than requests", loopchan.ErrProtocolViolation)

// ErrInvalidEncoding indicates an [*EncodingResult] with an invalid name
// or without a [Transform].
var ErrInvalidEncoding = errors.New("httpcodec: invalid encoding result")

// EncodingResult is the outcome of a successful negotiation: the name of
// the chosen encoding and a fresh [Transform] implementing it.
type EncodingResult struct {
	name      string
	transform Transform
}

// NewEncodingResult returns a new [*EncodingResult]. The name must be a
// valid HTTP token and the transform must not be nil.
func NewEncodingResult(name string, transform Transform) (*EncodingResult, error) {
	if name == "" || strings.IndexFunc(name, func(r rune) bool { return !httpguts.IsTokenRune(r) }) >= 0 {
		return nil, fmt.Errorf("%w: bad name %q", ErrInvalidEncoding, name)
	}
	if transform == nil {
		return nil, fmt.Errorf("%w: nil transform", ErrInvalidEncoding)
	}
	return &EncodingResult{name: name, transform: transform}, nil
}

// Name returns the Content-Encoding value.
func (r *EncodingResult) Name() string {
	return r.name
}

// Transform returns the [Transform] encoding the body.
func (r *EncodingResult) Transform() Transform {
	return r.transform
}

// Negotiator chooses the encoding of a response.
//
// BeginEncode receives the response and the Accept-Encoding of the request
// it answers. It returns nil when the body should be sent unencoded. It
// must not modify the response.
type Negotiator interface {
	BeginEncode(resp *Response, acceptEncoding string) (*EncodingResult, error)
}

// NewContentEncoder returns a new [*ContentEncoder] using negotiator.
//
// The cfg argument contains the common configuration for loopchan operations.
//
// The logger argument is the [loopchan.SLogger] to use for structured logging.
func NewContentEncoder(cfg *loopchan.Config, negotiator Negotiator, logger loopchan.SLogger) *ContentEncoder {
	return &ContentEncoder{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Negotiator:    negotiator,
		TimeNow:       cfg.TimeNow,
	}
}

// ContentEncoder is a pipeline stage encoding response bodies.
//
// On the inbound path, it records the Accept-Encoding of each [*Request]
// ("identity" when missing). On the outbound path, each [*Response] but
// 100 Continue consumes the oldest recorded value, whether or not the body
// ends up encoded. A [*ContentEncoder] holds per-connection state, so each
// channel needs its own instance.
//
// Install it after stages producing responses and before any stage
// serializing messages to bytes.
type ContentEncoder struct {
	loopchan.InboundHandlerAdapter

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewContentEncoder] from [loopchan.Config.ErrClassifier].
	ErrClassifier loopchan.ErrClassifier

	// Logger is the [loopchan.SLogger] to use.
	//
	// Set by [NewContentEncoder] to the user-provided logger.
	Logger loopchan.SLogger

	// Negotiator chooses the encoding of each response.
	//
	// Set by [NewContentEncoder] to the user-provided value.
	Negotiator Negotiator

	// TimeNow is the function to get the current time.
	//
	// Set by [NewContentEncoder] from [loopchan.Config.TimeNow].
	TimeNow func() time.Time

	tokens    []string
	transform Transform
}

var (
	_ loopchan.InboundHandler  = &ContentEncoder{}
	_ loopchan.OutboundHandler = &ContentEncoder{}
)

// Pending returns the number of requests still waiting for a response.
func (e *ContentEncoder) Pending() int {
	return len(e.tokens)
}

// MessageReceived implements [loopchan.InboundHandler].
func (e *ContentEncoder) MessageReceived(ctx context.Context, hc *loopchan.HandlerContext, msg any) {
	if req, ok := msg.(*Request); ok {
		token := "identity"
		if values := req.Header().Values("Accept-Encoding"); len(values) > 0 {
			token = strings.Join(values, ",")
		}
		e.tokens = append(e.tokens, token)
	}
	hc.FireMessageReceived(ctx, msg)
}

// Write implements [loopchan.OutboundHandler].
func (e *ContentEncoder) Write(ctx context.Context, hc *loopchan.HandlerContext, msg any) error {
	switch m := msg.(type) {
	case *Response:
		if m.IsInterim() {
			return hc.Write(ctx, m)
		}
		return e.encodeResponse(ctx, hc, m)

	case *Chunk:
		if e.transform == nil {
			return hc.Write(ctx, m)
		}
		if m.IsLast() {
			return e.encodeLastChunk(ctx, hc, m)
		}
		return e.encodeChunk(ctx, hc, m)

	default:
		return hc.Write(ctx, msg)
	}
}

func (e *ContentEncoder) encodeResponse(ctx context.Context, hc *loopchan.HandlerContext, resp *Response) error {
	if len(e.tokens) <= 0 {
		return ErrTooManyResponses
	}
	token := e.tokens[0]
	e.tokens = e.tokens[1:]
	e.transform = nil

	if len(resp.Content()) <= 0 && !resp.IsChunked() {
		return hc.Write(ctx, resp)
	}

	result, err := e.Negotiator.BeginEncode(resp, token)
	if err != nil {
		return err
	}
	if result == nil {
		return hc.Write(ctx, resp)
	}
	resp.Header().Set("Content-Encoding", result.Name())

	if resp.IsChunked() {
		e.transform = result.Transform()
		return hc.Write(ctx, resp)
	}

	t0 := e.TimeNow()
	size := len(resp.Content())
	body, err := encodeAll(result.Transform(), resp.Content())
	e.logEncodeDone(hc, result.Name(), size, len(body), t0, err)
	if err != nil {
		return err
	}
	resp.SetContent(body)
	if len(resp.Header().Values("Content-Length")) > 0 {
		resp.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	return hc.Write(ctx, resp)
}

// encodeAll runs the whole body through t and returns main and tail output.
func encodeAll(t Transform, body []byte) ([]byte, error) {
	if err := t.Accept(body); err != nil {
		return nil, err
	}
	main := drain(t)
	if _, err := t.Finish(); err != nil {
		return nil, err
	}
	return slices.Concat(main, drain(t)), nil
}

func drain(t Transform) []byte {
	if t.Size() <= 0 {
		return nil
	}
	return t.Drain()
}

func (e *ContentEncoder) encodeChunk(ctx context.Context, hc *loopchan.HandlerContext, chunk *Chunk) error {
	if err := e.transform.Accept(chunk.Content()); err != nil {
		e.transform = nil
		return err
	}
	chunk.SetContent(drain(e.transform))
	return hc.Write(ctx, chunk)
}

// encodeLastChunk finishes the transform. A non-empty tail travels in a
// synthetic chunk written before the last chunk, which is left empty.
func (e *ContentEncoder) encodeLastChunk(ctx context.Context, hc *loopchan.HandlerContext, last *Chunk) error {
	t := e.transform
	e.transform = nil

	var pending []byte
	if data := last.Content(); len(data) > 0 {
		if err := t.Accept(data); err != nil {
			return err
		}
		pending = drain(t)
		last.SetContent(nil)
	}
	if _, err := t.Finish(); err != nil {
		return err
	}
	if tail := slices.Concat(pending, drain(t)); len(tail) > 0 {
		if err := hc.Write(ctx, NewChunk(tail)); err != nil {
			return err
		}
	}
	return hc.Write(ctx, last)
}

func (e *ContentEncoder) logEncodeDone(
	hc *loopchan.HandlerContext, encoding string, size, encoded int, t0 time.Time, err error) {
	e.Logger.Debug(
		"encodeDone",
		slog.String("channelID", hc.Channel().ID()),
		slog.String("contentEncoding", encoding),
		slog.Any("err", err),
		slog.String("errClass", e.ErrClassifier.Classify(err)),
		slog.Int("ioBufferSize", size),
		slog.Int("ioBytesCount", encoded),
		slog.Time("t0", t0),
		slog.Time("t", e.TimeNow()),
	)
}
