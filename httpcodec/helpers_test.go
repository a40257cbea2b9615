// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/bassosimone/loopchan"
	"github.com/bassosimone/slogstub"
)

// writeRecorder is the outbound stage closest to the head: it records the
// messages it receives and does not forward them.
type writeRecorder struct {
	msgs []any
}

func (wr *writeRecorder) Write(ctx context.Context, hc *loopchan.HandlerContext, msg any) error {
	wr.msgs = append(wr.msgs, msg)
	return nil
}

// negotiatorFunc adapts a func to [Negotiator].
type negotiatorFunc func(resp *Response, acceptEncoding string) (*EncodingResult, error)

func (fx negotiatorFunc) BeginEncode(resp *Response, acceptEncoding string) (*EncodingResult, error) {
	return fx(resp, acceptEncoding)
}

// upperTransform upper-cases its input and appends tail on Finish.
type upperTransform struct {
	// hold keeps the output until Finish.
	hold bool

	// tail is the output produced by Finish.
	tail []byte

	accepted []byte
	finished bool
	output   []byte
}

func (ut *upperTransform) Accept(data []byte) error {
	if ut.finished {
		return ErrTransformFinished
	}
	ut.accepted = append(ut.accepted, data...)
	if !ut.hold {
		ut.output = append(ut.output, bytes.ToUpper(data)...)
	}
	return nil
}

func (ut *upperTransform) Drain() []byte {
	out := ut.output
	ut.output = nil
	return out
}

func (ut *upperTransform) Size() int {
	return len(ut.output)
}

func (ut *upperTransform) Finish() (bool, error) {
	ut.finished = true
	if ut.hold {
		ut.output = append(ut.output, bytes.ToUpper(ut.accepted)...)
	}
	ut.output = append(ut.output, ut.tail...)
	return len(ut.output) > 0, nil
}

// upperNegotiator always chooses the "upper" encoding backed by a fresh
// [*upperTransform] configured with hold and tail. It records the
// Accept-Encoding values it is invoked with and the transforms it creates.
type upperNegotiator struct {
	// hold is copied into each new transform.
	hold bool

	// tail is copied into each new transform.
	tail []byte

	seen       []string
	transforms []*upperTransform
}

func (un *upperNegotiator) BeginEncode(resp *Response, acceptEncoding string) (*EncodingResult, error) {
	un.seen = append(un.seen, acceptEncoding)
	transform := &upperTransform{hold: un.hold, tail: un.tail}
	un.transforms = append(un.transforms, transform)
	return NewEncodingResult("upper", transform)
}

// encoderFixture is a pipeline containing a [*ContentEncoder].
type encoderFixture struct {
	ctx      context.Context
	encoder  *ContentEncoder
	pipeline *loopchan.Pipeline
	recorder *writeRecorder
}

// newEncoderFixture builds an unregistered channel whose pipeline contains
// a [*writeRecorder] followed by a [*ContentEncoder] using negotiator.
func newEncoderFixture(t *testing.T, negotiator Negotiator, logger loopchan.SLogger) *encoderFixture {
	cfg := loopchan.NewConfig()
	ch := loopchan.NewLocalChannel(cfg, logger)
	fx := &encoderFixture{
		ctx:      context.Background(),
		encoder:  NewContentEncoder(cfg, negotiator, logger),
		pipeline: ch.Pipeline(),
		recorder: &writeRecorder{},
	}
	if err := fx.pipeline.AddLast("recorder", fx.recorder); err != nil {
		t.Fatal(err)
	}
	if err := fx.pipeline.AddLast("encoder", fx.encoder); err != nil {
		t.Fatal(err)
	}
	return fx
}

// request delivers an inbound GET carrying the given Accept-Encoding values.
func (fx *encoderFixture) request(acceptEncoding ...string) {
	req := NewRequest("GET", "/")
	for _, value := range acceptEncoding {
		req.Header().Add("Accept-Encoding", value)
	}
	fx.pipeline.FireMessageReceived(fx.ctx, req)
}

// write sends msg through the pipeline.
func (fx *encoderFixture) write(msg any) error {
	return fx.pipeline.Write(fx.ctx, msg)
}

// newResponse returns a 200 response carrying body.
func newResponse(body string) *Response {
	resp := NewResponse(200)
	if body != "" {
		resp.SetContent([]byte(body))
	}
	return resp
}

// newChunkedResponse returns a 200 response whose body follows as chunks.
func newChunkedResponse() *Response {
	resp := NewResponse(200)
	resp.SetChunked(true)
	return resp
}

// newCapturingLogger returns a logger appending every record to records.
func newCapturingLogger(records *[]slog.Record) *slog.Logger {
	return slog.New(&slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			*records = append(*records, record)
			return nil
		},
	})
}
