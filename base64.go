// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Base64Encoder is an outbound stage encoding []byte messages as base64.
//
// Messages of other types pass through unchanged.
type Base64Encoder struct {
	// Encoding is the encoding to use. When nil, [base64.StdEncoding] is used.
	Encoding *base64.Encoding
}

var _ OutboundHandler = &Base64Encoder{}

// Write implements [OutboundHandler].
func (e *Base64Encoder) Write(ctx context.Context, hc *HandlerContext, msg any) error {
	data, ok := msg.([]byte)
	if !ok {
		return hc.Write(ctx, msg)
	}
	enc := base64OrDefault(e.Encoding)
	out := make([]byte, enc.EncodedLen(len(data)))
	enc.Encode(out, data)
	return hc.Write(ctx, out)
}

// Base64Decoder is an inbound stage decoding base64 []byte messages.
//
// Messages of other types pass through unchanged. Invalid input is
// reported through ExceptionCaught and the message is dropped.
type Base64Decoder struct {
	InboundHandlerAdapter

	// Encoding is the encoding to use. When nil, [base64.StdEncoding] is used.
	Encoding *base64.Encoding
}

// MessageReceived implements [InboundHandler].
func (d *Base64Decoder) MessageReceived(ctx context.Context, hc *HandlerContext, msg any) {
	data, ok := msg.([]byte)
	if !ok {
		hc.FireMessageReceived(ctx, msg)
		return
	}
	enc := base64OrDefault(d.Encoding)
	out := make([]byte, enc.DecodedLen(len(data)))
	count, err := enc.Decode(out, data)
	if err != nil {
		hc.FireExceptionCaught(ctx, fmt.Errorf("%w: base64: %w", ErrProtocolViolation, err))
		return
	}
	hc.FireMessageReceived(ctx, out[:count])
}

func base64OrDefault(enc *base64.Encoding) *base64.Encoding {
	if enc == nil {
		return base64.StdEncoding
	}
	return enc
}
