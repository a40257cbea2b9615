// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import "net/http"

// Message is a request-like or response-like unit.
type Message interface {
	// Header returns the mutable message headers.
	Header() http.Header

	// Content returns the body carried by the message itself. A chunked
	// message carries its body in the [*Chunk] messages following it.
	Content() []byte

	// SetContent replaces the body.
	SetContent(data []byte)

	// IsChunked returns whether the body follows as a stream of [*Chunk].
	IsChunked() bool
}

// message is the common implementation of [Message].
type message struct {
	chunked bool
	content []byte
	header  http.Header
}

func (m *message) Header() http.Header {
	return m.header
}

func (m *message) Content() []byte {
	return m.content
}

func (m *message) SetContent(data []byte) {
	m.content = data
}

func (m *message) IsChunked() bool {
	return m.chunked
}

// SetChunked sets whether the body follows as a stream of [*Chunk].
func (m *message) SetChunked(chunked bool) {
	m.chunked = chunked
}

// Request is an HTTP request.
type Request struct {
	message

	// Method is the request method.
	Method string

	// Target is the request target.
	Target string
}

var _ Message = &Request{}

// NewRequest returns a new [*Request] with empty headers and body.
func NewRequest(method, target string) *Request {
	return &Request{message: message{header: http.Header{}}, Method: method, Target: target}
}

// Response is an HTTP response.
type Response struct {
	message

	// StatusCode is the response status code.
	StatusCode int
}

var _ Message = &Response{}

// NewResponse returns a new [*Response] with empty headers and body.
func NewResponse(statusCode int) *Response {
	return &Response{message: message{header: http.Header{}}, StatusCode: statusCode}
}

// IsInterim returns whether the response is the provisional 100 Continue.
func (r *Response) IsInterim() bool {
	return r.StatusCode == http.StatusContinue
}

// Chunk is a fragment of a chunked body.
//
// The last chunk terminates the body.
type Chunk struct {
	content []byte
	last    bool
}

// NewChunk returns a new non-last [*Chunk] carrying data.
func NewChunk(data []byte) *Chunk {
	return &Chunk{content: data}
}

// NewLastChunk returns a new last [*Chunk] without content.
func NewLastChunk() *Chunk {
	return &Chunk{last: true}
}

// Content returns the chunk data.
func (c *Chunk) Content() []byte {
	return c.content
}

// SetContent replaces the chunk data.
func (c *Chunk) SetContent(data []byte) {
	c.content = data
}

// IsLast returns whether this chunk terminates the body.
func (c *Chunk) IsLast() bool {
	return c.last
}
