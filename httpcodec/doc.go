// SPDX-License-Identifier: GPL-3.0-or-later

// Package httpcodec contains pipeline stages operating on structured HTTP
// messages flowing through a [loopchan.Pipeline].
//
// The [*ContentEncoder] stage correlates each outbound [*Response] with the
// Accept-Encoding of the inbound [*Request] it answers, asks a [Negotiator]
// which encoding to apply, and streams the body through a [Transform],
// rewriting Content-Length and emitting the transform tail as an extra
// [*Chunk] when needed. The [*Compressor] negotiator selects among gzip,
// deflate, zstd, x-snappy-framed, and lz4 using quality values.
//
// Messages are handed off by ownership: a stage may mutate a message it
// receives, and must not retain it after forwarding it.
package httpcodec
