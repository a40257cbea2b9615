// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// Func is a blocking bootstrap step turning an input into a result.
//
// Steps compose with [Compose2], [Compose3] and [Compose4] into a bootstrap
// where each step receives the channel prepared by the previous one, e.g.:
//
//	connect := Compose4(
//		NewLocalChannelFunc(cfg, logger, nil),
//		NewRegisterFunc[*LocalChannel](group),
//		NewConnectFunc(NewLocalAddress("echo")),
//		NewCancelWatchFunc[*LocalChannel](),
//	)
//
// A Func waits for channel futures, hence it must never run on an event loop.
//
// When a Func receives a channel and fails, it closes that channel before
// returning, so that partially built bootstraps do not leak registrations
// or bound addresses.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter turns an ordinary function into a [Func].
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}

// Unit is the empty input of a [Func] that needs no argument.
type Unit struct{}
