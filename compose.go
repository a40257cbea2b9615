//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxcore.go
//

package loopchan

import "context"

// Compose2 returns a [Func] running op1 and feeding its result to op2.
//
// When op1 fails, op2 does not run and the error is returned as is.
func Compose2[A, B, C any](op1 Func[A, B], op2 Func[B, C]) Func[A, C] {
	return &composed[A, B, C]{first: op1, second: op2}
}

type composed[A, B, C any] struct {
	first  Func[A, B]
	second Func[B, C]
}

func (c *composed[A, B, C]) Call(ctx context.Context, input A) (C, error) {
	mid, err := c.first.Call(ctx, input)
	if err != nil {
		var zero C
		return zero, err
	}
	return c.second.Call(ctx, mid)
}

// Compose3 is like [Compose2] with three steps.
func Compose3[A, B, C, D any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D]) Func[A, D] {
	return Compose2(op1, Compose2(op2, op3))
}

// Compose4 is like [Compose2] with four steps.
func Compose4[A, B, C, D, E any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D], op4 Func[D, E]) Func[A, E] {
	return Compose2(op1, Compose3(op2, op3, op4))
}

// Apply binds input to fn, returning a [Func] taking [Unit].
func Apply[A, B any](fn Func[A, B], input A) Func[Unit, B] {
	return FuncAdapter[Unit, B](func(ctx context.Context, _ Unit) (B, error) {
		return fn.Call(ctx, input)
	})
}
