// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// NewLocalChannelFunc returns a [Func] creating a new [*LocalChannel].
//
// The init argument, when not nil, runs on each new channel before it is
// returned, typically to populate its [*Pipeline].
func NewLocalChannelFunc(cfg *Config, logger SLogger, init func(*LocalChannel)) Func[Unit, *LocalChannel] {
	return FuncAdapter[Unit, *LocalChannel](func(ctx context.Context, _ Unit) (*LocalChannel, error) {
		ch := NewLocalChannel(cfg, logger)
		if init != nil {
			init(ch)
		}
		return ch, nil
	})
}

// NewLocalServerChannelFunc is like [NewLocalChannelFunc] for [*LocalServerChannel].
func NewLocalServerChannelFunc(cfg *Config, logger SLogger, init func(*LocalServerChannel)) Func[Unit, *LocalServerChannel] {
	return FuncAdapter[Unit, *LocalServerChannel](func(ctx context.Context, _ Unit) (*LocalServerChannel, error) {
		srv := NewLocalServerChannel(cfg, logger)
		if init != nil {
			init(srv)
		}
		return srv, nil
	})
}

// NewRegisterFunc returns a new [*RegisterFunc] picking loops from loops.
func NewRegisterFunc[C Channel](loops LoopChooser) *RegisterFunc[C] {
	return &RegisterFunc[C]{Loops: loops}
}

// RegisterFunc registers a channel with the next loop of a [LoopChooser]
// and waits for the registration to complete.
//
// On failure, the channel is closed.
type RegisterFunc[C Channel] struct {
	// Loops chooses the loop to register with.
	//
	// Set by [NewRegisterFunc] to the user-provided value.
	Loops LoopChooser
}

// Call implements [Func].
func (op *RegisterFunc[C]) Call(ctx context.Context, ch C) (C, error) {
	if err := ch.Register(op.Loops.Next()).Wait(ctx); err != nil {
		ch.Close(context.Background())
		var zero C
		return zero, err
	}
	return ch, nil
}
