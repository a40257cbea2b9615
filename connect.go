// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// NewConnectFunc returns a new [*ConnectFunc] connecting to remote from an
// ephemeral local address.
func NewConnectFunc(remote LocalAddress) *ConnectFunc {
	return &ConnectFunc{Remote: remote}
}

// ConnectFunc connects a registered [*LocalChannel] and waits until it is
// active.
//
// Returns either the connected channel or an error, never both. On failure,
// the channel is closed.
//
// All fields are safe to modify after construction but before first use.
type ConnectFunc struct {
	// Local is the address to bind before connecting.
	//
	// Set by [NewConnectFunc] to the "any" address.
	Local LocalAddress

	// Remote is the address of the [*LocalServerChannel] to connect to.
	//
	// Set by [NewConnectFunc] to the user-provided value.
	Remote LocalAddress
}

var _ Func[*LocalChannel, *LocalChannel] = &ConnectFunc{}

// Call implements [Func].
func (op *ConnectFunc) Call(ctx context.Context, ch *LocalChannel) (*LocalChannel, error) {
	if err := ch.Connect(ctx, op.Remote, op.Local).Wait(ctx); err != nil {
		ch.Close(context.Background())
		return nil, err
	}
	return ch, nil
}
