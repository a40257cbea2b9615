// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "context"

// NewBindFunc returns a new [*BindFunc] binding to addr.
func NewBindFunc(addr LocalAddress) *BindFunc {
	return &BindFunc{Address: addr}
}

// BindFunc binds a registered [*LocalServerChannel] and waits for the
// server to become active.
//
// On failure, the server is closed.
type BindFunc struct {
	// Address is the address to bind to.
	//
	// Set by [NewBindFunc] to the user-provided value.
	Address LocalAddress
}

var _ Func[*LocalServerChannel, *LocalServerChannel] = &BindFunc{}

// Call implements [Func].
func (op *BindFunc) Call(ctx context.Context, srv *LocalServerChannel) (*LocalServerChannel, error) {
	if err := srv.Bind(ctx, op.Address).Wait(ctx); err != nil {
		srv.Close(context.Background())
		return nil, err
	}
	return srv, nil
}
