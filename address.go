// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "net"

// LocalAddress is the address of a channel of the local transport.
//
// The zero value is the "any" address: binding to it allocates an ephemeral
// address derived from the channel identity.
type LocalAddress struct {
	name string
}

// NewLocalAddress returns the [LocalAddress] with the given name. An empty
// name returns the "any" address.
func NewLocalAddress(name string) LocalAddress {
	return LocalAddress{name: name}
}

// ephemeralAddress returns the address allocated to a channel that binds
// without choosing an explicit address.
func ephemeralAddress(channelID string) LocalAddress {
	return LocalAddress{name: "E" + channelID}
}

var _ net.Addr = LocalAddress{}

// IsAny returns whether this is the "any" address.
func (a LocalAddress) IsAny() bool {
	return a.name == ""
}

// Name returns the address name without the network prefix.
func (a LocalAddress) Name() string {
	return a.name
}

// Network implements [net.Addr].
func (a LocalAddress) Network() string {
	return "local"
}

// String implements [net.Addr].
func (a LocalAddress) String() string {
	if a.IsAny() {
		return "local:ANY"
	}
	return "local:" + a.name
}
