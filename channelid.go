// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewChannelID returns a UUIDv7 identifying a channel.
//
// Being time-ordered, the IDs of channels created by the same process sort
// in creation order, which keeps logs and ephemeral addresses readable.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewChannelID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
