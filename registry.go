// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"fmt"
	"sync"
)

// Registry maps each claimed [LocalAddress] to the channel owning it.
//
// A Registry is the only state shared by channels running on distinct loops,
// hence it is internally synchronized. The lock is held only while reading or
// writing the map, never while running channel code.
//
// The zero value is not usable; construct using [NewRegistry].
type Registry struct {
	bound map[LocalAddress]Channel
	mu    sync.Mutex
}

// NewRegistry returns a new, empty [*Registry].
func NewRegistry() *Registry {
	return &Registry{bound: make(map[LocalAddress]Channel)}
}

// Claim binds candidate to ch and returns the concrete address.
//
// The old argument is the address ch currently owns: a channel owning an
// address cannot claim another one ([ErrAlreadyBound]). When candidate is
// the "any" address, Claim allocates an ephemeral address derived from the
// channel identity. Claim fails with [ErrAddressInUse] when another channel
// owns the address.
func (r *Registry) Claim(ch Channel, old, candidate LocalAddress) (LocalAddress, error) {
	if !old.IsAny() {
		return LocalAddress{}, fmt.Errorf("%w: %s", ErrAlreadyBound, old)
	}
	if candidate.IsAny() {
		candidate = ephemeralAddress(ch.ID())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.bound[candidate]; found {
		return LocalAddress{}, fmt.Errorf("%w: %s", ErrAddressInUse, candidate)
	}
	r.bound[candidate] = ch
	return candidate, nil
}

// Release makes addr available again. Releasing an unclaimed address is a no-op.
func (r *Registry) Release(addr LocalAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bound, addr)
}

// Lookup returns the channel owning addr or nil.
func (r *Registry) Lookup(addr LocalAddress) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound[addr]
}
