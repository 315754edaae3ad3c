// Package identity holds the device's immutable identity bytes
// (spec.md §3: "eight immutable bytes sourced from the MCU's unique
// ID at startup").
package identity

import (
	"crypto/rand"
	"fmt"
)

// Size is the fixed length of a device identity.
const Size = 8

// ID is an opaque 8-byte device identifier.
type ID [Size]byte

// String renders the identity as a hex string for logging.
func (id ID) String() string {
	return fmt.Sprintf("%x", [Size]byte(id))
}

// FromBytes copies b into an ID, zero-padding or truncating to Size.
func FromBytes(b []byte) ID {
	var id ID
	copy(id[:], b)
	return id
}

// Generate produces a pseudo-unique identity. Real hardware reads this
// from the MCU's UID registers at boot; this host build draws from the
// OS CSPRNG once at startup, which is an acceptable stand-in since the
// identity's only contract is stability for the life of the process.
func Generate() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("identity: generate: %w", err)
	}
	return id, nil
}
