// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of a Solana address.
const PublicKeySize = 32

const maxSeedLength = 32

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("blockchain: unable to find a viable program address bump seed")

// PublicKey is a Solana account address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("blockchain: invalid base58 key %q: %w", s, err)
	}
	if len(raw) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("blockchain: key %q has %d bytes, want %d", s, len(raw), PublicKeySize)
	}
	var pk PublicKey
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for constants; it panics on error.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("blockchain: key has %d bytes, want %d", len(b), PublicKeySize)
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Bytes returns a copy of the key bytes.
func (pk PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pk[:])
	return out
}

// IsZero returns true for the all-zero key.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Less orders keys by their bytes.
func (pk PublicKey) Less(other PublicKey) bool {
	return bytes.Compare(pk[:], other[:]) < 0
}

// CreateProgramAddress derives a program address from seeds. It fails when
// the result lies on the ed25519 curve, since such an address could have a
// private key.
func CreateProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, fmt.Errorf("blockchain: seed of %d bytes exceeds %d", len(seed), maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte("ProgramDerivedAddress"))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))

	if IsOnCurve(pk) {
		return PublicKey{}, errors.New("blockchain: derived address is on curve")
	}
	return pk, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether pk decodes to a valid ed25519 point.
func IsOnCurve(pk PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}
