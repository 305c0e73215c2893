// Package crypto provides the hashing and BLS signature primitives used by
// the state transition and fork choice.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/eth2031/beacon/primitives"
)

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
// Used outside the SSZ hash-tree-root path (SSZ Merkleization is SHA-256
// per the consensus spec; Keccak is not used there).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Digest returns Keccak256 as a primitives.Digest.
func Keccak256Digest(data ...[]byte) primitives.Digest {
	var d primitives.Digest
	copy(d[:], Keccak256(data...))
	return d
}
