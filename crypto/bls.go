package crypto

import (
	"crypto/sha256"
	"errors"

	"github.com/eth2031/beacon/primitives"
)

// Errors returned by the BLS backend.
var (
	ErrInvalidSecretKey  = errors.New("crypto: invalid BLS secret key")
	ErrInvalidSignature  = errors.New("crypto: invalid BLS signature encoding")
	ErrNoSignatures      = errors.New("crypto: no signatures to aggregate")
	ErrAggregateFailed   = errors.New("crypto: signature aggregation failed")
	ErrVerificationFailed = errors.New("crypto: signature verification failed")
)

// BLSBackend abstracts BLS12-381 signature verification so that a real
// backend (blst, behind a build tag) and a pure-Go/mock default can be
// swapped without touching callers.
type BLSBackend interface {
	Name() string
	Verify(pubkey primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool
	AggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool
	FastAggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool
}

// activeBackend is process-global and selected once at init; blst-tagged
// builds override it in bls_blst.go's init().
var activeBackend BLSBackend = mockBackend{}

// SetBackend overrides the active BLS backend (used by tests).
func SetBackend(b BLSBackend) {
	activeBackend = b
}

// Verify checks a single BLS signature against the active backend.
func Verify(pubkey primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	return activeBackend.Verify(pubkey, message, sig)
}

// FastAggregateVerify checks one signature against many pubkeys over the
// same message (used for sync aggregates).
func FastAggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	return activeBackend.FastAggregateVerify(pubkeys, message, sig)
}

// mockBackend is a deterministic, non-cryptographic stand-in used when the
// real blst backend is not compiled in (e.g. local/dev builds, CI without
// cgo). It verifies a signature by recomputing a SHA-256-based tag, which
// is sufficient for exercising the surrounding consensus logic but provides
// no actual cryptographic guarantee.
type mockBackend struct{}

func (mockBackend) Name() string { return "mock" }

func mockTag(pubkey []byte, message []byte) [96]byte {
	h := sha256.New()
	h.Write(pubkey)
	h.Write(message)
	sum := h.Sum(nil)
	var tag [96]byte
	copy(tag[:32], sum)
	copy(tag[32:64], sum)
	copy(tag[64:96], sum)
	return tag
}

func (mockBackend) Verify(pubkey primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	return mockTag(pubkey[:], message) == [96]byte(sig)
}

func (mockBackend) AggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	if len(pubkeys) == 0 {
		return false
	}
	combined := make([]byte, 0, 48*len(pubkeys))
	for _, pk := range pubkeys {
		combined = append(combined, pk[:]...)
	}
	return mockTag(combined, message) == [96]byte(sig)
}

func (m mockBackend) FastAggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	return m.AggregateVerify(pubkeys, message, sig)
}
