//go:build blst

package crypto

import (
	blst "github.com/supranational/blst/bindings/go"

	"github.com/eth2031/beacon/primitives"
)

// blstDST is the BLS12-381 ciphersuite used for beacon chain signatures
// (MinPk: 48-byte G1 pubkeys, 96-byte G2 signatures).
const blstDST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_"

func init() {
	activeBackend = blstBackend{}
}

// blstBackend wraps the real blst library, selected when this file's build
// tag is active (`go build -tags blst`).
type blstBackend struct{}

func (blstBackend) Name() string { return "blst" }

func (blstBackend) Verify(pubkey primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	pk := new(blst.P1Affine).Uncompress(pubkey[:])
	s := new(blst.P2Affine).Uncompress(sig[:])
	if pk == nil || s == nil {
		return false
	}
	return s.Verify(true, pk, false, message, []byte(blstDST))
}

func (blstBackend) AggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	s := new(blst.P2Affine).Uncompress(sig[:])
	if s == nil {
		return false
	}
	pks := make([]*blst.P1Affine, 0, len(pubkeys))
	msgs := make([][]byte, 0, len(pubkeys))
	for _, pk := range pubkeys {
		p := new(blst.P1Affine).Uncompress(pk[:])
		if p == nil {
			return false
		}
		pks = append(pks, p)
		msgs = append(msgs, message)
	}
	return s.AggregateVerify(true, pks, false, msgs, []byte(blstDST))
}

func (b blstBackend) FastAggregateVerify(pubkeys []primitives.BLSPubkey, message []byte, sig primitives.BLSSignature) bool {
	s := new(blst.P2Affine).Uncompress(sig[:])
	if s == nil {
		return false
	}
	pks := make([]*blst.P1Affine, 0, len(pubkeys))
	for _, pk := range pubkeys {
		p := new(blst.P1Affine).Uncompress(pk[:])
		if p == nil {
			return false
		}
		pks = append(pks, p)
	}
	return s.FastAggregateVerify(true, pks, false, message, []byte(blstDST))
}
