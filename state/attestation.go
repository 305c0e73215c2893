package state

import (
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
)

// Attestation is a validator committee's simultaneous LMD-GHOST + FFG vote,
// as received from the network: signature not yet verified.
type Attestation struct {
	AggregationBits ssz.Bitlist
	Data            primitives.AttestationData
	Signature       primitives.BLSSignature
}

// TrustedAttestation wraps an Attestation whose signature has already been
// verified by the caller. State-transition validity (inclusion window,
// committee membership, etc) is still checked independently — "Trusted"
// only waives the signature check.
type TrustedAttestation struct {
	Attestation
}

// IndexedAttestation is an Attestation resolved to explicit validator
// indices (post committee-membership resolution), used for slashing
// detection and signature aggregation.
type IndexedAttestation struct {
	AttestingIndices []primitives.ValidatorIndex
	Data             primitives.AttestationData
	Signature        primitives.BLSSignature
}

// ProposerSlashing references two conflicting signed block headers from the
// same proposer at the same slot.
type ProposerSlashing struct {
	Header1 SignedBeaconBlockHeader
	Header2 SignedBeaconBlockHeader
}

// AttesterSlashing references two conflicting indexed attestations.
type AttesterSlashing struct {
	Attestation1 IndexedAttestation
	Attestation2 IndexedAttestation
}

// Deposit is a validator-registration or top-up deposit included on-chain.
type Deposit struct {
	Proof [33]primitives.Digest
	Data  DepositData
}

// DepositData is the payload of a single deposit.
type DepositData struct {
	Pubkey                primitives.BLSPubkey
	WithdrawalCredentials primitives.Digest
	Amount                uint64
	Signature             primitives.BLSSignature
}

// VoluntaryExit signals a validator's intent to voluntarily exit.
type VoluntaryExit struct {
	Epoch          primitives.Epoch
	ValidatorIndex primitives.ValidatorIndex
}

// SignedVoluntaryExit wraps a VoluntaryExit with its proposer signature.
type SignedVoluntaryExit struct {
	Message   VoluntaryExit
	Signature primitives.BLSSignature
}

// Eth1Data tracks the eth1 deposit contract state as voted on by proposers.
type Eth1Data struct {
	DepositRoot  primitives.Digest
	DepositCount uint64
	BlockHash    primitives.Digest
}

// SyncAggregate (Altair+) is the sync committee's signature over the
// previous slot's block, used by light clients.
type SyncAggregate struct {
	SyncCommitteeBits      ssz.Bitvector
	SyncCommitteeSignature primitives.BLSSignature
}

// SyncCommittee (Altair+) is the fixed-size rotating committee of
// validators that produces SyncAggregates.
type SyncCommittee struct {
	Pubkeys         []primitives.BLSPubkey
	AggregatePubkey primitives.BLSPubkey
}
