package state

import (
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
)

// BeaconBlockHeader is the compact, body-less representation of a block
// used for the state's latest_block_header slot.
type BeaconBlockHeader struct {
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    primitives.Digest
	StateRoot     primitives.Digest
	BodyRoot      primitives.Digest
}

// SignedBeaconBlockHeader pairs a header with its proposer signature.
type SignedBeaconBlockHeader struct {
	Message   BeaconBlockHeader
	Signature primitives.BLSSignature
}

// ExecutionPayload (Bellatrix+) is the embedded execution-layer block
// carried inside a beacon block body.
type ExecutionPayload struct {
	ParentHash    primitives.Digest
	FeeRecipient  [20]byte
	StateRoot     primitives.Digest
	ReceiptsRoot  primitives.Digest
	LogsBloom     [256]byte
	PrevRandao    primitives.Digest
	BlockNumber   uint64
	GasLimit      uint64
	GasUsed       uint64
	Timestamp     uint64
	ExtraData     []byte
	BaseFeePerGas [32]byte // big-endian uint256, matches engine wire encoding
	BlockHash     primitives.Digest
	Transactions  [][]byte
}

// IsZero reports whether this is the default/empty payload (used pre-TTD
// and pre-Bellatrix-activation: treated as vacuously valid, spec.md §9).
func (p *ExecutionPayload) IsZero() bool {
	return p == nil || (p.BlockHash.IsZero() && p.BlockNumber == 0 && p.ParentHash.IsZero())
}

// BeaconBlockBody grows per fork. All forks carry the phase0 fields;
// Altair adds SyncAggregate; Bellatrix adds ExecutionPayload. Unused
// fork-specific fields are left at their zero value, with the Fork field on
// the containing BeaconBlock authoritative for which are meaningful —
// matching the "sum type with explicit match arms" guidance over
// inheritance (spec.md §9).
type BeaconBlockBody struct {
	RandaoReveal      primitives.BLSSignature
	Eth1Data          Eth1Data
	Graffiti          primitives.Digest
	ProposerSlashings []ProposerSlashing
	AttesterSlashings []AttesterSlashing
	Attestations      []Attestation
	Deposits          []Deposit
	VoluntaryExits    []SignedVoluntaryExit

	// Altair+
	SyncAggregate *SyncAggregate

	// Bellatrix+
	ExecutionPayload *ExecutionPayload
}

// BeaconBlock is a proposed block prior to being wrapped in a beacon state.
type BeaconBlock struct {
	Fork          params.Fork
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    primitives.Digest
	StateRoot     primitives.Digest
	Body          BeaconBlockBody
}

// SignedBeaconBlock pairs a BeaconBlock with its proposer signature. This
// plays the role of spec.md's ForkedSignedBeaconBlock: the Fork tag on the
// embedded BeaconBlock identifies which body fields are populated, so no
// separate per-fork wrapper type is needed.
type SignedBeaconBlock struct {
	Block     BeaconBlock
	Signature primitives.BLSSignature
}

// Header returns the compact header view of this block. BodyRoot must be
// supplied by the caller (the SSZ hash-tree-root of Body), since computing
// it here would require the full SSZ/Merkle machinery this package does
// not itself own.
func (b *BeaconBlock) Header(bodyRoot primitives.Digest) BeaconBlockHeader {
	return BeaconBlockHeader{
		Slot:          b.Slot,
		ProposerIndex: b.ProposerIndex,
		ParentRoot:    b.ParentRoot,
		StateRoot:     b.StateRoot,
		BodyRoot:      bodyRoot,
	}
}
