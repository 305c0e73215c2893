package transition

import (
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
)

// marshalAttestationData appends an AttestationData's fields (spec.md §3):
// slot, committee index, the LMD-GHOST vote, and the source/target FFG
// checkpoints.
func marshalAttestationData(buf []byte, d primitives.AttestationData) []byte {
	buf = ssz.MarshalUint64(buf, uint64(d.Slot))
	buf = ssz.MarshalUint64(buf, uint64(d.CommitteeIndex))
	buf = ssz.MarshalFixedBytes(buf, d.BeaconBlockRoot[:])
	buf = ssz.MarshalUint64(buf, uint64(d.Source.Epoch))
	buf = ssz.MarshalFixedBytes(buf, d.Source.Root[:])
	buf = ssz.MarshalUint64(buf, uint64(d.Target.Epoch))
	buf = ssz.MarshalFixedBytes(buf, d.Target.Root[:])
	return buf
}

// marshalSignedHeader appends a SignedBeaconBlockHeader's message fields and
// signature, used by both a block's own signing root and proposer-slashing
// evidence headers.
func marshalSignedHeader(buf []byte, sh state.SignedBeaconBlockHeader) []byte {
	buf = ssz.MarshalUint64(buf, uint64(sh.Message.Slot))
	buf = ssz.MarshalUint64(buf, uint64(sh.Message.ProposerIndex))
	buf = ssz.MarshalFixedBytes(buf, sh.Message.ParentRoot[:])
	buf = ssz.MarshalFixedBytes(buf, sh.Message.StateRoot[:])
	buf = ssz.MarshalFixedBytes(buf, sh.Message.BodyRoot[:])
	buf = ssz.MarshalFixedBytes(buf, sh.Signature[:])
	return buf
}

// marshalIndexedAttestation appends an IndexedAttestation's attesting
// indices, AttestationData, and aggregate signature.
func marshalIndexedAttestation(buf []byte, ia state.IndexedAttestation) []byte {
	buf = ssz.MarshalUint64(buf, uint64(len(ia.AttestingIndices)))
	for _, idx := range ia.AttestingIndices {
		buf = ssz.MarshalUint64(buf, uint64(idx))
	}
	buf = marshalAttestationData(buf, ia.Data)
	buf = ssz.MarshalFixedBytes(buf, ia.Signature[:])
	return buf
}

// marshalSyncCommittee appends a SyncCommittee's member pubkeys and
// aggregate pubkey (Altair+).
func marshalSyncCommittee(buf []byte, sc *state.SyncCommittee) []byte {
	buf = ssz.MarshalUint64(buf, uint64(len(sc.Pubkeys)))
	for _, pk := range sc.Pubkeys {
		buf = ssz.MarshalFixedBytes(buf, pk[:])
	}
	buf = ssz.MarshalFixedBytes(buf, sc.AggregatePubkey[:])
	return buf
}

// marshalExecutionPayload appends an ExecutionPayload's fields (Bellatrix+),
// shared by the block body hash and the state's latest_execution_payload_header.
func marshalExecutionPayload(buf []byte, p *state.ExecutionPayload) []byte {
	buf = ssz.MarshalFixedBytes(buf, p.ParentHash[:])
	buf = ssz.MarshalFixedBytes(buf, p.FeeRecipient[:])
	buf = ssz.MarshalFixedBytes(buf, p.StateRoot[:])
	buf = ssz.MarshalFixedBytes(buf, p.ReceiptsRoot[:])
	buf = ssz.MarshalFixedBytes(buf, p.LogsBloom[:])
	buf = ssz.MarshalFixedBytes(buf, p.PrevRandao[:])
	buf = ssz.MarshalUint64(buf, p.BlockNumber)
	buf = ssz.MarshalUint64(buf, p.GasLimit)
	buf = ssz.MarshalUint64(buf, p.GasUsed)
	buf = ssz.MarshalUint64(buf, p.Timestamp)
	buf = ssz.MarshalUint64(buf, uint64(len(p.ExtraData)))
	buf = ssz.MarshalFixedBytes(buf, p.ExtraData)
	buf = ssz.MarshalFixedBytes(buf, p.BaseFeePerGas[:])
	buf = ssz.MarshalFixedBytes(buf, p.BlockHash[:])
	buf = ssz.MarshalUint64(buf, uint64(len(p.Transactions)))
	for _, tx := range p.Transactions {
		buf = ssz.MarshalUint64(buf, uint64(len(tx)))
		buf = ssz.MarshalFixedBytes(buf, tx)
	}
	return buf
}
