package transition

import (
	"fmt"

	"github.com/eth2031/beacon/crypto"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
)

// StateTransition is the public contract of spec.md §4.2:
// state_transition(cfg, state, signed_block, flags, cache) -> Result<(), Error>.
// It is deterministic and side-effect-free except for st, cache, and the
// epoch-processing scratch area; on any error the caller must discard st
// (the scratch copy produced by state.Data.Clone) rather than continue
// using it, since the mutation may be partial.
func StateTransition(cfg *params.RuntimeConfig, st *state.Data, signed *state.SignedBeaconBlock, flags Flag, cache *ssz.Cache) error {
	block := &signed.Block

	if !flags.Has(SlotAlreadyProcessed) {
		if err := ProcessSlots(cfg, st, block.Slot, cache); err != nil {
			return fmt.Errorf("transition: process_slots: %w", err)
		}
	}

	bodyRoot, err := hashBlockBody(&block.Body)
	if err != nil {
		return fmt.Errorf("transition: hashing block body: %w", err)
	}

	if !flags.Has(SkipBLS) {
		if err := verifyBlockSignature(cfg, st, signed, bodyRoot); err != nil {
			return err
		}
	}

	if err := ProcessBlock(cfg, st, block, bodyRoot, flags); err != nil {
		return fmt.Errorf("transition: process_block: %w", err)
	}

	if !flags.Has(SkipStateRoot) {
		cache.Invalidate("state")
		root, err := HashTreeRoot(st, cache)
		if err != nil {
			return fmt.Errorf("transition: hashing post-state: %w", err)
		}
		if root != block.StateRoot {
			return fmt.Errorf("%w: got %s want %s", ErrStateRootMismatch, root, block.StateRoot)
		}
	}

	return nil
}

// verifyBlockSignature checks the proposer's signature over the block's
// full header root (slot, proposer_index, parent_root, state_root,
// body_root) — not a partial digest — so the signature binds to the
// block's actual content and claimed proposer, not just its slot and
// parent (spec.md §4.2 step "verify signature"). The claimed proposer index
// is checked first, so a wrong index fails with ErrInvalidProposerIndex.
func verifyBlockSignature(cfg *params.RuntimeConfig, st *state.Data, signed *state.SignedBeaconBlock, bodyRoot primitives.Digest) error {
	if err := verifyProposerIndex(cfg, st, &signed.Block); err != nil {
		return err
	}
	proposer := st.ValidatorsValue[signed.Block.ProposerIndex]
	signingRoot := headerRoot(signed.Block.Header(bodyRoot))
	if !verifySignature(proposer.Pubkey, signingRoot, signed.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// verifySignature is a seam so tests can stub signature checks without
// pulling in the crypto package's BLS backend selection.
var verifySignature = func(pubkey primitives.BLSPubkey, root primitives.Digest, sig primitives.BLSSignature) bool {
	return crypto.Verify(pubkey, root[:], sig)
}

// hashBlockBody computes the block body's root over every field spec.md §3
// names (growing per fork): randao reveal, eth1 data, graffiti, the five
// operation lists, the Altair+ sync aggregate, and the Bellatrix+ execution
// payload. Two blocks differing in any of these hash to different roots, so
// the header's body_root — and therefore the signing root and parent_root
// checks built on top of it — actually commits to the block's content.
func hashBlockBody(body *state.BeaconBlockBody) (primitives.Digest, error) {
	buf := make([]byte, 0, 512)
	buf = ssz.MarshalFixedBytes(buf, body.RandaoReveal[:])
	buf = ssz.MarshalFixedBytes(buf, body.Eth1Data.DepositRoot[:])
	buf = ssz.MarshalUint64(buf, body.Eth1Data.DepositCount)
	buf = ssz.MarshalFixedBytes(buf, body.Eth1Data.BlockHash[:])
	buf = ssz.MarshalFixedBytes(buf, body.Graffiti[:])

	buf = ssz.MarshalUint64(buf, uint64(len(body.ProposerSlashings)))
	for _, ps := range body.ProposerSlashings {
		buf = marshalSignedHeader(buf, ps.Header1)
		buf = marshalSignedHeader(buf, ps.Header2)
	}

	buf = ssz.MarshalUint64(buf, uint64(len(body.AttesterSlashings)))
	for _, as := range body.AttesterSlashings {
		buf = marshalIndexedAttestation(buf, as.Attestation1)
		buf = marshalIndexedAttestation(buf, as.Attestation2)
	}

	buf = ssz.MarshalUint64(buf, uint64(len(body.Attestations)))
	for _, a := range body.Attestations {
		buf = ssz.MarshalUint64(buf, uint64(len(a.AggregationBits)))
		buf = ssz.MarshalFixedBytes(buf, a.AggregationBits)
		buf = marshalAttestationData(buf, a.Data)
		buf = ssz.MarshalFixedBytes(buf, a.Signature[:])
	}

	buf = ssz.MarshalUint64(buf, uint64(len(body.Deposits)))
	for _, d := range body.Deposits {
		for _, p := range d.Proof {
			buf = ssz.MarshalFixedBytes(buf, p[:])
		}
		buf = ssz.MarshalFixedBytes(buf, d.Data.Pubkey[:])
		buf = ssz.MarshalFixedBytes(buf, d.Data.WithdrawalCredentials[:])
		buf = ssz.MarshalUint64(buf, d.Data.Amount)
		buf = ssz.MarshalFixedBytes(buf, d.Data.Signature[:])
	}

	buf = ssz.MarshalUint64(buf, uint64(len(body.VoluntaryExits)))
	for _, ve := range body.VoluntaryExits {
		buf = ssz.MarshalUint64(buf, uint64(ve.Message.Epoch))
		buf = ssz.MarshalUint64(buf, uint64(ve.Message.ValidatorIndex))
		buf = ssz.MarshalFixedBytes(buf, ve.Signature[:])
	}

	if body.SyncAggregate != nil {
		buf = ssz.MarshalUint64(buf, uint64(len(body.SyncAggregate.SyncCommitteeBits)))
		buf = ssz.MarshalFixedBytes(buf, body.SyncAggregate.SyncCommitteeBits)
		buf = ssz.MarshalFixedBytes(buf, body.SyncAggregate.SyncCommitteeSignature[:])
	}

	if body.ExecutionPayload != nil {
		buf = marshalExecutionPayload(buf, body.ExecutionPayload)
	}

	leaves := ssz.Pack(buf)
	return primitives.Digest(ssz.Merkleize(leaves, 0)), nil
}
