package transition

import (
	"fmt"

	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
)

// ProcessSlots advances st from its current slot up to (but not including
// processing a block at) targetSlot, running process_slot for each
// intervening slot and process_epoch whenever a slot crosses an epoch
// boundary, upgrading the fork when a fork-activation epoch boundary is
// crossed (spec.md §4.2 step 1).
func ProcessSlots(cfg *params.RuntimeConfig, st *state.Data, targetSlot primitives.Slot, cache *ssz.Cache) error {
	if targetSlot <= st.SlotValue {
		return fmt.Errorf("%w: have %d want %d", ErrSlotRegression, st.SlotValue, targetSlot)
	}

	for st.SlotValue < targetSlot {
		if err := processSlot(st, cache); err != nil {
			return err
		}

		nextSlot := st.SlotValue + 1
		if primitives.IsEpochBoundary(nextSlot, cfg.Preset.SlotsPerEpoch) {
			if err := ProcessEpoch(cfg, st); err != nil {
				return fmt.Errorf("transition: process_epoch at slot %d: %w", nextSlot, err)
			}
		}

		st.SlotValue = nextSlot

		nextEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
		if primitives.IsEpochBoundary(st.SlotValue, cfg.Preset.SlotsPerEpoch) {
			if err := maybeUpgradeFork(cfg, st, nextEpoch); err != nil {
				return err
			}
		}
	}
	return nil
}

// processSlot performs the per-slot bookkeeping that precedes any epoch
// transition: cache the pre-state root into the state-roots ring, backfill
// the latest block header's state root if it is still unset (i.e. this is
// the slot immediately following a block), and record that header's root in
// the block-roots ring.
func processSlot(st *state.Data, cache *ssz.Cache) error {
	// ProcessSlots calls processSlot once per intervening slot, and every
	// call mutates st (slot/roots/header) before the next one runs, so the
	// memoized "state" root from a prior iteration is never valid here:
	// invalidate it first and force a fresh hash for this slot's own root.
	cache.Invalidate("state")
	previousStateRoot, err := HashTreeRoot(st, cache)
	if err != nil {
		return fmt.Errorf("transition: hashing pre-slot state: %w", err)
	}

	idx := uint64(st.SlotValue) % uint64(len(st.StateRoots))
	st.StateRoots[idx] = previousStateRoot

	if st.LatestBlockHeaderValue.StateRoot.IsZero() {
		st.LatestBlockHeaderValue.StateRoot = previousStateRoot
	}

	blockIdx := uint64(st.SlotValue) % uint64(len(st.BlockRoots))
	previousBlockRoot := headerRoot(st.LatestBlockHeaderValue)
	st.BlockRoots[blockIdx] = previousBlockRoot

	return nil
}

// maybeUpgradeFork upgrades st in place if epoch is exactly a configured
// fork-activation epoch.
func maybeUpgradeFork(cfg *params.RuntimeConfig, st *state.Data, epoch primitives.Epoch) error {
	if uint64(epoch) == cfg.AltairForkEpoch && st.ActiveFork == params.ForkPhase0 {
		UpgradeToAltair(cfg, st)
	}
	if uint64(epoch) == cfg.BellatrixForkEpoch && st.ActiveFork == params.ForkAltair {
		UpgradeToBellatrix(st)
	}
	return nil
}

// headerRoot computes a block header's root. Consensus clients SSZ-hash
// this; here it is derived the same way the teacher's simplified
// BlockRoot() does (a stable digest of the header's fields), since the full
// container-level SSZ schema for BeaconBlockHeader is outside this
// package's concern (ssz.HashRoot implementations live alongside their
// types).
func headerRoot(h state.BeaconBlockHeader) primitives.Digest {
	buf := make([]byte, 0, 8+8+32+32+32)
	buf = ssz.MarshalUint64(buf, uint64(h.Slot))
	buf = ssz.MarshalUint64(buf, uint64(h.ProposerIndex))
	buf = ssz.MarshalFixedBytes(buf, h.ParentRoot[:])
	buf = ssz.MarshalFixedBytes(buf, h.StateRoot[:])
	buf = ssz.MarshalFixedBytes(buf, h.BodyRoot[:])
	leaves := ssz.Pack(buf)
	return primitives.Digest(ssz.Merkleize(leaves, 0))
}

// HashTreeRoot computes the beacon state's hash-tree-root over every field
// spec.md §3 names for the active fork, consulting and updating cache for
// the memoized whole-state subtree (spec.md §4.1). Leaving any field out
// here would let two states that differ only in that field hash to the same
// root, silently breaking the state_root check in StateTransition and every
// fork-choice/attestation root comparison built on top of it.
func HashTreeRoot(st *state.Data, cache *ssz.Cache) (primitives.Digest, error) {
	const path = "state"
	if root, ok := cache.Get(path); ok {
		return primitives.Digest(root), nil
	}

	buf := make([]byte, 0, 4096)
	buf = ssz.MarshalUint64(buf, st.GenesisTimeValue)
	buf = ssz.MarshalFixedBytes(buf, st.GenesisValidatorsRootValue[:])
	buf = ssz.MarshalUint64(buf, uint64(st.SlotValue))
	buf = ssz.MarshalFixedBytes(buf, headerRoot(st.LatestBlockHeaderValue)[:])

	for _, r := range st.BlockRoots {
		buf = ssz.MarshalFixedBytes(buf, r[:])
	}
	for _, r := range st.StateRoots {
		buf = ssz.MarshalFixedBytes(buf, r[:])
	}
	buf = ssz.MarshalUint64(buf, uint64(len(st.HistoricalRoots)))
	for _, r := range st.HistoricalRoots {
		buf = ssz.MarshalFixedBytes(buf, r[:])
	}

	buf = ssz.MarshalFixedBytes(buf, st.Eth1DataValue.DepositRoot[:])
	buf = ssz.MarshalUint64(buf, st.Eth1DataValue.DepositCount)
	buf = ssz.MarshalFixedBytes(buf, st.Eth1DataValue.BlockHash[:])
	buf = ssz.MarshalUint64(buf, uint64(len(st.Eth1DataVotes)))
	for _, e := range st.Eth1DataVotes {
		buf = ssz.MarshalFixedBytes(buf, e.DepositRoot[:])
		buf = ssz.MarshalUint64(buf, e.DepositCount)
		buf = ssz.MarshalFixedBytes(buf, e.BlockHash[:])
	}
	buf = ssz.MarshalUint64(buf, st.Eth1DepositIdx)

	buf = ssz.MarshalUint64(buf, uint64(len(st.ValidatorsValue)))
	for _, v := range st.ValidatorsValue {
		buf = ssz.MarshalFixedBytes(buf, v.Pubkey[:])
		buf = ssz.MarshalFixedBytes(buf, v.WithdrawalCredentials[:])
		buf = ssz.MarshalUint64(buf, v.EffectiveBalance)
		buf = ssz.MarshalBool(buf, v.Slashed)
		buf = ssz.MarshalUint64(buf, uint64(v.ActivationEligibilityEpoch))
		buf = ssz.MarshalUint64(buf, uint64(v.ActivationEpoch))
		buf = ssz.MarshalUint64(buf, uint64(v.ExitEpoch))
		buf = ssz.MarshalUint64(buf, uint64(v.WithdrawableEpoch))
	}
	buf = ssz.MarshalUint64(buf, uint64(len(st.BalancesValue)))
	for _, b := range st.BalancesValue {
		buf = ssz.MarshalUint64(buf, b)
	}

	for _, r := range st.RandaoMixes {
		buf = ssz.MarshalFixedBytes(buf, r[:])
	}
	for _, s := range st.Slashings {
		buf = ssz.MarshalUint64(buf, s)
	}

	buf = ssz.MarshalUint64(buf, uint64(len(st.PreviousEpochParticipation)))
	buf = ssz.MarshalFixedBytes(buf, st.PreviousEpochParticipation)
	buf = ssz.MarshalUint64(buf, uint64(len(st.CurrentEpochParticipation)))
	buf = ssz.MarshalFixedBytes(buf, st.CurrentEpochParticipation)

	buf = append(buf, byte(st.JustificationBitsValue))
	buf = ssz.MarshalUint64(buf, uint64(st.PreviousJustified.Epoch))
	buf = ssz.MarshalFixedBytes(buf, st.PreviousJustified.Root[:])
	buf = ssz.MarshalUint64(buf, uint64(st.CurrentJustified.Epoch))
	buf = ssz.MarshalFixedBytes(buf, st.CurrentJustified.Root[:])
	buf = ssz.MarshalUint64(buf, uint64(st.Finalized.Epoch))
	buf = ssz.MarshalFixedBytes(buf, st.Finalized.Root[:])

	buf = ssz.MarshalUint64(buf, uint64(len(st.InactivityScores)))
	for _, s := range st.InactivityScores {
		buf = ssz.MarshalUint64(buf, s)
	}

	if st.CurrentSyncCommittee != nil {
		buf = marshalSyncCommittee(buf, st.CurrentSyncCommittee)
	}
	if st.NextSyncCommittee != nil {
		buf = marshalSyncCommittee(buf, st.NextSyncCommittee)
	}

	if st.LatestExecutionPayloadHeader != nil {
		buf = marshalExecutionPayload(buf, st.LatestExecutionPayloadHeader)
	}

	leaves := ssz.Pack(buf)
	root := ssz.Merkleize(leaves, 0)
	cache.Put(path, root)
	return primitives.Digest(root), nil
}
