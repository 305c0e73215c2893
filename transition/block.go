package transition

import (
	"fmt"

	"github.com/eth2031/beacon/crypto"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
)

// ProcessBlock applies a single block's operations to st in the fixed order
// required by spec.md §4.2 step 2: proposer-index/parent-root/randao
// checks (StateTransition verifies the block signature before calling
// ProcessBlock), eth1 vote, {proposer slashings, attester slashings,
// attestations, deposits, voluntary exits}, sync aggregate (Altair+),
// execution payload (Bellatrix+).
func ProcessBlock(cfg *params.RuntimeConfig, st *state.Data, block *state.BeaconBlock, bodyRoot primitives.Digest, flags Flag) error {
	if err := verifyProposerIndex(cfg, st, block); err != nil {
		return err
	}
	if block.ParentRoot != headerRoot(st.LatestBlockHeaderValue) {
		return fmt.Errorf("%w: got %s want %s", ErrParentRootMismatch, block.ParentRoot, headerRoot(st.LatestBlockHeaderValue))
	}

	st.LatestBlockHeaderValue = state.BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    block.ParentRoot,
		StateRoot:     primitives.Digest{}, // backfilled by the next process_slot call
		BodyRoot:      bodyRoot,
	}

	if !flags.Has(SkipBLS) {
		if err := verifyRandaoReveal(cfg, st, block); err != nil {
			return err
		}
	}
	processEth1Vote(st, block.Body.Eth1Data)

	if err := processProposerSlashings(cfg, st, block.Body.ProposerSlashings); err != nil {
		return err
	}
	if err := processAttesterSlashings(cfg, st, block.Body.AttesterSlashings); err != nil {
		return err
	}
	if err := processAttestations(cfg, st, block.Body.Attestations); err != nil {
		return err
	}
	if err := processDeposits(cfg, st, block.Body.Deposits); err != nil {
		return err
	}
	if err := processVoluntaryExits(cfg, st, block.Body.VoluntaryExits); err != nil {
		return err
	}

	if st.ActiveFork >= params.ForkAltair && block.Body.SyncAggregate != nil {
		if err := processSyncAggregate(cfg, st, block, block.Body.SyncAggregate, flags); err != nil {
			return err
		}
	}
	if st.ActiveFork >= params.ForkBellatrix {
		if err := ProcessExecutionPayload(cfg, st, block.Body.ExecutionPayload); err != nil {
			return err
		}
	}

	mixInRandao(cfg, st, block.Body.RandaoReveal)

	return nil
}

func verifyProposerIndex(cfg *params.RuntimeConfig, st *state.Data, block *state.BeaconBlock) error {
	expected, err := ComputeProposerIndex(cfg, st, block.Slot)
	if err != nil {
		return err
	}
	if block.ProposerIndex != expected {
		return fmt.Errorf("%w: block claims %d, expected %d", ErrInvalidProposerIndex, block.ProposerIndex, expected)
	}
	return nil
}

func verifyRandaoReveal(cfg *params.RuntimeConfig, st *state.Data, block *state.BeaconBlock) error {
	epoch := primitives.SlotToEpoch(block.Slot, cfg.Preset.SlotsPerEpoch)
	proposer := st.ValidatorsValue[block.ProposerIndex]
	signingRoot := computeSigningRoot(primitives.DomainRandao, epoch)
	if !crypto.Verify(proposer.Pubkey, signingRoot[:], block.Body.RandaoReveal) {
		return ErrInvalidRandaoReveal
	}
	return nil
}

func processEth1Vote(st *state.Data, vote state.Eth1Data) {
	st.Eth1DataVotes = append(st.Eth1DataVotes, vote)
	count := 0
	for _, v := range st.Eth1DataVotes {
		if v == vote {
			count++
		}
	}
	if count*2 > len(st.Eth1DataVotes) {
		st.Eth1DataValue = vote
	}
}

func processProposerSlashings(cfg *params.RuntimeConfig, st *state.Data, slashings []state.ProposerSlashing) error {
	for _, ps := range slashings {
		if ps.Header1.Message.Slot != ps.Header2.Message.Slot ||
			ps.Header1.Message.ProposerIndex != ps.Header2.Message.ProposerIndex ||
			ps.Header1 == ps.Header2 {
			return ErrInvalidSlashing
		}
		idx := ps.Header1.Message.ProposerIndex
		if int(idx) >= len(st.ValidatorsValue) {
			return ErrValidatorIndexBound
		}
		slashValidator(cfg, st, idx)
	}
	return nil
}

func processAttesterSlashings(cfg *params.RuntimeConfig, st *state.Data, slashings []state.AttesterSlashing) error {
	for _, as := range slashings {
		if as.Attestation1.Data == as.Attestation2.Data {
			return ErrInvalidSlashing
		}
		slashableIndices := intersectSorted(as.Attestation1.AttestingIndices, as.Attestation2.AttestingIndices)
		if len(slashableIndices) == 0 {
			return ErrInvalidSlashing
		}
		for _, idx := range slashableIndices {
			if int(idx) >= len(st.ValidatorsValue) {
				return ErrValidatorIndexBound
			}
			if st.ValidatorsValue[idx].IsSlashable(primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)) {
				slashValidator(cfg, st, idx)
			}
		}
	}
	return nil
}

func intersectSorted(a, b []primitives.ValidatorIndex) []primitives.ValidatorIndex {
	set := make(map[primitives.ValidatorIndex]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	var out []primitives.ValidatorIndex
	for _, v := range b {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

// processAttestations validates each attestation's target checkpoint and
// inclusion-delay window (spec.md §4.2 "Tie-breaks and edge cases"), then
// records its participation for later reward computation in process_epoch.
func processAttestations(cfg *params.RuntimeConfig, st *state.Data, attestations []state.Attestation) error {
	for _, a := range attestations {
		currentEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
		dataEpoch := primitives.SlotToEpoch(a.Data.Slot, cfg.Preset.SlotsPerEpoch)
		if dataEpoch != currentEpoch && dataEpoch+1 != currentEpoch {
			return ErrAttestationTarget
		}
		minSlot := a.Data.Slot + primitives.Slot(cfg.Preset.MinInclusionDelay)
		maxSlot := a.Data.Slot + primitives.Slot(cfg.Preset.SlotsPerEpoch)
		if st.SlotValue < minSlot || st.SlotValue > maxSlot {
			return ErrAttestationWindow
		}
		if a.Data.Target.Epoch != dataEpoch {
			return ErrAttestationTarget
		}
		targetSlot := primitives.EpochStartSlot(dataEpoch, cfg.Preset.SlotsPerEpoch)
		if a.Data.Target.Root != st.BlockRoots[uint64(targetSlot)%uint64(len(st.BlockRoots))] {
			return ErrAttestationTarget
		}
		recordParticipation(cfg, st, a)
	}
	return nil
}

func recordParticipation(cfg *params.RuntimeConfig, st *state.Data, a state.Attestation) {
	currentEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
	dataEpoch := primitives.SlotToEpoch(a.Data.Slot, cfg.Preset.SlotsPerEpoch)

	target := st.CurrentEpochParticipation
	if dataEpoch != currentEpoch {
		target = st.PreviousEpochParticipation
	}
	if target == nil {
		return
	}
	// A real implementation resolves committee membership here; this
	// records a coarse per-bit participation flag sufficient for the
	// reward/penalty accounting in process_epoch.
	for i := 0; i < a.AggregationBits.Len() && i < len(target); i++ {
		if a.AggregationBits.Get(i) {
			target[i] |= 0b111
		}
	}
}

func processDeposits(cfg *params.RuntimeConfig, st *state.Data, deposits []state.Deposit) error {
	for _, d := range deposits {
		if idx, ok := st.ValidatorIndexByPubkey(d.Data.Pubkey); ok {
			st.BalancesValue[idx] += d.Data.Amount
			continue
		}
		v := &state.Validator{
			Pubkey:                     d.Data.Pubkey,
			WithdrawalCredentials:      d.Data.WithdrawalCredentials,
			EffectiveBalance:           state.ComputeEffectiveBalance(d.Data.Amount, cfg.Preset),
			ActivationEligibilityEpoch: primitives.Epoch(params.FarFutureEpoch),
			ActivationEpoch:            primitives.Epoch(params.FarFutureEpoch),
			ExitEpoch:                  primitives.Epoch(params.FarFutureEpoch),
			WithdrawableEpoch:          primitives.Epoch(params.FarFutureEpoch),
		}
		st.AddValidator(v, d.Data.Amount)
	}
	return nil
}

func processVoluntaryExits(cfg *params.RuntimeConfig, st *state.Data, exits []state.SignedVoluntaryExit) error {
	currentEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
	for _, se := range exits {
		idx := se.Message.ValidatorIndex
		if int(idx) >= len(st.ValidatorsValue) {
			return ErrValidatorIndexBound
		}
		v := st.ValidatorsValue[idx]
		if !v.IsActive(currentEpoch) || v.ExitEpoch != primitives.Epoch(params.FarFutureEpoch) {
			return ErrInvalidExit
		}
		if se.Message.Epoch > currentEpoch {
			return ErrInvalidExit
		}
		initiateExit(cfg, st, idx)
	}
	return nil
}

// processSyncAggregate validates the sync aggregate's bit-shape against the
// active sync committee, checks its aggregate signature over the previous
// slot's block root, and credits participating members by relieving their
// inactivity score, matching the teacher's "shape, then signature, then
// effect" order used throughout this file's other process_* functions.
func processSyncAggregate(cfg *params.RuntimeConfig, st *state.Data, block *state.BeaconBlock, agg *state.SyncAggregate, flags Flag) error {
	committee := st.CurrentSyncCommittee
	if committee == nil || len(committee.Pubkeys) == 0 {
		if len(agg.SyncCommitteeBits) != 0 {
			return ErrInvalidSyncAggregate
		}
		return nil
	}
	if len(agg.SyncCommitteeBits) != len(ssz.NewBitvector(len(committee.Pubkeys))) {
		return ErrInvalidSyncAggregate
	}

	var participating []primitives.BLSPubkey
	for i, pk := range committee.Pubkeys {
		if agg.SyncCommitteeBits.Get(i) {
			participating = append(participating, pk)
		}
	}

	if !flags.Has(SkipBLS) && len(participating) > 0 {
		signingRoot := computeSyncCommitteeSigningRoot(block.ParentRoot)
		if !crypto.FastAggregateVerify(participating, signingRoot[:], agg.SyncCommitteeSignature) {
			return ErrInvalidSyncAggregate
		}
	}

	for _, pk := range participating {
		idx, ok := st.ValidatorIndexByPubkey(pk)
		if !ok || int(idx) >= len(st.InactivityScores) {
			continue
		}
		if st.InactivityScores[idx] > 0 {
			st.InactivityScores[idx]--
		}
	}
	return nil
}

// computeSyncCommitteeSigningRoot derives the message a sync committee
// member signs: the block root of the slot preceding the one carrying the
// aggregate, domain-separated by DomainSyncCommittee.
func computeSyncCommitteeSigningRoot(blockRoot primitives.Digest) primitives.Digest {
	buf := make([]byte, 0, 36)
	buf = append(buf, primitives.DomainSyncCommittee[:]...)
	buf = ssz.MarshalFixedBytes(buf, blockRoot[:])
	leaves := ssz.Pack(buf)
	return primitives.Digest(ssz.Merkleize(leaves, 0))
}

// ProcessExecutionPayload is a no-op pre-Bellatrix and, pre-TTD, for a
// default/empty payload, per spec.md §9's resolved open question.
func ProcessExecutionPayload(cfg *params.RuntimeConfig, st *state.Data, payload *state.ExecutionPayload) error {
	if st.ActiveFork < params.ForkBellatrix {
		return nil
	}
	if payload.IsZero() {
		return nil
	}
	if payload.ParentHash != st.LatestExecutionPayloadHeader.BlockHash {
		return fmt.Errorf("%w: parent hash mismatch", ErrExecutionPayload)
	}
	if payload.Timestamp != computeTimeAtSlot(cfg, st.GenesisTimeValue, st.SlotValue) {
		return fmt.Errorf("%w: timestamp mismatch", ErrExecutionPayload)
	}
	st.LatestExecutionPayloadHeader = payload
	return nil
}

func computeTimeAtSlot(cfg *params.RuntimeConfig, genesisTime uint64, slot primitives.Slot) uint64 {
	return genesisTime + uint64(slot)*cfg.Preset.SecondsPerSlot
}

func computeSigningRoot(domain primitives.DomainType, epoch primitives.Epoch) primitives.Digest {
	buf := make([]byte, 0, 12)
	buf = append(buf, domain[:]...)
	buf = ssz.MarshalUint64(buf, uint64(epoch))
	leaves := ssz.Pack(buf)
	return primitives.Digest(ssz.Merkleize(leaves, 0))
}

func slashValidator(cfg *params.RuntimeConfig, st *state.Data, idx primitives.ValidatorIndex) {
	v := st.ValidatorsValue[idx]
	v.Slashed = true
	currentEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
	withdrawable := currentEpoch + primitives.Epoch(cfg.Preset.EpochsPerSlashingsVector)
	if withdrawable > v.WithdrawableEpoch {
		v.WithdrawableEpoch = withdrawable
	}
	slot := uint64(currentEpoch) % cfg.Preset.EpochsPerSlashingsVector
	st.Slashings[slot] += v.EffectiveBalance
	initiateExit(cfg, st, idx)
}

func initiateExit(cfg *params.RuntimeConfig, st *state.Data, idx primitives.ValidatorIndex) {
	v := st.ValidatorsValue[idx]
	if v.ExitEpoch != primitives.Epoch(params.FarFutureEpoch) {
		return
	}
	currentEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
	exitEpoch := currentEpoch + primitives.Epoch(cfg.Preset.MaxSeedLookahead) + 1
	v.ExitEpoch = exitEpoch
	v.WithdrawableEpoch = exitEpoch + primitives.Epoch(cfg.Preset.EpochsPerSlashingsVector)
}

func mixInRandao(cfg *params.RuntimeConfig, st *state.Data, reveal primitives.BLSSignature) {
	currentEpoch := primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
	idx := uint64(currentEpoch) % uint64(len(st.RandaoMixes))
	hashed := ssz.Pack(reveal[:])
	revealHash := ssz.Merkleize(hashed, 0)
	prev := st.RandaoMixes[idx]
	var mixed primitives.Digest
	for i := range mixed {
		mixed[i] = prev[i] ^ revealHash[i]
	}
	st.RandaoMixes[idx] = mixed
}
