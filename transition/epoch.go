package transition

import (
	"math"

	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
)

// ProcessEpoch runs the epoch transition: justification/finalization,
// rewards and penalties, registry updates, slashings, effective-balance
// updates, RANDAO mix rotation, historical-root append, participation-flag
// rotation, and sync-committee rotation every EPOCHS_PER_SYNC_COMMITTEE_PERIOD
// (spec.md §4.2).
func ProcessEpoch(cfg *params.RuntimeConfig, st *state.Data) error {
	processJustificationAndFinalization(cfg, st)
	processRewardsAndPenalties(cfg, st)
	processRegistryUpdates(cfg, st)
	processSlashingsReset(cfg, st)
	processEffectiveBalanceUpdates(cfg, st)
	processRandaoMixesReset(cfg, st)
	processHistoricalRootsUpdate(cfg, st)
	processParticipationRotation(cfg, st)
	if st.ActiveFork >= params.ForkAltair {
		processSyncCommitteeRotation(cfg, st)
	}
	return nil
}

func currentEpoch(cfg *params.RuntimeConfig, st *state.Data) primitives.Epoch {
	return primitives.SlotToEpoch(st.SlotValue, cfg.Preset.SlotsPerEpoch)
}

func previousEpoch(cfg *params.RuntimeConfig, st *state.Data) primitives.Epoch {
	c := currentEpoch(cfg, st)
	if c == 0 {
		return 0
	}
	return c - 1
}

// processJustificationAndFinalization implements Casper FFG bookkeeping:
// shift the justification bitfield, justify the current/previous epoch
// checkpoint if it reaches a 2/3 supermajority of attesting balance, and
// finalize whichever checkpoint the resulting bit pattern allows.
func processJustificationAndFinalization(cfg *params.RuntimeConfig, st *state.Data) {
	prev := previousEpoch(cfg, st)
	curr := currentEpoch(cfg, st)
	if curr <= 1 {
		return
	}

	totalActive := st.TotalActiveBalance(curr, cfg.Preset)
	prevAttestingBalance := participatingBalance(st, st.PreviousEpochParticipation, cfg.Preset)
	currAttestingBalance := participatingBalance(st, st.CurrentEpochParticipation, cfg.Preset)

	oldPreviousJustified := st.PreviousJustified
	oldCurrentJustified := st.CurrentJustified

	st.PreviousJustified = oldCurrentJustified
	bits := st.JustificationBitsValue.Shift(1)

	if prevAttestingBalance*3 >= totalActive*2 {
		st.CurrentJustified = primitives.Checkpoint{Epoch: prev}
		bits = bits.Set(1)
	}
	if currAttestingBalance*3 >= totalActive*2 {
		st.CurrentJustified = primitives.Checkpoint{Epoch: curr}
		bits = bits.Set(0)
	}
	st.JustificationBitsValue = bits

	// Finalization rules: 2nd/3rd/4th-most-recent justified epochs finalize
	// under specific bit-adjacency patterns (Casper FFG finality rules 1-4).
	if bits.IsJustified(1) && bits.IsJustified(2) && bits.IsJustified(3) && oldPreviousJustified.Epoch+3 == curr {
		st.Finalized = oldPreviousJustified
	}
	if bits.IsJustified(1) && bits.IsJustified(2) && oldPreviousJustified.Epoch+2 == curr {
		st.Finalized = oldPreviousJustified
	}
	if bits.IsJustified(0) && bits.IsJustified(1) && bits.IsJustified(2) && oldCurrentJustified.Epoch+2 == curr {
		st.Finalized = oldCurrentJustified
	}
	if bits.IsJustified(0) && bits.IsJustified(1) && oldCurrentJustified.Epoch+1 == curr {
		st.Finalized = oldCurrentJustified
	}
}

func participatingBalance(st *state.Data, participation []uint8, preset params.Preset) uint64 {
	var total uint64
	for i, v := range st.ValidatorsValue {
		if i < len(participation) && participation[i] != 0 {
			total += v.EffectiveBalance
		}
	}
	if total < preset.EffectiveBalanceIncrement {
		return preset.EffectiveBalanceIncrement
	}
	return total
}

// processRewardsAndPenalties grants base rewards for source/target/head
// attestation participation and applies an inactivity penalty when
// finality has not been reached for MIN_EPOCHS_TO_INACTIVITY_PENALTY
// epochs, following the teacher's epoch_processor.go reward model.
func processRewardsAndPenalties(cfg *params.RuntimeConfig, st *state.Data) {
	curr := currentEpoch(cfg, st)
	if curr == 0 {
		return
	}
	totalActive := st.TotalActiveBalance(previousEpoch(cfg, st), cfg.Preset)
	delay := finalityDelay(cfg, st)

	for i, v := range st.ValidatorsValue {
		if !v.IsActive(previousEpoch(cfg, st)) {
			continue
		}
		baseReward := (v.EffectiveBalance / cfg.Preset.EffectiveBalanceIncrement) *
			cfg.Preset.BaseRewardFactor / isqrt(totalActive) / cfg.Preset.BaseRewardsPerEpoch

		participated := i < len(st.PreviousEpochParticipation) && st.PreviousEpochParticipation[i] != 0
		if participated {
			st.BalancesValue[i] += baseReward * 3
		} else if delay > cfg.Preset.MinEpochsToInactivityPenalty {
			penalty := v.EffectiveBalance * uint64(delay) / cfg.Preset.InactivityPenaltyQuotient
			if penalty > st.BalancesValue[i] {
				penalty = st.BalancesValue[i]
			}
			st.BalancesValue[i] -= penalty
		}
	}
}

func finalityDelay(cfg *params.RuntimeConfig, st *state.Data) uint64 {
	prev := previousEpoch(cfg, st)
	if uint64(prev) < uint64(st.Finalized.Epoch) {
		return 0
	}
	return uint64(prev) - uint64(st.Finalized.Epoch)
}

func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := uint64(math.Sqrt(float64(n)))
	for x*x > n {
		x--
	}
	for (x+1)*(x+1) <= n {
		x++
	}
	return x
}

// processRegistryUpdates activates eligible validators (subject to the
// per-epoch churn limit) and ejects validators whose balance has fallen
// below the ejection threshold.
func processRegistryUpdates(cfg *params.RuntimeConfig, st *state.Data) {
	curr := currentEpoch(cfg, st)
	churn := churnLimit(cfg, st, curr)
	activated := uint64(0)

	for i, v := range st.ValidatorsValue {
		if v.IsActive(curr) && v.EffectiveBalance <= cfg.Preset.EjectionBalance {
			initiateExit(cfg, st, primitives.ValidatorIndex(i))
		}
		if v.IsEligibleForActivation(st.Finalized.Epoch) {
			if activated >= churn {
				continue
			}
			v.ActivationEpoch = curr + primitives.Epoch(cfg.Preset.MaxSeedLookahead) + 1
			activated++
		}
		if v.ActivationEligibilityEpoch == primitives.Epoch(params.FarFutureEpoch) &&
			v.EffectiveBalance >= cfg.Preset.MaxEffectiveBalance {
			v.ActivationEligibilityEpoch = curr
		}
	}
}

func churnLimit(cfg *params.RuntimeConfig, st *state.Data, epoch primitives.Epoch) uint64 {
	active := uint64(len(st.ActiveValidatorIndices(epoch)))
	limit := active / cfg.Preset.ChurnLimitQuotient
	if limit < cfg.Preset.MinPerEpochChurnLimit {
		return cfg.Preset.MinPerEpochChurnLimit
	}
	return limit
}

func processSlashingsReset(cfg *params.RuntimeConfig, st *state.Data) {
	curr := currentEpoch(cfg, st)
	resetIdx := (uint64(curr) + 1) % cfg.Preset.EpochsPerSlashingsVector
	st.Slashings[resetIdx] = 0
}

func processEffectiveBalanceUpdates(cfg *params.RuntimeConfig, st *state.Data) {
	for i, v := range st.ValidatorsValue {
		state.UpdateEffectiveBalance(v, st.BalancesValue[i], cfg.Preset)
	}
}

func processRandaoMixesReset(cfg *params.RuntimeConfig, st *state.Data) {
	curr := currentEpoch(cfg, st)
	currIdx := uint64(curr) % uint64(len(st.RandaoMixes))
	nextIdx := (uint64(curr) + 1) % uint64(len(st.RandaoMixes))
	st.RandaoMixes[nextIdx] = st.RandaoMixes[currIdx]
}

// processHistoricalRootsUpdate archives the current block_roots/state_roots
// vectors into a single combined root every SLOTS_PER_HISTORICAL_ROOT slots,
// so the vectors can keep being overwritten in their ring buffers without
// losing verifiable history (spec.md §4.2). The entry is the root of a
// two-leaf Merkle tree over (block_roots root, state_roots root), matching
// the HistoricalBatch container consensus clients hash.
func processHistoricalRootsUpdate(cfg *params.RuntimeConfig, st *state.Data) {
	nextEpoch := currentEpoch(cfg, st) + 1
	slotsPerHistoricalRoot := cfg.Preset.SlotsPerHistoricalRoot / cfg.Preset.SlotsPerEpoch
	if uint64(nextEpoch)%slotsPerHistoricalRoot != 0 {
		return
	}
	st.HistoricalRoots = append(st.HistoricalRoots, historicalBatchRoot(st))
}

func historicalBatchRoot(st *state.Data) primitives.Digest {
	blockRootsRoot := ssz.Merkleize(digestChunks(st.BlockRoots[:]), 0)
	stateRootsRoot := ssz.Merkleize(digestChunks(st.StateRoots[:]), 0)
	combined := ssz.Merkleize([][32]byte{blockRootsRoot, stateRootsRoot}, 0)
	return primitives.Digest(combined)
}

func digestChunks(roots []primitives.Digest) [][32]byte {
	chunks := make([][32]byte, len(roots))
	for i, r := range roots {
		chunks[i] = [32]byte(r)
	}
	return chunks
}

func processParticipationRotation(cfg *params.RuntimeConfig, st *state.Data) {
	st.PreviousEpochParticipation = st.CurrentEpochParticipation
	st.CurrentEpochParticipation = make([]uint8, len(st.ValidatorsValue))
}

// processSyncCommitteeRotation rotates the sync committee every
// EPOCHS_PER_SYNC_COMMITTEE_PERIOD epochs (Altair+), promoting the
// pre-computed "next" committee to "current" and computing a fresh "next"
// committee from the post-transition validator set.
func processSyncCommitteeRotation(cfg *params.RuntimeConfig, st *state.Data) {
	curr := currentEpoch(cfg, st) + 1
	if uint64(curr)%cfg.Preset.EpochsPerSyncCommitteePeriod != 0 {
		return
	}
	st.CurrentSyncCommittee = st.NextSyncCommittee
	st.NextSyncCommittee = computeSyncCommittee(cfg, st, curr)
}

func computeSyncCommittee(cfg *params.RuntimeConfig, st *state.Data, epoch primitives.Epoch) *state.SyncCommittee {
	active := st.ActiveValidatorIndices(epoch)
	if len(active) == 0 {
		return &state.SyncCommittee{}
	}
	seed := ComputeSeed(st, epoch, primitives.DomainSyncCommittee)
	pubkeys := make([]primitives.BLSPubkey, 0, cfg.Preset.SyncCommitteeSize)
	for i := uint64(0); i < cfg.Preset.SyncCommitteeSize; i++ {
		shuffled := ComputeShuffledIndex(i%uint64(len(active)), uint64(len(active)), seed)
		pubkeys = append(pubkeys, st.ValidatorsValue[active[shuffled]].Pubkey)
	}
	return &state.SyncCommittee{Pubkeys: pubkeys}
}
