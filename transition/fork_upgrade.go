package transition

import (
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// UpgradeToAltair performs the Phase0->Altair structural upgrade in place:
// it preserves validator identities and balances and seeds the new
// fork-specific fields (participation flags, inactivity scores, sync
// committees), per spec.md §4.2 step 1 and §8's fork-upgrade invariant.
func UpgradeToAltair(cfg *params.RuntimeConfig, st *state.Data) {
	st.ActiveFork = params.ForkAltair

	n := len(st.ValidatorsValue)
	st.PreviousEpochParticipation = make([]uint8, n)
	st.CurrentEpochParticipation = make([]uint8, n)
	st.InactivityScores = make([]uint64, n)

	epoch := currentEpoch(cfg, st)
	st.CurrentSyncCommittee = computeSyncCommittee(cfg, st, epoch)
	st.NextSyncCommittee = computeSyncCommittee(cfg, st, epoch+primitives.Epoch(cfg.Preset.EpochsPerSyncCommitteePeriod))
}

// UpgradeToBellatrix performs the Altair->Bellatrix structural upgrade in
// place: it seeds an empty execution payload header, which
// ProcessExecutionPayload treats as vacuously valid until the first
// non-default payload arrives (spec.md §9's resolved open question).
func UpgradeToBellatrix(st *state.Data) {
	st.ActiveFork = params.ForkBellatrix
	st.LatestExecutionPayloadHeader = &state.ExecutionPayload{}
}
