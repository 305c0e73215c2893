// Package params holds the frozen numeric constants and runtime configuration
// that parameterize the beacon chain state transition. Values here are
// immutable after startup; nothing in this package may be hot-reloaded.
package params

import "fmt"

// Fork identifies a hard-fork boundary in the beacon chain's history. Forks
// are ordered and a later fork's rules strictly extend an earlier one's.
type Fork uint8

const (
	ForkPhase0 Fork = iota
	ForkAltair
	ForkBellatrix
)

func (f Fork) String() string {
	switch f {
	case ForkPhase0:
		return "phase0"
	case ForkAltair:
		return "altair"
	case ForkBellatrix:
		return "bellatrix"
	default:
		return fmt.Sprintf("fork(%d)", uint8(f))
	}
}

// Preset bundles the frozen, network-wide numeric constants used throughout
// the state transition. A Preset is shared process-wide and never mutated.
type Preset struct {
	SlotsPerEpoch                uint64
	SecondsPerSlot               uint64
	MinSeedLookahead             uint64
	MaxSeedLookahead             uint64
	SlotsPerHistoricalRoot       uint64
	EpochsPerHistoricalVector    uint64
	EpochsPerSlashingsVector     uint64
	HistoricalRootsLimit         uint64
	ValidatorRegistryLimit       uint64
	BaseRewardFactor             uint64
	BaseRewardsPerEpoch          uint64
	InactivityPenaltyQuotient    uint64
	MinEpochsToInactivityPenalty uint64
	EjectionBalance              uint64
	MinPerEpochChurnLimit        uint64
	ChurnLimitQuotient           uint64
	MinDepositAmount             uint64
	MaxEffectiveBalance          uint64
	EffectiveBalanceIncrement    uint64
	HysteresisQuotient           uint64
	HysteresisDownwardMultiplier uint64
	HysteresisUpwardMultiplier   uint64
	MinInclusionDelay            uint64
	ShuffleRoundCount            uint64
	EpochsPerSyncCommitteePeriod uint64
	SyncCommitteeSize            uint64
	TargetCommitteeSize          uint64
	MaxCommitteesPerSlot         uint64

	// VerifiedHeadPreferenceSlots is how many slots the optimistic head may
	// be ahead of the DAG's verified head while forkchoiceUpdated still
	// prefers the verified head; beyond that the optimistic head is used
	// (spec.md §4.3 step 4, §9 open question).
	VerifiedHeadPreferenceSlots uint64
}

// MainnetPreset is the compiled-in default preset, matching the constants
// used throughout the teacher's epoch/validator/randao packages.
var MainnetPreset = Preset{
	SlotsPerEpoch:                32,
	SecondsPerSlot:               12,
	MinSeedLookahead:             1,
	MaxSeedLookahead:             4,
	SlotsPerHistoricalRoot:       8192,
	EpochsPerHistoricalVector:    65536,
	EpochsPerSlashingsVector:     8192,
	HistoricalRootsLimit:         16777216,
	ValidatorRegistryLimit:       1099511627776,
	BaseRewardFactor:             64,
	BaseRewardsPerEpoch:          4,
	InactivityPenaltyQuotient:    1 << 26,
	MinEpochsToInactivityPenalty: 4,
	EjectionBalance:              16_000_000_000,
	MinPerEpochChurnLimit:        4,
	ChurnLimitQuotient:           65536,
	MinDepositAmount:             1_000_000_000,
	MaxEffectiveBalance:          32_000_000_000,
	EffectiveBalanceIncrement:    1_000_000_000,
	HysteresisQuotient:           4,
	HysteresisDownwardMultiplier: 1,
	HysteresisUpwardMultiplier:   5,
	MinInclusionDelay:            1,
	ShuffleRoundCount:            90,
	EpochsPerSyncCommitteePeriod: 256,
	SyncCommitteeSize:            512,
	TargetCommitteeSize:          128,
	MaxCommitteesPerSlot:         64,
	VerifiedHeadPreferenceSlots:  256,
}

// RuntimeConfig carries network-specific values that are not frozen
// constants but are still fixed for the lifetime of a running node: fork
// activation epochs, genesis parameters, and the preset they apply to.
type RuntimeConfig struct {
	Preset Preset `yaml:"-"`

	ConfigName           string `yaml:"CONFIG_NAME"`
	AltairForkEpoch      uint64 `yaml:"ALTAIR_FORK_EPOCH"`
	BellatrixForkEpoch   uint64 `yaml:"BELLATRIX_FORK_EPOCH"`
	MinGenesisTime       uint64 `yaml:"MIN_GENESIS_TIME"`
	GenesisDelay         uint64 `yaml:"GENESIS_DELAY"`
	ProposerScoreBoost   uint64 `yaml:"PROPOSER_SCORE_BOOST"`
	TerminalTotalDiff    string `yaml:"TERMINAL_TOTAL_DIFFICULTY"`
}

// FarFutureEpoch is never-set-yet sentinel epoch for activation/exit fields.
const FarFutureEpoch = ^uint64(0)

// DefaultRuntimeConfig returns a mainnet-shaped configuration using
// MainnetPreset and conservative fork epochs.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Preset:             MainnetPreset,
		ConfigName:         "mainnet",
		AltairForkEpoch:    74240,
		BellatrixForkEpoch: 144896,
		MinGenesisTime:     1606824000,
		GenesisDelay:       604800,
		ProposerScoreBoost: 40,
	}
}

// Validate checks internal consistency of the runtime configuration.
// Non-decreasing fork epochs and a positive slots-per-epoch are required;
// nothing here may be changed once a node has started (spec.md Non-goals:
// "hot-reconfiguring presets").
func (c *RuntimeConfig) Validate() error {
	if c.Preset.SlotsPerEpoch == 0 {
		return fmt.Errorf("params: slots per epoch must be non-zero")
	}
	if c.BellatrixForkEpoch < c.AltairForkEpoch {
		return fmt.Errorf("params: bellatrix fork epoch %d precedes altair fork epoch %d", c.BellatrixForkEpoch, c.AltairForkEpoch)
	}
	return nil
}

// CurrentFork returns the active fork for the given epoch under this config.
func (c *RuntimeConfig) CurrentFork(epoch uint64) Fork {
	switch {
	case epoch >= c.BellatrixForkEpoch:
		return ForkBellatrix
	case epoch >= c.AltairForkEpoch:
		return ForkAltair
	default:
		return ForkPhase0
	}
}

// ForkEpoch returns the activation epoch of the given fork.
func (c *RuntimeConfig) ForkEpoch(f Fork) uint64 {
	switch f {
	case ForkAltair:
		return c.AltairForkEpoch
	case ForkBellatrix:
		return c.BellatrixForkEpoch
	default:
		return 0
	}
}
