package state

import (
	"sync"

	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
)

// BeaconState is the narrow interface the state transition, fork choice,
// and block processor actually need, independent of which fork is active.
// Fork-specific fields (sync committees, execution payload header) are
// reached via the accessor methods on *Data below, which return nil/zero
// when the active fork predates them — this plays the role of the
// "downcast behind an interface" pattern called for in spec.md §9 without
// needing three separate concrete per-fork struct types and a type switch
// at every call site.
type BeaconState interface {
	Slot() primitives.Slot
	Fork() params.Fork
	GenesisTime() uint64
	GenesisValidatorsRoot() primitives.Digest
	LatestBlockHeader() BeaconBlockHeader
	Validators() []*Validator
	Balances() []uint64
	JustificationBits() primitives.JustificationBits
	PreviousJustifiedCheckpoint() primitives.Checkpoint
	CurrentJustifiedCheckpoint() primitives.Checkpoint
	FinalizedCheckpoint() primitives.Checkpoint
	Clone() *Data
}

// Data is the concrete beacon state, carrying every field any supported
// fork might need. Preset upgrade functions (transition.UpgradeToAltair,
// UpgradeToBellatrix) populate the fork-specific sections; downgrade never
// happens so earlier-fork fields simply stay at their zero value.
type Data struct {
	mu sync.RWMutex

	ActiveFork            params.Fork
	SlotValue             primitives.Slot
	GenesisTimeValue      uint64
	GenesisValidatorsRootValue primitives.Digest
	LatestBlockHeaderValue BeaconBlockHeader

	BlockRoots [8192]primitives.Digest
	StateRoots [8192]primitives.Digest
	HistoricalRoots []primitives.Digest

	Eth1DataValue  Eth1Data
	Eth1DataVotes  []Eth1Data
	Eth1DepositIdx uint64

	ValidatorsValue []*Validator
	BalancesValue   []uint64

	RandaoMixes [65536]primitives.Digest
	Slashings   [8192]uint64

	PreviousEpochParticipation []uint8
	CurrentEpochParticipation  []uint8
	InactivityScores           []uint64

	JustificationBitsValue JustificationBitsValue
	PreviousJustified      primitives.Checkpoint
	CurrentJustified       primitives.Checkpoint
	Finalized              primitives.Checkpoint

	// Altair+
	CurrentSyncCommittee *SyncCommittee
	NextSyncCommittee    *SyncCommittee

	// Bellatrix+
	LatestExecutionPayloadHeader *ExecutionPayload

	pubkeyIndex map[primitives.BLSPubkey]primitives.ValidatorIndex
}

// JustificationBitsValue is an alias for primitives.JustificationBits: the
// two names denote the same type.
type JustificationBitsValue = primitives.JustificationBits

// New returns an empty genesis-shaped Data for the given fork.
func New(fork params.Fork, genesisTime uint64, genesisValidatorsRoot primitives.Digest) *Data {
	return &Data{
		ActiveFork:                 fork,
		GenesisTimeValue:           genesisTime,
		GenesisValidatorsRootValue: genesisValidatorsRoot,
		pubkeyIndex:                make(map[primitives.BLSPubkey]primitives.ValidatorIndex),
	}
}

func (d *Data) Slot() primitives.Slot                   { return d.SlotValue }
func (d *Data) Fork() params.Fork                        { return d.ActiveFork }
func (d *Data) GenesisTime() uint64                      { return d.GenesisTimeValue }
func (d *Data) GenesisValidatorsRoot() primitives.Digest { return d.GenesisValidatorsRootValue }
func (d *Data) LatestBlockHeader() BeaconBlockHeader      { return d.LatestBlockHeaderValue }
func (d *Data) Validators() []*Validator                 { return d.ValidatorsValue }
func (d *Data) Balances() []uint64                       { return d.BalancesValue }
func (d *Data) JustificationBits() primitives.JustificationBits {
	return d.JustificationBitsValue
}
func (d *Data) PreviousJustifiedCheckpoint() primitives.Checkpoint { return d.PreviousJustified }
func (d *Data) CurrentJustifiedCheckpoint() primitives.Checkpoint  { return d.CurrentJustified }
func (d *Data) FinalizedCheckpoint() primitives.Checkpoint         { return d.Finalized }

// AddValidator appends a validator and its starting balance, returning its
// assigned index.
func (d *Data) AddValidator(v *Validator, balance uint64) primitives.ValidatorIndex {
	idx := primitives.ValidatorIndex(len(d.ValidatorsValue))
	d.ValidatorsValue = append(d.ValidatorsValue, v)
	d.BalancesValue = append(d.BalancesValue, balance)
	if d.pubkeyIndex == nil {
		d.pubkeyIndex = make(map[primitives.BLSPubkey]primitives.ValidatorIndex)
	}
	d.pubkeyIndex[v.Pubkey] = idx
	return idx
}

// ValidatorIndexByPubkey resolves a pubkey to its registry index.
func (d *Data) ValidatorIndexByPubkey(pk primitives.BLSPubkey) (primitives.ValidatorIndex, bool) {
	idx, ok := d.pubkeyIndex[pk]
	return idx, ok
}

// ActiveValidatorIndices returns the indices of validators active at epoch.
func (d *Data) ActiveValidatorIndices(epoch primitives.Epoch) []primitives.ValidatorIndex {
	var out []primitives.ValidatorIndex
	for i, v := range d.ValidatorsValue {
		if v.IsActive(epoch) {
			out = append(out, primitives.ValidatorIndex(i))
		}
	}
	return out
}

// TotalActiveBalance sums effective balances of validators active at epoch.
func (d *Data) TotalActiveBalance(epoch primitives.Epoch, preset params.Preset) uint64 {
	var total uint64
	for _, v := range d.ValidatorsValue {
		if v.IsActive(epoch) {
			total += v.EffectiveBalance
		}
	}
	if total < preset.EffectiveBalanceIncrement {
		return preset.EffectiveBalanceIncrement
	}
	return total
}

// Clone performs a deep copy, used by the state transition to build a
// scratch copy-on-write state that is discarded on failure instead of
// requiring a caller-supplied rollback callback (spec.md §9's preferred
// re-architecture over the source's mutate-plus-rollback pattern).
func (d *Data) Clone() *Data {
	d.mu.RLock()
	defer d.mu.RUnlock()

	clone := *d
	clone.mu = sync.RWMutex{}

	clone.HistoricalRoots = append([]primitives.Digest(nil), d.HistoricalRoots...)
	clone.Eth1DataVotes = append([]Eth1Data(nil), d.Eth1DataVotes...)

	clone.ValidatorsValue = make([]*Validator, len(d.ValidatorsValue))
	for i, v := range d.ValidatorsValue {
		vCopy := *v
		clone.ValidatorsValue[i] = &vCopy
	}
	clone.BalancesValue = append([]uint64(nil), d.BalancesValue...)
	clone.PreviousEpochParticipation = append([]uint8(nil), d.PreviousEpochParticipation...)
	clone.CurrentEpochParticipation = append([]uint8(nil), d.CurrentEpochParticipation...)
	clone.InactivityScores = append([]uint64(nil), d.InactivityScores...)

	clone.pubkeyIndex = make(map[primitives.BLSPubkey]primitives.ValidatorIndex, len(d.pubkeyIndex))
	for k, v := range d.pubkeyIndex {
		clone.pubkeyIndex[k] = v
	}

	if d.CurrentSyncCommittee != nil {
		sc := *d.CurrentSyncCommittee
		clone.CurrentSyncCommittee = &sc
	}
	if d.NextSyncCommittee != nil {
		sc := *d.NextSyncCommittee
		clone.NextSyncCommittee = &sc
	}
	if d.LatestExecutionPayloadHeader != nil {
		eph := *d.LatestExecutionPayloadHeader
		clone.LatestExecutionPayloadHeader = &eph
	}

	return &clone
}
