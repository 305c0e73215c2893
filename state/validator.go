// Package state implements the beacon data model: validators, attestations,
// per-fork beacon blocks/states, and the ForkedBeaconState /
// ForkedSignedBeaconBlock tagged unions.
package state

import (
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
)

// GweiPerETH is the number of Gwei in one ETH.
const GweiPerETH = 1_000_000_000

// CompoundingWithdrawalPrefix marks withdrawal credentials as EIP-7251
// compounding-balance credentials.
const CompoundingWithdrawalPrefix = 0x02

// Validator is a single entry in the beacon state's validator registry.
type Validator struct {
	Pubkey                     primitives.BLSPubkey
	WithdrawalCredentials      primitives.Digest
	EffectiveBalance           uint64
	Slashed                    bool
	ActivationEligibilityEpoch primitives.Epoch
	ActivationEpoch            primitives.Epoch
	ExitEpoch                  primitives.Epoch
	WithdrawableEpoch          primitives.Epoch
}

// IsActive reports whether the validator is active at the given epoch.
func (v *Validator) IsActive(epoch primitives.Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsEligibleForActivation reports whether the validator may be activated,
// given the state's current finalized epoch.
func (v *Validator) IsEligibleForActivation(finalizedEpoch primitives.Epoch) bool {
	return v.ActivationEligibilityEpoch <= finalizedEpoch &&
		v.ActivationEpoch == primitives.Epoch(params.FarFutureEpoch)
}

// IsSlashable reports whether the validator can still be slashed at epoch.
func (v *Validator) IsSlashable(epoch primitives.Epoch) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// HasCompoundingCredentials reports EIP-7251 compounding withdrawal
// credentials (0x02-prefixed).
func (v *Validator) HasCompoundingCredentials() bool {
	return v.WithdrawalCredentials[0] == CompoundingWithdrawalPrefix
}

// ComputeEffectiveBalance rounds down balance to the nearest
// EffectiveBalanceIncrement, capped at MaxEffectiveBalance.
func ComputeEffectiveBalance(balance uint64, preset params.Preset) uint64 {
	eff := balance - balance%preset.EffectiveBalanceIncrement
	if eff > preset.MaxEffectiveBalance {
		return preset.MaxEffectiveBalance
	}
	return eff
}

// UpdateEffectiveBalance applies hysteresis: the effective balance only
// moves when the actual balance has drifted far enough from it, avoiding
// churn from balance noise near the rounding boundary.
func UpdateEffectiveBalance(v *Validator, balance uint64, preset params.Preset) {
	increment := preset.EffectiveBalanceIncrement
	downward := increment * preset.HysteresisDownwardMultiplier / preset.HysteresisQuotient
	upward := increment * preset.HysteresisUpwardMultiplier / preset.HysteresisQuotient

	if balance+downward < v.EffectiveBalance || v.EffectiveBalance+upward < balance {
		v.EffectiveBalance = ComputeEffectiveBalance(balance, preset)
	}
}
