package consensusmgr

import (
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// NopValidatorMonitor is the default no-op implementation of
// blockproc.ValidatorMonitor, used when no validator-monitoring sidecar is
// wired in (spec.md §6 names the monitor as an external collaborator, not a
// required one).
type NopValidatorMonitor struct{}

func (NopValidatorMonitor) RegisterBeaconBlock(primitives.Digest, primitives.Slot, primitives.ValidatorIndex) {
}

func (NopValidatorMonitor) RegisterAttestationInBlock(*state.Attestation, primitives.Digest) {}

func (NopValidatorMonitor) RegisterSyncAggregateInBlock(*state.SyncAggregate, primitives.Digest) {}
