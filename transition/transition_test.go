package transition

import (
	"errors"
	"testing"

	"github.com/eth2031/beacon/crypto"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
)

// allowAllBackend is installed for these tests so block/randao signature
// checks always pass, letting the tests exercise the surrounding state
// machinery (proposer selection, header bookkeeping, state-root checks)
// without needing to construct real BLS signatures.
type allowAllBackend struct{}

func (allowAllBackend) Name() string { return "allow-all" }
func (allowAllBackend) Verify(primitives.BLSPubkey, []byte, primitives.BLSSignature) bool {
	return true
}
func (allowAllBackend) AggregateVerify([]primitives.BLSPubkey, []byte, primitives.BLSSignature) bool {
	return true
}
func (allowAllBackend) FastAggregateVerify([]primitives.BLSPubkey, []byte, primitives.BLSSignature) bool {
	return true
}

func newSingleValidatorGenesisState(cfg *params.RuntimeConfig) *state.Data {
	st := state.New(params.ForkPhase0, 0, primitives.Digest{})
	v := &state.Validator{
		Pubkey:                     primitives.BLSPubkey{0x01},
		EffectiveBalance:           cfg.Preset.MaxEffectiveBalance,
		ActivationEligibilityEpoch: 0,
		ActivationEpoch:            0,
		ExitEpoch:                  primitives.Epoch(params.FarFutureEpoch),
		WithdrawableEpoch:          primitives.Epoch(params.FarFutureEpoch),
	}
	st.AddValidator(v, cfg.Preset.MaxEffectiveBalance)
	return st
}

// buildSlot32Block constructs an otherwise-empty block at slot 32 with the
// given parent root and state root, proposed by the sole validator (index 0,
// the only possible proposer per ComputeProposerIndex with a single
// full-balance validator).
func buildSlot32Block(parentRoot, stateRoot primitives.Digest) *state.SignedBeaconBlock {
	return &state.SignedBeaconBlock{
		Block: state.BeaconBlock{
			Fork:          params.ForkPhase0,
			Slot:          32,
			ProposerIndex: 0,
			ParentRoot:    parentRoot,
			StateRoot:     stateRoot,
			Body:          state.BeaconBlockBody{},
		},
	}
}

func TestStateTransition_HappyPath_Slot32(t *testing.T) {
	crypto.SetBackend(allowAllBackend{})
	cfg := params.DefaultRuntimeConfig()

	genesis := newSingleValidatorGenesisState(cfg)

	// Pass 1: advance a scratch copy through process_slots only, to learn
	// the parent root the slot-32 block must reference, then run
	// process_block on top of it (skipping the final state-root check) to
	// learn the resulting post-state root.
	preview := genesis.Clone()
	previewCache := ssz.NewCache()
	if err := ProcessSlots(cfg, preview, 32, previewCache); err != nil {
		t.Fatalf("preview process_slots: %v", err)
	}
	parentRoot := headerRoot(preview.LatestBlockHeaderValue)

	block := buildSlot32Block(parentRoot, primitives.Digest{})
	if err := StateTransition(cfg, preview, block, SlotAlreadyProcessed|SkipStateRoot, previewCache); err != nil {
		t.Fatalf("preview state transition: %v", err)
	}
	previewCache.Invalidate("state")
	wantRoot, err := HashTreeRoot(preview, previewCache)
	if err != nil {
		t.Fatalf("computing expected post-state root: %v", err)
	}

	// Pass 2: run the full transition, including the state-root check,
	// against a fresh clone of the same genesis state.
	st := genesis.Clone()
	cache := ssz.NewCache()
	signedBlock := buildSlot32Block(parentRoot, wantRoot)

	if err := StateTransition(cfg, st, signedBlock, 0, cache); err != nil {
		t.Fatalf("unexpected error on slot-32 happy path: %v", err)
	}
	if st.SlotValue != 32 {
		t.Fatalf("expected state slot 32, got %d", st.SlotValue)
	}
	if st.LatestBlockHeaderValue.Slot != 32 {
		t.Fatalf("expected latest block header slot 32, got %d", st.LatestBlockHeaderValue.Slot)
	}
}

func TestStateTransition_WrongStateRootRejected(t *testing.T) {
	crypto.SetBackend(allowAllBackend{})
	cfg := params.DefaultRuntimeConfig()

	genesis := newSingleValidatorGenesisState(cfg)

	preview := genesis.Clone()
	previewCache := ssz.NewCache()
	if err := ProcessSlots(cfg, preview, 32, previewCache); err != nil {
		t.Fatalf("preview process_slots: %v", err)
	}
	parentRoot := headerRoot(preview.LatestBlockHeaderValue)

	st := genesis.Clone()
	cache := ssz.NewCache()
	// Deliberately wrong state root: the all-zero digest cannot be the real
	// post-state root once any processing has occurred.
	signedBlock := buildSlot32Block(parentRoot, primitives.Digest{})

	err := StateTransition(cfg, st, signedBlock, 0, cache)
	if !errors.Is(err, ErrStateRootMismatch) {
		t.Fatalf("expected ErrStateRootMismatch, got %v", err)
	}
}

func TestStateTransition_SlotRegressionRejected(t *testing.T) {
	cfg := params.DefaultRuntimeConfig()
	st := newSingleValidatorGenesisState(cfg)
	st.SlotValue = 10

	cache := ssz.NewCache()
	block := buildSlot32Block(primitives.Digest{}, primitives.Digest{})
	block.Block.Slot = 5 // behind the state's current slot

	err := StateTransition(cfg, st, block, 0, cache)
	if !errors.Is(err, ErrSlotRegression) {
		t.Fatalf("expected ErrSlotRegression, got %v", err)
	}
}

func TestStateTransition_WrongProposerIndexRejected(t *testing.T) {
	crypto.SetBackend(allowAllBackend{})
	cfg := params.DefaultRuntimeConfig()

	genesis := newSingleValidatorGenesisState(cfg)
	preview := genesis.Clone()
	previewCache := ssz.NewCache()
	if err := ProcessSlots(cfg, preview, 32, previewCache); err != nil {
		t.Fatalf("preview process_slots: %v", err)
	}
	parentRoot := headerRoot(preview.LatestBlockHeaderValue)

	st := genesis.Clone()
	cache := ssz.NewCache()
	block := buildSlot32Block(parentRoot, primitives.Digest{})
	block.Block.ProposerIndex = 7 // only validator index 0 exists

	err := StateTransition(cfg, st, block, 0, cache)
	if !errors.Is(err, ErrInvalidProposerIndex) {
		t.Fatalf("expected ErrInvalidProposerIndex, got %v", err)
	}
}

func TestStateTransition_ParentRootMismatchRejected(t *testing.T) {
	crypto.SetBackend(allowAllBackend{})
	cfg := params.DefaultRuntimeConfig()

	st := newSingleValidatorGenesisState(cfg)
	cache := ssz.NewCache()
	block := buildSlot32Block(primitives.Digest{0xff}, primitives.Digest{})

	err := StateTransition(cfg, st, block, 0, cache)
	if !errors.Is(err, ErrParentRootMismatch) {
		t.Fatalf("expected ErrParentRootMismatch, got %v", err)
	}
}
