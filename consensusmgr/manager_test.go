package consensusmgr

import (
	"errors"
	"testing"

	"github.com/eth2031/beacon/beaconclock"
	"github.com/eth2031/beacon/forkchoice"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

func testDigest(b byte) primitives.Digest {
	var d primitives.Digest
	d[0] = b
	return d
}

func testSignedBlock(slot primitives.Slot, parentRoot primitives.Digest) *state.SignedBeaconBlock {
	return &state.SignedBeaconBlock{Block: state.BeaconBlock{Slot: slot, ParentRoot: parentRoot}}
}

func newTestManager(t *testing.T) (*Manager, *forkchoice.DAG) {
	t.Helper()
	dag := forkchoice.New()
	clock := beaconclock.New(0, 12)
	mgr := New(params.DefaultRuntimeConfig(), dag, clock, nil)
	return mgr, dag
}

func TestManager_SeedGenesis(t *testing.T) {
	mgr, dag := newTestManager(t)
	root := testDigest(0x01)
	genesisState := &state.Data{}

	if err := mgr.SeedGenesis(root, testSignedBlock(0, primitives.Digest{}), genesisState); err != nil {
		t.Fatalf("SeedGenesis: %v", err)
	}

	if !dag.HasBlock(root) {
		t.Fatal("expected genesis block to be inserted into the DAG")
	}
	want := primitives.Checkpoint{Epoch: 0, Root: root}
	if dag.JustifiedCheckpoint() != want {
		t.Fatalf("expected justified checkpoint %v, got %v", want, dag.JustifiedCheckpoint())
	}
	if dag.FinalizedCheckpoint() != want {
		t.Fatalf("expected finalized checkpoint %v, got %v", want, dag.FinalizedCheckpoint())
	}
}

func TestManager_SeedGenesis_DuplicateRootError(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := testDigest(0x01)
	if err := mgr.SeedGenesis(root, testSignedBlock(0, primitives.Digest{}), &state.Data{}); err != nil {
		t.Fatalf("first SeedGenesis: %v", err)
	}
	err := mgr.SeedGenesis(root, testSignedBlock(0, primitives.Digest{}), &state.Data{})
	if !errors.Is(err, forkchoice.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on re-seeding, got %v", err)
	}
}

// TestManager_UpdateHead_RecomputesHead checks that UpdateHead delegates to
// the DAG's LMD-GHOST computation using the manager's own vote store.
func TestManager_UpdateHead_RecomputesHead(t *testing.T) {
	mgr, dag := newTestManager(t)
	genesisRoot := testDigest(0x01)
	if err := mgr.SeedGenesis(genesisRoot, testSignedBlock(0, primitives.Digest{}), &state.Data{}); err != nil {
		t.Fatalf("SeedGenesis: %v", err)
	}

	a := testDigest(0x02)
	if _, err := dag.AddHeadBlock(nil, testSignedBlock(1, genesisRoot), &state.Data{}, primitives.Digest{}, a, nil, nil); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	b := testDigest(0x03)
	if _, err := dag.AddHeadBlock(nil, testSignedBlock(1, genesisRoot), &state.Data{}, primitives.Digest{}, b, nil, nil); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	mgr.VoteStore().RecordVote(forkchoice.Vote{ValidatorIndex: 0, Root: b, Weight: 10})

	mgr.UpdateHead(10)
	if dag.Head() != b {
		t.Fatalf("expected head %v (voted branch), got %v", b, dag.Head())
	}
}

// TestManager_UpdateHead_PrunesOnFinalizationAdvance checks that once the
// DAG's finalized checkpoint advances past epoch 0, UpdateHead records it
// in the weak-subjectivity chain and prunes everything strictly behind it.
func TestManager_UpdateHead_PrunesOnFinalizationAdvance(t *testing.T) {
	mgr, dag := newTestManager(t)
	genesisRoot := testDigest(0x01)
	if err := mgr.SeedGenesis(genesisRoot, testSignedBlock(0, primitives.Digest{}), &state.Data{}); err != nil {
		t.Fatalf("SeedGenesis: %v", err)
	}

	a := testDigest(0x02)
	if _, err := dag.AddHeadBlock(nil, testSignedBlock(32, genesisRoot), &state.Data{}, primitives.Digest{}, a, nil, nil); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	b := testDigest(0x03)
	if _, err := dag.AddHeadBlock(nil, testSignedBlock(64, a), &state.Data{}, primitives.Digest{}, b, nil, nil); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	// Simulate store_block having just advanced finalization to a (epoch 1),
	// as processor.storeBlock does before calling update_head.
	dag.SetFinalized(primitives.Checkpoint{Epoch: 1, Root: a})

	mgr.UpdateHead(64)

	if mgr.lastFinalizedEpoch != 1 {
		t.Fatalf("expected lastFinalizedEpoch 1, got %d", mgr.lastFinalizedEpoch)
	}
	if dag.HasBlock(genesisRoot) {
		t.Fatal("expected genesis (strictly behind the new finalized slot) to be pruned")
	}
	if !dag.HasBlock(a) {
		t.Fatal("expected the newly finalized block to survive pruning")
	}
	if !dag.HasBlock(b) {
		t.Fatal("expected a descendant of the finalized block to survive pruning")
	}
}

// TestManager_UpdateHead_StableAtGenesisFinalization checks that repeated
// UpdateHead calls while still finalized at the genesis checkpoint leave
// the DAG and the manager's bookkeeping unchanged.
func TestManager_UpdateHead_StableAtGenesisFinalization(t *testing.T) {
	mgr, dag := newTestManager(t)
	genesisRoot := testDigest(0x01)
	if err := mgr.SeedGenesis(genesisRoot, testSignedBlock(0, primitives.Digest{}), &state.Data{}); err != nil {
		t.Fatalf("SeedGenesis: %v", err)
	}

	mgr.UpdateHead(0)
	mgr.UpdateHead(1)
	if mgr.lastFinalizedEpoch != 0 {
		t.Fatalf("expected lastFinalizedEpoch to remain 0, got %d", mgr.lastFinalizedEpoch)
	}
	if !dag.HasBlock(genesisRoot) {
		t.Fatal("expected genesis to survive repeated updates while still finalized at epoch 0")
	}
}
