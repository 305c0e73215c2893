package forkchoice

import (
	"errors"
	"testing"

	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

func testDigest(b byte) primitives.Digest {
	var d primitives.Digest
	d[0] = b
	return d
}

func testSignedBlock(slot primitives.Slot, parent primitives.Digest) *state.SignedBeaconBlock {
	return &state.SignedBeaconBlock{
		Block: state.BeaconBlock{
			Slot:       slot,
			ParentRoot: parent,
		},
	}
}

func TestDAG_AddHeadBlock_Genesis(t *testing.T) {
	d := New()
	root := testDigest(0x01)
	block := testSignedBlock(0, primitives.Digest{})

	ref, err := d.AddHeadBlock(nil, block, &state.Data{}, primitives.Digest{}, root, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error inserting genesis: %v", err)
	}
	if ref.Root != root {
		t.Fatalf("expected ref root %v, got %v", root, ref.Root)
	}
	if !d.HasBlock(root) {
		t.Fatal("expected genesis block present in DAG")
	}
}

func TestDAG_AddHeadBlock_Duplicate(t *testing.T) {
	d := New()
	root := testDigest(0x01)
	block := testSignedBlock(0, primitives.Digest{})

	if _, err := d.AddHeadBlock(nil, block, &state.Data{}, primitives.Digest{}, root, nil, nil); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	if _, err := d.AddHeadBlock(nil, block, &state.Data{}, primitives.Digest{}, root, nil, nil); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDAG_AddHeadBlock_MissingParent(t *testing.T) {
	d := New()
	genesisRoot := testDigest(0x01)
	d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, genesisRoot, nil, nil)

	child := testDigest(0x02)
	orphanParent := testDigest(0xff)
	_, err := d.AddHeadBlock(nil, testSignedBlock(1, orphanParent), &state.Data{}, primitives.Digest{}, child, nil, nil)
	if !errors.Is(err, ErrMissingParent) {
		t.Fatalf("expected ErrMissingParent, got %v", err)
	}
}

func TestDAG_AddHeadBlock_UnviableFork(t *testing.T) {
	d := New()
	genesisRoot := testDigest(0x01)
	d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, genesisRoot, nil, nil)

	child := testDigest(0x02)
	unviable := func(root primitives.Digest) bool { return root == genesisRoot }
	_, err := d.AddHeadBlock(nil, testSignedBlock(1, genesisRoot), &state.Data{}, primitives.Digest{}, child, unviable, nil)
	if !errors.Is(err, ErrUnviableFork) {
		t.Fatalf("expected ErrUnviableFork, got %v", err)
	}
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifySignedBlock(*state.SignedBeaconBlock) error {
	return errors.New("bad signature")
}

func TestDAG_AddHeadBlock_InvalidSignature(t *testing.T) {
	d := New()
	root := testDigest(0x01)
	_, err := d.AddHeadBlock(rejectingVerifier{}, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, root, nil, nil)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestDAG_AddHeadBlock_PostInsertCallback(t *testing.T) {
	d := New()
	root := testDigest(0x01)
	called := false
	cb := func(ref *BlockRef, st *state.Data) {
		called = true
		if ref.Root != root {
			t.Fatalf("callback saw wrong root: %v", ref.Root)
		}
	}
	if _, err := d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, root, nil, cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected PostInsertCallback to be invoked")
	}
}

func TestDAG_ClearanceState(t *testing.T) {
	d := New()
	root := testDigest(0x01)
	st := &state.Data{}
	d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), st, primitives.Digest{}, root, nil, nil)

	got, ok := d.ClearanceState(root)
	if !ok || got != st {
		t.Fatal("expected cached state to be retrievable")
	}

	if _, ok := d.ClearanceState(testDigest(0x02)); ok {
		t.Fatal("expected no cached state for unknown root")
	}
}

func TestDAG_Prune(t *testing.T) {
	d := New()
	genesisRoot := testDigest(0x01)
	d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, genesisRoot, nil, nil)

	a := testDigest(0x02)
	d.AddHeadBlock(nil, testSignedBlock(1, genesisRoot), &state.Data{}, primitives.Digest{}, a, nil, nil)

	b := testDigest(0x03)
	d.AddHeadBlock(nil, testSignedBlock(2, a), &state.Data{}, primitives.Digest{}, b, nil, nil)

	// A sibling fork off genesis at the same slot as the finalized root: not
	// strictly less than the finalized slot, so Prune leaves it dangling
	// rather than deleting it.
	forkRoot := testDigest(0x04)
	d.AddHeadBlock(nil, testSignedBlock(1, genesisRoot), &state.Data{}, primitives.Digest{}, forkRoot, nil, nil)

	d.Prune(a)

	if !d.HasBlock(a) {
		t.Fatal("expected finalized root a to survive pruning")
	}
	if !d.HasBlock(b) {
		t.Fatal("expected descendant b to survive pruning")
	}
	if d.HasBlock(genesisRoot) {
		t.Fatal("expected genesis (slot < finalized slot) to be pruned")
	}
	if !d.HasBlock(forkRoot) {
		t.Fatal("expected same-slot sibling fork to survive pruning (not strictly less than finalized slot)")
	}
}

func TestDAG_BlockCount(t *testing.T) {
	d := New()
	if d.BlockCount() != 0 {
		t.Fatalf("expected empty DAG, got %d", d.BlockCount())
	}
	root := testDigest(0x01)
	d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, root, nil, nil)
	if d.BlockCount() != 1 {
		t.Fatalf("expected 1 block, got %d", d.BlockCount())
	}
}
