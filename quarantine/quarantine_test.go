package quarantine

import (
	"testing"

	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

func testRoot(b byte) primitives.Digest {
	var d primitives.Digest
	d[0] = b
	return d
}

func TestQuarantine_AddOrphanAndPop(t *testing.T) {
	q := New(DefaultConfig())

	a := testRoot(0x01)
	parent := testRoot(0x00)
	block := &state.SignedBeaconBlock{}

	if ok := q.AddOrphan(a, parent, block); !ok {
		t.Fatal("expected orphan to be accepted")
	}
	if q.OrphanCount() != 1 {
		t.Fatalf("expected 1 orphan, got %d", q.OrphanCount())
	}

	popped := q.Pop(parent)
	if len(popped) != 1 {
		t.Fatalf("expected 1 popped block, got %d", len(popped))
	}
	if q.OrphanCount() != 0 {
		t.Fatalf("expected orphan set empty after pop, got %d", q.OrphanCount())
	}
}

func TestQuarantine_PopMultipleChildren(t *testing.T) {
	q := New(DefaultConfig())
	parent := testRoot(0x00)

	a := testRoot(0x01)
	b := testRoot(0x02)
	q.AddOrphan(a, parent, &state.SignedBeaconBlock{})
	q.AddOrphan(b, parent, &state.SignedBeaconBlock{})

	popped := q.Pop(parent)
	if len(popped) != 2 {
		t.Fatalf("expected 2 popped blocks, got %d", len(popped))
	}
	if q.OrphanCount() != 0 {
		t.Fatalf("expected orphan set empty, got %d", q.OrphanCount())
	}
}

func TestQuarantine_MissingSet(t *testing.T) {
	q := New(DefaultConfig())
	root := testRoot(0x01)

	q.AddMissing(root)
	if !q.IsMissing(root) {
		t.Fatal("expected root to be missing")
	}
	q.RemoveMissing(root)
	if q.IsMissing(root) {
		t.Fatal("expected root to no longer be missing")
	}
}

func TestQuarantine_RemoveOrphan(t *testing.T) {
	q := New(DefaultConfig())
	root := testRoot(0x01)
	parent := testRoot(0x00)

	q.AddOrphan(root, parent, &state.SignedBeaconBlock{})
	q.RemoveOrphan(root)

	if q.OrphanCount() != 0 {
		t.Fatalf("expected orphan removed directly, got count %d", q.OrphanCount())
	}
	// Popping the parent afterward must not resurface the removed orphan.
	if popped := q.Pop(parent); len(popped) != 0 {
		t.Fatalf("expected no children after direct removal, got %d", len(popped))
	}
}

// TestQuarantine_UnviablePropagation matches the unviable-fork-propagation
// scenario: marking a root unviable must also mark its queued orphan
// descendants unviable and evict them from the orphan set, and a later
// submission of a child of an unviable root must be rejected as unviable
// rather than accepted into the orphan set.
func TestQuarantine_UnviablePropagation(t *testing.T) {
	q := New(DefaultConfig())

	r := testRoot(0x01)
	c := testRoot(0x02)
	grandchild := testRoot(0x03)

	// c is already queued as an orphan of r before r is marked unviable.
	q.AddOrphan(c, r, &state.SignedBeaconBlock{})
	q.AddOrphan(grandchild, c, &state.SignedBeaconBlock{})

	q.MarkUnviable(r)

	if !q.IsUnviable(r) {
		t.Fatal("expected r unviable")
	}
	if !q.IsUnviable(c) {
		t.Fatal("expected c (orphan of r) to be transitively unviable")
	}
	if !q.IsUnviable(grandchild) {
		t.Fatal("expected grandchild to be transitively unviable")
	}
	if q.OrphanCount() != 0 {
		t.Fatalf("expected all descendants evicted from orphan set, got %d", q.OrphanCount())
	}

	// A fresh submission with parent_root == r (the unviable fork) must be
	// rejected as unviable, not accepted into the orphan set.
	newChild := testRoot(0x04)
	if ok := q.AddOrphan(newChild, r, &state.SignedBeaconBlock{}); ok {
		t.Fatal("expected add_orphan to refuse a child of an unviable parent")
	}
	if !q.IsUnviable(newChild) {
		t.Fatal("expected newChild marked unviable")
	}
}

func TestQuarantine_LRUEviction(t *testing.T) {
	q := New(Config{MaxOrphans: 2, EvictionPolicy: EvictLRU})

	a := testRoot(0x01)
	b := testRoot(0x02)
	c := testRoot(0x03)

	q.AddOrphan(a, testRoot(0x10), &state.SignedBeaconBlock{})
	q.AddOrphan(b, testRoot(0x11), &state.SignedBeaconBlock{})
	q.AddOrphan(c, testRoot(0x12), &state.SignedBeaconBlock{})

	if q.OrphanCount() != 2 {
		t.Fatalf("expected eviction to keep count at 2, got %d", q.OrphanCount())
	}
	// a was least-recently-used and should have been evicted.
	if popped := q.Pop(testRoot(0x10)); len(popped) != 0 {
		t.Fatal("expected a to have been evicted")
	}
}

func TestQuarantine_DropNewestEviction(t *testing.T) {
	q := New(Config{MaxOrphans: 1, EvictionPolicy: EvictDropNewest})

	a := testRoot(0x01)
	b := testRoot(0x02)

	if ok := q.AddOrphan(a, testRoot(0x10), &state.SignedBeaconBlock{}); !ok {
		t.Fatal("expected first orphan accepted")
	}
	if ok := q.AddOrphan(b, testRoot(0x11), &state.SignedBeaconBlock{}); ok {
		t.Fatal("expected second orphan dropped under EvictDropNewest at capacity")
	}
	if q.OrphanCount() != 1 {
		t.Fatalf("expected count to remain 1, got %d", q.OrphanCount())
	}
}
