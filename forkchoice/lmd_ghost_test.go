package forkchoice

import (
	"testing"

	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// buildForkedDAG inserts a genesis block plus a simple two-way fork:
//
//	genesis -> a -> b
//	        -> c
//
// and returns the roots.
func buildForkedDAG(t *testing.T) (d *DAG, genesis, a, b, c primitives.Digest) {
	t.Helper()
	d = New()
	genesis = testDigest(0x01)
	if _, err := d.AddHeadBlock(nil, testSignedBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, genesis, nil, nil); err != nil {
		t.Fatalf("insert genesis: %v", err)
	}
	d.SetJustified(primitives.Checkpoint{Epoch: 0, Root: genesis})

	a = testDigest(0x02)
	if _, err := d.AddHeadBlock(nil, testSignedBlock(1, genesis), &state.Data{}, primitives.Digest{}, a, nil, nil); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	b = testDigest(0x03)
	if _, err := d.AddHeadBlock(nil, testSignedBlock(2, a), &state.Data{}, primitives.Digest{}, b, nil, nil); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	c = testDigest(0x04)
	if _, err := d.AddHeadBlock(nil, testSignedBlock(1, genesis), &state.Data{}, primitives.Digest{}, c, nil, nil); err != nil {
		t.Fatalf("insert c: %v", err)
	}
	return d, genesis, a, b, c
}

func TestLMDGHOST_HeadFollowsGreaterWeight(t *testing.T) {
	d, _, _, b, c := buildForkedDAG(t)
	vs := NewVoteStore()

	// Two validators vote for the b branch (weight 64), one for c (weight 32).
	vs.RecordVote(Vote{ValidatorIndex: 0, Root: b, Weight: 32})
	vs.RecordVote(Vote{ValidatorIndex: 1, Root: b, Weight: 32})
	vs.RecordVote(Vote{ValidatorIndex: 2, Root: c, Weight: 32})

	head := d.UpdateHead(vs, 10)
	if head != b {
		t.Fatalf("expected head %v (heavier subtree), got %v", b, head)
	}
}

func TestLMDGHOST_ProposerBoostOnlyAtWallSlot(t *testing.T) {
	d, _, _, b, c := buildForkedDAG(t)
	vs := NewVoteStore()
	// Equal votes for both branches' tips.
	vs.RecordVote(Vote{ValidatorIndex: 0, Root: b, Weight: 10})
	vs.RecordVote(Vote{ValidatorIndex: 1, Root: c, Weight: 10})

	// Boost c, but scoped to slot 99; an UpdateHead at a different wall slot
	// must not apply it.
	d.SetProposerBoost(c, 99, 1000)

	head := d.UpdateHead(vs, 5)
	if head != b && head != c {
		t.Fatalf("expected head to be one of the equally-weighted tips, got %v", head)
	}

	// Now update at the boosted slot: c must win.
	head = d.UpdateHead(vs, 99)
	if head != c {
		t.Fatalf("expected boosted root %v to win at its wall slot, got %v", c, head)
	}
}

func TestLMDGHOST_TieBrokenByDigest(t *testing.T) {
	d, _, a, b, c := buildForkedDAG(t)
	vs := NewVoteStore()
	// No votes at all: every subtree has weight zero, tie-break by digest
	// between a and c; the head walk then descends to that branch's tip.
	head := d.UpdateHead(vs, 0)

	want := b
	if lessDigest(c, a) {
		want = c
	}
	if head != want {
		t.Fatalf("expected tie-break winner %v, got %v", want, head)
	}
}

func TestLMDGHOST_VoteOverwritesPrevious(t *testing.T) {
	vs := NewVoteStore()
	root1 := testDigest(0x01)
	root2 := testDigest(0x02)

	vs.RecordVote(Vote{ValidatorIndex: 0, Root: root1, Weight: 10})
	vs.RecordVote(Vote{ValidatorIndex: 0, Root: root2, Weight: 10})

	if got := vs.latest[0]; got.Root != root2 {
		t.Fatalf("expected latest vote to overwrite root, got %v", got.Root)
	}
}

func TestLMDGHOST_JustifiedAndFinalizedCheckpoints(t *testing.T) {
	d := New()
	cp := primitives.Checkpoint{Epoch: 3, Root: testDigest(0x05)}
	d.SetJustified(cp)
	if d.JustifiedCheckpoint() != cp {
		t.Fatalf("expected justified checkpoint %v, got %v", cp, d.JustifiedCheckpoint())
	}
	d.SetFinalized(cp)
	if d.FinalizedCheckpoint() != cp {
		t.Fatalf("expected finalized checkpoint %v, got %v", cp, d.FinalizedCheckpoint())
	}
}
