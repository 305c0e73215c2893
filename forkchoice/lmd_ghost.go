package forkchoice

import (
	"github.com/eth2031/beacon/primitives"
)

// Vote is a validator's latest LMD-GHOST message: the block root it last
// attested to, and the attesting weight (the validator's effective
// balance) that should count toward that root's subtree.
type Vote struct {
	ValidatorIndex primitives.ValidatorIndex
	Root           primitives.Digest
	Weight         uint64
}

// VoteStore holds the latest vote per validator; a newer vote replaces an
// older one for the same validator (LMD: latest-message-driven).
type VoteStore struct {
	latest map[primitives.ValidatorIndex]Vote
}

// NewVoteStore returns an empty VoteStore.
func NewVoteStore() *VoteStore {
	return &VoteStore{latest: make(map[primitives.ValidatorIndex]Vote)}
}

// RecordVote replaces the validator's vote unconditionally with the most
// recently seen one (callers are expected to only call this with
// attestations already past the inclusion-window / target-checkpoint
// checks performed by the state transition).
func (vs *VoteStore) RecordVote(v Vote) {
	vs.latest[v.ValidatorIndex] = v
}

// AddAttestation adds (or overwrites) vote weight for a validator toward a
// root, honoring LMD semantics.
func (d *DAG) AddAttestation(vs *VoteStore, v Vote) {
	vs.RecordVote(v)
}

// SetJustified records the current justified checkpoint, the root from
// which UpdateHead starts its descent. Proposer boost is set separately via
// SetProposerBoost.
func (d *DAG) SetJustified(cp primitives.Checkpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.justified = cp
}

// SetProposerBoost marks root as the boosted block for wallSlot, with score
// equal to the boost fraction of total active balance. The boost only
// applies to head computation for blocks proposed at exactly wallSlot;
// callers must clear/replace it every slot.
func (d *DAG) SetProposerBoost(root primitives.Digest, wallSlot primitives.Slot, score uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.proposerBoostRoot = root
	d.proposerBoostSlot = wallSlot
	d.proposerBoostScore = score
}

// SetFinalized records the current finalized checkpoint.
func (d *DAG) SetFinalized(cp primitives.Checkpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finalized = cp
}

// JustifiedCheckpoint returns the current justified checkpoint.
func (d *DAG) JustifiedCheckpoint() primitives.Checkpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.justified
}

// FinalizedCheckpoint returns the current finalized checkpoint.
func (d *DAG) FinalizedCheckpoint() primitives.Checkpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.finalized
}

// UpdateHead recomputes the canonical head using LMD-GHOST: starting from
// the justified root, greedily descend to the child with the greatest
// cumulative attester weight, with the wallSlot-scoped proposer-boost
// folded in as extra weight on its target block (spec.md §4.5 "Head
// update").
func (d *DAG) UpdateHead(vs *VoteStore, wallSlot primitives.Slot) primitives.Digest {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := d.justified.Root
	if _, ok := d.nodes[start]; !ok {
		start = d.anyRoot()
		if start == (primitives.Digest{}) {
			return primitives.Digest{}
		}
	}

	weights := d.computeWeights(vs, wallSlot)

	current := start
	for {
		node, ok := d.nodes[current]
		if !ok || len(node.Children) == 0 {
			break
		}
		best := node.Children[0]
		bestWeight := weights[best]
		for _, child := range node.Children[1:] {
			w := weights[child]
			if w > bestWeight || (w == bestWeight && lessDigest(child, best)) {
				best = child
				bestWeight = w
			}
		}
		current = best
	}
	d.head = current
	return current
}

// computeWeights returns, for every node, the sum of attester weight in its
// subtree plus any active proposer-boost.
func (d *DAG) computeWeights(vs *VoteStore, wallSlot primitives.Slot) map[primitives.Digest]uint64 {
	direct := make(map[primitives.Digest]uint64, len(d.nodes))
	if vs != nil {
		for _, v := range vs.latest {
			direct[v.Root] += v.Weight
		}
	}
	if d.proposerBoostRoot != (primitives.Digest{}) && d.proposerBoostSlot == wallSlot {
		direct[d.proposerBoostRoot] += d.proposerBoostScore
	}

	memo := make(map[primitives.Digest]uint64, len(d.nodes))
	var subtreeWeight func(primitives.Digest) uint64
	subtreeWeight = func(root primitives.Digest) uint64 {
		if w, ok := memo[root]; ok {
			return w
		}
		node, ok := d.nodes[root]
		if !ok {
			return 0
		}
		total := direct[root]
		for _, child := range node.Children {
			total += subtreeWeight(child)
		}
		memo[root] = total
		return total
	}
	for root := range d.nodes {
		subtreeWeight(root)
	}
	return memo
}

func (d *DAG) anyRoot() primitives.Digest {
	for root, node := range d.nodes {
		if _, ok := d.nodes[node.ParentRoot]; !ok {
			return root
		}
	}
	return primitives.Digest{}
}

func lessDigest(a, b primitives.Digest) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Prune removes every block that is not descended from the new finalized
// head and whose slot is strictly less than the finalized head's slot;
// non-descendants at or above that slot are kept
// (spec.md §4.5 "Finalization advances... pruning removes blocks with slot
// strictly less than the new finalized head's slot").
func (d *DAG) Prune(finalizedRoot primitives.Digest) {
	d.mu.Lock()
	defer d.mu.Unlock()

	finalizedRef, ok := d.nodes[finalizedRoot]
	if !ok {
		return
	}

	keep := make(map[primitives.Digest]bool)
	var collect func(primitives.Digest)
	collect = func(root primitives.Digest) {
		keep[root] = true
		node, ok := d.nodes[root]
		if !ok {
			return
		}
		for _, child := range node.Children {
			collect(child)
		}
	}
	collect(finalizedRoot)

	for root, node := range d.nodes {
		if !keep[root] && node.Slot < finalizedRef.Slot {
			delete(d.nodes, root)
		}
	}
	finalizedRef.ParentRoot = primitives.Digest{}
}
