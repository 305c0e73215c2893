package forkchoice

import (
	"sync"

	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// BlockRef is a DAG node: a block root, its slot, a parent pointer, the
// associated execution block hash (zero pre-Bellatrix), and its children
// (spec.md §4.5).
type BlockRef struct {
	Root                primitives.Digest
	ParentRoot          primitives.Digest
	Slot                primitives.Slot
	ExecutionBlockHash  primitives.Digest
	Children            []primitives.Digest

	state  *state.Data
	weight uint64
}

// Verifier performs batch signature verification on a signed block before
// it is accepted into the DAG (spec.md §4.5 "validates signatures in batch
// via verifier").
type Verifier interface {
	VerifySignedBlock(signed *state.SignedBeaconBlock) error
}

// PostInsertCallback is invoked after a block is structurally accepted into
// the DAG, before add_head_block returns, so the caller can register fork
// choice weight/attestation bookkeeping atomically with the insert.
type PostInsertCallback func(ref *BlockRef, st *state.Data)

// DAG stores the block tree and the cached state needed to extend it; it is
// the sole owner of persisted blocks and the canonical state cache
// (spec.md §3 "Ownership").
type DAG struct {
	mu sync.RWMutex

	nodes map[primitives.Digest]*BlockRef

	justified primitives.Checkpoint
	finalized primitives.Checkpoint

	proposerBoostRoot  primitives.Digest
	proposerBoostSlot  primitives.Slot
	proposerBoostScore uint64

	head primitives.Digest
}

// New returns an empty DAG.
func New() *DAG {
	return &DAG{nodes: make(map[primitives.Digest]*BlockRef)}
}

// HasBlock reports whether root is present in the DAG.
func (d *DAG) HasBlock(root primitives.Digest) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[root]
	return ok
}

// GetRef returns the BlockRef for root.
func (d *DAG) GetRef(root primitives.Digest) (*BlockRef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ref, ok := d.nodes[root]
	return ref, ok
}

// AddHeadBlock validates signed's signature via verifier, stores the
// caller-supplied stateAfter (the caller has already run the STF against
// the parent's state — see blockproc), inserts the block into the DAG, and
// invokes cb before returning the new BlockRef.
// Errors returned are exactly {Duplicate, MissingParent, Invalid,
// UnviableFork} per spec.md §4.5.
func (d *DAG) AddHeadBlock(verifier Verifier, signed *state.SignedBeaconBlock, stateAfter *state.Data, executionBlockHash primitives.Digest, root primitives.Digest, unviable func(primitives.Digest) bool, cb PostInsertCallback) (*BlockRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.nodes[root]; exists {
		return nil, ErrDuplicate
	}

	parentRoot := signed.Block.ParentRoot
	var parent *BlockRef
	if len(d.nodes) > 0 {
		var ok bool
		parent, ok = d.nodes[parentRoot]
		if !ok {
			return nil, ErrMissingParent
		}
	}

	if unviable != nil && unviable(parentRoot) {
		return nil, ErrUnviableFork
	}

	if verifier != nil {
		if err := verifier.VerifySignedBlock(signed); err != nil {
			return nil, ErrInvalid
		}
	}

	ref := &BlockRef{
		Root:               root,
		ParentRoot:          parentRoot,
		Slot:                signed.Block.Slot,
		ExecutionBlockHash:  executionBlockHash,
		state:               stateAfter,
	}
	d.nodes[root] = ref
	if parent != nil {
		parent.Children = append(parent.Children, root)
	}

	if cb != nil {
		cb(ref, stateAfter)
	}
	return ref, nil
}

// AddBackfillBlock inserts a block that is known to be below the finalized
// slot (historical backfill), bypassing fork-choice weight bookkeeping.
func (d *DAG) AddBackfillBlock(root, parentRoot primitives.Digest, slot primitives.Slot, executionBlockHash primitives.Digest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[root]; exists {
		return
	}
	d.nodes[root] = &BlockRef{Root: root, ParentRoot: parentRoot, Slot: slot, ExecutionBlockHash: executionBlockHash}
}

// FinalizedHead returns the finalized checkpoint's block ref, if known.
func (d *DAG) FinalizedHead() (*BlockRef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ref, ok := d.nodes[d.finalized.Root]
	return ref, ok
}

// FinalizedExecutionBlockHash returns the execution block hash associated
// with the finalized checkpoint, used for forkchoiceUpdated calls
// (spec.md §4.3 step 4/8).
func (d *DAG) FinalizedExecutionBlockHash() primitives.Digest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if ref, ok := d.nodes[d.finalized.Root]; ok {
		return ref.ExecutionBlockHash
	}
	return primitives.Digest{}
}

// Head returns the current cached head root.
func (d *DAG) Head() primitives.Digest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.head
}

// ClearanceState returns the cached *state.Data for root, if the DAG still
// retains it (older states are discarded after pruning).
func (d *DAG) ClearanceState(root primitives.Digest) (*state.Data, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ref, ok := d.nodes[root]
	if !ok || ref.state == nil {
		return nil, false
	}
	return ref.state, true
}

// BlockCount returns the number of blocks retained in the DAG.
func (d *DAG) BlockCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}
