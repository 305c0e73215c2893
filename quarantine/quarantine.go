// Package quarantine holds blocks whose parent is unknown, tracks unviable
// branches, and releases descendants once their parent lands (spec.md §4.4).
package quarantine

import (
	"container/list"
	"sync"

	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// EvictionPolicy selects how add_orphan behaves once the orphan set is at
// capacity (spec.md §9 open question, resolved: LRU by default).
type EvictionPolicy uint8

const (
	EvictLRU EvictionPolicy = iota
	EvictDropNewest
)

// Config bounds the quarantine's orphan capacity and selects the eviction
// policy applied once that capacity is reached.
type Config struct {
	MaxOrphans     int
	EvictionPolicy EvictionPolicy
}

// DefaultConfig returns a quarantine configuration bounding the orphan set
// to a few hundred entries, evicted LRU.
func DefaultConfig() Config {
	return Config{MaxOrphans: 256, EvictionPolicy: EvictLRU}
}

type orphanEntry struct {
	root       primitives.Digest
	parentRoot primitives.Digest
	block      *state.SignedBeaconBlock
	elem       *list.Element
}

// Quarantine tracks three disjoint sets keyed by block root: missing
// (advertised but not yet received), orphan (received, parent unknown),
// and unviable (descendant of a branch that will never be canonical).
type Quarantine struct {
	mu sync.Mutex

	cfg Config

	missing map[primitives.Digest]bool
	orphans map[primitives.Digest]*orphanEntry
	// byParent indexes orphans by their parent root for pop().
	byParent map[primitives.Digest][]primitives.Digest
	unviable map[primitives.Digest]bool

	lru *list.List // front = most recently used
}

// New returns an empty Quarantine with the given configuration.
func New(cfg Config) *Quarantine {
	return &Quarantine{
		cfg:      cfg,
		missing:  make(map[primitives.Digest]bool),
		orphans:  make(map[primitives.Digest]*orphanEntry),
		byParent: make(map[primitives.Digest][]primitives.Digest),
		unviable: make(map[primitives.Digest]bool),
		lru:      list.New(),
	}
}

// AddMissing records root as advertised but not yet received.
func (q *Quarantine) AddMissing(root primitives.Digest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.missing[root] = true
}

// RemoveMissing clears root from the missing set.
func (q *Quarantine) RemoveMissing(root primitives.Digest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.missing, root)
}

// IsMissing reports whether root is currently marked missing.
func (q *Quarantine) IsMissing(root primitives.Digest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.missing[root]
}

// AddOrphan records a received block whose parent is unknown. Returns
// false if the orphan set is at capacity and EvictDropNewest is configured
// (the new entry is dropped); with EvictLRU (the default), the
// least-recently-added orphan is evicted instead and true is returned.
func (q *Quarantine) AddOrphan(root, parentRoot primitives.Digest, block *state.SignedBeaconBlock) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unviable[parentRoot] {
		q.unviable[root] = true
		return false
	}

	if _, exists := q.orphans[root]; exists {
		q.touch(q.orphans[root])
		return true
	}

	if len(q.orphans) >= q.cfg.MaxOrphans {
		switch q.cfg.EvictionPolicy {
		case EvictDropNewest:
			return false
		default:
			q.evictLRU()
		}
	}

	entry := &orphanEntry{root: root, parentRoot: parentRoot, block: block}
	entry.elem = q.lru.PushFront(entry)
	q.orphans[root] = entry
	q.byParent[parentRoot] = append(q.byParent[parentRoot], root)
	return true
}

func (q *Quarantine) touch(e *orphanEntry) {
	q.lru.MoveToFront(e.elem)
}

func (q *Quarantine) evictLRU() {
	back := q.lru.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*orphanEntry)
	q.removeOrphanLocked(entry)
}

func (q *Quarantine) removeOrphanLocked(e *orphanEntry) {
	q.lru.Remove(e.elem)
	delete(q.orphans, e.root)
	siblings := q.byParent[e.parentRoot]
	for i, r := range siblings {
		if r == e.root {
			q.byParent[e.parentRoot] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(q.byParent[e.parentRoot]) == 0 {
		delete(q.byParent, e.parentRoot)
	}
}

// Pop returns and removes every orphan whose parent_root == root, in no
// specified order.
func (q *Quarantine) Pop(root primitives.Digest) []*state.SignedBeaconBlock {
	q.mu.Lock()
	defer q.mu.Unlock()

	children := q.byParent[root]
	if len(children) == 0 {
		return nil
	}
	out := make([]*state.SignedBeaconBlock, 0, len(children))
	// Copy since removeOrphanLocked mutates q.byParent[root] in place.
	toRemove := append([]primitives.Digest(nil), children...)
	for _, childRoot := range toRemove {
		entry := q.orphans[childRoot]
		if entry == nil {
			continue
		}
		out = append(out, entry.block)
		q.removeOrphanLocked(entry)
	}
	return out
}

// RemoveOrphan evicts root from the orphan set directly, without requiring
// its parent to land first. store_block calls this for a block that was
// previously quarantined but is now being stored via a different path
// (spec.md §4.3 "remove the block from the quarantine missing-set and
// orphan-set").
func (q *Quarantine) RemoveOrphan(root primitives.Digest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.orphans[root]
	if !ok {
		return
	}
	q.removeOrphanLocked(entry)
}

// MarkUnviable adds root to the unviable set. Unviability is transitive:
// every current orphan descending from root (directly, by parent_root) is
// also marked unviable and evicted from the orphan set.
func (q *Quarantine) MarkUnviable(root primitives.Digest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.markUnviableLocked(root)
}

func (q *Quarantine) markUnviableLocked(root primitives.Digest) {
	if q.unviable[root] {
		return
	}
	q.unviable[root] = true

	children := append([]primitives.Digest(nil), q.byParent[root]...)
	for _, childRoot := range children {
		entry := q.orphans[childRoot]
		if entry == nil {
			continue
		}
		q.removeOrphanLocked(entry)
		q.markUnviableLocked(childRoot)
	}
}

// IsUnviable reports whether root is in the unviable set.
func (q *Quarantine) IsUnviable(root primitives.Digest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unviable[root]
}

// OrphanCount returns the number of orphans currently held.
func (q *Quarantine) OrphanCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.orphans)
}
