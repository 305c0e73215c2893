// Package consensusmgr wires fork choice, the DAG, the quarantine, and the
// execution engine client together: the "consensus manager glue" of
// spec.md §2/§4.3's `consensus_manager.update_head(wall_slot)` call.
package consensusmgr

import (
	"sync"

	"github.com/eth2031/beacon/beaconclock"
	"github.com/eth2031/beacon/forkchoice"
	"github.com/eth2031/beacon/log"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// Manager owns the pieces spec.md §4.5/§9 describe as sitting above the
// bare DAG: the vote store behind LMD-GHOST and the weak-subjectivity
// checkpoint chain. Notifying the execution engine of the new forkchoice
// state is the block processor's job (spec.md §4.3 step 8, after
// update_head returns); the manager only recomputes the head and prunes.
type Manager struct {
	mu sync.Mutex

	cfg   *params.RuntimeConfig
	dag   *forkchoice.DAG
	votes *forkchoice.VoteStore
	cps   *forkchoice.CheckpointStore
	clock *beaconclock.Clock
	log   *log.Logger

	lastFinalizedEpoch primitives.Epoch
}

// New returns a Manager over an already-constructed DAG.
func New(cfg *params.RuntimeConfig, dag *forkchoice.DAG, clock *beaconclock.Clock, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:   cfg,
		dag:   dag,
		votes: forkchoice.NewVoteStore(),
		cps:   forkchoice.NewCheckpointStore(),
		clock: clock,
		log:   logger.Module("consensusmgr"),
	}
}

// VoteStore exposes the LMD-GHOST vote store so an attestation pool
// (spec.md §4.5's "attestation weights (from the attestation pool)",
// external to this spec's core) can record validator votes that
// UpdateHead will then weigh.
func (m *Manager) VoteStore() *forkchoice.VoteStore {
	return m.votes
}

// SeedGenesis inserts the genesis block and its state directly into the
// DAG, bypassing AddHeadBlock's parent lookup (the DAG is empty, so no
// parent is expected) and seeding the justified/finalized checkpoints at
// epoch 0. Every node after genesis is expected to find a cached parent
// state via this seed or a subsequent successful store.
func (m *Manager) SeedGenesis(root primitives.Digest, genesisBlock *state.SignedBeaconBlock, genesisState *state.Data) error {
	_, err := m.dag.AddHeadBlock(nil, genesisBlock, genesisState, primitives.Digest{}, root, nil, nil)
	if err != nil {
		return err
	}
	cp := primitives.Checkpoint{Epoch: 0, Root: root}
	m.dag.SetJustified(cp)
	m.dag.SetFinalized(cp)
	return nil
}

// UpdateHead recomputes the canonical head via LMD-GHOST, then, if
// finalization advanced, records the new finalized checkpoint in the
// weak-subjectivity chain and prunes the DAG below it (spec.md §4.3
// store_block step "call consensus_manager.update_head(wall_slot)").
func (m *Manager) UpdateHead(wallSlot primitives.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dag.UpdateHead(m.votes, wallSlot)

	finalized := m.dag.FinalizedCheckpoint()
	if finalized.Epoch > m.lastFinalizedEpoch || (finalized.Epoch == 0 && m.lastFinalizedEpoch == 0 && !finalized.Root.IsZero()) {
		currentEpoch := primitives.SlotToEpoch(wallSlot, m.cfg.Preset.SlotsPerEpoch)
		if err := m.cps.CheckWeakSubjectivity(finalized, currentEpoch); err != nil {
			m.log.Warn("finalized checkpoint outside weak subjectivity period", "epoch", finalized.Epoch, "error", err)
		}
		if err := m.cps.Record(finalized); err == nil {
			m.lastFinalizedEpoch = finalized.Epoch
		}
		m.dag.Prune(finalized.Root)
	}
}
