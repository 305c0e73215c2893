// Package blockproc implements the single-consumer async block ingest
// queue described by spec.md §4.3: it serializes consensus verification,
// dispatches execution-payload verification to the execution engine, and
// reconciles optimistic vs. verified head selection.
package blockproc

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/eth2031/beacon/beaconclock"
	"github.com/eth2031/beacon/engine"
	"github.com/eth2031/beacon/forkchoice"
	"github.com/eth2031/beacon/log"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/quarantine"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
	"github.com/eth2031/beacon/transition"
)

// blockRootFn is a seam so tests can stub block-root computation without
// exercising the full SSZ body hash, matching transition.go's
// verifySignature seam pattern.
var blockRootFn = transition.BlockRoot

// stateTransitionFn is a seam so tests can stub the state-transition call
// itself, exercising the queue/quarantine/DAG plumbing in isolation from
// full state-transition correctness (covered separately in package
// transition), matching blockRootFn's seam pattern above.
var stateTransitionFn = transition.StateTransition

// EngineClient is the subset of *engine.Client the processor needs
// (spec.md §4.6). Defined as an interface so tests can stand in a fake
// execution engine without an HTTP server.
type EngineClient interface {
	NewPayload(ctx context.Context, payload *engine.ExecutionPayloadV1) (*engine.PayloadStatusV1, error)
	ForkchoiceUpdated(ctx context.Context, state engine.ForkchoiceStateV1, attrs *engine.PayloadAttributesV1) (*engine.ForkchoiceUpdatedResult, error)
}

// ValidatorMonitor is the external collaborator named in spec.md §6:
// register_beacon_block, register_attestation_in_block,
// register_sync_aggregate_in_block.
type ValidatorMonitor interface {
	RegisterBeaconBlock(root primitives.Digest, slot primitives.Slot, proposer primitives.ValidatorIndex)
	RegisterAttestationInBlock(att *state.Attestation, blockRoot primitives.Digest)
	RegisterSyncAggregateInBlock(agg *state.SyncAggregate, blockRoot primitives.Digest)
}

// ConsensusManager is the narrow callback surface the processor needs
// from the consensus-manager glue (spec.md §4.3 store_block step "call
// consensus_manager.update_head(wall_slot)").
type ConsensusManager interface {
	UpdateHead(wallSlot primitives.Slot)
}

// Config configures the processor's timing and state-transition flags.
type Config struct {
	// IdleYield is the bounded idle timeout the consumer loop waits
	// between iterations, per spec.md §4.3 step 1 ("so networking can
	// make progress even under load").
	IdleYield time.Duration
	Flags     transition.Flag
}

// DefaultConfig returns spec.md's default ~10ms idle yield.
func DefaultConfig() Config {
	return Config{IdleYield: 10 * time.Millisecond}
}

// Processor is the single-consumer async block ingest queue (spec.md
// §4.3).
type Processor struct {
	cfg  Config
	rcfg *params.RuntimeConfig

	dag        *forkchoice.DAG
	quarantine *quarantine.Quarantine
	engineCli  EngineClient
	monitor    ValidatorMonitor
	consensus  ConsensusManager
	clock      *beaconclock.Clock
	verifier   forkchoice.Verifier

	queue   *queue
	log     *log.Logger
	metrics *processorMetrics
}

// New returns a Processor wired to its collaborators. monitor may be nil
// (no validator-monitoring hooks are invoked).
func New(cfg Config, rcfg *params.RuntimeConfig, dag *forkchoice.DAG, q *quarantine.Quarantine, engineCli EngineClient, monitor ValidatorMonitor, consensus ConsensusManager, clock *beaconclock.Clock, verifier forkchoice.Verifier, logger *log.Logger) *Processor {
	if cfg.IdleYield <= 0 {
		cfg.IdleYield = 10 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		cfg:        cfg,
		rcfg:       rcfg,
		dag:        dag,
		quarantine: q,
		engineCli:  engineCli,
		monitor:    monitor,
		consensus:  consensus,
		clock:      clock,
		verifier:   verifier,
		queue:      newQueue(),
		log:        logger.Module("blockproc"),
		metrics:    newProcessorMetrics(),
	}
}

// AddBlock enqueues a block for asynchronous processing and returns a
// future resolving to its eventual Result. Blocks at or below the
// finalized head's slot bypass the queue and are stored synchronously via
// store_backfill_block (spec.md §4.3).
func (p *Processor) AddBlock(src Source, block *state.SignedBeaconBlock, validationDuration time.Duration) (*ResultFuture, error) {
	root, err := blockRootFn(block)
	if err != nil {
		return nil, err
	}

	if finalizedRef, ok := p.dag.FinalizedHead(); ok && block.Block.Slot <= finalizedRef.Slot {
		p.storeBackfillBlock(block, root)
		future := newResultFuture()
		future.complete(ResultOk)
		return future, nil
	}

	entry := &BlockEntry{Source: src, Block: block, ValidationDuration: validationDuration, future: newResultFuture()}
	if !p.queue.push(entry) {
		entry.future.complete(ResultCancelled)
		return entry.future, ErrClosed
	}
	p.metrics.queueDepth.Set(int64(p.queue.len()))
	return entry.future, nil
}

// HasBlocks reports whether the queue currently holds any entries.
func (p *Processor) HasBlocks() bool {
	return p.queue.len() > 0
}

// RunQueueLoop runs the cooperative single-consumer loop until ctx is
// cancelled or Shutdown is called (spec.md §4.3/§5).
func (p *Processor) RunQueueLoop(ctx context.Context) {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Shutdown()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		entry, ok := p.queue.popFirst()
		if !ok {
			return
		}
		p.metrics.queueDepth.Set(int64(p.queue.len()))

		start := time.Now()
		p.processEntry(ctx, entry)
		p.metrics.processTime.Observe(time.Since(start).Seconds())

		select {
		case <-ctx.Done():
		case <-time.After(p.cfg.IdleYield):
		}
	}
}

// Shutdown closes the queue and resolves every remaining entry's future
// with Cancelled (spec.md §5 "Shutdown drains in-flight result callbacks
// with Cancelled").
func (p *Processor) Shutdown() {
	for _, entry := range p.queue.close() {
		entry.future.complete(ResultCancelled)
	}
}

func (p *Processor) processEntry(ctx context.Context, entry *BlockEntry) {
	root, err := blockRootFn(entry.Block)
	if err != nil {
		entry.future.complete(ResultInvalid)
		p.metrics.record(ResultInvalid)
		return
	}

	wallSlot := p.clock.CurrentSlot()
	payload := entry.Block.Block.Body.ExecutionPayload
	status := engine.StatusValid
	if payload != nil && !payload.IsZero() {
		result, err := p.engineCli.NewPayload(ctx, toEnginePayload(payload))
		if err != nil {
			// Transport errors are non-fatal and map to syncing
			// (spec.md §4.6/§7).
			status = engine.StatusSyncing
		} else {
			status = result.Status
		}
	}

	if entry.Source == SourceOptimisticSync {
		p.optimisticForkchoiceUpdated(ctx, entry)
		entry.future.complete(ResultOk)
		return
	}

	switch {
	case status.IsInvalid():
		entry.future.complete(ResultInvalid)
		p.metrics.record(ResultInvalid)
		p.log.Warn("invalid execution payload", "root", root, "slot", entry.Block.Block.Slot, "proposer", entry.Block.Block.ProposerIndex, "status", status)
	case status == engine.StatusValid:
		result := p.storeBlock(ctx, root, entry, wallSlot)
		entry.future.complete(result)
		p.metrics.record(result)
		if result == ResultOk {
			p.forkchoiceUpdated(ctx)
		}
	default: // syncing, accepted
		entry.future.complete(ResultMissingParent)
		p.metrics.record(ResultMissingParent)
	}
}

// storeBlock is spec.md §4.3's store_block: reconcile with the quarantine,
// run the state transition against the parent's cached state, insert into
// the DAG, and (on success) advance head and release quarantined children.
func (p *Processor) storeBlock(ctx context.Context, root primitives.Digest, entry *BlockEntry, wallSlot primitives.Slot) Result {
	p.quarantine.RemoveMissing(root)
	p.quarantine.RemoveOrphan(root)

	parentRoot := entry.Block.Block.ParentRoot
	// The DAG is expected to already hold a cached state for every block it
	// contains, including the genesis block seeded by the consensus
	// manager at startup; a missing parent state is always treated as a
	// missing parent, never as an implicit genesis.
	parentState, hasParent := p.dag.ClearanceState(parentRoot)
	if !hasParent {
		return p.handleMissingParent(root, parentRoot, entry)
	}

	stateAfter := parentState.Clone()
	// A fresh cache per call, not one held for the Processor's lifetime:
	// the cache only memoizes subtrees within a single state_transition
	// call (spec.md §4.1); reusing it across unrelated blocks would let a
	// later block's hash-tree-root computation read a root memoized
	// against an earlier, unrelated state.
	cache := ssz.NewCache()
	if err := stateTransitionFn(p.rcfg, stateAfter, entry.Block, p.cfg.Flags, cache); err != nil {
		p.log.Warn("block invalid", "root", root, "slot", entry.Block.Block.Slot, "proposer", entry.Block.Block.ProposerIndex, "error", err)
		return ResultInvalid
	}

	executionBlockHash := primitives.Digest{}
	if payload := entry.Block.Block.Body.ExecutionPayload; payload != nil {
		executionBlockHash = payload.BlockHash
	}

	cb := func(ref *forkchoice.BlockRef, st *state.Data) {
		if p.monitor == nil {
			return
		}
		p.monitor.RegisterBeaconBlock(ref.Root, ref.Slot, entry.Block.Block.ProposerIndex)
		for i := range entry.Block.Block.Body.Attestations {
			p.monitor.RegisterAttestationInBlock(&entry.Block.Block.Body.Attestations[i], ref.Root)
		}
		if agg := entry.Block.Block.Body.SyncAggregate; agg != nil {
			p.monitor.RegisterSyncAggregateInBlock(agg, ref.Root)
		}
	}

	_, err := p.dag.AddHeadBlock(p.verifier, entry.Block, stateAfter, executionBlockHash, root, p.quarantine.IsUnviable, cb)
	switch {
	case err == nil:
		p.dag.SetFinalized(stateAfter.FinalizedCheckpoint())
		p.dag.SetJustified(stateAfter.CurrentJustifiedCheckpoint())
		if entry.Block.Block.Slot == wallSlot {
			epoch := primitives.SlotToEpoch(stateAfter.Slot(), p.rcfg.Preset.SlotsPerEpoch)
			totalActive := stateAfter.TotalActiveBalance(epoch, p.rcfg.Preset)
			boost := totalActive * p.rcfg.ProposerScoreBoost / 100
			p.dag.SetProposerBoost(root, wallSlot, boost)
		}
		p.consensus.UpdateHead(wallSlot)
		p.releaseChildren(root)
		return ResultOk
	case errors.Is(err, forkchoice.ErrMissingParent):
		return p.handleMissingParent(root, parentRoot, entry)
	case errors.Is(err, forkchoice.ErrUnviableFork):
		p.quarantine.MarkUnviable(root)
		return ResultUnviableFork
	case errors.Is(err, forkchoice.ErrDuplicate):
		return ResultDuplicate
	default:
		return ResultInvalid
	}
}

func (p *Processor) handleMissingParent(root, parentRoot primitives.Digest, entry *BlockEntry) Result {
	if p.quarantine.IsUnviable(parentRoot) {
		p.quarantine.MarkUnviable(root)
		return ResultUnviableFork
	}
	p.quarantine.AddOrphan(root, parentRoot, entry.Block)
	return ResultMissingParent
}

// releaseChildren pops every quarantined orphan whose parent is root and
// re-enqueues it, in the order the quarantine returns them (spec.md §4.3
// "pop and re-enqueue any children of this block from the quarantine").
func (p *Processor) releaseChildren(root primitives.Digest) {
	for _, child := range p.quarantine.Pop(root) {
		if _, err := p.AddBlock(SourceRequest, child, 0); err != nil {
			p.log.Warn("failed to re-enqueue released child", "error", err)
		}
	}
}

func (p *Processor) storeBackfillBlock(block *state.SignedBeaconBlock, root primitives.Digest) {
	executionBlockHash := primitives.Digest{}
	if payload := block.Block.Body.ExecutionPayload; payload != nil {
		executionBlockHash = payload.BlockHash
	}
	p.dag.AddBackfillBlock(root, block.Block.ParentRoot, block.Block.Slot, executionBlockHash)
}

// optimisticForkchoiceUpdated implements spec.md §4.3 step 4: the payload
// has already been executed, so issue forkchoiceUpdated toward either the
// DAG's verified head (if within VerifiedHeadPreferenceSlots of the
// optimistic head) or the optimistic head itself.
func (p *Processor) optimisticForkchoiceUpdated(ctx context.Context, entry *BlockEntry) {
	payload := entry.Block.Block.Body.ExecutionPayload
	if payload == nil {
		return
	}

	headHash := payload.BlockHash
	if verifiedRef, ok := p.dag.GetRef(p.dag.Head()); ok {
		if verifiedRef.Slot >= entry.Block.Block.Slot || uint64(entry.Block.Block.Slot-verifiedRef.Slot) <= p.rcfg.Preset.VerifiedHeadPreferenceSlots {
			headHash = verifiedRef.ExecutionBlockHash
		}
	}

	fcState := engine.ForkchoiceStateV1{
		HeadBlockHash:      [32]byte(headHash),
		FinalizedBlockHash: [32]byte(p.dag.FinalizedExecutionBlockHash()),
	}
	if _, err := p.engineCli.ForkchoiceUpdated(ctx, fcState, nil); err != nil {
		p.log.Warn("optimistic forkchoiceUpdated failed", "error", err)
	}
	p.metrics.fcuCalls.Inc()
}

// forkchoiceUpdated implements spec.md §4.3 step 8: after a successful
// store, notify the execution engine of the new head and finalized hashes
// with a bounded, non-fatal timeout.
func (p *Processor) forkchoiceUpdated(ctx context.Context) {
	headRef, ok := p.dag.GetRef(p.dag.Head())
	if !ok {
		return
	}
	fcState := engine.ForkchoiceStateV1{
		HeadBlockHash:      [32]byte(headRef.ExecutionBlockHash),
		FinalizedBlockHash: [32]byte(p.dag.FinalizedExecutionBlockHash()),
	}
	if _, err := p.engineCli.ForkchoiceUpdated(ctx, fcState, nil); err != nil {
		p.log.Warn("forkchoiceUpdated failed", "error", err)
	}
	p.metrics.fcuCalls.Inc()
}

func toEnginePayload(p *state.ExecutionPayload) *engine.ExecutionPayloadV1 {
	baseFee := new(uint256.Int).SetBytes32(&p.BaseFeePerGas)
	return &engine.ExecutionPayloadV1{
		ParentHash:    [32]byte(p.ParentHash),
		FeeRecipient:  p.FeeRecipient,
		StateRoot:     [32]byte(p.StateRoot),
		ReceiptsRoot:  [32]byte(p.ReceiptsRoot),
		LogsBloom:     p.LogsBloom,
		PrevRandao:    [32]byte(p.PrevRandao),
		BlockNumber:   p.BlockNumber,
		GasLimit:      p.GasLimit,
		GasUsed:       p.GasUsed,
		Timestamp:     p.Timestamp,
		ExtraData:     p.ExtraData,
		BaseFeePerGas: baseFee,
		BlockHash:     [32]byte(p.BlockHash),
		Transactions:  p.Transactions,
	}
}
