package blockproc

import (
	"context"
	"testing"

	"github.com/eth2031/beacon/beaconclock"
	"github.com/eth2031/beacon/engine"
	"github.com/eth2031/beacon/forkchoice"
	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/quarantine"
	"github.com/eth2031/beacon/ssz"
	"github.com/eth2031/beacon/state"
	"github.com/eth2031/beacon/transition"
)

// stubStateTransition replaces the real state-transition function for these
// tests: it only advances the clone's slot, so the tests exercise the
// queue/quarantine/DAG plumbing (spec.md §8 scenarios 3-4) independent of
// full state-transition correctness, which package transition covers on its
// own.
func stubStateTransition(_ *params.RuntimeConfig, st *state.Data, signed *state.SignedBeaconBlock, _ transition.Flag, _ *ssz.Cache) error {
	st.SlotValue = signed.Block.Slot
	return nil
}

func testDigest(b byte) primitives.Digest {
	var d primitives.Digest
	d[0] = b
	return d
}

func testBlock(slot primitives.Slot, parentRoot primitives.Digest) *state.SignedBeaconBlock {
	return &state.SignedBeaconBlock{
		Block: state.BeaconBlock{
			Fork:       params.ForkPhase0,
			Slot:       slot,
			ParentRoot: parentRoot,
		},
	}
}

type fakeEngineClient struct {
	newPayloadStatus engine.PayloadStatusValue
	fcuCalls         []engine.ForkchoiceStateV1
}

func (f *fakeEngineClient) NewPayload(_ context.Context, _ *engine.ExecutionPayloadV1) (*engine.PayloadStatusV1, error) {
	status := f.newPayloadStatus
	if status == "" {
		status = engine.StatusValid
	}
	return &engine.PayloadStatusV1{Status: status}, nil
}

func (f *fakeEngineClient) ForkchoiceUpdated(_ context.Context, fcState engine.ForkchoiceStateV1, _ *engine.PayloadAttributesV1) (*engine.ForkchoiceUpdatedResult, error) {
	f.fcuCalls = append(f.fcuCalls, fcState)
	return &engine.ForkchoiceUpdatedResult{PayloadStatus: engine.PayloadStatusV1{Status: engine.StatusValid}}, nil
}

type fakeConsensusManager struct {
	calls []primitives.Slot
}

func (f *fakeConsensusManager) UpdateHead(wallSlot primitives.Slot) {
	f.calls = append(f.calls, wallSlot)
}

// drainQueue processes every entry currently queued. The test is the sole
// producer and consumer, so checking len() before popFirst can never race.
func drainQueue(p *Processor, ctx context.Context) {
	for p.queue.len() > 0 {
		entry, ok := p.queue.popFirst()
		if !ok {
			return
		}
		p.processEntry(ctx, entry)
	}
}

func newTestProcessor(t *testing.T, engineCli EngineClient, consensus ConsensusManager) (*Processor, *forkchoice.DAG, primitives.Digest) {
	t.Helper()
	prev := stateTransitionFn
	stateTransitionFn = stubStateTransition
	t.Cleanup(func() { stateTransitionFn = prev })

	dag := forkchoice.New()
	genesisRoot := testDigest(0xaa)
	if _, err := dag.AddHeadBlock(nil, testBlock(0, primitives.Digest{}), &state.Data{}, primitives.Digest{}, genesisRoot, nil, nil); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	q := quarantine.New(quarantine.DefaultConfig())
	clock := beaconclock.New(0, 12)
	cfg := DefaultConfig()
	rcfg := params.DefaultRuntimeConfig()

	p := New(cfg, rcfg, dag, q, engineCli, nil, consensus, clock, nil, nil)
	return p, dag, genesisRoot
}

// TestProcessor_OrphanThenReunion covers spec.md §8 scenario 3: a child
// block arrives before its parent, is quarantined as an orphan, and is
// released and stored once the parent arrives.
func TestProcessor_OrphanThenReunion(t *testing.T) {
	consensus := &fakeConsensusManager{}
	p, dag, genesisRoot := newTestProcessor(t, &fakeEngineClient{}, consensus)
	ctx := context.Background()

	blockA := testBlock(1, genesisRoot)
	rootA, err := transition.BlockRoot(blockA)
	if err != nil {
		t.Fatalf("BlockRoot(A): %v", err)
	}

	blockB := testBlock(2, rootA)
	rootB, err := transition.BlockRoot(blockB)
	if err != nil {
		t.Fatalf("BlockRoot(B): %v", err)
	}

	// B arrives first; its parent A is unknown to the DAG.
	futureB, err := p.AddBlock(SourceGossip, blockB, 0)
	if err != nil {
		t.Fatalf("AddBlock(B): %v", err)
	}
	drainQueue(p, ctx)
	if got := futureB.Wait(); got != ResultMissingParent {
		t.Fatalf("expected ResultMissingParent for orphaned B, got %v", got)
	}
	if dag.HasBlock(rootB) {
		t.Fatal("B must not be in the DAG while its parent is missing")
	}

	// A arrives, completing the chain; storing it must release and
	// reprocess the quarantined B.
	futureA, err := p.AddBlock(SourceGossip, blockA, 0)
	if err != nil {
		t.Fatalf("AddBlock(A): %v", err)
	}
	drainQueue(p, ctx)
	if got := futureA.Wait(); got != ResultOk {
		t.Fatalf("expected ResultOk for A, got %v", got)
	}

	if !dag.HasBlock(rootA) {
		t.Fatal("expected A to be stored in the DAG")
	}
	if !dag.HasBlock(rootB) {
		t.Fatal("expected B to be released from quarantine and stored in the DAG")
	}
	if p.quarantine.OrphanCount() != 0 {
		t.Fatalf("expected quarantine to be empty after reunion, got %d orphans", p.quarantine.OrphanCount())
	}
}

// TestProcessor_OptimisticSync covers spec.md §8 scenario 4: an
// optimistic-sync block issues exactly one forkchoiceUpdated call and never
// enters the DAG via store_block.
func TestProcessor_OptimisticSync(t *testing.T) {
	engineCli := &fakeEngineClient{newPayloadStatus: engine.StatusValid}
	consensus := &fakeConsensusManager{}
	p, dag, genesisRoot := newTestProcessor(t, engineCli, consensus)
	ctx := context.Background()

	block := testBlock(1, genesisRoot)
	block.Block.Fork = params.ForkBellatrix
	block.Block.Body.ExecutionPayload = &state.ExecutionPayload{
		ParentHash:  testDigest(0x10),
		BlockHash:   testDigest(0x20),
		BlockNumber: 1,
	}
	root, err := transition.BlockRoot(block)
	if err != nil {
		t.Fatalf("BlockRoot: %v", err)
	}

	future, err := p.AddBlock(SourceOptimisticSync, block, 0)
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	drainQueue(p, ctx)

	if got := future.Wait(); got != ResultOk {
		t.Fatalf("expected ResultOk, got %v", got)
	}
	if dag.HasBlock(root) {
		t.Fatal("an optimistic-sync block must never be inserted into the DAG directly")
	}
	if len(engineCli.fcuCalls) != 1 {
		t.Fatalf("expected exactly one forkchoiceUpdated call, got %d", len(engineCli.fcuCalls))
	}
	if got := primitives.Digest(engineCli.fcuCalls[0].HeadBlockHash); got != block.Block.Body.ExecutionPayload.BlockHash {
		t.Fatalf("expected forkchoiceUpdated head %v, got %v", block.Block.Body.ExecutionPayload.BlockHash, got)
	}
	if len(consensus.calls) != 0 {
		t.Fatal("optimistic-sync path must not call consensus_manager.update_head")
	}
}
