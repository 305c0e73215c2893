package blockproc

import (
	"time"

	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// Source identifies where a block entered the pipeline from, per spec.md
// §4.3/§6.
type Source uint8

const (
	SourceGossip Source = iota
	SourceSync
	SourceRequest
	SourceOptimisticSync
)

func (s Source) String() string {
	switch s {
	case SourceGossip:
		return "gossip"
	case SourceSync:
		return "sync"
	case SourceRequest:
		return "request"
	case SourceOptimisticSync:
		return "optimistic_sync"
	default:
		return "unknown"
	}
}

// ResultFuture is the per-block completion handle producers may await
// (spec.md §6 "per-block completion futures"). It resolves at most once;
// completing it twice is a no-op.
type ResultFuture struct {
	ch chan Result
}

func newResultFuture() *ResultFuture {
	return &ResultFuture{ch: make(chan Result, 1)}
}

// Wait blocks until the future resolves.
func (f *ResultFuture) Wait() Result {
	if f == nil {
		return ResultOk
	}
	return <-f.ch
}

// Done returns a channel that receives exactly one Result.
func (f *ResultFuture) Done() <-chan Result {
	return f.ch
}

func (f *ResultFuture) complete(r Result) {
	if f == nil {
		return
	}
	select {
	case f.ch <- r:
	default:
		// Already resolved; every queue item's future MUST resolve exactly
		// once (spec.md §8), so a second completion attempt is a caller bug
		// rather than something to silently overwrite.
	}
}

// BlockEntry is one item in the processing queue: a signed block from a
// given source, the future its result is reported on, and how long the
// network layer spent on gossip validation before handing it off (used for
// metrics, not for any consensus decision).
type BlockEntry struct {
	Source             Source
	Block              *state.SignedBeaconBlock
	ValidationDuration time.Duration

	future *ResultFuture
}

// root is a convenience accessor used by tests and callers that already
// computed the block's root before enqueueing.
func (e *BlockEntry) root() (primitives.Digest, error) {
	return blockRootFn(e.Block)
}
