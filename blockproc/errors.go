package blockproc

import "errors"

// Result classifies how a queued block was ultimately resolved, per
// spec.md §6 ("per-block completion futures with variants {Ok, Invalid,
// MissingParent, UnviableFork, Duplicate, Cancelled}").
type Result uint8

const (
	ResultOk Result = iota
	ResultInvalid
	ResultMissingParent
	ResultUnviableFork
	ResultDuplicate
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultInvalid:
		return "invalid"
	case ResultMissingParent:
		return "missing_parent"
	case ResultUnviableFork:
		return "unviable_fork"
	case ResultDuplicate:
		return "duplicate"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Errors surfaced by the processor. Queue-full is deliberately absent: the
// queue is unbounded by contract (spec.md §4.3 "queue full is a programmer
// error").
var (
	ErrClosed        = errors.New("blockproc: processor is shut down")
	ErrInvalidBlock  = errors.New("blockproc: block invalid")
	ErrMissingParent = errors.New("blockproc: parent not in DAG")
	ErrUnviableFork  = errors.New("blockproc: block descends from an unviable branch")
)
