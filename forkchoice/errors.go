// Package forkchoice implements the in-memory block DAG and LMD-GHOST
// fork-choice rule with proposer-boost.
package forkchoice

import "errors"

// Errors returned by the DAG, matching the taxonomy in spec.md §4.5/§7.
var (
	ErrDuplicate    = errors.New("forkchoice: duplicate block root")
	ErrMissingParent = errors.New("forkchoice: parent root not found")
	ErrInvalid      = errors.New("forkchoice: block invalid")
	ErrUnviableFork = errors.New("forkchoice: block descends from an unviable branch")
	ErrUnknownBlock = errors.New("forkchoice: unknown block root")
)
