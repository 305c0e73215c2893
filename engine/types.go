// Package engine implements the execution-engine JSON-RPC-over-HTTP client:
// engine_newPayloadV1, engine_forkchoiceUpdatedV1, engine_getPayloadV1
// (spec.md §4.6, §6).
package engine

import (
	"fmt"

	"github.com/holiman/uint256"
)

// PayloadID identifies a payload build job started by forkchoiceUpdated
// with payload attributes, later retrieved via getPayload.
type PayloadID [8]byte

func (p PayloadID) String() string {
	return fmt.Sprintf("%x", p[:])
}

// ExecutionPayloadV1 is the Bellatrix execution-payload wire format, per
// the Engine API. Later payload versions (Shanghai withdrawals, Cancun
// blobs, ...) are out of scope: spec.md caps the data model at Bellatrix.
type ExecutionPayloadV1 struct {
	ParentHash    [32]byte
	FeeRecipient  [20]byte
	StateRoot     [32]byte
	ReceiptsRoot  [32]byte
	LogsBloom     [256]byte
	PrevRandao    [32]byte
	BlockNumber   uint64
	GasLimit      uint64
	GasUsed       uint64
	Timestamp     uint64
	ExtraData     []byte
	BaseFeePerGas *uint256.Int
	BlockHash     [32]byte
	Transactions  [][]byte
}

// ForkchoiceStateV1 carries the consensus layer's view of head/safe/
// finalized execution blocks.
type ForkchoiceStateV1 struct {
	HeadBlockHash      [32]byte
	SafeBlockHash      [32]byte
	FinalizedBlockHash [32]byte
}

// PayloadAttributesV1 requests the execution engine begin building a new
// payload atop HeadBlockHash.
type PayloadAttributesV1 struct {
	Timestamp             uint64
	PrevRandao            [32]byte
	SuggestedFeeRecipient [20]byte
}

// PayloadStatusValue enumerates the execution engine's verdict on a
// submitted payload or forkchoice state (spec.md §4.3 step 3).
type PayloadStatusValue string

const (
	StatusValid               PayloadStatusValue = "VALID"
	StatusInvalid             PayloadStatusValue = "INVALID"
	StatusSyncing             PayloadStatusValue = "SYNCING"
	StatusAccepted            PayloadStatusValue = "ACCEPTED"
	StatusInvalidBlockHash    PayloadStatusValue = "INVALID_BLOCK_HASH"
	StatusInvalidTerminalBlock PayloadStatusValue = "INVALID_TERMINAL_BLOCK"
)

// IsInvalid reports whether v is one of the invalid* statuses spec.md §4.3
// step 5 treats identically: reject without storing.
func (v PayloadStatusValue) IsInvalid() bool {
	return v == StatusInvalid || v == StatusInvalidBlockHash || v == StatusInvalidTerminalBlock
}

// PayloadStatusV1 is the response shape of engine_newPayloadV1 and the
// payloadStatus field of engine_forkchoiceUpdatedV1.
type PayloadStatusV1 struct {
	Status          PayloadStatusValue `json:"status"`
	LatestValidHash *[32]byte          `json:"latestValidHash"`
	ValidationError *string            `json:"validationError"`
}

// ForkchoiceUpdatedResult is the response shape of
// engine_forkchoiceUpdatedV1.
type ForkchoiceUpdatedResult struct {
	PayloadStatus PayloadStatusV1 `json:"payloadStatus"`
	PayloadID     *PayloadID      `json:"payloadId"`
}
