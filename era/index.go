package era

import (
	"encoding/binary"
	"fmt"
)

// Index is the decoded form of an E2Index record body: a start slot and one
// offset per entry. The record body stores each offset signed and wrapping
// (two's-complement) relative to the index record's own start position
// (spec.md §4.7); Offsets holds them resolved to absolute positions.
type Index struct {
	StartSlot uint64
	// Offsets are absolute file positions, already resolved from the
	// relative/wrapping encoding relative to indexStart.
	Offsets []int64
}

// encodeIndexBody serializes an index record body: startSlot (8 LE) |
// offset_0..offset_{n-1} (each 8 LE, signed, relative to indexStart) |
// count (8 LE).
func encodeIndexBody(startSlot uint64, indexStart int64, absoluteOffsets []int64) []byte {
	n := len(absoluteOffsets)
	buf := make([]byte, 8+8*n+8)
	binary.LittleEndian.PutUint64(buf[0:8], startSlot)
	for i, abs := range absoluteOffsets {
		rel := abs - indexStart
		binary.LittleEndian.PutUint64(buf[8+8*i:16+8*i], uint64(rel))
	}
	binary.LittleEndian.PutUint64(buf[8+8*n:16+8*n], uint64(n))
	return buf
}

// decodeIndexBody parses an index record body given the absolute file
// position the index record itself started at (the position of its type
// tag byte).
func decodeIndexBody(body []byte, indexStart int64) (*Index, error) {
	if len(body) < 16 || len(body)%8 != 0 {
		return nil, fmt.Errorf("%w: index body length %d not 16+8n", ErrFormat, len(body))
	}
	count := binary.LittleEndian.Uint64(body[len(body)-8:])
	expected := 16 + 8*count
	if uint64(len(body)) != expected {
		return nil, fmt.Errorf("%w: index declares count %d but body length is %d (want %d)", ErrFormat, count, len(body), expected)
	}

	startSlot := binary.LittleEndian.Uint64(body[0:8])
	offsets := make([]int64, count)
	for i := uint64(0); i < count; i++ {
		rel := int64(binary.LittleEndian.Uint64(body[8+8*i : 16+8*i]))
		offsets[i] = indexStart + rel
	}
	return &Index{StartSlot: startSlot, Offsets: offsets}, nil
}
