package era

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Reader provides random-access reads over an era file's block and state
// records, located via the file's trailing self-describing index records
// (spec.md §4.7).
type Reader struct {
	f    *os.File
	size int64

	blockIndex *Index // nil if the era has no blocks
	stateIndex *Index
}

// Open parses an era file's trailing indices (state index always present;
// block index present only if the era has at least one block) without
// reading any block/state bodies yet.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("era: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r := &Reader{f: f, size: info.Size()}

	stateIndex, stateIndexStart, err := readTrailingIndexAt(f, r.size)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("era: reading state index: %w", err)
	}
	if err := validateIndex(stateIndex, r.size); err != nil {
		f.Close()
		return nil, err
	}
	if len(stateIndex.Offsets) != 1 {
		f.Close()
		return nil, fmt.Errorf("%w: state index must have exactly one entry, got %d", ErrFormat, len(stateIndex.Offsets))
	}
	r.stateIndex = stateIndex

	stateRecordStart := stateIndex.Offsets[0]
	if stateRecordStart > 0 {
		if blockIndex, _, err := readTrailingIndexAt(f, stateRecordStart); err == nil {
			if verr := validateIndex(blockIndex, r.size); verr == nil {
				r.blockIndex = blockIndex
			}
		}
	}
	_ = stateIndexStart

	return r, nil
}

// readTrailingIndexAt reads backward from endPos (the absolute position
// immediately after an index record's final byte) to locate and decode
// that index record: first the trailing 8-byte count field, then the
// computed record start.
func readTrailingIndexAt(f *os.File, endPos int64) (*Index, int64, error) {
	if endPos < 8 {
		return nil, 0, fmt.Errorf("%w: not enough bytes before position %d for a count field", ErrFormat, endPos)
	}
	var countBuf [8]byte
	if _, err := f.ReadAt(countBuf[:], endPos-8); err != nil {
		return nil, 0, err
	}
	count := binary.LittleEndian.Uint64(countBuf[:])

	bodyLen := int64(16 + 8*count)
	recordStart := endPos - HeaderSize - bodyLen
	if recordStart < 0 {
		return nil, 0, fmt.Errorf("%w: computed index record start %d is negative", ErrFormat, recordStart)
	}

	section := io.NewSectionReader(f, recordStart, HeaderSize+bodyLen)
	t, body, err := readRecord(section)
	if err != nil {
		return nil, 0, err
	}
	if t != TypeIndex {
		return nil, 0, fmt.Errorf("%w: expected index record, got type 0x%04x", ErrUnexpectedType, t)
	}

	idx, err := decodeIndexBody(body, recordStart)
	if err != nil {
		return nil, 0, err
	}
	return idx, recordStart, nil
}

// validateIndex checks the structural bounds spec.md §4.7 requires of a
// decoded index: count fits the file, every offset is in range, and the
// start slot fits a 32-bit sanity check.
func validateIndex(idx *Index, fileSize int64) error {
	maxCount := fileSize/8 - 3
	if maxCount < 0 {
		maxCount = 0
	}
	if int64(len(idx.Offsets)) > maxCount {
		return fmt.Errorf("%w: index declares %d entries, file can hold at most %d", ErrFormat, len(idx.Offsets), maxCount)
	}
	for _, off := range idx.Offsets {
		if off < 0 || off > fileSize {
			return fmt.Errorf("%w: offset %d out of file bounds [0,%d]", ErrFormat, off, fileSize)
		}
	}
	if idx.StartSlot > math.MaxUint32 {
		return fmt.Errorf("%w: start slot %d does not fit in 32 bits", ErrFormat, idx.StartSlot)
	}
	return nil
}

// BlockCount returns the number of blocks indexed in this era (0 if none).
func (r *Reader) BlockCount() int {
	if r.blockIndex == nil {
		return 0
	}
	return len(r.blockIndex.Offsets)
}

// StartSlot returns the era's first slot.
func (r *Reader) StartSlot() uint64 {
	return r.stateIndex.StartSlot
}

// Block returns the Snappy-unframed SSZ bytes of the block at the given
// index within this era (0-based, relative to StartSlot).
func (r *Reader) Block(i int) ([]byte, error) {
	if r.blockIndex == nil || i < 0 || i >= len(r.blockIndex.Offsets) {
		return nil, fmt.Errorf("%w: block index %d out of range", ErrFormat, i)
	}
	return r.readRecordBodyAt(r.blockIndex.Offsets[i], TypeSnappyBeaconBlock)
}

// State returns the Snappy-unframed SSZ bytes of the era's terminal state.
func (r *Reader) State() ([]byte, error) {
	return r.readRecordBodyAt(r.stateIndex.Offsets[0], TypeSnappyBeaconState)
}

func (r *Reader) readRecordBodyAt(pos int64, want RecordType) ([]byte, error) {
	section := io.NewSectionReader(r.f, pos, r.size-pos)
	t, body, err := readRecord(section)
	if err != nil {
		return nil, err
	}
	if t != want {
		return nil, fmt.Errorf("%w: expected type 0x%04x at offset %d, got 0x%04x", ErrUnexpectedType, want, pos, t)
	}
	return snappyUnframe(body)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
