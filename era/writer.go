package era

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
)

// Writer appends blocks and a terminal state to an era file, following
// spec.md §4.7's layout: Version | Block_0...Block_{n-1} | BlockIndex (if
// n>0) | State | StateIndex (1 entry).
type Writer struct {
	f         *os.File
	pos       int64
	startSlot uint64
	offsets   []int64 // absolute position of each block record, by slot-startSlot
}

// NewWriter opens (creating if necessary) an era file at path and writes
// the version marker record, per spec.md's init(handle, startSlot).
func NewWriter(path string, startSlot uint64) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("era: opening %s: %w", path, err)
	}
	w := &Writer{f: f, startSlot: startSlot}
	n, err := writeRecord(f, TypeVersion, nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("era: writing version record: %w", err)
	}
	w.pos += n
	return w, nil
}

// Update appends a Snappy-framed SSZ-encoded signed block at the given
// slot, recording its absolute file offset for the eventual block index.
func (w *Writer) Update(slot uint64, sszBlock []byte) error {
	if slot < w.startSlot {
		return fmt.Errorf("era: slot %d precedes era start slot %d", slot, w.startSlot)
	}
	idx := int(slot - w.startSlot)
	for len(w.offsets) <= idx {
		w.offsets = append(w.offsets, -1)
	}

	framed, err := snappyFrame(sszBlock)
	if err != nil {
		return fmt.Errorf("era: snappy-framing block: %w", err)
	}

	recordStart := w.pos
	n, err := writeRecord(w.f, TypeSnappyBeaconBlock, framed)
	if err != nil {
		return fmt.Errorf("era: writing block record: %w", err)
	}
	w.offsets[idx] = recordStart
	w.pos += n
	return nil
}

// Finish appends the terminal state record, the block index (if any
// blocks were written), and a one-entry state index, per spec.md §4.7.
func (w *Writer) Finish(sszState []byte) error {
	defer w.f.Close()

	if len(w.offsets) > 0 {
		indexStart := w.pos
		absolute := make([]int64, len(w.offsets))
		for i, off := range w.offsets {
			if off < 0 {
				return fmt.Errorf("era: missing block for slot %d", w.startSlot+uint64(i))
			}
			absolute[i] = off
		}
		body := encodeIndexBody(w.startSlot, indexStart, absolute)
		n, err := writeRecord(w.f, TypeIndex, body)
		if err != nil {
			return fmt.Errorf("era: writing block index: %w", err)
		}
		w.pos += n
	}

	stateStart := w.pos
	framed, err := snappyFrame(sszState)
	if err != nil {
		return fmt.Errorf("era: snappy-framing state: %w", err)
	}
	n, err := writeRecord(w.f, TypeSnappyBeaconState, framed)
	if err != nil {
		return fmt.Errorf("era: writing state record: %w", err)
	}
	w.pos += n

	stateIndexStart := w.pos
	body := encodeIndexBody(w.startSlot, stateIndexStart, []int64{stateStart})
	if _, err := writeRecord(w.f, TypeIndex, body); err != nil {
		return fmt.Errorf("era: writing state index: %w", err)
	}
	return nil
}

func snappyFrame(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	sw := snappy.NewBufferedWriter(&buf)
	if _, err := sw.Write(data); err != nil {
		return nil, err
	}
	if err := sw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snappyUnframe(data []byte) ([]byte, error) {
	sr := snappy.NewReader(bytes.NewReader(data))
	return io.ReadAll(sr)
}
