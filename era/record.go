// Package era implements the append-only, length-prefixed, Snappy-framed
// era archive file format for checkpointed block/state history
// (spec.md §4.7).
package era

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RecordType is the 2-byte little-endian type tag at the start of every
// record header.
type RecordType uint16

const (
	TypeVersion           RecordType = 0x6532
	TypeSnappyBeaconBlock RecordType = 0x0100
	TypeSnappyBeaconState RecordType = 0x0200
	TypeIndex             RecordType = 0x6932
)

// HeaderSize is the fixed width of a record header: 2-byte type + 6-byte
// little-endian length.
const HeaderSize = 8

// Errors returned while reading/writing era records.
var (
	ErrFormat        = errors.New("era: malformed record")
	ErrShortRead     = errors.New("era: short read")
	ErrUnexpectedType = errors.New("era: unexpected record type")
)

// writeHeader writes an 8-byte record header: 2-byte type tag (LE) + 6-byte
// length (LE).
func writeHeader(w io.Writer, t RecordType, length uint64) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], uint16(t))
	// 6-byte length: write as the low 6 bytes of a little-endian uint64.
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], length)
	copy(buf[2:8], lenBuf[:6])
	_, err := w.Write(buf[:])
	return err
}

// readHeader reads and decodes an 8-byte record header.
func readHeader(r io.Reader) (RecordType, uint64, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, io.EOF
		}
		return 0, 0, fmt.Errorf("%w: reading header: %v", ErrShortRead, err)
	}
	t := RecordType(binary.LittleEndian.Uint16(buf[0:2]))
	var lenBuf [8]byte
	copy(lenBuf[:6], buf[2:8])
	length := binary.LittleEndian.Uint64(lenBuf[:])
	return t, length, nil
}

// writeRecord writes a full record (header + raw body bytes) to w and
// returns the number of bytes written.
func writeRecord(w io.Writer, t RecordType, body []byte) (int64, error) {
	if err := writeHeader(w, t, uint64(len(body))); err != nil {
		return 0, err
	}
	n, err := w.Write(body)
	return int64(HeaderSize + n), err
}

// readRecord reads a full record at the reader's current position.
func readRecord(r io.Reader) (RecordType, []byte, error) {
	t, length, err := readHeader(r)
	if err != nil {
		return 0, nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", ErrShortRead, err)
	}
	return t, body, nil
}
