package ssz

import "encoding/binary"

// UnmarshalUint64 decodes a little-endian uint64 at buf[0:8].
func UnmarshalUint64(buf []byte) (uint64, error) {
	if len(buf) < 8 {
		return 0, ErrBufferTooSmall
	}
	return binary.LittleEndian.Uint64(buf[:8]), nil
}

// UnmarshalUint32 decodes a little-endian uint32 at buf[0:4].
func UnmarshalUint32(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, ErrBufferTooSmall
	}
	return binary.LittleEndian.Uint32(buf[:4]), nil
}

// UnmarshalOffset decodes a 4-byte variable-size-field offset and validates
// it does not exceed the total buffer length.
func UnmarshalOffset(buf []byte, totalLen int) (uint32, error) {
	off, err := UnmarshalUint32(buf)
	if err != nil {
		return 0, err
	}
	if int(off) > totalLen {
		return 0, ErrOffset
	}
	return off, nil
}

// UnmarshalBool decodes a single-byte boolean, rejecting any value other
// than 0 or 1.
func UnmarshalBool(buf []byte) (bool, error) {
	if len(buf) < 1 {
		return false, ErrBufferTooSmall
	}
	switch buf[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}
