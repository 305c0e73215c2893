package ssz

import "encoding/binary"

// MarshalUint64 appends the little-endian SSZ encoding of v to dst.
func MarshalUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// MarshalUint32 appends the little-endian SSZ encoding of v to dst.
func MarshalUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// MarshalOffset appends a 4-byte little-endian variable-size-field offset.
func MarshalOffset(dst []byte, offset uint32) []byte {
	return MarshalUint32(dst, offset)
}

// MarshalBool appends the single-byte SSZ encoding of a boolean.
func MarshalBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// MarshalFixedBytes appends b verbatim (for Digest/pubkey/signature fields).
func MarshalFixedBytes(dst []byte, b []byte) []byte {
	return append(dst, b...)
}
