// Package ssz implements Simple Serialize (SSZ) encoding and Merkle
// hash-tree-root computation for the beacon data model.
// Spec: https://github.com/ethereum/consensus-specs/blob/dev/ssz/simple-serialize.md
package ssz

import "errors"

// Errors returned by SSZ encode/decode and Merkleization.
var (
	ErrSize          = errors.New("ssz: incorrect size")
	ErrOffset        = errors.New("ssz: invalid offset")
	ErrListTooLong   = errors.New("ssz: list exceeds maximum length")
	ErrBufferTooSmall = errors.New("ssz: buffer too small")
	ErrInvalidBool   = errors.New("ssz: invalid boolean byte")
)

// BytesPerLengthOffset is the fixed width of a variable-size-field offset.
const BytesPerLengthOffset = 4

// Marshaler is implemented by types with a canonical SSZ encoding.
type Marshaler interface {
	MarshalSSZ() ([]byte, error)
	SizeSSZ() int
}

// Unmarshaler is implemented by types that can be populated from SSZ bytes.
type Unmarshaler interface {
	UnmarshalSSZ([]byte) error
}

// HashRoot is implemented by types that can compute their Merkle
// hash-tree-root.
type HashRoot interface {
	HashTreeRoot() ([32]byte, error)
}
