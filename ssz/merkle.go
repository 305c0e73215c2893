package ssz

import "crypto/sha256"

// BytesPerChunk is the width of a single Merkle leaf.
const BytesPerChunk = 32

func hash(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}

var zeroHashCache = make(map[int][32]byte)

// zeroHash returns the root of an all-zero subtree of the given depth,
// memoized across calls since it never changes.
func zeroHash(depth int) [32]byte {
	if h, ok := zeroHashCache[depth]; ok {
		return h
	}
	var h [32]byte
	if depth == 0 {
		h = [32]byte{}
	} else {
		child := zeroHash(depth - 1)
		h = hash(child, child)
	}
	zeroHashCache[depth] = h
	return h
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Pack splits serialized bytes into 32-byte leaves, right-padding the final
// chunk with zero bytes. An empty input yields a single zero chunk.
func Pack(serialized []byte) [][32]byte {
	if len(serialized) == 0 {
		return [][32]byte{{}}
	}
	numChunks := (len(serialized) + BytesPerChunk - 1) / BytesPerChunk
	chunks := make([][32]byte, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * BytesPerChunk
		end := start + BytesPerChunk
		if end > len(serialized) {
			end = len(serialized)
		}
		copy(chunks[i][:], serialized[start:end])
	}
	return chunks
}

// Merkleize computes the root of a list of leaves, padding with zero hashes
// out to the next power of two (or to `limit` leaves, if limit > 0, for
// variable-length SSZ lists with a compile-time maximum).
func Merkleize(leaves [][32]byte, limit int) [32]byte {
	count := len(leaves)
	if limit > count {
		count = limit
	}
	depth := 0
	for (1 << depth) < count {
		depth++
	}

	layer := make([][32]byte, 1<<depth)
	copy(layer, leaves)
	for i := len(leaves); i < len(layer); i++ {
		layer[i] = zeroHash(0)
	}

	for d := 0; d < depth; d++ {
		next := make([][32]byte, len(layer)/2)
		for i := range next {
			next[i] = hash(layer[2*i], layer[2*i+1])
		}
		layer = next
	}
	if len(layer) == 0 {
		return zeroHash(0)
	}
	return layer[0]
}

// MixInLength folds a little-endian length value into a root, as required
// for SSZ lists (as opposed to fixed-size vectors).
func MixInLength(root [32]byte, length uint64) [32]byte {
	var lengthChunk [32]byte
	for i := 0; i < 8; i++ {
		lengthChunk[i] = byte(length >> (8 * i))
	}
	return hash(root, lengthChunk)
}
