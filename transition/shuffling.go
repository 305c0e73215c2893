package transition

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/eth2031/beacon/params"
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// shuffleRounds is the number of swap-or-not rounds applied by
// ComputeShuffledIndex, matching the teacher's RandaoShuffleRounds.
const shuffleRounds = 90

// ComputeShuffledIndex applies the swap-or-not shuffle to a single index
// within a list of indexCount elements, seeded by seed. This is the
// per-epoch committee shuffle (spec.md §4.2 "Committee shuffling: single
// shuffled list per epoch").
func ComputeShuffledIndex(index uint64, indexCount uint64, seed primitives.Digest) uint64 {
	if indexCount <= 1 {
		return index
	}
	for round := uint8(0); round < shuffleRounds; round++ {
		pivot := hashPivot(seed, round, indexCount)
		flip := (pivot + indexCount - index) % indexCount
		position := index
		if flip > position {
			position = flip
		}
		source := hashSource(seed, round, position/256)
		byteVal := source[(position%256)/8]
		bit := (byteVal >> (position % 8)) & 1
		if bit == 1 {
			index = flip
		}
	}
	return index
}

func hashPivot(seed primitives.Digest, round uint8, indexCount uint64) uint64 {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{round})
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8]) % indexCount
}

func hashSource(seed primitives.Digest, round uint8, positionDiv256 uint64) [32]byte {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{round})
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], positionDiv256)
	h.Write(buf[:4])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeProposerIndex deterministically selects the block proposer for
// slot via hash-based weighted sampling over the active validator set for
// that slot's epoch (spec.md §4.2 "Proposer selection").
func ComputeProposerIndex(cfg *params.RuntimeConfig, st *state.Data, slot primitives.Slot) (primitives.ValidatorIndex, error) {
	epoch := primitives.SlotToEpoch(slot, cfg.Preset.SlotsPerEpoch)
	active := st.ActiveValidatorIndices(epoch)
	if len(active) == 0 {
		return 0, ErrEmptyCommittee
	}

	seed := ComputeSeed(st, epoch, primitives.DomainBeaconProposer)
	buf := make([]byte, 40)
	copy(buf[:32], seed[:])
	binary.LittleEndian.PutUint64(buf[32:], uint64(slot))
	seedBytes := sha256.Sum256(buf)

	i := uint64(0)
	total := uint64(len(active))
	for {
		shuffledIdx := ComputeShuffledIndex(i%total, total, primitives.Digest(seedBytes))
		candidate := active[shuffledIdx]
		h := sha256.New()
		h.Write(seedBytes[:])
		var ibuf [8]byte
		binary.LittleEndian.PutUint64(ibuf[:], i/32)
		h.Write(ibuf[:])
		randByte := h.Sum(nil)[i%32]

		effectiveBalance := st.ValidatorsValue[candidate].EffectiveBalance
		if effectiveBalance*255 >= cfg.Preset.MaxEffectiveBalance*uint64(randByte) {
			return candidate, nil
		}
		i++
	}
}

// ComputeSeed derives the per-epoch RANDAO seed used for shuffling and
// proposer selection, mixing in the domain type, epoch, and the RANDAO mix
// stored at that same epoch's ring index; no MIN_SEED_LOOKAHEAD offset is
// applied.
func ComputeSeed(st *state.Data, epoch primitives.Epoch, domain primitives.DomainType) primitives.Digest {
	mixEpoch := uint64(epoch) % uint64(len(st.RandaoMixes))
	mix := st.RandaoMixes[mixEpoch]

	buf := make([]byte, 0, 4+8+32)
	buf = append(buf, domain[:]...)
	var ebuf [8]byte
	binary.LittleEndian.PutUint64(ebuf[:], uint64(epoch))
	buf = append(buf, ebuf[:]...)
	buf = append(buf, mix[:]...)
	return primitives.Digest(sha256.Sum256(buf))
}
