// Package primitives defines the fixed-width scalar types and small-range
// newtypes shared by the beacon data model and state transition.
package primitives

import "fmt"

// Slot is a non-negative 64-bit slot counter.
type Slot uint64

// Epoch is a non-negative 64-bit epoch counter.
type Epoch uint64

// ValidatorIndex is a 32-bit-range-checked index into the validator registry.
type ValidatorIndex uint64

// MaxValidatorIndex bounds ValidatorIndex to a 32-bit range on ingress, per
// spec.md §3 ("32-bit unsigned index (range-checked on ingress)").
const MaxValidatorIndex = ValidatorIndex(1<<32 - 1)

// NewValidatorIndex range-checks v against the 32-bit bound.
func NewValidatorIndex(v uint64) (ValidatorIndex, error) {
	if v > uint64(MaxValidatorIndex) {
		return 0, fmt.Errorf("primitives: validator index %d exceeds 32-bit range", v)
	}
	return ValidatorIndex(v), nil
}

// CommitteeIndex is a small-range newtype for attestation committee indices.
type CommitteeIndex uint64

// NewCommitteeIndex constructs a CommitteeIndex, bounding it against the
// maximum committees per slot.
func NewCommitteeIndex(v, maxCommitteesPerSlot uint64) (CommitteeIndex, error) {
	if v >= maxCommitteesPerSlot {
		return 0, fmt.Errorf("primitives: committee index %d out of range [0,%d)", v, maxCommitteesPerSlot)
	}
	return CommitteeIndex(v), nil
}

// SubnetId is a small-range newtype for gossip subnet identifiers.
type SubnetId uint64

// NewSubnetId constructs a SubnetId bounded by the subnet count.
func NewSubnetId(v, subnetCount uint64) (SubnetId, error) {
	if v >= subnetCount {
		return 0, fmt.Errorf("primitives: subnet id %d out of range [0,%d)", v, subnetCount)
	}
	return SubnetId(v), nil
}

// SlotToEpoch converts a slot to its containing epoch under slotsPerEpoch.
func SlotToEpoch(slot Slot, slotsPerEpoch uint64) Epoch {
	return Epoch(uint64(slot) / slotsPerEpoch)
}

// EpochStartSlot returns the first slot of the given epoch.
func EpochStartSlot(epoch Epoch, slotsPerEpoch uint64) Slot {
	return Slot(uint64(epoch) * slotsPerEpoch)
}

// IsEpochBoundary reports whether slot is the first slot of its epoch.
func IsEpochBoundary(slot Slot, slotsPerEpoch uint64) bool {
	return uint64(slot)%slotsPerEpoch == 0
}

// Digest is a 32-byte hash, used for roots, domains, and similar fixed-width
// hash values throughout the consensus data model.
type Digest [32]byte

// IsZero reports whether the digest is the all-zero value ("none" for
// checkpoint roots per spec.md §3).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])
}

// BLSPubkey is a compressed 48-byte BLS12-381 G1 public key.
type BLSPubkey [48]byte

// BLSSignature is a compressed 96-byte BLS12-381 G2 signature.
type BLSSignature [96]byte

// DomainType is a 4-byte little-endian-padded domain separation tag, per
// spec.md §6.
type DomainType [4]byte

// Domain constants (spec.md §6).
var (
	DomainBeaconProposer              = DomainType{0x00, 0x00, 0x00, 0x00}
	DomainBeaconAttester              = DomainType{0x01, 0x00, 0x00, 0x00}
	DomainRandao                      = DomainType{0x02, 0x00, 0x00, 0x00}
	DomainDeposit                     = DomainType{0x03, 0x00, 0x00, 0x00}
	DomainVoluntaryExit               = DomainType{0x04, 0x00, 0x00, 0x00}
	DomainSelectionProof              = DomainType{0x05, 0x00, 0x00, 0x00}
	DomainAggregateAndProof           = DomainType{0x06, 0x00, 0x00, 0x00}
	DomainSyncCommittee               = DomainType{0x07, 0x00, 0x00, 0x00}
	DomainSyncCommitteeSelectionProof = DomainType{0x08, 0x00, 0x00, 0x00}
	DomainContributionAndProof        = DomainType{0x09, 0x00, 0x00, 0x00}
)
