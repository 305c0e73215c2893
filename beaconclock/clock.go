// Package beaconclock maps wall-clock time to beacon chain slots/epochs.
package beaconclock

import (
	"sort"
	"time"

	"github.com/eth2031/beacon/primitives"
)

// BeaconTime is a wall-clock instant paired with its slot-relative
// interpretation.
type BeaconTime struct {
	Time time.Time
}

// Clock maps wall-clock time to slot/epoch, given a genesis time and
// seconds-per-slot.
type Clock struct {
	genesisTime    uint64
	secondsPerSlot uint64
}

// New returns a Clock for the given genesis time (unix seconds) and
// seconds-per-slot.
func New(genesisTime, secondsPerSlot uint64) *Clock {
	return &Clock{genesisTime: genesisTime, secondsPerSlot: secondsPerSlot}
}

// Now returns the current wall-clock BeaconTime.
func (c *Clock) Now() BeaconTime {
	return BeaconTime{Time: time.Now()}
}

// ToSlot maps a BeaconTime to (after_genesis, slot) per spec.md §6.
func (c *Clock) ToSlot(t BeaconTime) (afterGenesis bool, slot primitives.Slot) {
	unix := uint64(t.Time.Unix())
	if unix < c.genesisTime {
		return false, 0
	}
	elapsed := unix - c.genesisTime
	return true, primitives.Slot(elapsed / c.secondsPerSlot)
}

// CurrentSlot returns the slot for the current wall-clock time.
func (c *Clock) CurrentSlot() primitives.Slot {
	_, slot := c.ToSlot(c.Now())
	return slot
}

// CurrentEpoch returns the epoch for the current wall-clock time.
func (c *Clock) CurrentEpoch(slotsPerEpoch uint64) primitives.Epoch {
	return primitives.SlotToEpoch(c.CurrentSlot(), slotsPerEpoch)
}

// SlotStartTime returns the wall-clock instant a slot begins.
func (c *Clock) SlotStartTime(slot primitives.Slot) time.Time {
	seconds := c.genesisTime + uint64(slot)*c.secondsPerSlot
	return time.Unix(int64(seconds), 0)
}

// TimeInSlot returns how far into the current slot the wall clock is.
func (c *Clock) TimeInSlot() time.Duration {
	slot := c.CurrentSlot()
	start := c.SlotStartTime(slot)
	return time.Since(start)
}

// NextSlotIn returns the wall-clock duration until the next slot begins.
func (c *Clock) NextSlotIn() time.Duration {
	slot := c.CurrentSlot()
	next := c.SlotStartTime(slot + 1)
	return time.Until(next)
}

// GenesisTime returns the configured genesis time (unix seconds).
func (c *Clock) GenesisTime() uint64 { return c.genesisTime }

// SecondsPerSlot returns the configured slot duration.
func (c *Clock) SecondsPerSlot() uint64 { return c.secondsPerSlot }

// forkEntry associates a fork activation epoch with the slot duration in
// effect from that epoch onward.
type forkEntry struct {
	epoch          primitives.Epoch
	secondsPerSlot uint64
}

// Schedule handles slot-duration changes across hard-fork boundaries (no
// fork in this spec's scope changes slot duration, but the machinery is
// kept for forward compatibility, matching the teacher's SlotSchedule).
type Schedule struct {
	genesisTime uint64
	entries     []forkEntry
}

// NewSchedule returns a Schedule seeded with the genesis slot duration.
func NewSchedule(genesisTime uint64, genesisSecondsPerSlot uint64) *Schedule {
	return &Schedule{
		genesisTime: genesisTime,
		entries:     []forkEntry{{epoch: 0, secondsPerSlot: genesisSecondsPerSlot}},
	}
}

// AddFork registers a slot-duration change effective at the given epoch.
func (s *Schedule) AddFork(epoch primitives.Epoch, secondsPerSlot uint64) {
	s.entries = append(s.entries, forkEntry{epoch: epoch, secondsPerSlot: secondsPerSlot})
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].epoch < s.entries[j].epoch })
}

// SlotDurationAtEpoch returns the slot duration in effect at the given
// epoch, via binary search over the registered fork boundaries.
func (s *Schedule) SlotDurationAtEpoch(epoch primitives.Epoch) uint64 {
	idx := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].epoch > epoch })
	if idx == 0 {
		return s.entries[0].secondsPerSlot
	}
	return s.entries[idx-1].secondsPerSlot
}
