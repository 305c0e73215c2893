package forkchoice

import (
	"errors"
	"testing"

	"github.com/eth2031/beacon/primitives"
)

func TestCheckpointStore_RecordAndLatest(t *testing.T) {
	s := NewCheckpointStore()
	cp1 := primitives.Checkpoint{Epoch: 1, Root: testDigest(0x01)}
	cp2 := primitives.Checkpoint{Epoch: 2, Root: testDigest(0x02)}

	if err := s.Record(cp1); err != nil {
		t.Fatalf("unexpected error recording cp1: %v", err)
	}
	if err := s.Record(cp2); err != nil {
		t.Fatalf("unexpected error recording cp2: %v", err)
	}
	if s.Latest() != 2 {
		t.Fatalf("expected latest epoch 2, got %d", s.Latest())
	}
}

func TestCheckpointStore_RecordDuplicateEpoch(t *testing.T) {
	s := NewCheckpointStore()
	cp := primitives.Checkpoint{Epoch: 1, Root: testDigest(0x01)}
	if err := s.Record(cp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Record(cp); !errors.Is(err, ErrCheckpointEpochExists) {
		t.Fatalf("expected ErrCheckpointEpochExists, got %v", err)
	}
}

func TestCheckpointStore_CheckWeakSubjectivity(t *testing.T) {
	s := NewCheckpointStore()
	cp := primitives.Checkpoint{Epoch: 10, Root: testDigest(0x01)}

	if err := s.CheckWeakSubjectivity(cp, 10); err != nil {
		t.Fatalf("unexpected error at epoch 10: %v", err)
	}
	if err := s.CheckWeakSubjectivity(cp, 10+WeakSubjectivityPeriod); err != nil {
		t.Fatalf("unexpected error exactly at the boundary: %v", err)
	}
	if err := s.CheckWeakSubjectivity(cp, 10+WeakSubjectivityPeriod+1); !errors.Is(err, ErrWeakSubjectivityFailed) {
		t.Fatalf("expected ErrWeakSubjectivityFailed beyond the boundary, got %v", err)
	}
}
