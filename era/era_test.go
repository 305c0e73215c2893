package era

import (
	"bytes"
	"path/filepath"
	"testing"
)

// TestWriterReader_RoundTrip writes 32 blocks at slots 8192..8223 plus a
// terminal state and verifies every block and the state decode back
// byte-for-byte through a fresh Reader.
func TestWriterReader_RoundTrip(t *testing.T) {
	const startSlot = 8192
	const count = 32

	path := filepath.Join(t.TempDir(), "test-00001-00032-aabbccdd.era")
	w, err := NewWriter(path, startSlot)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	blocks := make([][]byte, count)
	for i := 0; i < count; i++ {
		blocks[i] = bytes.Repeat([]byte{byte(i)}, 64+i)
		if err := w.Update(startSlot+uint64(i), blocks[i]); err != nil {
			t.Fatalf("Update(%d): %v", i, err)
		}
	}

	state := bytes.Repeat([]byte{0xEE}, 256)
	if err := w.Finish(state); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.BlockCount() != count {
		t.Fatalf("expected %d blocks, got %d", count, r.BlockCount())
	}
	if r.StartSlot() != startSlot {
		t.Fatalf("expected start slot %d, got %d", startSlot, r.StartSlot())
	}

	for i := 0; i < count; i++ {
		got, err := r.Block(i)
		if err != nil {
			t.Fatalf("Block(%d): %v", i, err)
		}
		if !bytes.Equal(got, blocks[i]) {
			t.Fatalf("block %d round-trip mismatch", i)
		}
	}

	gotState, err := r.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !bytes.Equal(gotState, state) {
		t.Fatal("state round-trip mismatch")
	}
}

func TestWriterReader_NoBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty-00001-00000-aabbccdd.era")
	w, err := NewWriter(path, 100)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	state := []byte{0x01, 0x02, 0x03}
	if err := w.Finish(state); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.BlockCount() != 0 {
		t.Fatalf("expected 0 blocks, got %d", r.BlockCount())
	}
	got, err := r.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !bytes.Equal(got, state) {
		t.Fatal("state round-trip mismatch")
	}
}

func TestWriter_MissingBlockForSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap-00001-00002-aabbccdd.era")
	w, err := NewWriter(path, 10)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	// Write slot 11 but skip slot 10, leaving a gap in the index.
	if err := w.Update(11, []byte{0x01}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := w.Finish([]byte{0x02}); err == nil {
		t.Fatal("expected Finish to reject a gap in the block sequence")
	}
}

func TestFilename(t *testing.T) {
	var root [32]byte
	root[0], root[1], root[2], root[3] = 0xaa, 0xbb, 0xcc, 0xdd
	got := Filename("mainnet", 1, 32, root)
	want := "mainnet-00001-00032-aabbccdd.era"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
