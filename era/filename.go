package era

import (
	"encoding/hex"
	"fmt"
)

// Filename builds the canonical era file name:
// "<network>-<era:05>-<count:05>-<shortlog(root)>.era", where era is the
// period index (startSlot / slotsPerEpoch / period) and shortlog is the
// first 4 bytes of the historical root, hex-encoded.
func Filename(network string, era uint64, count uint64, historicalRoot [32]byte) string {
	return fmt.Sprintf("%s-%05d-%05d-%s.era", network, era, count, shortlog(historicalRoot))
}

func shortlog(root [32]byte) string {
	return hex.EncodeToString(root[:4])
}
