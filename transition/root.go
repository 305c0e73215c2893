package transition

import (
	"github.com/eth2031/beacon/primitives"
	"github.com/eth2031/beacon/state"
)

// BlockRoot computes a signed block's message root: the header root of its
// slot/proposer/parent-root/state-root fields plus the hash of its body.
// The DAG and the block processor use this to key blocks and to detect
// duplicates before the block is inserted (spec.md §4.5).
func BlockRoot(signed *state.SignedBeaconBlock) (primitives.Digest, error) {
	bodyRoot, err := hashBlockBody(&signed.Block.Body)
	if err != nil {
		return primitives.Digest{}, err
	}
	header := signed.Block.Header(bodyRoot)
	return headerRoot(header), nil
}
