package publisher

import (
	"encoding/hex"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDFor derives a human-readable content identifier from an artifact's
// hex checksum, for logging and display alongside the raw
// hex id. It is never used for routing or lookups: those stay on the raw
// blueprint.Key/hex form.
func CIDFor(checksumHex string) (cid.Cid, error) {
	raw, err := hex.DecodeString(checksumHex)
	if err != nil {
		return cid.Cid{}, err
	}
	mh, err := multihash.Encode(raw, multihash.SHA2_256)
	if err != nil {
		return cid.Cid{}, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}
