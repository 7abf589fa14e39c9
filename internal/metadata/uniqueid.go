package metadata

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// ComputeUniqueID derives the content-stable 128-bit dataset identifier:
// the first 16 bytes of blake2b-256(firstBrickPayload || dims || bs || ov || B),
// with every integer written little-endian so the value is platform
// independent. The builder passes the on-disk (possibly compressed)
// bytes of the first NORMAL brick in index order, or an empty slice when
// no brick is NORMAL, per the data model's "hash of the first
// fully-written brick payload concatenated with dimensions."
func ComputeUniqueID(firstBrickPayload []byte, w, h, d, bs, ov, b int) ([16]byte, error) {
	var out [16]byte
	h256, err := blake2b.New256(nil)
	if err != nil {
		return out, bvlerr.Wrap(bvlerr.IO, "metadata.ComputeUniqueID", err)
	}
	h256.Write(firstBrickPayload)

	var le [4]byte
	writeU32 := func(v int) {
		binary.LittleEndian.PutUint32(le[:], uint32(v))
		h256.Write(le[:])
	}
	writeU32(w)
	writeU32(h)
	writeU32(d)
	writeU32(bs)
	writeU32(ov)
	h256.Write([]byte{byte(b)})

	sum := h256.Sum(nil)
	copy(out[:], sum[:16])
	return out, nil
}
