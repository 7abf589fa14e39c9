package codec

import (
	"fmt"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// NoneCodec stores payloads verbatim; selected when the builder's
// useCompressor flag is off.
type NoneCodec struct{}

func (NoneCodec) Tag() byte { return 0x00 }

func (NoneCodec) Encode(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (NoneCodec) Decode(src []byte, expectedLen int) ([]byte, error) {
	if len(src) != expectedLen {
		return nil, bvlerr.Wrap(bvlerr.Corruption, "NoneCodec.Decode",
			fmt.Errorf("length mismatch: got %d want %d", len(src), expectedLen))
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
