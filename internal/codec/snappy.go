package codec

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// SnappyCodec compresses brick payloads with snappy block compression.
// Grounded on std/comp.go's snappy.Writer/Reader stream wrapper, adapted
// from a net.Conn stream to fixed-size brick buffers via the block API.
type SnappyCodec struct{}

func (SnappyCodec) Tag() byte { return 0x01 }

func (SnappyCodec) MaxEncodedLen(rawLen int) int { return snappy.MaxEncodedLen(rawLen) }

func (SnappyCodec) Encode(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (SnappyCodec) Decode(src []byte, expectedLen int) ([]byte, error) {
	dl, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.Corruption, "SnappyCodec.Decode", err)
	}
	if dl != expectedLen {
		return nil, bvlerr.Wrap(bvlerr.Corruption, "SnappyCodec.Decode",
			fmt.Errorf("decoded length mismatch: got %d want %d", dl, expectedLen))
	}
	dst := make([]byte, expectedLen)
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.Corruption, "SnappyCodec.Decode", err)
	}
	return out, nil
}
