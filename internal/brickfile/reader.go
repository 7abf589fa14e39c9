package brickfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/codec"
	"github.com/brickvol/brickvol/internal/metadata"
)

// Reader is a concurrency-safe, read-only handle on a brickvol container.
// The brick table and metadata are immutable after Open, so any number
// of goroutines may call RawBrick/Brick on one Reader concurrently.
type Reader struct {
	f          *os.File
	meta       *metadata.Metadata
	dataOffset int64

	scratch sync.Pool // []byte scratch buffers sized to the dataset's max brick
}

// Open opens path and parses its preamble and metadata blob.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.Open", err)
	}

	pre := make([]byte, preambleLen)
	if _, err := f.ReadAt(pre, 0); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.Open", err)
	}
	_, headerLen, err := decodePreamble(pre)
	if err != nil {
		f.Close()
		return nil, err
	}

	blob := make([]byte, headerLen)
	if _, err := f.ReadAt(blob, preambleLen); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.Open", err)
	}
	meta, err := metadata.Decode(blob)
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Reader{
		f:          f,
		meta:       meta,
		dataOffset: preambleLen + int64(headerLen),
	}
	maxBrickBytes := meta.BS * meta.BS * meta.BS * meta.B
	r.scratch.New = func() interface{} { return make([]byte, maxBrickBytes) }
	return r, nil
}

func (r *Reader) Metadata() *metadata.Metadata { return r.meta }

func (r *Reader) Close() error { return r.f.Close() }

// RawBrick fills buf with exactly brickTable[i].Size on-disk (possibly
// compressed) bytes. buf must have length >= that size; RawBrick returns
// the slice actually written (a sub-slice of buf).
func (r *Reader) RawBrick(i uint32, buf []byte) ([]byte, error) {
	if int(i) >= len(r.meta.Bricks) {
		return nil, bvlerr.Wrap(bvlerr.Protocol, "brickfile.RawBrick", fmt.Errorf("brick index %d out of range", i))
	}
	entry := r.meta.Bricks[i]
	if entry.Flags != metadata.Normal {
		return buf[:0], nil
	}
	if uint64(len(buf)) < entry.Size {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.RawBrick", fmt.Errorf("buffer too small: %d < %d", len(buf), entry.Size))
	}
	out := buf[:entry.Size]
	if _, err := r.f.ReadAt(out, int64(entry.Offset)); err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.RawBrick", err)
	}
	return out, nil
}

// AllocateBrickBuffer returns a scratch buffer sized for one decompressed brick payload.
func (r *Reader) AllocateBrickBuffer() []byte {
	return make([]byte, r.meta.BS*r.meta.BS*r.meta.BS*r.meta.B)
}

// Brick fills buf with the decompressed voxel payload of brick i. buf must
// have length bs^3*B. EMPTY/CHILD_EMPTY bricks have no stored payload and
// are filled with zero (the background value).
func (r *Reader) Brick(i uint32, buf []byte) error {
	if int(i) >= len(r.meta.Bricks) {
		return bvlerr.Wrap(bvlerr.Protocol, "brickfile.Brick", fmt.Errorf("brick index %d out of range", i))
	}
	entry := r.meta.Bricks[i]
	want := r.meta.BS * r.meta.BS * r.meta.BS * r.meta.B
	if len(buf) != want {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Brick", fmt.Errorf("buffer size %d != expected %d", len(buf), want))
	}
	if entry.Flags != metadata.Normal {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	raw := r.scratch.Get().([]byte)
	defer r.scratch.Put(raw)
	if uint64(cap(raw)) < entry.Size {
		raw = make([]byte, entry.Size)
	}
	raw = raw[:entry.Size]
	if _, err := r.f.ReadAt(raw, int64(entry.Offset)); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Brick", err)
	}

	c, err := codec.ByTag(r.meta.CodecTag)
	if err != nil {
		return err
	}
	decoded, err := c.Decode(raw, want)
	if err != nil {
		return err
	}
	copy(buf, decoded)
	return nil
}
