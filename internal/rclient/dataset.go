package rclient

import (
	"bytes"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/brickvol/brickvol/internal/brickfile"
	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/codec"
	"github.com/brickvol/brickvol/internal/metadata"
)

// Dataset is the substitution point consumed by internal/atlas: it
// presents the same interface as a local brickfile.Reader (see
// internal/dataset.Source) while fetching bricks over the wire.
type Dataset struct {
	client *Client
	meta   *metadata.Metadata
	coal   *coalescer

	localCache      *brickfile.SparseWriter
	localCachePath  string
	normalBrickCnt  int64
	cachedBrickCnt  atomic.Int64
}

func (d *Dataset) Metadata() *metadata.Metadata { return d.meta }

func (d *Dataset) AllocateBrickBuffer() []byte {
	return make([]byte, d.meta.BS*d.meta.BS*d.meta.BS*d.meta.B)
}

// RawBrick returns brick i's on-disk (compressed) bytes, trusting the
// local cache if already patched, otherwise fetching over the wire and
// write-through caching the result.
func (d *Dataset) RawBrick(i uint32, buf []byte) ([]byte, error) {
	if int(i) >= len(d.meta.Bricks) {
		return nil, bvlerr.Wrap(bvlerr.Protocol, "rclient.Dataset.RawBrick", fmt.Errorf("brick index %d out of range", i))
	}
	entry := d.meta.Bricks[i]
	if entry.Flags != metadata.Normal {
		return buf[:0], nil
	}

	if d.localCache != nil && d.localCache.IsBrickCached(i) {
		return d.localCache.ReadCachedBrick(i, buf)
	}

	data, err := d.coal.fetch(i)
	if err != nil {
		return nil, err
	}
	if len(buf) < len(data) {
		return nil, bvlerr.Wrap(bvlerr.IO, "rclient.Dataset.RawBrick", fmt.Errorf("buffer too small"))
	}
	n := copy(buf, data)
	out := buf[:n]

	if d.localCache != nil {
		if err := d.localCache.PatchBrick(i, out); err != nil {
			return nil, err
		}
		d.cachedBrickCnt.Add(1)
	}
	return out, nil
}

// Brick decodes brick i's voxel payload into buf (len == bs^3*B).
func (d *Dataset) Brick(i uint32, buf []byte) error {
	entry := d.meta.Bricks[i]
	want := d.meta.BS * d.meta.BS * d.meta.BS * d.meta.B
	if len(buf) != want {
		return bvlerr.Wrap(bvlerr.IO, "rclient.Dataset.Brick", fmt.Errorf("buffer size %d != expected %d", len(buf), want))
	}
	if entry.Flags != metadata.Normal {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	raw := make([]byte, entry.Size)
	out, err := d.RawBrick(i, raw)
	if err != nil {
		return err
	}
	c, err := codec.ByTag(d.meta.CodecTag)
	if err != nil {
		return err
	}
	decoded, err := c.Decode(out, want)
	if err != nil {
		return err
	}
	copy(buf, decoded)
	return nil
}

// enableLocalCache adopts an existing cache file in place on reconnect
// when its UniqueID matches this dataset (cached bricks are trusted
// without re-fetch), otherwise creates a fresh one.
func (d *Dataset) enableLocalCache(path string) error {
	var w *brickfile.SparseWriter

	if _, err := os.Stat(path); err == nil {
		existing, err := brickfile.OpenSparseExisting(path)
		if err == nil {
			if bytes.Equal(existing.Metadata().UniqueID[:], d.meta.UniqueID[:]) {
				w = existing
			} else {
				existing.Close()
			}
		}
	}

	if w == nil {
		created, err := brickfile.CreateSparse(path, d.meta)
		if err != nil {
			return err
		}
		w = created
	}

	d.localCache = w
	d.localCachePath = path
	d.normalBrickCnt = 0
	d.cachedBrickCnt.Store(0)
	for i, b := range d.meta.Bricks {
		if b.Flags != metadata.Normal {
			continue
		}
		d.normalBrickCnt++
		if w.IsBrickCached(uint32(i)) {
			d.cachedBrickCnt.Add(1)
		}
	}
	return nil
}

// LocalRatio is the fraction of NORMAL bricks already present in the
// local write-through cache, exposed for progress UIs.
func (d *Dataset) LocalRatio() float64 {
	if d.localCache == nil || d.normalBrickCnt == 0 {
		return 0
	}
	return float64(d.cachedBrickCnt.Load()) / float64(d.normalBrickCnt)
}
