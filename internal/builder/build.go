// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package builder

import (
	"fmt"
	"runtime"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/brickvol/brickvol/internal/brickfile"
	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/codec"
	"github.com/brickvol/brickvol/internal/metadata"
	"github.com/brickvol/brickvol/internal/voxel"
)

// Params configures one build run. See SPEC_FULL.md §4.5.
type Params struct {
	BrickSize     int
	Overlap       int
	Ext           metadata.ExtensionStrategy
	UseCompressor bool
	Description   string

	// BackgroundValue overrides the dataset's EMPTY threshold; nil means
	// "use the dataset-wide minimum", the spec's stated default.
	BackgroundValue *uint32
}

// Progress is called after each level completes.
type Progress func(level, totalLevels, bricksDone, bricksTotal int)

type pendingBrick struct {
	index      uint32
	flag       metadata.EmptinessFlag
	encoded    []byte // nil for EMPTY/CHILD_EMPTY
	minV, maxV uint32
}

// Build tiles src into bricks across an LOD pyramid, classifies
// emptiness bottom-up, and writes the result to outPath as a brickvol
// container (temp file + fsync + rename, per §4.5's atomicity requirement).
func Build(src voxel.Accessor, p Params, outPath string, progress Progress) error {
	w, h, d := src.Size()
	bpc := src.BytesPerComponent()
	aspect := src.Aspect()

	innerSize := p.BrickSize - 2*p.Overlap
	if innerSize <= 0 {
		return bvlerr.Wrap(bvlerr.IO, "builder.Build", fmt.Errorf("brickSize %d too small for overlap %d", p.BrickSize, p.Overlap))
	}

	dims := computePyramid(w, h, d, innerSize)
	levelTable := buildLevelTable(dims, innerSize)

	level0 := newLevelBuffer(dims[0], bpc)
	if err := src.ReadRegion(0, w, 0, h, 0, d, level0.data); err != nil {
		return err
	}

	minRaw, maxRaw := scanRange(level0)
	background := minRaw
	if p.BackgroundValue != nil {
		background = *p.BackgroundValue
	}

	var codecTag byte = codec.NoneCodec{}.Tag()
	if p.UseCompressor {
		codecTag = codec.SnappyCodec{}.Tag()
	}
	c, err := codec.ByTag(codecTag)
	if err != nil {
		return err
	}

	totalBricks := 0
	for _, lv := range levelTable {
		totalBricks += int(lv.BricksX * lv.BricksY * lv.BricksZ)
	}

	placeholder := &metadata.Metadata{
		Version:     brickfile.CurrentVersion,
		CodecTag:    codecTag,
		B:           bpc,
		BS:          p.BrickSize,
		OV:          p.Overlap,
		W:           w,
		H:           h,
		D:           d,
		MinValue:    float64(minRaw),
		MaxValue:    float64(maxRaw),
		RangeMax:    rangeMaxFor(bpc),
		Aspect:      mgl64.Vec3{aspect[0], aspect[1], aspect[2]},
		Ext:         p.Ext,
		Description: p.Description,
		Levels:      levelTable,
		Bricks:      make([]metadata.BrickEntry, totalBricks),
	}

	writer, err := brickfile.Create(outPath, placeholder)
	if err != nil {
		return err
	}

	var prevFlags []metadata.EmptinessFlag // finer level's flags, for the child-empty pass
	var prevBuf *levelBuffer = level0
	var firstBrickPayload []byte

	for level := 0; level < len(dims); level++ {
		buf := prevBuf
		if level > 0 {
			buf = downsample(prevBuf, dims[level])
		}
		lv := levelTable[level]
		nBricks := int(lv.BricksX * lv.BricksY * lv.BricksZ)

		pendings := make([]pendingBrick, nBricks)
		ownEmpty := make([]bool, nBricks)

		g := new(errgroup.Group)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for local := 0; local < nBricks; local++ {
			local := local
			g.Go(func() error {
				bx := local % int(lv.BricksX)
				by := (local / int(lv.BricksX)) % int(lv.BricksY)
				bz := local / int(lv.BricksX*lv.BricksY)

				payload := materializeBrick(buf, p.Ext, bx, by, bz, innerSize, p.Overlap, p.BrickSize, bpc)
				empty := innerAllEqual(payload, bpc, p.BrickSize, p.Overlap, background)
				ownEmpty[local] = empty
				minV, maxV := scanPayloadRange(payload, bpc)

				idx := lv.PrevBricks + uint32(local)
				pb := pendingBrick{index: idx, minV: minV, maxV: maxV}
				if empty {
					pb.flag = metadata.Empty // may be upgraded to CHILD_EMPTY below
				} else {
					pb.flag = metadata.Normal
					enc, err := c.Encode(payload)
					if err != nil {
						return err
					}
					pb.encoded = enc
				}
				pendings[local] = pb
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			writer.Abort()
			return err
		}

		if level > 0 {
			prevLv := levelTable[level-1]
			for local := 0; local < nBricks; local++ {
				if pendings[local].flag != metadata.Empty {
					continue
				}
				bx := local % int(lv.BricksX)
				by := (local / int(lv.BricksX)) % int(lv.BricksY)
				bz := local / int(lv.BricksX*lv.BricksY)
				if allChildrenEmptyOrChildEmpty(prevFlags, prevLv, bx, by, bz) {
					pendings[local].flag = metadata.ChildEmpty
				}
			}
		}

		for local := 0; local < nBricks; local++ {
			pb := pendings[local]
			var off uint64
			if pb.encoded != nil {
				off, err = writer.WriteBrick(pb.encoded)
				if err != nil {
					writer.Abort()
					return err
				}
				if firstBrickPayload == nil {
					firstBrickPayload = pb.encoded
				}
			}
			placeholder.Bricks[pb.index] = metadata.BrickEntry{
				Offset:   off,
				Size:     uint64(len(pb.encoded)),
				Flags:    pb.flag,
				MinValue: float32(pb.minV),
				MaxValue: float32(pb.maxV),
			}
		}

		flags := make([]metadata.EmptinessFlag, nBricks)
		for i, pb := range pendings {
			flags[i] = pb.flag
		}
		prevFlags = flags
		prevBuf = buf

		if progress != nil {
			progress(level, len(dims), nBricks, nBricks)
		}
	}

	if firstBrickPayload == nil {
		firstBrickPayload = []byte{}
	}
	uid, err := metadata.ComputeUniqueID(firstBrickPayload, w, h, d, p.BrickSize, p.Overlap, bpc)
	if err != nil {
		writer.Abort()
		return err
	}
	placeholder.UniqueID = uid

	return writer.Finalize(placeholder)
}

func rangeMaxFor(bpc int) float64 {
	switch bpc {
	case 1:
		return 255
	case 2:
		return 65535
	default:
		return 4294967295
	}
}

func scanRange(lb *levelBuffer) (min, max uint32) {
	n := lb.dims.w * lb.dims.h * lb.dims.d
	if n == 0 {
		return 0, 0
	}
	min = lb.getRaw(0, 0, 0)
	max = min
	for z := 0; z < lb.dims.d; z++ {
		for y := 0; y < lb.dims.h; y++ {
			for x := 0; x < lb.dims.w; x++ {
				v := lb.getRaw(x, y, z)
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
		}
	}
	return min, max
}

// scanPayloadRange finds a brick payload's own min/max, stored per-brick
// so the atlas manager can re-evaluate emptiness against a transfer
// function without rereading voxel data.
func scanPayloadRange(payload []byte, bpc int) (min, max uint32) {
	n := len(payload) / bpc
	if n == 0 {
		return 0, 0
	}
	get := func(i int) uint32 {
		off := i * bpc
		switch bpc {
		case 1:
			return uint32(payload[off])
		case 2:
			return uint32(payload[off]) | uint32(payload[off+1])<<8
		default:
			return uint32(payload[off]) | uint32(payload[off+1])<<8 | uint32(payload[off+2])<<16 | uint32(payload[off+3])<<24
		}
	}
	min, max = get(0), get(0)
	for i := 1; i < n; i++ {
		v := get(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// materializeBrick samples the bs^3 voxel payload for brick (bx,by,bz),
// applying ext at the level's own boundary.
func materializeBrick(lb *levelBuffer, ext metadata.ExtensionStrategy, bx, by, bz, innerSize, ov, bs, bpc int) []byte {
	out := make([]byte, bs*bs*bs*bpc)
	x0 := bx*innerSize - ov
	y0 := by*innerSize - ov
	z0 := bz*innerSize - ov
	idx := 0
	for dz := 0; dz < bs; dz++ {
		for dy := 0; dy < bs; dy++ {
			for dx := 0; dx < bs; dx++ {
				v := lb.getVoxel(ext, x0+dx, y0+dy, z0+dz)
				off := idx * bpc
				switch bpc {
				case 1:
					out[off] = byte(v)
				case 2:
					out[off] = byte(v)
					out[off+1] = byte(v >> 8)
				default:
					out[off] = byte(v)
					out[off+1] = byte(v >> 8)
					out[off+2] = byte(v >> 16)
					out[off+3] = byte(v >> 24)
				}
				idx++
			}
		}
	}
	return out
}

func readVoxel(payload []byte, off, bpc int) uint32 {
	switch bpc {
	case 1:
		return uint32(payload[off])
	case 2:
		return uint32(payload[off]) | uint32(payload[off+1])<<8
	default:
		return uint32(payload[off]) | uint32(payload[off+1])<<8 | uint32(payload[off+2])<<16 | uint32(payload[off+3])<<24
	}
}

func allEqual(payload []byte, bpc int, value uint32) bool {
	n := len(payload) / bpc
	for i := 0; i < n; i++ {
		if readVoxel(payload, i*bpc, bpc) != value {
			return false
		}
	}
	return true
}

// innerAllEqual tests only the brick's own (bs-2*ov)^3 region against
// value, ignoring the ov-wide overlap halo on every side: a brick is
// EMPTY iff its inner voxels are background, regardless of what its
// halo samples from a neighbor.
func innerAllEqual(payload []byte, bpc, bs, ov int, value uint32) bool {
	idx := func(x, y, z int) int { return ((z*bs)+y)*bs + x }
	for z := ov; z < bs-ov; z++ {
		for y := ov; y < bs-ov; y++ {
			for x := ov; x < bs-ov; x++ {
				if readVoxel(payload, idx(x, y, z)*bpc, bpc) != value {
					return false
				}
			}
		}
	}
	return true
}

// allChildrenEmptyOrChildEmpty reports whether every finer-level brick
// spatially covered by coarse brick (bx,by,bz) is EMPTY or CHILD_EMPTY.
// The pyramid's halving downsample makes the child mapping exactly
// doubling-with-clamp: child coords are {2*b, 2*b+1} on each axis.
func allChildrenEmptyOrChildEmpty(childFlags []metadata.EmptinessFlag, childLv metadata.LevelEntry, bx, by, bz int) bool {
	for dz := 0; dz < 2; dz++ {
		cz := bz*2 + dz
		if cz >= int(childLv.BricksZ) {
			continue
		}
		for dy := 0; dy < 2; dy++ {
			cy := by*2 + dy
			if cy >= int(childLv.BricksY) {
				continue
			}
			for dx := 0; dx < 2; dx++ {
				cx := bx*2 + dx
				if cx >= int(childLv.BricksX) {
					continue
				}
				local := cx + cy*int(childLv.BricksX) + cz*int(childLv.BricksX*childLv.BricksY)
				f := childFlags[local]
				if f != metadata.Empty && f != metadata.ChildEmpty {
					return false
				}
			}
		}
	}
	return true
}
