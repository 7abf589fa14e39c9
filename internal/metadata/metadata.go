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

// Package metadata encodes and decodes the self-describing blob stored
// in a bricked volume file's header: a small KV map, the per-level
// brick-layout table, and the per-brick offset/size/flags table.
package metadata

import "github.com/go-gl/mathgl/mgl64"

// EmptinessFlag classifies a brick's content.
type EmptinessFlag uint8

const (
	Normal EmptinessFlag = iota
	Empty
	ChildEmpty
)

// ExtensionStrategy controls how a brick is filled past the volume's edge.
type ExtensionStrategy int

const (
	FillZeroes ExtensionStrategy = iota
	Clamp
	Repeat
)

func (e ExtensionStrategy) String() string {
	switch e {
	case FillZeroes:
		return "FILL_ZEROES"
	case Clamp:
		return "CLAMP"
	case Repeat:
		return "REPEAT"
	default:
		return "FILL_ZEROES"
	}
}

func ParseExtensionStrategy(s string) ExtensionStrategy {
	switch s {
	case "CLAMP":
		return Clamp
	case "REPEAT":
		return Repeat
	default:
		return FillZeroes
	}
}

// LevelEntry describes one LOD level's brick layout.
type LevelEntry struct {
	BricksX, BricksY, BricksZ uint32
	PrevBricks                uint32
}

// BrickEntry is one brick's location and classification in the file.
type BrickEntry struct {
	Offset   uint64
	Size     uint64
	Flags    EmptinessFlag
	Checksum uint32 // 0 means none; a non-zero value sets the entry's has-checksum flag bit on encode
	MinValue float32
	MaxValue float32 // per-brick value range, used by the atlas manager's TF-driven emptiness re-evaluation
}

// Metadata is the fully decoded dataset descriptor.
type Metadata struct {
	Version     int
	CodecTag    byte
	B           int // bytes per voxel component: 1, 2, or 4
	BS          int // brick side length
	OV          int // overlap
	W, H, D     int
	UniqueID    [16]byte
	MinValue    float64
	MaxValue    float64
	RangeMax    float64
	Aspect      mgl64.Vec3
	Ext         ExtensionStrategy
	Description string

	Levels []LevelEntry
	Bricks []BrickEntry

	// Extra preserves KV keys this reader doesn't recognize so they
	// survive an encode/decode round trip unchanged.
	Extra map[string]string
}

// TopLevel returns the index of the coarsest (single-brick) level.
func (m *Metadata) TopLevel() int { return len(m.Levels) - 1 }

// TotalBricks returns the dense brick count across the whole pyramid.
func (m *Metadata) TotalBricks() int { return len(m.Bricks) }

// BrickIndex computes the dense global brick index I for a brick at
// (bx,by,bz) in level L, per the pyramid indexing law in the data model.
func (m *Metadata) BrickIndex(level, bx, by, bz int) uint32 {
	lv := m.Levels[level]
	return lv.PrevBricks + uint32(bx) + uint32(by)*lv.BricksX + uint32(bz)*lv.BricksX*lv.BricksY
}

// InnerBrickSize is the uniquely-owned voxel span per brick (bs - 2*ov).
func (m *Metadata) InnerBrickSize() int { return m.BS - 2*m.OV }

// LevelOf returns the LOD level a dense global brick index belongs to,
// by locating it against each level's PrevBricks boundary.
func (m *Metadata) LevelOf(index uint32) int {
	level := 0
	for l := range m.Levels {
		if m.Levels[l].PrevBricks <= index {
			level = l
		} else {
			break
		}
	}
	return level
}

// Coords decomposes a dense global brick index into its level and
// per-axis brick coordinates within that level.
func (m *Metadata) Coords(index uint32) (level, bx, by, bz int) {
	level = m.LevelOf(index)
	lv := m.Levels[level]
	local := index - lv.PrevBricks
	bx = int(local % lv.BricksX)
	by = int((local / lv.BricksX) % lv.BricksY)
	bz = int(local / (lv.BricksX * lv.BricksY))
	return level, bx, by, bz
}

// Parent returns the coarser-level brick spatially covering (level,bx,by,bz)
// under the pyramid's 2x2x2 downsampling (coordinate halving), and false
// if index is already at the top (single-brick) level.
func (m *Metadata) Parent(index uint32) (uint32, bool) {
	level, bx, by, bz := m.Coords(index)
	if level >= m.TopLevel() {
		return 0, false
	}
	return m.BrickIndex(level+1, bx/2, by/2, bz/2), true
}
