package builder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/voxel"
)

// SynthKind selects the synthetic generator used by `brickvol build-synth`.
type SynthKind int

const (
	// Linear fills each voxel with a value that falls off linearly with
	// its distance from the volume's center (rangeMax at the center, 0 at
	// the corners), good for exercising the LOD pyramid.
	Linear SynthKind = iota
	// Flat fills the whole volume with one constant value, used to
	// exercise the CHILD_EMPTY classification end to end.
	Flat
)

func ParseSynthKind(s string) (SynthKind, error) {
	switch s {
	case "L":
		return Linear, nil
	case "F":
		return Flat, nil
	default:
		return 0, bvlerr.Wrap(bvlerr.IO, "builder.ParseSynthKind", fmt.Errorf("unknown synth kind %q, want L or F", s))
	}
}

// GenerateSynthetic builds an in-memory volume per kind, sx*sy*sz voxels
// of bpc bytes each.
func GenerateSynthetic(kind SynthKind, bpc, sx, sy, sz int) *voxel.MemAccessor {
	data := make([]byte, sx*sy*sz*bpc)
	rangeMax := rangeMaxFor(bpc)

	cx, cy, cz := float64(sx)/2, float64(sy)/2, float64(sz)/2
	maxDist := dist3(0, 0, 0, cx, cy, cz)

	idx := 0
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				var v uint32
				switch kind {
				case Flat:
					v = uint32(rangeMax / 2)
				default: // Linear
					d := dist3(float64(x), float64(y), float64(z), cx, cy, cz)
					frac := 1.0 - d/maxDist
					if frac < 0 {
						frac = 0
					}
					v = uint32(frac * rangeMax)
				}
				off := idx * bpc
				switch bpc {
				case 1:
					data[off] = byte(v)
				case 2:
					binary.LittleEndian.PutUint16(data[off:off+2], uint16(v))
				default:
					binary.LittleEndian.PutUint32(data[off:off+4], v)
				}
				idx++
			}
		}
	}
	return voxel.NewMemAccessor(sx, sy, sz, bpc, [3]float64{1, 1, 1}, data)
}

func dist3(x, y, z, cx, cy, cz float64) float64 {
	dx, dy, dz := x-cx, y-cy, z-cz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
