package builder

import (
	"encoding/binary"

	"github.com/brickvol/brickvol/internal/metadata"
)

// levelBuffer is one LOD level's full voxel grid, row-major with x
// fastest-varying, bpc bytes per voxel.
type levelBuffer struct {
	dims levelDims
	bpc  int
	data []byte
}

func newLevelBuffer(dims levelDims, bpc int) *levelBuffer {
	return &levelBuffer{dims: dims, bpc: bpc, data: make([]byte, dims.w*dims.h*dims.d*bpc)}
}

func (lb *levelBuffer) index(x, y, z int) int { return ((z*lb.dims.h)+y)*lb.dims.w + x }

func (lb *levelBuffer) getRaw(x, y, z int) uint32 {
	off := lb.index(x, y, z) * lb.bpc
	switch lb.bpc {
	case 1:
		return uint32(lb.data[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(lb.data[off : off+2]))
	default:
		return binary.LittleEndian.Uint32(lb.data[off : off+4])
	}
}

func (lb *levelBuffer) setRaw(x, y, z int, v uint32) {
	off := lb.index(x, y, z) * lb.bpc
	switch lb.bpc {
	case 1:
		lb.data[off] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(lb.data[off:off+2], uint16(v))
	default:
		binary.LittleEndian.PutUint32(lb.data[off:off+4], v)
	}
}

// sampleBorder resolves a coordinate that may lie outside [0,dim) per
// ExtensionStrategy, returning the in-bounds coordinate to actually read.
func sampleBorder(ext metadata.ExtensionStrategy, coord, dim int) (int, bool) {
	if coord >= 0 && coord < dim {
		return coord, true
	}
	switch ext {
	case metadata.Clamp:
		if coord < 0 {
			return 0, true
		}
		return dim - 1, true
	case metadata.Repeat:
		m := coord % dim
		if m < 0 {
			m += dim
		}
		return m, true
	default: // FillZeroes
		return 0, false
	}
}

// getVoxel reads one voxel from lb applying ext at the volume border;
// out-of-bounds reads under FillZeroes return 0 without touching lb.data.
func (lb *levelBuffer) getVoxel(ext metadata.ExtensionStrategy, x, y, z int) uint32 {
	xi, xok := sampleBorder(ext, x, lb.dims.w)
	yi, yok := sampleBorder(ext, y, lb.dims.h)
	zi, zok := sampleBorder(ext, z, lb.dims.d)
	if !xok || !yok || !zok {
		return 0
	}
	return lb.getRaw(xi, yi, zi)
}

// downsample box-averages lb 2x2x2 into a level of half the (ceiling)
// dimensions, per the pyramid's "each level halves the inner dimensions."
func downsample(lb *levelBuffer, next levelDims) *levelBuffer {
	out := newLevelBuffer(next, lb.bpc)
	for z := 0; z < next.d; z++ {
		for y := 0; y < next.h; y++ {
			for x := 0; x < next.w; x++ {
				var sum uint64
				var n uint64
				for dz := 0; dz < 2; dz++ {
					sz := z*2 + dz
					if sz >= lb.dims.d {
						continue
					}
					for dy := 0; dy < 2; dy++ {
						sy := y*2 + dy
						if sy >= lb.dims.h {
							continue
						}
						for dx := 0; dx < 2; dx++ {
							sx := x*2 + dx
							if sx >= lb.dims.w {
								continue
							}
							sum += uint64(lb.getRaw(sx, sy, sz))
							n++
						}
					}
				}
				if n == 0 {
					n = 1
				}
				out.setRaw(x, y, z, uint32(sum/n))
			}
		}
	}
	return out
}
