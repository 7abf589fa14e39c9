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

package voxel

// MemAccessor wraps an in-RAM voxel grid. Used by the synthetic-volume
// CLI path and by tests; satisfies Accessor so callers never special-case it.
type MemAccessor struct {
	w, h, d int
	bpc     int
	aspect  [3]float64
	data    []byte
}

// NewMemAccessor wraps data as a w*h*d grid of bpc-byte voxels. len(data) must equal w*h*d*bpc.
func NewMemAccessor(w, h, d, bpc int, aspect [3]float64, data []byte) *MemAccessor {
	return &MemAccessor{w: w, h: h, d: d, bpc: bpc, aspect: aspect, data: data}
}

func (m *MemAccessor) Size() (int, int, int)    { return m.w, m.h, m.d }
func (m *MemAccessor) BytesPerComponent() int   { return m.bpc }
func (m *MemAccessor) Aspect() [3]float64       { return m.aspect }
func (m *MemAccessor) Close() error             { return nil }

func (m *MemAccessor) ReadRegion(x0, x1, y0, y1, z0, z1 int, dst []byte) error {
	if err := validateRegion(m.w, m.h, m.d, x0, x1, y0, y1, z0, z1); err != nil {
		return err
	}
	bpc := m.bpc
	rowLen := (x1 - x0) * bpc
	di := 0
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			srcOff := ((z*m.h+y)*m.w + x0) * bpc
			copy(dst[di:di+rowLen], m.data[srcOff:srcOff+rowLen])
			di += rowLen
		}
	}
	return nil
}
