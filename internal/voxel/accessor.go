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

// Package voxel gives random access to a raw 3D array of scalar voxels,
// memory-mapped when the platform allows it.
package voxel

import (
	"io"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// Accessor is read-only random access to a W*H*D grid of BytesPerComponent()-wide voxels.
type Accessor interface {
	Size() (w, h, d int)
	BytesPerComponent() int
	Aspect() [3]float64
	// ReadRegion fills dst with the voxels in [x0,x1)x[y0,y1)x[z0,z1), row-major,
	// x fastest-varying. len(dst) must equal (x1-x0)*(y1-y0)*(z1-z0)*BytesPerComponent().
	ReadRegion(x0, x1, y0, y1, z0, z1 int, dst []byte) error
	Close() error
}

func regionSize(x0, x1, y0, y1, z0, z1, bpc int) int {
	return (x1 - x0) * (y1 - y0) * (z1 - z0) * bpc
}

func validateRegion(w, h, d, x0, x1, y0, y1, z0, z1 int) error {
	if x0 < 0 || y0 < 0 || z0 < 0 || x1 > w || y1 > h || z1 > d || x0 >= x1 || y0 >= y1 || z0 >= z1 {
		return bvlerr.Wrap(bvlerr.IO, "voxel.validateRegion", io.ErrUnexpectedEOF)
	}
	return nil
}
