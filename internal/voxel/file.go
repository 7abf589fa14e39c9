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

import (
	"log"
	"os"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// FileAccessor is a random-access view over a raw binary volume on disk.
// It mmaps the file when the platform supports it and falls back to
// chunked ReadAt otherwise; the decision is made once at construction
// and never retried per call.
type FileAccessor struct {
	f       *os.File
	w, h, d int
	bpc     int
	offset  int64
	aspect  [3]float64

	mapped []byte // non-nil when mmap succeeded
}

// NewFileAccessor opens path and validates it holds at least w*h*d*bpc
// bytes starting at offset; trailing bytes past that are ignored.
func NewFileAccessor(path string, w, h, d, bpc int, offset int64, aspect [3]float64) (*FileAccessor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "voxel.NewFileAccessor", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "voxel.NewFileAccessor", err)
	}
	want := int64(w) * int64(h) * int64(d) * int64(bpc)
	if fi.Size()-offset < want {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.Format, "voxel.NewFileAccessor", errShortFile)
	}

	fa := &FileAccessor{f: f, w: w, h: h, d: d, bpc: bpc, offset: offset, aspect: aspect}
	if m, err := mmapFile(f, offset, want); err == nil {
		fa.mapped = m
	} else {
		log.Printf("voxel: mmap unavailable for %s, falling back to ReadAt: %v", path, err)
	}
	return fa, nil
}

func (f *FileAccessor) Size() (int, int, int)  { return f.w, f.h, f.d }
func (f *FileAccessor) BytesPerComponent() int { return f.bpc }
func (f *FileAccessor) Aspect() [3]float64     { return f.aspect }

func (f *FileAccessor) Close() error {
	if f.mapped != nil {
		unmapFile(f.mapped)
		f.mapped = nil
	}
	return f.f.Close()
}

func (f *FileAccessor) ReadRegion(x0, x1, y0, y1, z0, z1 int, dst []byte) error {
	if err := validateRegion(f.w, f.h, f.d, x0, x1, y0, y1, z0, z1); err != nil {
		return err
	}
	bpc := f.bpc
	rowLen := (x1 - x0) * bpc
	di := 0
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			srcOff := (int64((z*f.h+y)*f.w+x0) * int64(bpc)) + f.offset
			if f.mapped != nil {
				copy(dst[di:di+rowLen], f.mapped[srcOff-f.offset:srcOff-f.offset+int64(rowLen)])
			} else if _, err := f.f.ReadAt(dst[di:di+rowLen], srcOff); err != nil {
				return bvlerr.Wrap(bvlerr.IO, "voxel.ReadRegion", err)
			}
			di += rowLen
		}
	}
	return nil
}
