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

package ingest

import "github.com/brickvol/brickvol/internal/bvlerr"

// ParseDICOMSeries is the narrow seam build-dicom binds to. DICOM series
// assembly (slice ordering by ImagePositionPatient, rescale slope/intercept,
// multi-frame objects) is named an external collaborator: the builder only
// ever consumes a voxel.Accessor, never DICOM tags directly. This stub keeps
// the CLI subcommand wired and fails loudly rather than silently accepting
// a directory it cannot actually decode.
func ParseDICOMSeries(dir string) (*Descriptor, error) {
	return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseDICOMSeries", errDICOMUnsupported)
}
