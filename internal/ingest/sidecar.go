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

// Package ingest bridges foreign volume descriptions into the narrow
// voxel.Accessor interface the builder consumes, so build-qvis and
// build-nrrd never touch internal/builder's own types.
package ingest

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/voxel"
)

// Format names the raw sample encoding a sidecar or NRRD header declares.
type Format int

const (
	UChar Format = iota
	UShort
	UInt
)

func (f Format) bytesPerComponent() int {
	switch f {
	case UShort:
		return 2
	case UInt:
		return 4
	default:
		return 1
	}
}

func parseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UCHAR":
		return UChar, nil
	case "USHORT":
		return UShort, nil
	case "UINT":
		return UInt, nil
	default:
		return 0, bvlerr.Wrap(bvlerr.Format, "ingest.parseFormat", errUnknownFormat)
	}
}

// Descriptor is a QVIS .dat sidecar's parsed fields, resolved against the
// directory it was read from so ObjectFileName may be relative.
type Descriptor struct {
	ObjectFileName string
	W, H, D        int
	Components     int
	SliceThickness [3]float64
	Format         Format
}

// ParseSidecar reads a QVIS-style "<stem>.dat" descriptor: a plain-text
// key/value file naming the raw volume file, its dimensions, component
// count, voxel aspect ratio, and sample format. Unrecognized keys
// (TaggedFileName, ObjectType, GridType, ...) are accepted and ignored.
func ParseSidecar(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "ingest.ParseSidecar", err)
	}
	defer f.Close()

	d := &Descriptor{Components: 1, SliceThickness: [3]float64{1, 1, 1}}
	var sawName, sawRes, sawFormat bool

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "ObjectFileName":
			d.ObjectFileName = val
			sawName = true
		case "Resolution":
			w, h, dd, err := parseTriple(val)
			if err != nil {
				return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseSidecar", err)
			}
			d.W, d.H, d.D = w, h, dd
			sawRes = true
		case "Components":
			c, err := strconv.Atoi(val)
			if err != nil {
				return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseSidecar", err)
			}
			d.Components = c
		case "SliceThickness":
			ax, ay, az, err := parseTripleF(val)
			if err != nil {
				return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseSidecar", err)
			}
			d.SliceThickness = [3]float64{ax, ay, az}
		case "Format":
			fmtv, err := parseFormat(val)
			if err != nil {
				return nil, err
			}
			d.Format = fmtv
			sawFormat = true
		default:
			// TaggedFileName, ObjectType, GridType and any other key: ignored.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "ingest.ParseSidecar", err)
	}
	if !sawName || !sawRes || !sawFormat {
		return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseSidecar", errIncompleteSidecar)
	}

	if !filepath.IsAbs(d.ObjectFileName) {
		d.ObjectFileName = filepath.Join(filepath.Dir(path), d.ObjectFileName)
	}
	return d, nil
}

// Open opens the raw volume named by the descriptor as a voxel.Accessor.
func (d *Descriptor) Open() (voxel.Accessor, error) {
	bpc := d.Format.bytesPerComponent() * d.Components
	return voxel.NewFileAccessor(d.ObjectFileName, d.W, d.H, d.D, bpc, 0, d.SliceThickness)
}

func parseTriple(s string) (int, int, int, error) {
	f := strings.Fields(s)
	if len(f) != 3 {
		return 0, 0, 0, errBadTriple
	}
	x, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := strconv.Atoi(f[1])
	if err != nil {
		return 0, 0, 0, err
	}
	z, err := strconv.Atoi(f[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return x, y, z, nil
}

func parseTripleF(s string) (float64, float64, float64, error) {
	f := strings.Fields(s)
	if len(f) != 3 {
		return 0, 0, 0, errBadTriple
	}
	x, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	z, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	return x, y, z, nil
}
