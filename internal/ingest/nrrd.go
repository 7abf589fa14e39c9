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

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/voxel"
)

// NRRDHeader is the narrow subset of a NRRD0004/0005 text header this
// package understands: a single-channel, three-dimensional, raw-encoded
// scalar grid, with its payload either inline after the header or in a
// detached data file. Gzip/bzip2 encodings, other non-raw encodings, and
// field/vector volumes are out of scope; Open rejects
// anything it cannot map directly onto voxel.FileAccessor.
type NRRDHeader struct {
	Sizes     [3]int
	Type      Format
	Spacings  [3]float64
	DataFile  string // resolved to an absolute path; equals the header path when data is inline
	dataStart int64  // byte offset of the raw payload within DataFile, when inline
}

// ParseNRRD reads a NRRD0004 or NRRD0005 text header and returns the
// fields needed to open the raw payload as a voxel.Accessor. Only the
// "raw" encoding is supported; detached "data file:" lines are followed
// as a path relative to the header's directory.
func ParseNRRD(path string) (*NRRDHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "ingest.ParseNRRD", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "ingest.ParseNRRD", err)
	}
	magic = strings.TrimSpace(magic)
	if magic != "NRRD0004" && magic != "NRRD0005" {
		return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errNotNRRD)
	}

	h := &NRRDHeader{Spacings: [3]float64{1, 1, 1}}
	var dimension int
	var encoding, endian string
	var sawSizes, sawType bool
	dataFile := ""

	var consumed int64 = int64(len(magic)) + 1
	for {
		line, err := r.ReadString('\n')
		consumed += int64(len(line))
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break // header/data separator
		}
		if err != nil {
			return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errMissingNRRDField)
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, val, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(strings.TrimPrefix(val, "="))

		switch key {
		case "dimension":
			dimension, _ = strconv.Atoi(val)
		case "sizes":
			f := strings.Fields(val)
			if len(f) < 3 {
				return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errMissingNRRDField)
			}
			for i := 0; i < 3; i++ {
				n, err := strconv.Atoi(f[i])
				if err != nil {
					return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", err)
				}
				h.Sizes[i] = n
			}
			sawSizes = true
		case "type":
			t, err := parseNRRDType(val)
			if err != nil {
				return nil, err
			}
			h.Type = t
			sawType = true
		case "encoding":
			encoding = strings.ToLower(val)
		case "endian":
			endian = strings.ToLower(val)
		case "spacings":
			f := strings.Fields(val)
			for i := 0; i < 3 && i < len(f); i++ {
				if v, err := strconv.ParseFloat(f[i], 64); err == nil {
					h.Spacings[i] = v
				}
			}
		case "data file", "datafile":
			dataFile = val
		default:
			// space directions, kinds, labels, content, ...: ignored.
		}
	}

	if !sawSizes || !sawType {
		return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errMissingNRRDField)
	}
	if dimension != 0 && dimension != 3 {
		return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errUnsupportedNRRD)
	}
	if encoding != "" && encoding != "raw" {
		return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errUnsupportedNRRD)
	}
	if endian != "" && endian != "little" {
		return nil, bvlerr.Wrap(bvlerr.Format, "ingest.ParseNRRD", errUnsupportedNRRD)
	}

	if dataFile == "" || dataFile == "LIST" {
		h.DataFile = path
		h.dataStart = consumed
	} else {
		h.DataFile = filepath.Join(filepath.Dir(path), dataFile)
		h.dataStart = 0
	}
	return h, nil
}

func parseNRRDType(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uchar", "unsigned char", "uint8", "uint8_t":
		return UChar, nil
	case "ushort", "unsigned short", "uint16", "uint16_t":
		return UShort, nil
	case "uint", "unsigned int", "uint32", "uint32_t":
		return UInt, nil
	default:
		return 0, bvlerr.Wrap(bvlerr.Format, "ingest.parseNRRDType", errUnsupportedNRRD)
	}
}

// Open opens the NRRD payload as a voxel.Accessor.
func (h *NRRDHeader) Open() (voxel.Accessor, error) {
	bpc := h.Type.bytesPerComponent()
	return voxel.NewFileAccessor(h.DataFile, h.Sizes[0], h.Sizes[1], h.Sizes[2], bpc, h.dataStart, h.Spacings)
}
