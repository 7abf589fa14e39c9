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

// Package brickfile implements the self-describing bricked-volume
// container: an 8-byte magic, a version, a header length, the
// metadata blob (internal/metadata), and the concatenated per-brick
// payloads in ascending brick-index order.
package brickfile

import (
	"encoding/binary"
	"fmt"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// Magic identifies a brickvol container file.
var Magic = [8]byte{'B', 'R', 'K', 'V', 'O', 'L', '0', '1'}

const CurrentVersion = 1

const preambleLen = 16 // magic(8) + version(4) + headerLen(4)

func encodePreamble(version uint32, headerLen uint32) []byte {
	buf := make([]byte, preambleLen)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], version)
	binary.LittleEndian.PutUint32(buf[12:16], headerLen)
	return buf
}

func decodePreamble(buf []byte) (version, headerLen uint32, err error) {
	if len(buf) < preambleLen {
		return 0, 0, bvlerr.Wrap(bvlerr.Format, "brickfile.decodePreamble", fmt.Errorf("short preamble"))
	}
	var magic [8]byte
	copy(magic[:], buf[0:8])
	if magic != Magic {
		return 0, 0, bvlerr.Wrap(bvlerr.Format, "brickfile.decodePreamble", fmt.Errorf("bad magic %q", magic))
	}
	version = binary.LittleEndian.Uint32(buf[8:12])
	headerLen = binary.LittleEndian.Uint32(buf[12:16])
	if version != CurrentVersion {
		return 0, 0, bvlerr.Wrap(bvlerr.Format, "brickfile.decodePreamble", fmt.Errorf("unsupported version %d", version))
	}
	return version, headerLen, nil
}
