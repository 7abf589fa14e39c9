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

// Package wire holds the line-based request / framed-binary-response
// primitives shared by internal/rserver and internal/rclient, the way
// the teacher factors connection plumbing into std/copy.go for reuse
// by both its client and server mains.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// ProtocolVersion is returned by the INFO command.
const ProtocolVersion = "1"

// DefaultMaxBricksPerGetRequest is the default GETBRICKS batch ceiling.
const DefaultMaxBricksPerGetRequest = 64

// MaxFrameBytes bounds a single binary frame to guard against a
// corrupt or hostile length prefix requesting an unreasonable allocation.
const MaxFrameBytes = 1 << 30

// ReadLine reads one '\n'-terminated ASCII line and splits it into
// whitespace-separated tokens. Returns io.EOF unwrapped when the peer
// closed cleanly with no partial line buffered.
func ReadLine(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return nil, io.EOF
		}
		return nil, bvlerr.Wrap(bvlerr.Transport, "wire.ReadLine", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, nil
	}
	return strings.Fields(line), nil
}

// WriteLine writes s terminated by '\n'.
func WriteLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	if err != nil {
		return bvlerr.Wrap(bvlerr.Transport, "wire.WriteLine", err)
	}
	return nil
}

// WriteFrame writes a 4-byte little-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return bvlerr.Wrap(bvlerr.Transport, "wire.WriteFrame", err)
	}
	if _, err := w.Write(payload); err != nil {
		return bvlerr.Wrap(bvlerr.Transport, "wire.WriteFrame", err)
	}
	return nil
}

// ReadFrame reads a length-prefixed binary frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, bvlerr.Wrap(bvlerr.Transport, "wire.ReadFrame", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, bvlerr.Wrap(bvlerr.Protocol, "wire.ReadFrame", fmt.Errorf("frame length %d exceeds limit", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, bvlerr.Wrap(bvlerr.Transport, "wire.ReadFrame", err)
	}
	return buf, nil
}
