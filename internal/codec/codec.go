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

// Package codec compresses and decompresses brick payloads losslessly.
// A codec is identified on disk by a single byte tag so new codecs can
// be added without breaking files written by older builders.
package codec

import (
	"fmt"
	"sync"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

// Codec losslessly (de)compresses brick-sized payloads.
type Codec interface {
	Tag() byte
	Encode(src []byte) ([]byte, error)
	Decode(src []byte, expectedLen int) ([]byte, error)
}

// MaxLenCodec is implemented by codecs whose worst-case output size for a
// given input size can be bounded without actually encoding. Used by the
// client's sparse local-cache writer to reserve disk space up front.
type MaxLenCodec interface {
	MaxEncodedLen(rawLen int) int
}

// MaxEncodedLen returns an upper bound on Encode's output length for the
// codec identified by tag, or rawLen itself if the codec doesn't implement
// MaxLenCodec (a verbatim-store codec never expands).
func MaxEncodedLen(tag byte, rawLen int) int {
	c, err := ByTag(tag)
	if err != nil {
		return rawLen
	}
	if ml, ok := c.(MaxLenCodec); ok {
		return ml.MaxEncodedLen(rawLen)
	}
	return rawLen
}

var (
	registryMu sync.RWMutex
	registry   = map[byte]Codec{}
)

// Register makes a Codec resolvable by its tag byte. Call from an init()
// to add support for a new on-disk codec without touching internal/brickfile.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c.Tag()] = c
}

// ByTag resolves a codec tag read from a file header.
func ByTag(tag byte) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[tag]
	if !ok {
		return nil, bvlerr.Wrap(bvlerr.Format, "codec.ByTag", fmt.Errorf("unknown codec tag %d", tag))
	}
	return c, nil
}

func init() {
	Register(NoneCodec{})
	Register(SnappyCodec{})
}
