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

package atlas

// BrickMeta values below FlagCount are sentinel states; FlagCount and
// above encode FlagCount+slotId for a resident brick.
const (
	Missing uint32 = iota
	Empty
	ChildEmpty
	FlagCount
)

// MissingIndex is the hashtable's "no entry" sentinel, matching the
// "zeroed (to 0xFFFFFFFF) before each frame" requirement.
const MissingIndex uint32 = 0xFFFFFFFF

// SlotOf returns the atlas slot a resident BrickMeta value refers to,
// and whether the value denotes residency at all.
func SlotOf(meta uint32) (slot int, resident bool) {
	if meta < FlagCount {
		return 0, false
	}
	return int(meta - FlagCount), true
}
