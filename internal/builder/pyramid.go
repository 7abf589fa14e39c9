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

// Package builder splits a raw 3D array into a bricked, LOD-pyramided,
// emptiness-classified, optionally compressed brickvol container.
package builder

import "github.com/brickvol/brickvol/internal/metadata"

// levelDims is the full voxel extent of one LOD level.
type levelDims struct{ w, h, d int }

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// computePyramid returns the voxel dims of every level (finest first)
// down to and including the single-brick top level.
func computePyramid(w, h, d, innerSize int) []levelDims {
	levels := []levelDims{{w, h, d}}
	for {
		last := levels[len(levels)-1]
		bx := ceilDiv(last.w, innerSize)
		by := ceilDiv(last.h, innerSize)
		bz := ceilDiv(last.d, innerSize)
		if bx <= 1 && by <= 1 && bz <= 1 {
			break
		}
		levels = append(levels, levelDims{ceilDiv(last.w, 2), ceilDiv(last.h, 2), ceilDiv(last.d, 2)})
	}
	return levels
}

// buildLevelTable converts voxel dims per level into the dense brick
// layout table stored in the metadata blob.
func buildLevelTable(dims []levelDims, innerSize int) []metadata.LevelEntry {
	table := make([]metadata.LevelEntry, len(dims))
	prev := uint32(0)
	for i, ld := range dims {
		bx := uint32(ceilDiv(ld.w, innerSize))
		by := uint32(ceilDiv(ld.h, innerSize))
		bz := uint32(ceilDiv(ld.d, innerSize))
		table[i] = metadata.LevelEntry{BricksX: bx, BricksY: by, BricksZ: bz, PrevBricks: prev}
		prev += bx * by * bz
	}
	return table
}
