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

// Package atlas is the GPU-driven brick cache (C8): an LRU residency
// manager over a fixed-size 3D atlas, fed by a per-frame miss list and
// coordinating a background loader with admission, eviction, coarse-LOD
// substitution, and transfer-function-driven emptiness re-evaluation.
package atlas

import (
	"container/list"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/brickvol/brickvol/internal/config"
	"github.com/brickvol/brickvol/internal/dataset"
	"github.com/brickvol/brickvol/internal/loader"
	"github.com/brickvol/brickvol/internal/metadata"
)

// Manager owns the atlas, the residency map, the LRU list, and the
// per-brick metadata buffer the (out-of-scope) shader consumes.
type Manager struct {
	src  dataset.Source
	meta *metadata.Metadata
	cfg  config.AtlasConfig

	brickBytes int
	slots      int
	freeSlots  []int

	brickMeta []uint32
	residency map[uint32]int
	lru       *list.List // container/list, element.Value = uint32 brick index, MRU at Front
	lruElem   map[uint32]*list.Element

	atlasBytes []byte
	pinned     map[uint32]struct{}

	tf      *TransferFunction
	tfEmpty map[uint32]struct{}

	ld *loader.Loader

	mu sync.Mutex
}

// New builds a Manager over src's bricks, sizing the atlas from
// cfg.AtlasSizeMB and starting a background loader.Loader.
func New(src dataset.Source, cfg config.AtlasConfig) *Manager {
	md := src.Metadata()
	brickBytes := md.BS * md.BS * md.BS * md.B
	slots := (cfg.AtlasSizeMB * 1024 * 1024) / brickBytes
	if slots < 1 {
		slots = 1
	}

	m := &Manager{
		src:        src,
		meta:       md,
		cfg:        cfg,
		brickBytes: brickBytes,
		slots:      slots,
		freeSlots:  make([]int, slots),
		brickMeta:  make([]uint32, md.TotalBricks()),
		residency:  make(map[uint32]int),
		lru:        list.New(),
		lruElem:    make(map[uint32]*list.Element),
		atlasBytes: make([]byte, slots*brickBytes),
		pinned:     make(map[uint32]struct{}),
		tfEmpty:    make(map[uint32]struct{}),
		ld:         loader.New(src, cfg.MinHashTableSizeMB*1024*1024/4, 0),
	}
	for i := range m.freeSlots {
		m.freeSlots[i] = slots - 1 - i
	}
	for i, b := range md.Bricks {
		switch b.Flags {
		case metadata.Empty:
			m.brickMeta[i] = Empty
		case metadata.ChildEmpty:
			m.brickMeta[i] = ChildEmpty
		default:
			m.brickMeta[i] = Missing
		}
	}

	m.prewarm(cfg.InitialBricks)
	return m
}

// prewarm eagerly enqueues up to n bricks starting from the coarsest
// level, so the shader has something resident before the first frame.
func (m *Manager) prewarm(n int) {
	if n <= 0 {
		return
	}
	enqueued := 0
	for level := m.meta.TopLevel(); level >= 0 && enqueued < n; level-- {
		lv := m.meta.Levels[level]
		count := int(lv.BricksX * lv.BricksY * lv.BricksZ)
		for local := 0; local < count && enqueued < n; local++ {
			idx := lv.PrevBricks + uint32(local)
			if m.meta.Bricks[idx].Flags != metadata.Normal {
				continue
			}
			m.ld.Enqueue(idx, level)
			enqueued++
		}
	}
}

// BrickMeta returns the shader-facing metadata buffer. Callers must not
// retain it across a call that mutates the manager.
func (m *Manager) BrickMeta() []uint32 { return m.brickMeta }

// AtlasBytes returns the atlas scratch buffer standing in for the GPU
// texture; slot i occupies [i*brickBytes, (i+1)*brickBytes).
func (m *Manager) AtlasBytes() []byte { return m.atlasBytes }

// ProcessMissHashtable dedups the hashtable's non-sentinel entries with
// a roaring64 bitmap (grounded on pmtiles' RelevantEntries/
// ReencodeEntries, which dedup and coalesce a stream of tile IDs with
// the identical bitmap type) and orders them coarsest-LOD first.
func (m *Manager) ProcessMissHashtable(raw []uint32) []uint32 {
	bm := roaring64.New()
	for _, v := range raw {
		if v == MissingIndex {
			continue
		}
		bm.Add(uint64(v))
	}
	out := make([]uint32, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, uint32(it.Next()))
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := m.meta.LevelOf(out[i]), m.meta.LevelOf(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}

// AdmitFrame is the single synchronous entry point the render loop
// calls once per frame: it dedups and dispatches this frame's misses to
// the background loader, then admits whatever the loader has finished
// fetching since the last call.
func (m *Manager) AdmitFrame(missed []uint32, pinned []uint32, tf *TransferFunction) (admitted, evicted []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tf != m.tf {
		m.applyTFChangeLocked(tf)
	}

	m.pinned = make(map[uint32]struct{}, len(pinned))
	for _, p := range pinned {
		m.pinned[p] = struct{}{}
	}

	for _, idx := range m.ProcessMissHashtable(missed) {
		m.dispatchMissLocked(idx)
	}

	for _, c := range m.ld.Drain() {
		if c.Err != nil {
			continue // shader keeps falling back to the nearest resident ancestor
		}
		if _, already := m.residency[c.Brick]; already {
			continue
		}
		slot, victim, ok := m.allocateSlotLocked()
		if !ok {
			continue // atlas full and every occupant pinned or top-level: the completion is dropped
		}
		if victim >= 0 {
			evicted = append(evicted, uint32(victim))
		}
		copy(m.atlasBytes[slot*m.brickBytes:(slot+1)*m.brickBytes], c.Data)
		m.residency[c.Brick] = slot
		m.brickMeta[c.Brick] = FlagCount + uint32(slot)
		m.touchLocked(c.Brick)
		admitted = append(admitted, c.Brick)
	}
	return admitted, evicted
}

func (m *Manager) dispatchMissLocked(idx uint32) {
	entry := m.meta.Bricks[idx]
	switch entry.Flags {
	case metadata.Empty:
		m.brickMeta[idx] = Empty
		return
	case metadata.ChildEmpty:
		m.brickMeta[idx] = ChildEmpty
		return
	}
	if m.tf.IsEmptyRange(float64(entry.MinValue), float64(entry.MaxValue)) {
		m.brickMeta[idx] = Empty
		m.tfEmpty[idx] = struct{}{}
		return
	}
	if _, resident := m.residency[idx]; resident {
		m.touchLocked(idx)
		return
	}
	level := m.meta.LevelOf(idx)
	m.ld.Enqueue(idx, level)
	if parent, ok := m.meta.Parent(idx); ok {
		if _, resident := m.residency[parent]; !resident {
			m.ld.Enqueue(parent, level+1)
		}
	}
}

// allocateSlotLocked returns a free slot, evicting the LRU tail if none
// is free. victim is the evicted brick index, or -1 if no eviction was
// needed. ok is false only when the atlas is full and every occupant is
// either pinned for the current frame or the top-level brick.
func (m *Manager) allocateSlotLocked() (slot, victim int, ok bool) {
	if n := len(m.freeSlots); n > 0 {
		slot = m.freeSlots[n-1]
		m.freeSlots = m.freeSlots[:n-1]
		return slot, -1, true
	}

	for elem := m.lru.Back(); elem != nil; elem = elem.Prev() {
		brick := elem.Value.(uint32)
		if _, isPinned := m.pinned[brick]; isPinned {
			continue
		}
		// Coarser-LOD bonus: never evict the single top-level brick, bounding
		// the protection to one slot so eventual eviction still holds for
		// every other level.
		if m.meta.LevelOf(brick) == m.meta.TopLevel() {
			continue
		}
		slot = m.residency[brick]
		delete(m.residency, brick)
		m.brickMeta[brick] = Missing
		m.lru.Remove(elem)
		delete(m.lruElem, brick)
		return slot, int(brick), true
	}
	return 0, -1, false
}

func (m *Manager) touchLocked(brick uint32) {
	if elem, ok := m.lruElem[brick]; ok {
		m.lru.MoveToFront(elem)
		return
	}
	elem := m.lru.PushFront(brick)
	m.lruElem[brick] = elem
}

// applyTFChangeLocked restores every TF-empty brick to MISSING before
// adopting the new transfer function, per §4.8's "BrickMeta for
// previously-marked-empty bricks MUST be restored to MISSING before the
// next frame" requirement.
func (m *Manager) applyTFChangeLocked(tf *TransferFunction) {
	for idx := range m.tfEmpty {
		m.brickMeta[idx] = Missing
	}
	m.tfEmpty = make(map[uint32]struct{})
	m.tf = tf
}

// Purge clears every slot, resets BrickMeta to MISSING, empties the
// LRU, and cancels all pending loads, preserving the LevelTable (the
// caller's metadata.Metadata is untouched).
func (m *Manager) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ld.Purge()
	m.residency = make(map[uint32]int)
	m.lru.Init()
	m.lruElem = make(map[uint32]*list.Element)
	m.tfEmpty = make(map[uint32]struct{})
	m.freeSlots = make([]int, m.slots)
	for i := range m.freeSlots {
		m.freeSlots[i] = m.slots - 1 - i
	}
	for i := range m.brickMeta {
		m.brickMeta[i] = Missing
	}
}

// Close stops the background loader.
func (m *Manager) Close() { m.ld.Close() }
