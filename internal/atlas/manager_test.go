package atlas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickvol/brickvol/internal/config"
	"github.com/brickvol/brickvol/internal/metadata"
)

const testBrickBytes = 8 // bs=2, B=1 -> 2^3 = 8 voxels

// fakeSource serves every NORMAL brick as a payload of repeated bytes
// equal to its own index, so tests can assert atlas contents by brick.
type fakeSource struct {
	meta *metadata.Metadata
}

func (f *fakeSource) Metadata() *metadata.Metadata { return f.meta }

func (f *fakeSource) AllocateBrickBuffer() []byte { return make([]byte, testBrickBytes) }

func (f *fakeSource) RawBrick(i uint32, buf []byte) ([]byte, error) { return buf[:0], nil }

func (f *fakeSource) Brick(i uint32, buf []byte) error {
	for j := range buf {
		buf[j] = byte(i)
	}
	return nil
}

// buildTestPyramid makes a 2-level pyramid: level 0 has 4 bricks
// (2x2x1), level 1 (top) has 1 brick. Brick 2 is structurally EMPTY.
func buildTestPyramid() *metadata.Metadata {
	levels := []metadata.LevelEntry{
		{BricksX: 2, BricksY: 2, BricksZ: 1, PrevBricks: 0},
		{BricksX: 1, BricksY: 1, BricksZ: 1, PrevBricks: 4},
	}
	bricks := make([]metadata.BrickEntry, 5)
	for i := range bricks {
		bricks[i] = metadata.BrickEntry{Flags: metadata.Normal, MinValue: 0, MaxValue: 10}
	}
	bricks[2].Flags = metadata.Empty
	return &metadata.Metadata{
		BS: 2, B: 1, OV: 0,
		Levels: levels,
		Bricks: bricks,
	}
}

func testCfg() config.AtlasConfig {
	return config.AtlasConfig{
		AtlasSizeMB:        1,
		MinHashTableSizeMB: 1,
		ScreenSpaceError:   1,
		MaxProbingAttempts: 1,
	}
}

func waitForAdmission(t *testing.T, m *Manager, missed []uint32, want int) (admitted, evicted []uint32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a, e := m.AdmitFrame(missed, nil, nil)
		admitted = append(admitted, a...)
		evicted = append(evicted, e...)
		if len(admitted) >= want {
			return admitted, evicted
		}
		time.Sleep(2 * time.Millisecond)
	}
	return admitted, evicted
}

func TestAdmitFrameSkipsStructurallyEmptyBrick(t *testing.T) {
	meta := buildTestPyramid()
	m := New(&fakeSource{meta: meta}, testCfg())
	defer m.Close()

	admitted, _ := m.AdmitFrame([]uint32{2}, nil, nil)
	assert.Empty(t, admitted)
	assert.Equal(t, Empty, m.BrickMeta()[2])
	_, resident := m.residency[2]
	assert.False(t, resident, "EMPTY bricks must never hold a slot")
}

func TestAdmitFrameFetchesAndMarksResident(t *testing.T) {
	meta := buildTestPyramid()
	m := New(&fakeSource{meta: meta}, testCfg())
	defer m.Close()

	// A miss on brick 0 also prefetches its parent, top-level brick 4.
	admitted, _ := waitForAdmission(t, m, []uint32{0}, 2)
	require.Contains(t, admitted, uint32(0))
	slot, resident := SlotOf(m.BrickMeta()[0])
	require.True(t, resident)
	assert.Equal(t, slot, m.residency[0])
}

func TestAdmitFrameEvictsUnderPressure(t *testing.T) {
	meta := buildTestPyramid()
	src := &fakeSource{meta: meta}
	m := New(src, testCfg())
	defer m.Close()
	// A miss on a level-0 brick also prefetches its parent, top-level
	// brick 4, which is never evicted. With two slots holding bricks 0
	// and 4, the second distinct level-0 brick must evict the first.
	m.slots = 2
	m.freeSlots = []int{1, 0}
	m.atlasBytes = make([]byte, 2*testBrickBytes)

	_, _ = waitForAdmission(t, m, []uint32{0}, 2)
	_, resident0 := m.residency[0]
	require.True(t, resident0)

	admitted, evicted := waitForAdmission(t, m, []uint32{1}, 1)
	require.Contains(t, admitted, uint32(1))
	assert.Contains(t, evicted, uint32(0))
	_, stillResident0 := m.residency[0]
	assert.False(t, stillResident0)
	assert.Equal(t, Missing, m.BrickMeta()[0])
}

func TestAdmitFrameNeverEvictsPinnedBrick(t *testing.T) {
	meta := buildTestPyramid()
	src := &fakeSource{meta: meta}
	m := New(src, testCfg())
	defer m.Close()
	// Two slots: brick 0 and its prefetched parent, top-level brick 4.
	m.slots = 2
	m.freeSlots = []int{1, 0}
	m.atlasBytes = make([]byte, 2*testBrickBytes)

	_, _ = waitForAdmission(t, m, []uint32{0}, 2)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		m.AdmitFrame([]uint32{1}, []uint32{0}, nil)
		time.Sleep(2 * time.Millisecond)
	}
	_, stillResident0 := m.residency[0]
	assert.True(t, stillResident0, "pinned brick must survive eviction pressure")
}

func TestTransferFunctionEmptyRangeSkipsAdmission(t *testing.T) {
	meta := buildTestPyramid()
	m := New(&fakeSource{meta: meta}, testCfg())
	defer m.Close()

	tf := &TransferFunction{Opacity: func(v float64) float64 { return 0 }}
	admitted, _ := m.AdmitFrame([]uint32{0}, nil, tf)
	assert.Empty(t, admitted)
	assert.Equal(t, Empty, m.BrickMeta()[0])
}

func TestTransferFunctionChangeRestoresMissing(t *testing.T) {
	meta := buildTestPyramid()
	m := New(&fakeSource{meta: meta}, testCfg())
	defer m.Close()

	zero := &TransferFunction{Opacity: func(v float64) float64 { return 0 }}
	m.AdmitFrame([]uint32{0}, nil, zero)
	require.Equal(t, Empty, m.BrickMeta()[0])

	visible := &TransferFunction{Opacity: func(v float64) float64 { return 1 }}
	m.AdmitFrame(nil, nil, visible)
	assert.Equal(t, Missing, m.BrickMeta()[0], "TF change must restore previously-TF-empty bricks to MISSING")
}

func TestPurgeClearsResidencyAndLRU(t *testing.T) {
	meta := buildTestPyramid()
	m := New(&fakeSource{meta: meta}, testCfg())
	defer m.Close()

	waitForAdmission(t, m, []uint32{0}, 1)
	m.Purge()

	assert.Empty(t, m.residency)
	assert.Equal(t, 0, m.lru.Len())
	for _, v := range m.BrickMeta() {
		assert.Equal(t, Missing, v)
	}
}

func TestProcessMissHashtableDedupsAndOrdersCoarsestFirst(t *testing.T) {
	meta := buildTestPyramid()
	m := New(&fakeSource{meta: meta}, testCfg())
	defer m.Close()

	ordered := m.ProcessMissHashtable([]uint32{0, 0, MissingIndex, 4, 1})
	require.Len(t, ordered, 3)
	assert.Equal(t, uint32(4), ordered[0], "level-1 brick must sort before level-0 bricks")
}
