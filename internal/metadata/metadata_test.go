package metadata

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func sampleMetadata() *Metadata {
	m := &Metadata{
		Version:     1,
		CodecTag:    0,
		B:           1,
		BS:          4,
		OV:          1,
		W:           8, H: 8, D: 8,
		MinValue: 0, MaxValue: 255, RangeMax: 255,
		Aspect:      mgl64.Vec3{1, 1, 1},
		Ext:         Clamp,
		Description: "test volume",
		Levels: []LevelEntry{
			{BricksX: 2, BricksY: 2, BricksZ: 2, PrevBricks: 0},
			{BricksX: 1, BricksY: 1, BricksZ: 1, PrevBricks: 8},
		},
		Bricks: make([]BrickEntry, 9),
		Extra:  map[string]string{"TaggedFileName": "whatever"},
	}
	for i := range m.Bricks {
		m.Bricks[i] = BrickEntry{Offset: uint64(i) * 64, Size: 64, Flags: Normal, MinValue: 1, MaxValue: 9}
	}
	m.Bricks[3].Flags = Empty
	m.Bricks[3].Checksum = 0xDEADBEEF
	copy(m.UniqueID[:], []byte("0123456789ABCDEF"))
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := sampleMetadata()
	blob, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.BS != m.BS || got.OV != m.OV || got.B != m.B {
		t.Fatalf("brick geometry mismatch: %+v vs %+v", got, m)
	}
	if got.UniqueID != m.UniqueID {
		t.Fatalf("UniqueID mismatch: %x vs %x", got.UniqueID, m.UniqueID)
	}
	if len(got.Levels) != len(m.Levels) || len(got.Bricks) != len(m.Bricks) {
		t.Fatalf("table length mismatch")
	}
	if got.Bricks[3].Flags != Empty || got.Bricks[3].Checksum != 0xDEADBEEF {
		t.Fatalf("brick 3 checksum/flag not preserved: %+v", got.Bricks[3])
	}
	if got.Bricks[0].MinValue != 1 || got.Bricks[0].MaxValue != 9 {
		t.Fatalf("brick min/max not preserved: %+v", got.Bricks[0])
	}
	if got.Extra["TaggedFileName"] != "whatever" {
		t.Fatalf("unrecognized key not preserved through Extra: %+v", got.Extra)
	}
	if got.Description != "test volume" {
		t.Fatalf("description not preserved: %q", got.Description)
	}
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	m := sampleMetadata()
	blob, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(blob[:len(blob)-5]); err == nil {
		t.Fatalf("expected error decoding truncated blob")
	}
}

func TestDecodeRejectsMissingRequiredKey(t *testing.T) {
	// A blob with zero KV entries is missing every required key.
	blob := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if _, err := Decode(blob); err == nil {
		t.Fatalf("expected error decoding blob with no KV entries")
	}
}

func TestBrickIndexAndCoordsRoundTrip(t *testing.T) {
	m := sampleMetadata()
	for level := 0; level <= m.TopLevel(); level++ {
		lv := m.Levels[level]
		for bz := 0; bz < int(lv.BricksZ); bz++ {
			for by := 0; by < int(lv.BricksY); by++ {
				for bx := 0; bx < int(lv.BricksX); bx++ {
					idx := m.BrickIndex(level, bx, by, bz)
					gotLevel, gbx, gby, gbz := m.Coords(idx)
					if gotLevel != level || gbx != bx || gby != by || gbz != bz {
						t.Fatalf("Coords(%d)=(%d,%d,%d,%d), want (%d,%d,%d,%d)",
							idx, gotLevel, gbx, gby, gbz, level, bx, by, bz)
					}
				}
			}
		}
	}
}

func TestLevelOfBoundary(t *testing.T) {
	m := sampleMetadata()
	if got := m.LevelOf(0); got != 0 {
		t.Fatalf("LevelOf(0) = %d, want 0", got)
	}
	if got := m.LevelOf(7); got != 0 {
		t.Fatalf("LevelOf(7) = %d, want 0 (last brick of level 0)", got)
	}
	if got := m.LevelOf(8); got != 1 {
		t.Fatalf("LevelOf(8) = %d, want 1 (top brick)", got)
	}
}

func TestParentHalvesCoordinates(t *testing.T) {
	m := sampleMetadata()
	idx := m.BrickIndex(0, 1, 1, 0)
	parent, ok := m.Parent(idx)
	if !ok {
		t.Fatalf("expected a parent for a level-0 brick")
	}
	wantParent := m.BrickIndex(1, 0, 0, 0)
	if parent != wantParent {
		t.Fatalf("Parent(%d) = %d, want %d", idx, parent, wantParent)
	}
}

func TestParentFalseAtTopLevel(t *testing.T) {
	m := sampleMetadata()
	top := m.BrickIndex(m.TopLevel(), 0, 0, 0)
	if _, ok := m.Parent(top); ok {
		t.Fatalf("expected no parent for the top-level brick")
	}
}

func TestExtensionStrategyStringRoundTrip(t *testing.T) {
	for _, e := range []ExtensionStrategy{FillZeroes, Clamp, Repeat} {
		if got := ParseExtensionStrategy(e.String()); got != e {
			t.Fatalf("ParseExtensionStrategy(%q) = %v, want %v", e.String(), got, e)
		}
	}
}
