package brickfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/brickvol/brickvol/internal/metadata"
)

func sampleMeta() *metadata.Metadata {
	m := &metadata.Metadata{
		Version:  1,
		CodecTag: 0,
		B:        1,
		BS:       4,
		OV:       1,
		W:        8, H: 8, D: 8,
		MinValue: 0, MaxValue: 255, RangeMax: 255,
		Aspect:      mgl64.Vec3{1, 1, 1},
		Ext:         metadata.Clamp,
		Description: "round trip fixture",
		Levels: []metadata.LevelEntry{
			{BricksX: 2, BricksY: 2, BricksZ: 2, PrevBricks: 0},
			{BricksX: 1, BricksY: 1, BricksZ: 1, PrevBricks: 8},
		},
		Bricks: make([]metadata.BrickEntry, 9),
	}
	return m
}

func TestCreateWriteFinalizeOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.brk")
	meta := sampleMeta()

	w, err := Create(path, meta)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payloads := make([][]byte, len(meta.Bricks))
	for i := range meta.Bricks {
		payloads[i] = []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
		off, err := w.WriteBrick(payloads[i])
		if err != nil {
			t.Fatalf("WriteBrick(%d): %v", i, err)
		}
		meta.Bricks[i] = metadata.BrickEntry{
			Offset: off, Size: uint64(len(payloads[i])), Flags: metadata.Normal,
			MinValue: 1, MaxValue: 9,
		}
	}
	meta.Bricks[5].Flags = metadata.Empty
	copy(meta.UniqueID[:], []byte("0123456789ABCDEF"))

	if err := w.Finalize(meta); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Metadata().Description != "round trip fixture" {
		t.Fatalf("description not preserved: %q", r.Metadata().Description)
	}
	if r.Metadata().UniqueID != meta.UniqueID {
		t.Fatalf("uniqueID not preserved")
	}

	for i := range meta.Bricks {
		if i == 5 {
			continue
		}
		buf := make([]byte, len(payloads[i]))
		got, err := r.RawBrick(uint32(i), buf)
		if err != nil {
			t.Fatalf("RawBrick(%d): %v", i, err)
		}
		if string(got) != string(payloads[i]) {
			t.Fatalf("RawBrick(%d) = %v, want %v", i, got, payloads[i])
		}
	}

	emptyBuf := make([]byte, 4*4*4)
	if err := r.Brick(5, emptyBuf); err != nil {
		t.Fatalf("Brick(5): %v", err)
	}
	for _, b := range emptyBuf {
		if b != 0 {
			t.Fatalf("expected zero-filled buffer for an EMPTY brick, got %v", emptyBuf)
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.brk")
	meta := sampleMeta()
	w, err := Create(path, meta)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Finalize(meta); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Corrupt the magic bytes in place.
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteAt([]byte{'X'}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	if _, err := Open(path); err == nil {
		t.Fatalf("expected error opening a file with corrupted magic")
	}
}

func TestFinalizeRejectsHeaderSizeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.brk")
	meta := sampleMeta()
	w, err := Create(path, meta)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	grown := *meta
	grown.Description = meta.Description + " but now much, much longer than before"
	if err := w.Finalize(&grown); err == nil {
		t.Fatalf("expected error when the finalized header size differs from the reserved placeholder")
	}
}

func TestAbortRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.brk")
	meta := sampleMeta()
	w, err := Create(path, meta)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected no finalized file to exist after Abort")
	}
}

func TestSparseCreatePatchAndReread(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.brk")
	meta := sampleMeta()
	for i := range meta.Bricks {
		meta.Bricks[i].Flags = metadata.Normal
	}
	meta.Bricks[2].Flags = metadata.Empty

	sw, err := CreateSparse(path, meta)
	if err != nil {
		t.Fatalf("CreateSparse: %v", err)
	}

	if sw.IsBrickCached(0) {
		t.Fatalf("expected brick 0 to start uncached")
	}

	payload := []byte{9, 9, 9, 9}
	if err := sw.PatchBrick(0, payload); err != nil {
		t.Fatalf("PatchBrick: %v", err)
	}
	if !sw.IsBrickCached(0) {
		t.Fatalf("expected brick 0 to be cached after PatchBrick")
	}
	if sw.IsBrickCached(1) {
		t.Fatalf("expected brick 1 to remain uncached")
	}

	buf := make([]byte, len(payload))
	got, err := sw.ReadCachedBrick(0, buf)
	if err != nil {
		t.Fatalf("ReadCachedBrick: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("ReadCachedBrick = %v, want %v", got, payload)
	}

	// PatchBrick on a non-NORMAL (EMPTY) brick is a no-op, not an error.
	if err := sw.PatchBrick(2, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("PatchBrick on EMPTY brick: %v", err)
	}
	if sw.IsBrickCached(2) {
		t.Fatalf("EMPTY brick should never report cached")
	}

	if err := sw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSparseExisting(path)
	if err != nil {
		t.Fatalf("OpenSparseExisting: %v", err)
	}
	defer reopened.Close()

	if !reopened.IsBrickCached(0) {
		t.Fatalf("expected previously patched brick to survive reopen")
	}
	buf2 := make([]byte, len(payload))
	got2, err := reopened.ReadCachedBrick(0, buf2)
	if err != nil {
		t.Fatalf("ReadCachedBrick after reopen: %v", err)
	}
	if string(got2) != string(payload) {
		t.Fatalf("ReadCachedBrick after reopen = %v, want %v", got2, payload)
	}
}
