package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	return path
}

func TestParseSidecarSuccess(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "volume.raw", string(make([]byte, 4*4*4)))
	path := writeFile(t, dir, "volume.dat", "ObjectFileName: volume.raw\n"+
		"TaggedFileName: ---\n"+
		"Resolution:     4 4 4\n"+
		"Components:     1\n"+
		"SliceThickness: 1.0 1.0 1.0\n"+
		"Format:         UCHAR\n"+
		"ObjectType:     TEXTURE_VOLUME_OBJECT\n")

	d, err := ParseSidecar(path)
	if err != nil {
		t.Fatalf("ParseSidecar: %v", err)
	}
	if d.W != 4 || d.H != 4 || d.D != 4 {
		t.Fatalf("unexpected resolution: %+v", d)
	}
	if d.Format != UChar {
		t.Fatalf("expected UCHAR, got %v", d.Format)
	}
	if d.ObjectFileName != filepath.Join(dir, "volume.raw") {
		t.Fatalf("ObjectFileName not resolved relative to sidecar dir: %s", d.ObjectFileName)
	}

	acc, err := d.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer acc.Close()
	w, h, dd := acc.Size()
	if w != 4 || h != 4 || dd != 4 {
		t.Fatalf("accessor size mismatch: %d %d %d", w, h, dd)
	}
}

func TestParseSidecarMissingRequiredKey(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.dat", "Resolution: 4 4 4\nFormat: UCHAR\n")
	if _, err := ParseSidecar(path); err == nil {
		t.Fatalf("expected error for sidecar missing ObjectFileName")
	}
}

func TestParseSidecarUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.dat", "ObjectFileName: x.raw\nResolution: 1 1 1\nFormat: FLOAT\n")
	if _, err := ParseSidecar(path); err == nil {
		t.Fatalf("expected error for unsupported Format value")
	}
}

func TestParseSidecarIgnoresUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "v.raw", string(make([]byte, 8)))
	path := writeFile(t, dir, "v.dat", "ObjectFileName: v.raw\n"+
		"Resolution: 2 2 2\nFormat: UCHAR\nGridType: UNIFORMGRID\nSomeFutureKey: whatever\n")
	if _, err := ParseSidecar(path); err != nil {
		t.Fatalf("unrecognized keys must be ignored, got error: %v", err)
	}
}
