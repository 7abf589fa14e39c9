package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli"

	"github.com/brickvol/brickvol/internal/brickfile"
)

func newTestApp() *cli.App {
	app := cli.NewApp()
	app.Commands = []cli.Command{
		buildQVISCommand,
		buildNRRDCommand,
		buildDICOMCommand,
		buildSynthCommand,
	}
	return app
}

func TestBuildSynthProducesAReadableContainer(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "synth.data")

	app := newTestApp()
	args := []string{"brickvol", "build-synth", "L", "1", "1", "8", "8", "8", out, "synthetic fixture", "4", "0"}
	if err := app.Run(args); err != nil {
		t.Fatalf("build-synth: %v", err)
	}

	r, err := brickfile.Open(out)
	if err != nil {
		t.Fatalf("Open produced container: %v", err)
	}
	defer r.Close()
	if r.Metadata().Description != "synthetic fixture" {
		t.Fatalf("Description = %q, want %q", r.Metadata().Description, "synthetic fixture")
	}
}

func TestBuildSynthRejectsWrongArgCount(t *testing.T) {
	app := newTestApp()
	args := []string{"brickvol", "build-synth", "L", "1"}
	if err := app.Run(args); err == nil {
		t.Fatalf("expected an error for too few build-synth arguments")
	}
}

func TestBuildSynthRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "synth.data")
	app := newTestApp()
	args := []string{"brickvol", "build-synth", "X", "1", "1", "8", "8", "8", out, "desc", "4", "0"}
	if err := app.Run(args); err == nil {
		t.Fatalf("expected an error for an unknown synth kind")
	}
}

func TestBuildDICOMFailsLoudly(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp()
	args := []string{"brickvol", "build-dicom", dir, filepath.Join(dir, "out.data"), "desc", "4", "0"}
	if err := app.Run(args); err == nil {
		t.Fatalf("expected build-dicom to fail since DICOM decoding is out of scope")
	}
}

func TestBuildQVISRoundTripsThroughSidecar(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "vol.raw")
	if err := os.WriteFile(rawPath, make([]byte, 8*8*8), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sidecar := filepath.Join(dir, "vol.dat")
	body := "ObjectFileName: vol.raw\nResolution: 8 8 8\nFormat: UCHAR\n"
	if err := os.WriteFile(sidecar, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile sidecar: %v", err)
	}

	out := filepath.Join(dir, "vol.data")
	app := newTestApp()
	args := []string{"brickvol", "build-qvis", sidecar, out, "qvis fixture", "4", "0"}
	if err := app.Run(args); err != nil {
		t.Fatalf("build-qvis: %v", err)
	}

	r, err := brickfile.Open(out)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if r.Metadata().Description != "qvis fixture" {
		t.Fatalf("Description = %q, want qvis fixture", r.Metadata().Description)
	}
}
