package rserver

import (
	"bufio"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/brickvol/brickvol/internal/builder"
	"github.com/brickvol/brickvol/internal/metadata"
	"github.com/brickvol/brickvol/internal/wire"
)

// buildFixtureDataset writes one small brickvol container into dir and
// returns its on-disk path.
func buildFixtureDataset(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.data")
	src := builder.GenerateSynthetic(builder.Linear, 1, 8, 8, 8)
	params := builder.Params{BrickSize: 4, Overlap: 0, Ext: metadata.Clamp, Description: "fixture"}
	if err := builder.Build(src, params, path, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return path
}

func startTestServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()
	dir := t.TempDir()
	buildFixtureDataset(t, dir)

	srv, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String(), srv
}

func dialTest(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestInfoReportsVersionAndLimit(t *testing.T) {
	addr, _ := startTestServer(t)
	conn := dialTest(t, addr)

	if err := wire.WriteLine(conn, "INFO"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	br := bufio.NewReader(conn)
	fields, err := wire.ReadLine(br)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	joined := strings.Join(fields, " ")
	if !strings.Contains(joined, "VERSION="+wire.ProtocolVersion) {
		t.Fatalf("INFO response missing protocol version: %v", fields)
	}
	limit, err := wire.ReadLine(br)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	wantLimit := "MAX_BRICKS_PER_GET_REQUEST=" + strconv.Itoa(wire.DefaultMaxBricksPerGetRequest)
	if len(limit) != 1 || limit[0] != wantLimit {
		t.Fatalf("INFO limit line = %v, want %q", limit, wantLimit)
	}
}

func TestListReportsDatasetID(t *testing.T) {
	addr, srv := startTestServer(t)
	conn := dialTest(t, addr)

	if err := wire.WriteLine(conn, "LIST"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	fields, err := wire.ReadLine(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	var wantID string
	for id := range srv.descs {
		wantID = id
	}
	if len(fields) == 0 || fields[0] != wantID {
		t.Fatalf("LIST = %v, want first field %q", fields, wantID)
	}
}

func TestOpenReturnsMetadataThenGetBricksReturnsFrame(t *testing.T) {
	addr, srv := startTestServer(t)
	conn := dialTest(t, addr)
	br := bufio.NewReader(conn)

	var id string
	for k := range srv.descs {
		id = k
	}

	if err := wire.WriteLine(conn, "OPEN "+id); err != nil {
		t.Fatalf("WriteLine OPEN: %v", err)
	}
	blob, err := wire.ReadFrame(br)
	if err != nil {
		t.Fatalf("ReadFrame metadata: %v", err)
	}
	meta, err := metadata.Decode(blob)
	if err != nil {
		t.Fatalf("Decode metadata: %v", err)
	}
	if meta.Description != "fixture" {
		t.Fatalf("metadata description = %q, want fixture", meta.Description)
	}

	if err := wire.WriteLine(conn, "GETBRICKS "+strconv.Itoa(0)); err != nil {
		t.Fatalf("WriteLine GETBRICKS: %v", err)
	}
	if _, err := wire.ReadFrame(br); err != nil {
		t.Fatalf("ReadFrame brick payload: %v", err)
	}
}

func TestGetBricksBeforeOpenClosesConnection(t *testing.T) {
	addr, _ := startTestServer(t)
	conn := dialTest(t, addr)

	if err := wire.WriteLine(conn, "GETBRICKS 0"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected the server to close the connection after GETBRICKS without OPEN")
	}
}

func TestGetBricksRejectsOutOfRangeIndex(t *testing.T) {
	addr, srv := startTestServer(t)
	conn := dialTest(t, addr)
	br := bufio.NewReader(conn)

	var id string
	for k := range srv.descs {
		id = k
	}
	if err := wire.WriteLine(conn, "OPEN "+id); err != nil {
		t.Fatalf("WriteLine OPEN: %v", err)
	}
	if _, err := wire.ReadFrame(br); err != nil {
		t.Fatalf("ReadFrame metadata: %v", err)
	}

	if err := wire.WriteLine(conn, "GETBRICKS 999999"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected the server to close the connection after an out-of-range brick index")
	}
}
