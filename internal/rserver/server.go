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

// Package rserver implements the remote brick protocol server: a plain
// TCP listener handing each accepted connection to its own goroutine,
// the same one-goroutine-per-stream shape as the teacher's
// server/main.go handleClient, generalized from a multiplexed KCP/smux
// session down to one net.Conn per client.
package rserver

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/brickvol/brickvol/internal/brickfile"
	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/wire"
)

// Server holds one Reader per dataset directory entry, built once at
// construction and never mutated afterward — safe for concurrent OPENs.
type Server struct {
	MaxBricksPerGetRequest int

	mu       sync.RWMutex
	datasets map[string]*brickfile.Reader // id -> reader
	descs    map[string]string            // id -> description
}

// New scans dir for *.data files and opens each as a dataset, keyed by
// a name-derived UUIDv5 so IDs stay stable across restarts without a
// persisted id-map file (grounded on Gekko3D-gekko's use of google/uuid).
func New(dir string, maxBricksPerGetRequest int) (*Server, error) {
	if maxBricksPerGetRequest <= 0 {
		maxBricksPerGetRequest = wire.DefaultMaxBricksPerGetRequest
	}
	s := &Server{
		MaxBricksPerGetRequest: maxBricksPerGetRequest,
		datasets:               map[string]*brickfile.Reader{},
		descs:                  map[string]string{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "rserver.New", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".data" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		r, err := brickfile.Open(path)
		if err != nil {
			log.Printf("rserver: skipping %s: %v", path, err)
			continue
		}
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()
		s.datasets[id] = r
		s.descs[id] = r.Metadata().Description
		log.Printf("rserver: dataset %s -> %s", id, path)
	}
	return s, nil
}

// ListenAndServe accepts connections on addr until the listener errors.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return bvlerr.Wrap(bvlerr.IO, "rserver.ListenAndServe", err)
	}
	log.Println("rserver: listening on", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			return bvlerr.Wrap(bvlerr.IO, "rserver.ListenAndServe", err)
		}
		go s.serveConn(conn)
	}
}

type connState struct {
	current   *brickfile.Reader
	currentID string
	scratch   []byte
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	st := &connState{}

	for {
		tokens, err := wire.ReadLine(r)
		if err != nil {
			return // EOF or transport error: connection closes, nothing further to log
		}
		if tokens == nil {
			continue
		}
		verb := strings.ToUpper(tokens[0])
		args := tokens[1:]

		var herr error
		switch verb {
		case "INFO":
			herr = s.handleInfo(conn)
		case "LIST":
			herr = s.handleList(conn)
		case "OPEN":
			herr = s.handleOpen(conn, st, args)
		case "GETBRICKS":
			herr = s.handleGetBricks(conn, st, args)
		default:
			herr = bvlerr.Wrap(bvlerr.Protocol, "rserver.serveConn", fmt.Errorf("unknown verb %q", verb))
		}
		if herr != nil {
			log.Printf("rserver: conn %s: %v", conn.RemoteAddr(), herr)
			return
		}
	}
}

func (s *Server) handleInfo(conn net.Conn) error {
	return wire.WriteLine(conn, fmt.Sprintf("VERSION=%s\nMAX_BRICKS_PER_GET_REQUEST=%d\n", wire.ProtocolVersion, s.MaxBricksPerGetRequest))
}

func (s *Server) handleList(conn net.Conn) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, desc := range s.descs {
		if err := wire.WriteLine(conn, fmt.Sprintf("%s %s", id, desc)); err != nil {
			return err
		}
	}
	return wire.WriteLine(conn, "")
}

func (s *Server) handleOpen(conn net.Conn, st *connState, args []string) error {
	if len(args) != 1 {
		return bvlerr.Wrap(bvlerr.Protocol, "rserver.handleOpen", fmt.Errorf("OPEN requires exactly 1 argument"))
	}
	s.mu.RLock()
	reader, ok := s.datasets[args[0]]
	s.mu.RUnlock()
	if !ok {
		return bvlerr.Wrap(bvlerr.Protocol, "rserver.handleOpen", fmt.Errorf("unknown dataset id %q", args[0]))
	}

	blob, err := reader.Metadata().Encode()
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(conn, blob); err != nil {
		return err
	}
	st.current = reader
	st.currentID = args[0]
	st.scratch = reader.AllocateBrickBuffer()
	return nil
}

func (s *Server) handleGetBricks(conn net.Conn, st *connState, args []string) error {
	if st.current == nil {
		return bvlerr.Wrap(bvlerr.Protocol, "rserver.handleGetBricks", fmt.Errorf("GETBRICKS before OPEN"))
	}
	if len(args) < 1 || len(args) > s.MaxBricksPerGetRequest {
		return bvlerr.Wrap(bvlerr.Protocol, "rserver.handleGetBricks", fmt.Errorf("request size %d outside [1,%d]", len(args), s.MaxBricksPerGetRequest))
	}

	meta := st.current.Metadata()
	indices := make([]uint32, len(args))
	for i, a := range args {
		n, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return bvlerr.Wrap(bvlerr.Protocol, "rserver.handleGetBricks", fmt.Errorf("non-integer index %q", a))
		}
		if int(n) >= len(meta.Bricks) {
			return bvlerr.Wrap(bvlerr.Protocol, "rserver.handleGetBricks", fmt.Errorf("index %d out of range", n))
		}
		indices[i] = uint32(n)
	}

	var out []byte
	for _, idx := range indices {
		raw, err := st.current.RawBrick(idx, st.scratch)
		if err != nil {
			return err
		}
		out = append(out, raw...)
	}
	return wire.WriteFrame(conn, out)
}
