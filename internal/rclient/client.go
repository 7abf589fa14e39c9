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

// Package rclient is the counterpart to internal/rserver: connection
// lifecycle, request coalescing, and an optional write-through local
// cache, all presenting datasets through the same dataset.Source
// capability set a local brickfile.Reader implements.
package rclient

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/metadata"
	"github.com/brickvol/brickvol/internal/wire"
)

// ErrTimeout is not returned by this package: every waiter of a batch
// that missed its deadline receives the Transport-classified error from
// the connection instead.
var ErrTimeout = errors.New("rclient: request timed out")

// Client owns one TCP connection to a rserver.Server.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	maxBricksPerGetRequest int
	lingerWindow           time.Duration
}

// Connect dials host:port with the given timeout.
func Connect(host string, port int, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.Transport, "rclient.Connect", err)
	}
	return &Client{
		conn:                   conn,
		r:                      bufio.NewReader(conn),
		maxBricksPerGetRequest: wire.DefaultMaxBricksPerGetRequest,
		lingerWindow:           2 * time.Millisecond,
	}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Info queries the server's protocol version and batch ceiling.
func (c *Client) Info() (version string, maxBricks int, err error) {
	if err := wire.WriteLine(c.conn, "INFO"); err != nil {
		return "", 0, err
	}
	kv := map[string]string{}
	for {
		tokens, err := wire.ReadLine(c.r)
		if err != nil {
			return "", 0, err
		}
		if tokens == nil {
			break
		}
		for _, t := range tokens {
			parts := strings.SplitN(t, "=", 2)
			if len(parts) == 2 {
				kv[parts[0]] = parts[1]
			}
		}
	}
	version = kv["VERSION"]
	maxBricks, _ = strconv.Atoi(kv["MAX_BRICKS_PER_GET_REQUEST"])
	if maxBricks > 0 {
		c.maxBricksPerGetRequest = maxBricks
	}
	return version, maxBricks, nil
}

// ListDatasets returns the server's opaque dataset ids and descriptions.
func (c *Client) ListDatasets() (map[string]string, error) {
	if err := wire.WriteLine(c.conn, "LIST"); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for {
		tokens, err := wire.ReadLine(c.r)
		if err != nil {
			return nil, err
		}
		if tokens == nil {
			break
		}
		if len(tokens) >= 1 {
			desc := ""
			if len(tokens) > 1 {
				desc = strings.Join(tokens[1:], " ")
			}
			out[tokens[0]] = desc
		}
	}
	return out, nil
}

// OpenDataset issues OPEN and returns a Dataset presenting the same
// interface as a local brickfile.Reader. If opts.LocalCachePath is set,
// fetched bricks are additionally written through to a sparse local
// brickfile (internal/brickfile.SparseWriter).
func (c *Client) OpenDataset(id string, opts OpenOptions) (*Dataset, error) {
	if err := wire.WriteLine(c.conn, "OPEN "+id); err != nil {
		return nil, err
	}
	blob, err := wire.ReadFrame(c.r)
	if err != nil {
		return nil, err
	}
	meta, err := metadata.Decode(blob)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		client: c,
		meta:   meta,
	}
	ds.coal = newCoalescer(c, ds, opts.Deadline)
	if opts.LocalCachePath != "" {
		if err := ds.enableLocalCache(opts.LocalCachePath); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// OpenOptions configures OpenDataset.
type OpenOptions struct {
	LocalCachePath string
	Deadline       time.Duration
}
