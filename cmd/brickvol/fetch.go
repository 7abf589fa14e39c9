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

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/brickvol/brickvol/internal/rclient"
)

// fetchCommand is not part of the core CLI surface; it exercises
// internal/rclient end to end (connect, info, open, pull every brick)
// the way client/main.go exercises a kcptun session, minus the tunnel.
var fetchCommand = cli.Command{
	Name:      "fetch",
	Usage:     "connects to a brickvol server and pulls one dataset's bricks",
	ArgsUsage: "<host> <port> <datasetID>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "local-cache", Usage: "path to a sparse local cache file (C7)"},
		cli.DurationFlag{Name: "timeout", Value: 5 * time.Second},
	},
	Action: func(c *cli.Context) error {
		args := c.Args()
		if len(args) != 3 {
			return cli.NewExitError("fetch: expected <host> <port> <datasetID>", 1)
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("port: %v", err), 1)
		}

		cl, err := rclient.Connect(args[0], port, c.Duration("timeout"))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer cl.Close()

		version, maxBricks, err := cl.Info()
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Printf("brickvol: server protocol %s, max %d bricks/request\n", version, maxBricks)

		ds, err := cl.OpenDataset(args[2], rclient.OpenOptions{
			LocalCachePath: c.String("local-cache"),
			Deadline:       c.Duration("timeout"),
		})
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		total := ds.Metadata().TotalBricks()
		bar := progressbar.Default(int64(total), "fetching")
		buf := ds.AllocateBrickBuffer()
		for i := 0; i < total; i++ {
			if err := ds.Brick(uint32(i), buf); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			bar.Add(1)
		}
		fmt.Printf("\nbrickvol: fetched %d bricks, %.1f%% served from local cache\n", total, ds.LocalRatio()*100)
		return nil
	},
}
