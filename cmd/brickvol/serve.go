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
	"log"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/brickvol/brickvol/internal/rserver"
	"github.com/brickvol/brickvol/internal/wire"
)

var serveCommand = cli.Command{
	Name:      "serve",
	Usage:     "serves every .data file in a directory over the remote brick protocol",
	ArgsUsage: "<dir> <port>",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "max-bricks",
			Value: wire.DefaultMaxBricksPerGetRequest,
			Usage: "MAX_BRICKS_PER_GET_REQUEST advertised in the INFO reply",
		},
	},
	Action: func(c *cli.Context) error {
		args := c.Args()
		if len(args) != 2 {
			return cli.NewExitError("serve: expected <dir> <port>", 1)
		}
		dir := args[0]
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("port: %v", err), 1)
		}

		maxBricks := c.Int("max-bricks")
		if maxBricks < 1 || maxBricks > 1000 {
			clamped := 1
			if maxBricks > 1000 {
				clamped = 1000
			}
			fmt.Fprintln(color.Output, color.RedString("brickvol: --max-bricks %d outside [1,1000], using %d", maxBricks, clamped))
			maxBricks = clamped
		}

		srv, err := rserver.New(dir, maxBricks)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		addr := fmt.Sprintf(":%d", port)
		log.Printf("brickvol: serving %s on %s", dir, addr)
		if err := srv.ListenAndServe(addr); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	},
}
