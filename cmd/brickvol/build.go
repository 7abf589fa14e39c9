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

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/brickvol/brickvol/internal/builder"
	"github.com/brickvol/brickvol/internal/ingest"
	"github.com/brickvol/brickvol/internal/metadata"
	"github.com/brickvol/brickvol/internal/voxel"
)

var buildQVISCommand = cli.Command{
	Name:      "build-qvis",
	Usage:     "bricks a QVIS raw volume described by a .dat sidecar",
	ArgsUsage: "<in.dat> <out.data> <desc> <brickSize> <overlap>",
	Action: func(c *cli.Context) error {
		args := c.Args()
		if len(args) != 5 {
			return cli.NewExitError("build-qvis: expected 5 arguments", 1)
		}
		desc, err := ingest.ParseSidecar(args[0])
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		acc, err := desc.Open()
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer acc.Close()
		return runBuild(acc, args[1], args[2], args[3], args[4])
	},
}

var buildNRRDCommand = cli.Command{
	Name:      "build-nrrd",
	Usage:     "bricks a NRRD0004/0005 raw-encoded volume",
	ArgsUsage: "<in.nrrd> <out.data> <desc> <brickSize> <overlap>",
	Action: func(c *cli.Context) error {
		args := c.Args()
		if len(args) != 5 {
			return cli.NewExitError("build-nrrd: expected 5 arguments", 1)
		}
		hdr, err := ingest.ParseNRRD(args[0])
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		acc, err := hdr.Open()
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer acc.Close()
		return runBuild(acc, args[1], args[2], args[3], args[4])
	},
}

var buildDICOMCommand = cli.Command{
	Name:      "build-dicom",
	Usage:     "bricks a DICOM series directory (out of scope: fails loudly)",
	ArgsUsage: "<dir> <out.data> <desc> <brickSize> <overlap>",
	Action: func(c *cli.Context) error {
		args := c.Args()
		if len(args) != 5 {
			return cli.NewExitError("build-dicom: expected 5 arguments", 1)
		}
		if _, err := ingest.ParseDICOMSeries(args[0]); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	},
}

var buildSynthCommand = cli.Command{
	Name:      "build-synth",
	Usage:     "bricks a synthetic in-memory volume",
	ArgsUsage: "(L|F) <byteDepth> <components> <sx> <sy> <sz> <out.data> <desc> <brickSize> <overlap>",
	Action: func(c *cli.Context) error {
		args := c.Args()
		if len(args) != 10 {
			return cli.NewExitError("build-synth: expected 10 arguments", 1)
		}
		kind, err := builder.ParseSynthKind(args[0])
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		byteDepth, err := strconv.Atoi(args[1])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("byteDepth: %v", err), 1)
		}
		components, err := strconv.Atoi(args[2])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("components: %v", err), 1)
		}
		sx, err := strconv.Atoi(args[3])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("sx: %v", err), 1)
		}
		sy, err := strconv.Atoi(args[4])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("sy: %v", err), 1)
		}
		sz, err := strconv.Atoi(args[5])
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("sz: %v", err), 1)
		}

		acc := builder.GenerateSynthetic(kind, byteDepth*components, sx, sy, sz)
		defer acc.Close()
		return runBuild(acc, args[6], args[7], args[8], args[9])
	},
}

// runBuild shares the brickSize/overlap parsing, progress bar, and
// builder.Build invocation across every build-* subcommand.
func runBuild(acc voxel.Accessor, outPath, desc, brickSizeArg, overlapArg string) error {
	brickSize, err := strconv.Atoi(brickSizeArg)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("brickSize: %v", err), 1)
	}
	overlap, err := strconv.Atoi(overlapArg)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("overlap: %v", err), 1)
	}

	w, h, d := acc.Size()
	totalVoxels := w * h * d
	fmt.Printf("brickvol: bricking %s voxels (%s)\n", humanize.Comma(int64(totalVoxels)), humanize.Bytes(uint64(totalVoxels*acc.BytesPerComponent())))

	params := builder.Params{
		BrickSize:   brickSize,
		Overlap:     overlap,
		Ext:         metadata.FillZeroes,
		Description: desc,
	}
	var bar *progressbar.ProgressBar
	progress := func(level, totalLevels, bricksDone, bricksTotal int) {
		if bar == nil || bar.GetMax() != bricksTotal {
			bar = progressbar.Default(int64(bricksTotal), fmt.Sprintf("level %d/%d", level+1, totalLevels))
		}
		bar.Set(bricksDone)
	}

	if err := builder.Build(acc, params, outPath, progress); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Println()
	fmt.Printf("brickvol: wrote %s\n", outPath)
	return nil
}
