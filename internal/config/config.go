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

// Package config holds the small enumerated configuration surfaces the
// core exposes to hosts (builder, server, client, atlas manager), each
// with JSON-file override support layered on top of CLI-flag defaults,
// following server/config.go's parseJSONConfig pattern.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/metadata"
)

// BuilderConfig configures internal/builder.
type BuilderConfig struct {
	BrickSize         int    `json:"brickSize"`
	Overlap           int    `json:"overlap"`
	ExtensionStrategy string `json:"extensionStrategy"`
	UseCompressor     bool   `json:"useCompressor"`
}

func (c *BuilderConfig) Validate() error {
	if c.BrickSize <= 0 {
		return bvlerr.Wrap(bvlerr.IO, "BuilderConfig.Validate", fmt.Errorf("brickSize must be > 0"))
	}
	if c.Overlap < 0 || 2*c.Overlap >= c.BrickSize {
		return bvlerr.Wrap(bvlerr.IO, "BuilderConfig.Validate", fmt.Errorf("overlap %d invalid for brickSize %d", c.Overlap, c.BrickSize))
	}
	switch c.ExtensionStrategy {
	case "", "FILL_ZEROES", "CLAMP", "REPEAT":
	default:
		return bvlerr.Wrap(bvlerr.IO, "BuilderConfig.Validate", fmt.Errorf("unknown extensionStrategy %q", c.ExtensionStrategy))
	}
	return nil
}

func (c *BuilderConfig) Ext() metadata.ExtensionStrategy {
	return metadata.ParseExtensionStrategy(c.ExtensionStrategy)
}

// ServerConfig configures internal/rserver.
type ServerConfig struct {
	Port                   int `json:"port"`
	MaxBricksPerGetRequest int `json:"maxBricksPerGetRequest"`
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return bvlerr.Wrap(bvlerr.IO, "ServerConfig.Validate", fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxBricksPerGetRequest < 1 || c.MaxBricksPerGetRequest > 1000 {
		return bvlerr.Wrap(bvlerr.IO, "ServerConfig.Validate", fmt.Errorf("maxBricksPerGetRequest %d out of [1,1000]", c.MaxBricksPerGetRequest))
	}
	return nil
}

// ClientConfig configures internal/rclient.
type ClientConfig struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	TimeoutSeconds     int    `json:"timeoutSeconds"`
	MakeLocalCopy      bool   `json:"makeLocalCopy"`
	LocalCachePath     string `json:"localCachePath"`
	ProgressiveLoading bool   `json:"progressiveLoading"`
}

func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return bvlerr.Wrap(bvlerr.IO, "ClientConfig.Validate", fmt.Errorf("host must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return bvlerr.Wrap(bvlerr.IO, "ClientConfig.Validate", fmt.Errorf("port %d out of range", c.Port))
	}
	if c.TimeoutSeconds <= 0 {
		return bvlerr.Wrap(bvlerr.IO, "ClientConfig.Validate", fmt.Errorf("timeoutSeconds must be > 0"))
	}
	return nil
}

// OversamplingMode selects the atlas manager's sampling-rate policy.
type OversamplingMode string

const (
	OversamplingStatic  OversamplingMode = "static"
	OversamplingDynamic OversamplingMode = "dynamic"
)

// OversamplingConfig is the atlas manager's frame-rate-driven detail policy.
type OversamplingConfig struct {
	Mode        OversamplingMode `json:"mode"`
	Base        float64          `json:"base"`
	DropFPS     float64          `json:"dropFPS"`
	RecoveryFPS float64          `json:"recoveryFPS"`
}

// AtlasConfig configures internal/atlas.
type AtlasConfig struct {
	AtlasSizeMB         int                `json:"atlasSizeMB"`
	InitialBricks       int                `json:"initialBricks"`
	MinHashTableSizeMB  int                `json:"minHashTableSizeMB"`
	MaxProbingAttempts  int                `json:"maxProbingAttempts"`
	RequestLowResLOD    bool               `json:"requestLowResLOD"`
	StopOnMiss          bool               `json:"stopOnMiss"`
	ScreenSpaceError    float64            `json:"screenSpaceError"`
	Oversampling        OversamplingConfig `json:"oversampling"`
}

func (c *AtlasConfig) Validate() error {
	if c.AtlasSizeMB <= 0 {
		return bvlerr.Wrap(bvlerr.Resource, "AtlasConfig.Validate", fmt.Errorf("atlasSizeMB must be > 0"))
	}
	if c.MaxProbingAttempts <= 0 {
		return bvlerr.Wrap(bvlerr.Resource, "AtlasConfig.Validate", fmt.Errorf("maxProbingAttempts must be > 0"))
	}
	if c.ScreenSpaceError <= 0 {
		return bvlerr.Wrap(bvlerr.Resource, "AtlasConfig.Validate", fmt.Errorf("screenSpaceError must be > 0"))
	}
	return nil
}

// FromJSON overlays a JSON file's fields onto dst, the same two-phase
// flags-then-optional-override pattern as server/config.go's parseJSONConfig.
func FromJSON(dst interface{}, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return bvlerr.Wrap(bvlerr.IO, "config.FromJSON", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return bvlerr.Wrap(bvlerr.Format, "config.FromJSON", err)
	}
	return nil
}
