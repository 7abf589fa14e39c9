package dataset_test

import (
	"github.com/brickvol/brickvol/internal/brickfile"
	"github.com/brickvol/brickvol/internal/dataset"
	"github.com/brickvol/brickvol/internal/rclient"
)

// Compile-time checks that the real implementations satisfy Source,
// the substitution point the atlas manager depends on.
var (
	_ dataset.Source = (*brickfile.Reader)(nil)
	_ dataset.Source = (*rclient.Dataset)(nil)
)
