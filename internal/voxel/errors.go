package voxel

import "errors"

var errShortFile = errors.New("voxel: file shorter than expected volume size")
