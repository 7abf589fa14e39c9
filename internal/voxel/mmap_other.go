//go:build !linux && !darwin && !windows

package voxel

import (
	"errors"
	"os"
)

func mmapFile(f *os.File, offset, length int64) ([]byte, error) {
	return nil, errors.New("voxel: mmap not supported on this platform")
}

func unmapFile(b []byte) error { return nil }
