//go:build linux || darwin

package voxel

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmapFile(f *os.File, offset, length int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), offset, int(length), unix.PROT_READ, unix.MAP_SHARED)
}

func unmapFile(b []byte) error {
	return unix.Munmap(b)
}
