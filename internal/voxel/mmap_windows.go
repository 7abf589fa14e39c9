//go:build windows

package voxel

import (
	"os"
	"reflect"
	"unsafe"

	"golang.org/x/sys/windows"
)

func mmapFile(f *os.File, offset, length int64) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)

	low := uint32(offset & 0xFFFFFFFF)
	high := uint32(offset >> 32)
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, high, low, uintptr(length))
	if err != nil {
		return nil, err
	}

	var b []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	hdr.Data = addr
	hdr.Len = int(length)
	hdr.Cap = int(length)
	return b, nil
}

func unmapFile(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&b[0])))
}
