//go:build windows

package sys

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// PageSize returns the platform's memory allocation granularity in bytes
// (typically 64 KiB), not the literal 4 KiB CPU page size: MapViewOfFile
// requires the mapping offset to be a multiple of the allocation
// granularity, and Window.Align uses this value to align sliding-window
// placements so they actually map on Windows.
func PageSize() int64 {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return int64(si.AllocationGranularity)
}

// fstatSize sizes an already-open handle directly, never wrapping it in an
// *os.File: doing so would hand the handle to Go's finalizer machinery and
// risk the runtime closing a handle the caller still owns.
func fstatSize(fd int) (int64, error) {
	var size int64
	if err := windows.GetFileSizeEx(windows.Handle(fd), &size); err != nil {
		return 0, err
	}
	return size, nil
}

type windowsMap struct {
	data    []byte
	mapping windows.Handle
}

func (m *windowsMap) Bytes() []byte { return m.data }

func (m *windowsMap) Close() error {
	if m.data == nil {
		return nil
	}
	addr := uintptr(0)
	if len(m.data) > 0 {
		addr = uintptr(unsafe.Pointer(&m.data[0]))
	}
	err := windows.UnmapViewOfFile(addr)
	windows.CloseHandle(m.mapping)
	m.data = nil
	return err
}

// Mmap maps length bytes of id starting at offset, read-only.
func Mmap(id interface{}, offset, length int64) (Map, error) {
	var (
		handle windows.Handle
		size   int64
	)
	switch v := id.(type) {
	case string:
		f, err := os.Open(v)
		if err != nil {
			return nil, errors.Wrapf(err, "mmap: open %s", v)
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			return nil, errors.Wrapf(err, "mmap: stat %s", v)
		}
		handle, size = windows.Handle(f.Fd()), fi.Size()
	case int:
		sz, err := fstatSize(v)
		if err != nil {
			return nil, errors.Wrapf(err, "mmap: stat fd %d", v)
		}
		handle, size = windows.Handle(v), sz
	default:
		panic("file id must be a string path or an int descriptor")
	}

	if offset >= size {
		return nil, errors.Errorf("mmap: offset %d beyond size %d of %v", offset, size, id)
	}
	if length > size-offset || length <= 0 {
		length = size - offset
	}

	mapping, err := windows.CreateFileMapping(handle, nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap: CreateFileMapping failed for %v", id)
	}
	hi := uint32(offset >> 32)
	lo := uint32(offset & 0xffffffff)
	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ, hi, lo, uintptr(length))
	if err != nil {
		windows.CloseHandle(mapping)
		return nil, errors.Wrapf(err, "mmap: MapViewOfFile failed for %v at %d+%d", id, offset, length)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
	return &windowsMap{data: data, mapping: mapping}, nil
}
