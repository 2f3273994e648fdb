//go:build linux || darwin || freebsd

package sys

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PageSize returns the platform's memory page size in bytes.
func PageSize() int64 {
	return int64(unix.Getpagesize())
}

// fstatSize stats an already-open descriptor directly through unix.Fstat,
// never wrapping it in an *os.File: doing so would hand the fd to Go's
// finalizer machinery and risk the runtime closing a descriptor the caller
// still owns.
func fstatSize(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, err
	}
	return st.Size, nil
}

type unixMap struct {
	data []byte
}

func (m *unixMap) Bytes() []byte { return m.data }

func (m *unixMap) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// Mmap maps length bytes of id starting at offset, read-only. id is either
// a path (string) or an already-open file descriptor (int). A descriptor
// passed in is never closed by Mmap - it remains the caller's
// responsibility, matching the contract documented on winmap.FD.
// length is clamped against the current file size, so a caller may pass
// sys.MaxMapSize to mean "map to EOF".
func Mmap(id interface{}, offset, length int64) (Map, error) {
	var (
		fd   int
		size int64
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
		fd, size = int(f.Fd()), fi.Size()
	case int:
		var st unix.Stat_t
		if err := unix.Fstat(v, &st); err != nil {
			return nil, errors.Wrapf(err, "mmap: fstat fd %d", v)
		}
		fd, size = v, st.Size
	default:
		panic("file id must be a string path or an int descriptor")
	}

	if offset >= size {
		return nil, errors.Errorf("mmap: offset %d beyond size %d of %v", offset, size, id)
	}
	if length > size-offset || length <= 0 {
		length = size - offset
	}

	data, err := unix.Mmap(fd, offset, int(length), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap: syscall failed for %v at %d+%d", id, offset, length)
	}
	return &unixMap{data: data}, nil
}
