// Package winmap implements a sliding-window memory-map manager: a cache
// of memory-mapped regions over a set of files, bounded by a global
// memory budget and a global open-handle budget.
//
// Two manager flavors share this package's data model, accounting, and
// eviction machinery: StaticManager maps each file once in full;
// SlidingManager maintains multiple bounded windows per file, grown to
// fill the gap between neighbors. Callers obtain Cursors from a Manager
// and call Cursor.UseRegion to pin the region covering a given absolute
// byte offset.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package winmap

import "fmt"

// FileID identifies the file a RegionList maps: either a path or an
// already-open file descriptor. Using a descriptor is faster once new
// windows are mapped (it skips reopening the file), but the descriptor
// must remain valid for as long as the manager may create new windows
// for it.
type FileID struct {
	path string
	fd   int
	isFd bool
}

// Path constructs a path-backed FileID.
func Path(p string) FileID { return FileID{path: p} }

// FD constructs a descriptor-backed FileID. The descriptor is assumed to
// be open and valid; the manager never closes it.
func FD(fd int) FileID { return FileID{fd: fd, isFd: true} }

// IsFD reports whether this FileID was constructed from a descriptor.
func (f FileID) IsFD() bool { return f.isFd }

// AsPath returns the backing path. Returns ErrWrongIdentifierKind if this
// FileID was constructed from a descriptor.
func (f FileID) AsPath() (string, error) {
	if f.isFd {
		return "", ErrWrongIdentifierKind
	}
	return f.path, nil
}

// AsFD returns the backing descriptor. Returns ErrWrongIdentifierKind if
// this FileID was constructed from a path.
func (f FileID) AsFD() (int, error) {
	if !f.isFd {
		return 0, ErrWrongIdentifierKind
	}
	return f.fd, nil
}

// mmapArg returns the value to pass to sys.Mmap / sys.FileSize: the path
// string or the int descriptor.
func (f FileID) mmapArg() interface{} {
	if f.isFd {
		return f.fd
	}
	return f.path
}

func (f FileID) String() string {
	if f.isFd {
		return fmt.Sprintf("fd:%d", f.fd)
	}
	return f.path
}
