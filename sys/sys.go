// Package sys provides the platform primitives consumed by the winmap
// manager: memory-mapping a byte range of a file, closing a mapping,
// querying the page size, and detecting a 64-bit address space.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package sys

import (
	"math"
	"os"
)

// MaxMapSize is used in place of "map everything" when a caller wants the
// whole remainder of the file without knowing its exact size up front.
const MaxMapSize = math.MaxInt64

// Map is a live memory map of a contiguous file range. It is produced by
// Mmap and must be released exactly once via Close.
type Map interface {
	// Bytes returns the mapped region. Its length is the actual mapped
	// size, which may be smaller than requested if the request reached
	// end of file.
	Bytes() []byte
	// Close unmaps the region. Safe to call at most once.
	Close() error
}

// FileSize stats the given path or, if id is an int, the given open file
// descriptor, and returns its current size in bytes.
func FileSize(id interface{}) (int64, error) {
	switch v := id.(type) {
	case string:
		fi, err := os.Stat(v)
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	case int:
		return fstatSize(v)
	default:
		panic("file id must be a string path or an int descriptor")
	}
}
