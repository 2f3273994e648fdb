package winmap

import (
	"github.com/objstore/mmwin/cmn"
	"github.com/objstore/mmwin/sys"
)

// Window is a planned (offset, size) placement, used by the sliding
// placement routine to work out how large a new Region should be before
// any memory map is actually created. See spec.md §4.1.
type Window struct {
	Ofs  int64
	Size int64
}

// OfsEnd returns Ofs + Size, the offset one past the last byte.
func (w Window) OfsEnd() int64 { return w.Ofs + w.Size }

// windowFromRegion copies a Region's placement into a Window, used when
// treating an existing neighbor region as a sentinel for growth.
func windowFromRegion(r *Region) Window {
	return Window{Ofs: r.begin, Size: r.size}
}

// ExtendLeftTo grows the window to the left toward (but never past)
// left.OfsEnd(), bounded so the total size never exceeds maxSize. A
// maxSize <= 0 means "unbounded" (the window is free to grow by the
// full distance to the neighbor).
func (w *Window) ExtendLeftTo(left Window, maxSize int64) {
	nleft := cmn.MaxI64(w.Ofs-left.OfsEnd(), 0)
	grow := growBy(nleft, w.Size, maxSize)
	w.Ofs -= grow
	w.Size += grow
}

// ExtendRightTo grows the window to the right toward (but never past)
// right.Ofs, bounded so the total size never exceeds maxSize.
func (w *Window) ExtendRightTo(right Window, maxSize int64) {
	nright := cmn.MaxI64(right.Ofs-w.OfsEnd(), 0)
	w.Size += growBy(nright, w.Size, maxSize)
}

// growBy returns how much a window of the given size may grow toward a
// neighbor up to room bytes away, without exceeding maxSize (<=0 means
// unbounded).
func growBy(room, size, maxSize int64) int64 {
	if maxSize > 0 && maxSize <= size {
		return 0
	}
	if maxSize <= 0 {
		return room
	}
	return cmn.MinI64(room, maxSize-size)
}

// Align rounds Ofs down and OfsEnd up to multiples of sys.PageSize,
// clamping Ofs at 0. On Windows sys.PageSize is the allocation
// granularity (not the raw CPU page size), since that's what
// MapViewOfFile actually requires the mapping offset to be a multiple
// of - aligning to a smaller value would make the subsequent Mmap call
// fail on that platform. Run after both extensions; a caller must
// re-clamp the result against a right neighbor's Ofs afterwards since
// alignment may overshoot it (spec.md §4.1, §9 "Alignment edge case").
func (w *Window) Align() {
	page := sys.PageSize()
	if page <= 0 {
		return
	}
	end := w.OfsEnd()
	alignedOfs := (w.Ofs / page) * page
	if alignedOfs > w.Ofs {
		alignedOfs -= page
	}
	if alignedOfs < 0 {
		alignedOfs = 0
	}
	alignedEnd := ((end + page - 1) / page) * page
	w.Ofs = alignedOfs
	w.Size = alignedEnd - alignedOfs
}
