package winmap

import (
	"sort"

	"github.com/golang/glog"
	"github.com/objstore/mmwin/cmn"
	"github.com/objstore/mmwin/sys"
)

// SlidingManager maintains many non-overlapping, bounded regions per
// file, each grown to fill the gap between its neighbors up to
// WindowSize, page-aligned. Once memory or handle budgets would be
// exceeded, the least-recently-used idle regions are evicted
// automatically (spec.md §4.6).
type SlidingManager struct {
	*core
}

// NewSlidingManager constructs a SlidingManager. See Config for
// defaulting rules: a negative WindowSize selects an
// architecture-dependent default, while 0 means "whole file", as for
// StaticManager.
func NewSlidingManager(cfg Config) *SlidingManager {
	m := &SlidingManager{core: newCore(defaultSlidingConfig(cfg))}
	m.obtain = m.placeSliding
	return m
}

// placeSliding implements the sliding placement policy of spec.md §4.6.
func (c *core) placeSliding(list *regionList, offset, size int64, flags int) (*Region, error) {
	// 1. Lookup: binary-search for the greatest region with begin <= offset.
	n := list.Len()
	insertPos := searchInsertPos(list, offset)
	if insertPos > 0 && list.At(insertPos-1).IncludesOfs(offset) {
		return list.At(insertPos - 1), nil
	}

	// 2./3. Plan a window bounded by its sorted neighbors.
	w := c.cfg.WindowSize
	fsize := list.FileSize()
	left := Window{Ofs: 0, Size: 0}
	right := Window{Ofs: fsize, Size: 0}
	if insertPos > 0 {
		left = windowFromRegion(list.At(insertPos - 1))
	}
	if insertPos < n {
		right = windowFromRegion(list.At(insertPos))
	}

	// 4. Grow.
	mid := Window{Ofs: offset, Size: size}
	mid.ExtendLeftTo(left, w)
	mid.ExtendRightTo(right, w)
	mid.Align()
	if mid.OfsEnd() > right.Ofs {
		mid.Size = right.Ofs - mid.Ofs
	}
	// Alignment can push the window past WindowSize; trim it back to at
	// most w bytes, starting at the page that holds offset.
	if w > 0 && mid.Size > w {
		if page := sys.PageSize(); page > 0 {
			start := cmn.MaxI64((offset/page)*page, mid.Ofs)
			if offset < start+w {
				mid.Size = cmn.MinI64(w, mid.OfsEnd()-start)
				mid.Ofs = start
			}
		}
	}

	// 5. Budget checks.
	if c.memoryInUse+mid.Size > c.cfg.MaxMemory || c.handlesInUse >= c.cfg.MaxHandles {
		c.collectLRU(mid.Size)
	}

	// 6. Map, retrying once after a full eviction pass on failure.
	r, err := c.mapSliding(list, mid)
	if err != nil {
		if !IsResourceExhausted(err) {
			return nil, err
		}
		glog.Warningf("winmap[%s]: mmap failed for %s at %d+%d, retrying after full eviction",
			c.name, list.id, mid.Ofs, mid.Size)
		c.collectLRU(0)
		if r, err = c.mapSliding(list, mid); err != nil {
			return nil, err
		}
	}

	// 7. Insert, preserving sort order. Eviction above may have removed
	// entries from this very list, which would make the insertPos
	// computed in step 1 stale, so it's recomputed fresh here rather
	// than trusted across the budget-check/map calls.
	list.insertAt(searchInsertPos(list, mid.Ofs), r)
	return r, nil
}

func searchInsertPos(list *regionList, offset int64) int {
	return sort.Search(list.Len(), func(i int) bool { return list.At(i).Begin() > offset })
}

func (c *core) mapSliding(list *regionList, mid Window) (*Region, error) {
	if c.handlesInUse >= c.cfg.MaxHandles {
		return nil, newResourceExhausted(errHandleCapReached)
	}
	r, err := newRegion(list.id, mid.Ofs, mid.Size)
	if err != nil {
		return nil, err
	}
	c.handlesInUse++
	c.memoryInUse += r.Size()
	return r, nil
}
