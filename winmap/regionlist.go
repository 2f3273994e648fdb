package winmap

import (
	"fmt"

	"github.com/objstore/mmwin/cmn"
)

// regionList is the per-file container of regions kept sorted by
// offset. It also remembers the file identity and its size as cached at
// creation time. It does not enforce the non-overlapping/sorted
// invariant itself - the placement routines (placeStatic, placeSliding)
// do - but every exported accessor assumes it holds.
type regionList struct {
	id       FileID
	fileSize int64
	regions  []*Region

	// refs counts strong references to this list: the manager's own
	// entry in core.files counts as one, plus one per live Cursor
	// currently attached to this list. Tracks structural vs. external
	// references explicitly rather than relying on a GC finalizer.
	refs int
}

func newRegionList(id FileID, fileSize int64) *regionList {
	return &regionList{id: id, fileSize: fileSize, refs: 1}
}

func (l *regionList) FileSize() int64 { return l.fileSize }
func (l *regionList) FileID() FileID  { return l.id }
func (l *regionList) Len() int        { return len(l.regions) }
func (l *regionList) At(i int) *Region { return l.regions[i] }

// ClientCount is the number of strong references to the list (manager +
// live cursors); used to decide whether the list can be removed from the
// manager's file table once it empties.
func (l *regionList) ClientCount() int { return l.refs }

// insertAt inserts r at position i, preserving sort order when i is
// computed correctly by the caller's placement routine.
func (l *regionList) insertAt(i int, r *Region) {
	l.regions = append(l.regions, nil)
	copy(l.regions[i+1:], l.regions[i:])
	l.regions[i] = r
	l.assertSorted()
}

// removeAt removes the region at position i.
func (l *regionList) removeAt(i int) *Region {
	r := l.regions[i]
	l.regions = append(l.regions[:i], l.regions[i+1:]...)
	return r
}

// indexOf returns the index of r in the list, or -1.
func (l *regionList) indexOf(r *Region) int {
	for i, x := range l.regions {
		if x == r {
			return i
		}
	}
	return -1
}

func (l *regionList) assertSorted() {
	for i := 1; i < len(l.regions); i++ {
		prev, cur := l.regions[i-1], l.regions[i]
		cmn.AssertMsg(prev.OfsEnd() <= cur.Begin(),
			fmt.Sprintf("winmap: regions of %s overlap or are out of order: [%d,%d) before [%d,%d)",
				l.id, prev.Begin(), prev.OfsEnd(), cur.Begin(), cur.OfsEnd()))
	}
}
