package winmap

import (
	"github.com/objstore/mmwin/cmn"
	"github.com/objstore/mmwin/sys"
)

// Region owns one live memory map of a contiguous [begin, begin+size)
// byte range of a file. It tracks how many live cursors pin it plus one
// structural reference held by its owning RegionList, and a monotonic
// "last used" timestamp used to pick eviction candidates.
type Region struct {
	begin int64
	size  int64
	m     sys.Map

	usageCount int   // refs: owning RegionList (1) + live pinning cursors
	lastUsed   int64 // stamped by IncrementUsageCount on each new pin
}

// newRegion maps [begin, begin+min(requested, fileSize-begin)) of id and
// returns a Region owning that map with usageCount == 1 (the owning
// RegionList's structural reference).
func newRegion(id FileID, begin, requested int64) (*Region, error) {
	m, err := sys.Mmap(id.mmapArg(), begin, requested)
	if err != nil {
		return nil, newResourceExhausted(err)
	}
	r := &Region{begin: begin, size: int64(len(m.Bytes())), m: m, usageCount: 1}
	cmn.Assert(r.size > 0)
	return r, nil
}

// Begin returns the file offset of the first mapped byte.
func (r *Region) Begin() int64 { return r.begin }

// Size returns the actual mapped length, which may be less than
// requested when the request extended past end-of-file.
func (r *Region) Size() int64 { return r.size }

// OfsEnd returns Begin() + Size().
func (r *Region) OfsEnd() int64 { return r.begin + r.size }

// Bytes returns the whole mapped range.
func (r *Region) Bytes() []byte { return r.m.Bytes() }

// IncludesOfs reports whether the absolute offset o falls within this
// region's mapped range.
func (r *Region) IncludesOfs(o int64) bool {
	return r.begin <= o && o < r.begin+r.size
}

// ClientCount returns the total number of references including the
// owning RegionList's; ClientCount()-1 is the external (cursor) pin
// count. A region is idle, and therefore evictable, exactly when
// ClientCount() == 1.
func (r *Region) ClientCount() int { return r.usageCount }

// IncrementUsageCount adjusts the pin count by n (n may be negative to
// release pins). When incrementing, LastUsed is stamped with clock, the
// manager's monotonic counter. Call this only when a cursor actually
// acquires or releases a pin - not on a reuse of an already-pinned
// region, or the pin count never returns to idle (see Touch).
func (r *Region) IncrementUsageCount(n int, clock int64) {
	r.usageCount += n
	cmn.Assert(r.usageCount >= 0)
	if n > 0 {
		r.lastUsed = clock
	}
}

// Touch stamps LastUsed without touching the pin count. A cursor that
// reuses a region it already pins calls this instead of
// IncrementUsageCount, so repeated nearby reads on one cursor refresh
// the LRU timestamp without inflating usageCount past the cursor's
// single real pin.
func (r *Region) Touch(clock int64) { r.lastUsed = clock }

// LastUsed returns the monotonic timestamp of the most recent pin or
// touch.
func (r *Region) LastUsed() int64 { return r.lastUsed }

// close releases the underlying memory map. Must only be called once
// this region has been removed from its RegionList.
func (r *Region) close() error {
	return r.m.Close()
}
