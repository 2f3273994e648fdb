package winmap

import "github.com/objstore/mmwin/cmn"

// Cursor is the client-facing handle returned by Manager.MakeCursor. It
// pins at most one Region at a time and exposes the client-visible view
// [OfsBegin, OfsEnd) of it. Call Release when done with a persistent
// cursor to free its pin promptly - Go has no destructor to do this
// automatically, so a cursor that merely goes out of scope leaks its
// pin until the process exits; the Manager has no teardown operation
// that releases it.
type Cursor struct {
	core   *core
	list   *regionList
	region *Region
	ofs    int64
	size   int64
}

// UseRegion assures the cursor points to a region covering offset.
// size is the number of bytes the caller wants to access; 0 means "as
// many as the window/file allows". flags is accepted but not used:
// neither placement policy passes it on, and sys.Mmap takes no flags.
//
// The size actually made available may be smaller than requested: either
// the file ends first, or the window falls between two existing
// regions. If offset is at or past end of file, the cursor becomes
// unpinned (IsValid() == false) rather than returning an error - this is
// the EOF sentinel, not a failure. If the region cannot be mapped, even
// after the placement routine's eviction and retry, the cursor is
// likewise left unpinned and the mapping error is not reported.
func (c *Cursor) UseRegion(offset, size int64, flags int) *Cursor {
	fsize := c.list.FileSize()
	effective := cmn.MinI64(sizeOrDefault(size, fsize), sizeOrDefault(c.core.WindowSize(), fsize))

	needRegion := true
	if c.region != nil {
		if c.region.IncludesOfs(offset) {
			needRegion = false
		} else {
			c.UnuseRegion()
		}
	}

	if offset >= fsize {
		return c // EOF sentinel: no pin, no error.
	}

	if needRegion {
		r, err := c.core.obtain(c.list, offset, effective, flags)
		if err != nil {
			// A failed map changes no counters and leaves the cursor
			// unpinned; any pin on a previous region was already
			// released above.
			return c
		}
		c.region = r
		// A genuinely new pin: bump the pin count once for this
		// cursor, in addition to stamping LastUsed.
		c.region.IncrementUsageCount(1, c.core.tick())
	} else {
		// Reuse: this cursor already holds the pin it took earlier, so
		// only the LRU timestamp advances - bumping the pin count again
		// here would never come back down to idle on a single
		// UnuseRegion/Release.
		c.region.Touch(c.core.tick())
	}

	c.ofs = offset - c.region.Begin()
	c.size = cmn.MinI64(effective, c.region.OfsEnd()-offset)
	return c
}

func sizeOrDefault(size, fileSize int64) int64 {
	if size == 0 {
		return fileSize
	}
	return size
}

// UnuseRegion releases the current pin, if any. It's recommended to call
// this on persistent cursors once done reading to free resources
// promptly, rather than waiting for Release.
func (c *Cursor) UnuseRegion() {
	if c.region == nil {
		return
	}
	c.region.IncrementUsageCount(-1, 0)
	c.region = nil
	c.ofs, c.size = 0, 0
}

// Release unpins the current region and detaches from the manager.
// A cursor must not be used after Release.
func (c *Cursor) Release() {
	c.UnuseRegion()
	if c.list == nil {
		return
	}
	c.list.refs--
	c.core.releaseList(c.list)
	c.list = nil
}

// Copy duplicates the cursor, incrementing the pinned region's usage
// count so both cursors independently hold a pin.
func (c *Cursor) Copy() *Cursor {
	cp := &Cursor{core: c.core, list: c.list, region: c.region, ofs: c.ofs, size: c.size}
	if c.list != nil {
		c.list.refs++
	}
	if cp.region != nil {
		cp.region.IncrementUsageCount(1, c.core.tick())
	}
	return cp
}

// AssignFrom releases this cursor's current pin and list reference, then
// takes rhs's (as a copy, per Copy's semantics).
func (c *Cursor) AssignFrom(rhs *Cursor) {
	c.Release()
	cp := rhs.Copy()
	*c = *cp
}

// IsValid reports whether the cursor currently holds a pinned region.
func (c *Cursor) IsValid() bool { return c.region != nil }

// IsAssociated reports whether the cursor is associated with a file
// (i.e. was returned by Manager.MakeCursor and not yet Released).
func (c *Cursor) IsAssociated() bool { return c.list != nil }

// OfsBegin returns the absolute offset of the first byte this cursor's
// view covers. Requires IsValid().
func (c *Cursor) OfsBegin() (int64, error) {
	if !c.IsValid() {
		return 0, ErrInvalidState
	}
	return c.region.Begin() + c.ofs, nil
}

// OfsEnd returns the absolute offset one past the last byte this
// cursor's view covers. Requires IsValid().
func (c *Cursor) OfsEnd() (int64, error) {
	begin, err := c.OfsBegin()
	if err != nil {
		return 0, err
	}
	return begin + c.size, nil
}

// Size returns the number of bytes covered by this cursor's view. Unlike
// OfsBegin/OfsEnd, this is always safe to call: it reads 0 on an unpinned
// cursor.
func (c *Cursor) Size() int64 { return c.size }

// IncludesOfs reports whether the given absolute offset falls within
// this cursor's current view. Requires IsValid().
func (c *Cursor) IncludesOfs(o int64) (bool, error) {
	begin, err := c.OfsBegin()
	if err != nil {
		return false, err
	}
	return begin <= o && o < begin+c.size, nil
}

// Buffer returns a read-only view [ofs, ofs+size) of the region's map -
// exactly the bytes this cursor was asked for. Requires IsValid().
func (c *Cursor) Buffer() ([]byte, error) {
	if !c.IsValid() {
		return nil, ErrInvalidState
	}
	b := c.region.Bytes()
	return b[c.ofs : c.ofs+c.size], nil
}

// Map returns the whole mapped range backing the current region -
// useful only when the caller knows the region spans the whole file
// (e.g. under a StaticManager). Requires IsValid().
func (c *Cursor) Map() ([]byte, error) {
	if !c.IsValid() {
		return nil, ErrInvalidState
	}
	return c.region.Bytes(), nil
}

// FileSize returns the size of the underlying file.
func (c *Cursor) FileSize() int64 { return c.list.FileSize() }

// FileID returns the path or descriptor of the underlying mapped file.
func (c *Cursor) FileID() FileID { return c.list.FileID() }

// Path returns the path of the underlying mapped file, or
// ErrWrongIdentifierKind if the cursor's file was opened via descriptor.
func (c *Cursor) Path() (string, error) { return c.list.FileID().AsPath() }

// FD returns the descriptor used to create the underlying mapping
// (not guaranteed to still be valid), or ErrWrongIdentifierKind if the
// cursor's file was opened via path.
func (c *Cursor) FD() (int, error) { return c.list.FileID().AsFD() }
