package winmap

import (
	"math"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/objstore/mmwin/cmn"
	"github.com/objstore/mmwin/sys"
	"github.com/teris-io/shortid"
)

// Config configures a Manager. StaticManager always behaves as if
// WindowSize were 0, regardless of what's configured. For SlidingManager,
// WindowSize 0 means "whole file" (unbounded, same as StaticManager) and
// a negative value is the sentinel requesting the architecture default
// (spec.md §6); MaxMemory 0 requests the architecture default; MaxHandles
// 0 requests "unbounded".
type Config struct {
	// WindowSize upper-bounds any single region's size. 0 means
	// unbounded; negative requests the architecture default (sliding
	// manager only - see NewSlidingManager).
	WindowSize int64
	// MaxMemory is a soft cap on the sum of mapped region sizes.
	MaxMemory int64
	// MaxHandles hard-caps the count of live regions.
	MaxHandles int64
}

const (
	defaultStaticWindow    = 0
	slidingWindow32Bit     = 32 * cmn.MiB
	slidingWindow64Bit     = 1024 * cmn.MiB
	maxMemory32Bit         = 512 * cmn.MiB
	maxMemory64Bit         = 8192 * cmn.MiB
	unboundedHandles int64 = math.MaxInt64
)

// defaultSlidingConfig fills in cfg for a SlidingManager. Unlike
// MaxMemory/MaxHandles, WindowSize 0 is not "unset" - it's the explicit
// "whole file" request also used by StaticManager. Only a negative
// WindowSize is the "apply the architecture default" sentinel (spec.md
// §6's defaults table).
func defaultSlidingConfig(cfg Config) Config {
	if cfg.WindowSize < 0 {
		if sys.Is64Bit() {
			cfg.WindowSize = slidingWindow64Bit
		} else {
			cfg.WindowSize = slidingWindow32Bit
		}
	}
	return defaultCommon(cfg)
}

func defaultStaticConfig(cfg Config) Config {
	cfg.WindowSize = defaultStaticWindow
	return defaultCommon(cfg)
}

func defaultCommon(cfg Config) Config {
	if cfg.MaxMemory == 0 {
		if sys.Is64Bit() {
			cfg.MaxMemory = maxMemory64Bit
		} else {
			cfg.MaxMemory = maxMemory32Bit
		}
	}
	if cfg.MaxHandles == 0 {
		cfg.MaxHandles = unboundedHandles
	}
	return cfg
}

// Manager is the shared interface implemented by StaticManager and
// SlidingManager: window placement differs between the two, but the
// data model, accounting, and eviction below are identical (spec.md §2).
type Manager interface {
	// MakeCursor looks up or creates the RegionList for id and returns a
	// cursor attached to it, initially unpinned.
	MakeCursor(id FileID) *Cursor
	// Collect evicts every currently-idle region and returns how many
	// were freed. Equivalent to collectLRU(0).
	Collect() int
	WindowSize() int64
	MappedMemorySize() int64
	NumFileHandles() int64
	NumOpenFiles() int
	MaxFileHandles() int64
	MaxMappedMemorySize() int64
	// ForceMapHandleRemoval closes every map whose FileID is a path
	// starting with prefix, returning the count closed. It is a
	// platform escape hatch (spec.md §4.8): callers must ensure no
	// cursor will touch those maps afterward, since this does not go
	// through the normal pin-respecting eviction path.
	ForceMapHandleRemoval(prefix string) int
}

// core holds the state and accounting shared by both manager flavors:
// the file table, budgets, in-use counters, and the monotonic LRU clock.
// Placement (the one thing that differs) is injected via obtain.
type core struct {
	name string // short correlation id, stamped onto every log line

	cfg Config

	files map[FileID]*regionList

	memoryInUse  int64
	handlesInUse int64
	clockTick    int64

	// obtain implements the placement policy: find-or-create the
	// region covering offset in list, growing it by at least size
	// bytes, possibly evicting to stay within budget.
	obtain func(list *regionList, offset, size int64, flags int) (*Region, error)
}

func newCore(cfg Config) *core {
	id, err := shortid.Generate()
	if err != nil {
		id = "winmap"
	}
	return &core{
		name:  id,
		cfg:   cfg,
		files: make(map[FileID]*regionList),
	}
}

func (c *core) WindowSize() int64          { return c.cfg.WindowSize }
func (c *core) MappedMemorySize() int64    { return c.memoryInUse }
func (c *core) NumFileHandles() int64      { return c.handlesInUse }
func (c *core) MaxFileHandles() int64      { return c.cfg.MaxHandles }
func (c *core) MaxMappedMemorySize() int64 { return c.cfg.MaxMemory }

func (c *core) NumOpenFiles() int {
	n := 0
	for _, l := range c.files {
		if l.Len() > 0 {
			n++
		}
	}
	return n
}

// tick advances and returns the monotonic LRU clock, stamped onto a
// Region each time a cursor newly pins it.
func (c *core) tick() int64 {
	return atomic.AddInt64(&c.clockTick, 1)
}

// MakeCursor looks up or creates the RegionList for id. Every cursor
// attached to a list - new or reused - holds its own reference on top of
// the manager's own structural one, so regionList.refs starts at 1 (the
// manager) and gains exactly one more per live cursor.
func (c *core) MakeCursor(id FileID) *Cursor {
	list, ok := c.files[id]
	if !ok {
		fsize, err := sys.FileSize(id.mmapArg())
		cmn.AssertNoErr(err)
		list = newRegionList(id, fsize)
		c.files[id] = list
	}
	list.refs++
	return &Cursor{core: c, list: list}
}

// releaseList is called by a Cursor when it drops its reference to a
// list, removing the list from the file table once only the manager's
// own structural reference remains and the list holds no regions - the
// Go analogue of the original's __del__-driven cleanup (spec.md §9).
func (c *core) releaseList(list *regionList) {
	if list.refs == 1 && list.Len() == 0 {
		delete(c.files, list.id)
	}
}

// Collect evicts every currently idle region.
func (c *core) Collect() int { return c.collectLRU(0) }

// collectLRU repeatedly evicts the idle region with the smallest
// LastUsed until at least requiredBytes are free and at least one handle
// slot is available (0 means "evict every idle region") or nothing more
// can be freed. See spec.md §4.7.
func (c *core) collectLRU(requiredBytes int64) int {
	freed := 0
	needMore := func() bool {
		return requiredBytes == 0 ||
			c.memoryInUse+requiredBytes > c.cfg.MaxMemory ||
			c.handlesInUse >= c.cfg.MaxHandles
	}
	for needMore() {
		var (
			lru     *Region
			lruList *regionList
		)
		for _, list := range c.files {
			for i := 0; i < list.Len(); i++ {
				r := list.At(i)
				if r.ClientCount() != 1 {
					continue // pinned by a live cursor, not evictable
				}
				if lru == nil || r.LastUsed() < lru.LastUsed() {
					lru = r
					lruList = list
				}
			}
		}
		if lru == nil {
			break
		}
		idx := lruList.indexOf(lru)
		lruList.removeAt(idx)
		if err := lru.close(); err != nil {
			glog.Warningf("winmap[%s]: error unmapping evicted region %v: %v", c.name, lru, err)
		}
		c.memoryInUse -= lru.Size()
		c.handlesInUse--
		freed++
		glog.V(3).Infof("winmap[%s]: evicted region [%d,%d) of %s (%s), %s now mapped",
			c.name, lru.Begin(), lru.OfsEnd(), lruList.id, cmn.B2S(lru.Size(), 1), cmn.B2S(c.memoryInUse, 1))
	}
	return freed
}

// ForceMapHandleRemoval closes every map whose FileID is a path starting
// with prefix. It does so on every platform: it is not a no-op where
// deleting an open-mapped file is allowed (everything but Windows), even
// though calling it is unnecessary there (spec.md §4.8, SPEC_FULL.md
// §5).
func (c *core) ForceMapHandleRemoval(prefix string) int {
	closed := 0
	for _, list := range c.files {
		if list.id.IsFD() {
			continue // no path to match prefix against
		}
		path, _ := list.id.AsPath()
		if len(path) < len(prefix) || path[:len(prefix)] != prefix {
			continue
		}
		for list.Len() > 0 {
			r := list.removeAt(0)
			if err := r.close(); err != nil {
				glog.Warningf("winmap[%s]: error force-closing %s: %v", c.name, list.id, err)
			}
			c.memoryInUse -= r.Size()
			c.handlesInUse--
			closed++
		}
	}
	glog.V(3).Infof("winmap[%s]: force-removed %d handles under prefix %q, %s now mapped",
		c.name, closed, prefix, cmn.B2S(c.memoryInUse, 1))
	return closed
}
