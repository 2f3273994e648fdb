package winmap

import (
	"github.com/golang/glog"
	"github.com/objstore/mmwin/sys"
)

// StaticManager maps each file once, in full: every RegionList it owns
// holds at most one Region spanning [0, fileSize). Clients must know
// they're using a StaticManager, since cursors from it always see the
// whole file rather than a bounded window (spec.md §4.5).
type StaticManager struct {
	*core
}

// NewStaticManager constructs a StaticManager. See Config for defaulting
// rules.
func NewStaticManager(cfg Config) *StaticManager {
	m := &StaticManager{core: newCore(defaultStaticConfig(cfg))}
	m.obtain = m.placeStatic
	return m
}

// placeStatic implements the static placement policy of spec.md §4.5.
func (c *core) placeStatic(list *regionList, offset, size int64, flags int) (*Region, error) {
	if list.Len() == 1 {
		return list.At(0), nil
	}

	fsize := list.FileSize()
	if c.memoryInUse+fsize > c.cfg.MaxMemory || c.handlesInUse >= c.cfg.MaxHandles {
		c.collectLRU(fsize)
	}

	r, err := c.mapWholeFile(list)
	if err != nil {
		if !IsResourceExhausted(err) {
			return nil, err
		}
		glog.Warningf("winmap[%s]: mmap failed for %s, retrying after full eviction", c.name, list.id)
		c.collectLRU(0)
		if r, err = c.mapWholeFile(list); err != nil {
			return nil, err
		}
	}

	list.insertAt(0, r)
	return r, nil
}

// mapWholeFile maps from the start of the file to EOF. It asks for
// sys.MaxMapSize rather than the cached file size so the actual mapped
// size always comes from what Mmap itself measured, not a possibly-stale
// cached value.
func (c *core) mapWholeFile(list *regionList) (*Region, error) {
	if c.handlesInUse >= c.cfg.MaxHandles {
		return nil, newResourceExhausted(errHandleCapReached)
	}
	r, err := newRegion(list.id, 0, sys.MaxMapSize)
	if err != nil {
		return nil, err
	}
	c.handlesInUse++
	c.memoryInUse += r.Size()
	return r, nil
}
