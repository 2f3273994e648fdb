package winmap_test

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/objstore/mmwin/winmap"
)

func tempFileOfSize(t *testing.T, size int64) string {
	t.Helper()
	f, err := ioutil.TempFile("", "winmap-test-")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestStaticWholeFileRead(t *testing.T) {
	path := tempFileOfSize(t, 5000)
	mgr := winmap.NewStaticManager(winmap.Config{})
	cur := mgr.MakeCursor(winmap.Path(path))
	defer cur.Release()

	cur.UseRegion(0, 0, 0)
	begin, err := cur.OfsBegin()
	if err != nil {
		t.Fatalf("OfsBegin: %v", err)
	}
	end, err := cur.OfsEnd()
	if err != nil {
		t.Fatalf("OfsEnd: %v", err)
	}
	if begin != 0 || end != 5000 {
		t.Fatalf("want [0,5000), got [%d,%d)", begin, end)
	}
	if mgr.NumFileHandles() != 1 {
		t.Fatalf("want 1 handle, got %d", mgr.NumFileHandles())
	}
	if mgr.MappedMemorySize() != 5000 {
		t.Fatalf("want 5000 bytes mapped, got %d", mgr.MappedMemorySize())
	}

	// Reuse: same region, new view.
	cur.UseRegion(4999, 0, 0)
	begin, _ = cur.OfsBegin()
	if begin != 4999 || cur.Size() != 1 {
		t.Fatalf("want ofs_begin=4999 size=1, got ofs_begin=%d size=%d", begin, cur.Size())
	}
	if mgr.NumFileHandles() != 1 {
		t.Fatalf("reuse should not create a new handle, got %d", mgr.NumFileHandles())
	}

	// EOF sentinel.
	cur.UseRegion(5000, 0, 0)
	if cur.IsValid() {
		t.Fatalf("use_region at EOF should leave the cursor invalid")
	}
	if mgr.NumFileHandles() != 1 || mgr.MappedMemorySize() != 5000 {
		t.Fatalf("EOF use_region must not change counters: handles=%d mapped=%d",
			mgr.NumFileHandles(), mgr.MappedMemorySize())
	}
}

func TestSlidingWindowGrowth(t *testing.T) {
	path := tempFileOfSize(t, 1<<20) // 1 MiB
	mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096})
	cur := mgr.MakeCursor(winmap.Path(path))
	defer cur.Release()

	cur.UseRegion(10000, 100, 0)
	if !cur.IsValid() {
		t.Fatalf("expected a valid cursor")
	}
	begin, _ := cur.OfsBegin()
	end, _ := cur.OfsEnd()
	if begin != 10000 || end != 10100 {
		t.Fatalf("want view [10000,10100), got [%d,%d)", begin, end)
	}
	if mgr.MappedMemorySize() > 4096 {
		t.Fatalf("region grew past window_size: mapped=%d", mgr.MappedMemorySize())
	}
}

func TestSlidingReuseVsNew(t *testing.T) {
	path := tempFileOfSize(t, 1<<20)
	mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096})
	cur := mgr.MakeCursor(winmap.Path(path))
	defer cur.Release()

	cur.UseRegion(10000, 100, 0)
	handlesAfterFirst := mgr.NumFileHandles()

	cur.UseRegion(10050, 10, 0)
	if mgr.NumFileHandles() != handlesAfterFirst {
		t.Fatalf("nearby offset should reuse the region, handle count changed: %d -> %d",
			handlesAfterFirst, mgr.NumFileHandles())
	}

	cur.UseRegion(20000, 10, 0)
	if mgr.NumFileHandles() != handlesAfterFirst+1 {
		t.Fatalf("distant offset should allocate a new region, want %d handles got %d",
			handlesAfterFirst+1, mgr.NumFileHandles())
	}
}

func TestEvictionRespectsBudget(t *testing.T) {
	path := tempFileOfSize(t, 1<<20)
	mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096, MaxMemory: 8192})
	cur := mgr.MakeCursor(winmap.Path(path))

	cur.UseRegion(0, 100, 0)
	cur.UnuseRegion() // idle, evictable
	cur.UseRegion(100000, 100, 0)
	cur.UnuseRegion()

	cur.UseRegion(200000, 100, 0)
	cur.UnuseRegion()

	if mgr.MappedMemorySize() > 8192 {
		t.Fatalf("mapped memory exceeded budget: %d", mgr.MappedMemorySize())
	}
	cur.Release()
}

func TestPinnedRegionSurvivesEviction(t *testing.T) {
	path := tempFileOfSize(t, 1<<20)
	mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096, MaxMemory: 8192})

	pinning := mgr.MakeCursor(winmap.Path(path))
	pinning.UseRegion(0, 100, 0) // stays pinned: never Unuse'd before Collect

	scratch := mgr.MakeCursor(winmap.Path(path))
	scratch.UseRegion(100000, 100, 0)
	scratch.UnuseRegion()
	scratch.UseRegion(200000, 100, 0)
	scratch.UnuseRegion()

	freed := mgr.Collect()
	if freed == 0 {
		t.Fatalf("expected at least one idle region to be collected")
	}
	if mgr.NumFileHandles() != 1 {
		t.Fatalf("pinned region should survive collection, want 1 handle left, got %d", mgr.NumFileHandles())
	}

	// A second collect with nothing idle left frees nothing.
	if freed2 := mgr.Collect(); freed2 != 0 {
		t.Fatalf("collect should be idempotent once nothing is idle, freed %d more", freed2)
	}

	pinning.Release()
	scratch.Release()
}

func TestEOFSignalling(t *testing.T) {
	path := tempFileOfSize(t, 100)
	mgr := winmap.NewStaticManager(winmap.Config{})
	cur := mgr.MakeCursor(winmap.Path(path))
	defer cur.Release()

	cur.UseRegion(100, 10, 0)
	if cur.IsValid() {
		t.Fatalf("offset at file size should be an invalid cursor")
	}

	cur.UseRegion(99, 10, 0)
	if !cur.IsValid() || cur.Size() != 1 {
		t.Fatalf("want a valid 1-byte view at the last offset, got valid=%v size=%d", cur.IsValid(), cur.Size())
	}
}

func TestCursorBufferReadsWhatWasWritten(t *testing.T) {
	f, err := ioutil.TempFile("", "winmap-test-")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	want := []byte("hello, winmap")
	if _, err := f.Write(want); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()

	mgr := winmap.NewStaticManager(winmap.Config{})
	cur := mgr.MakeCursor(winmap.Path(f.Name()))
	defer cur.Release()

	cur.UseRegion(0, 0, 0)
	got, err := cur.Buffer()
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestAccountingRoundTrip(t *testing.T) {
	path := tempFileOfSize(t, 5000)
	mgr := winmap.NewStaticManager(winmap.Config{})
	cur := mgr.MakeCursor(winmap.Path(path))

	cur.UseRegion(0, 0, 0)
	cur.Release()
	mgr.Collect()

	if mgr.NumFileHandles() != 0 || mgr.MappedMemorySize() != 0 {
		t.Fatalf("counters should return to zero once released and collected: handles=%d mapped=%d",
			mgr.NumFileHandles(), mgr.MappedMemorySize())
	}
	if mgr.NumOpenFiles() != 0 {
		t.Fatalf("file table should be empty once its only cursor released, got %d open files", mgr.NumOpenFiles())
	}
}

func TestReuseDoesNotLeakThePin(t *testing.T) {
	path := tempFileOfSize(t, 1<<20)
	mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096})
	cur := mgr.MakeCursor(winmap.Path(path))

	// Two use_region calls on the same cursor that land in the same
	// region must leave it pinned exactly once: a single UnuseRegion
	// (or Release) should be enough to make it collectible.
	cur.UseRegion(10000, 100, 0)
	cur.UseRegion(10050, 10, 0) // reuse, not a new pin
	cur.UnuseRegion()
	cur.Release()

	if freed := mgr.Collect(); freed != 1 {
		t.Fatalf("want 1 region freed after a single unpin following reuse, got %d", freed)
	}
	if mgr.NumFileHandles() != 0 {
		t.Fatalf("want 0 handles left, got %d - reuse must not double-count the pin", mgr.NumFileHandles())
	}
}

func TestSlidingWindowSizeDefaulting(t *testing.T) {
	// A zero Config.WindowSize means "whole file", not "apply the
	// architecture default" - only a negative value asks for that.
	zero := winmap.NewSlidingManager(winmap.Config{})
	if zero.WindowSize() != 0 {
		t.Fatalf("zero-value WindowSize should stay 0 (whole file), got %d", zero.WindowSize())
	}

	dflt := winmap.NewSlidingManager(winmap.Config{WindowSize: -1})
	if dflt.WindowSize() <= 0 {
		t.Fatalf("negative WindowSize should resolve to a positive architecture default, got %d", dflt.WindowSize())
	}
}
