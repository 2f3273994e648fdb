package winmap_test

import (
	"io/ioutil"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/objstore/mmwin/winmap"
)

func makeTempFile(size int64) string {
	f, err := ioutil.TempFile("", "winmap-laws-")
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	Expect(f.Truncate(size)).To(Succeed())
	return f.Name()
}

var _ = Describe("sliding window manager laws", func() {
	var path string

	AfterEach(func() {
		os.Remove(path)
	})

	Describe("Reuse", func() {
		It("pins the same region across two nearby use_region calls", func() {
			path = makeTempFile(1 << 20)
			mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096})
			cur := mgr.MakeCursor(winmap.Path(path))
			defer cur.Release()

			cur.UseRegion(10000, 100, 0)
			handlesAfterFirst := mgr.NumFileHandles()

			cur.UseRegion(10050, 10, 0)
			Expect(mgr.NumFileHandles()).To(Equal(handlesAfterFirst), "a nearby offset should reuse the pinned region")
		})
	})

	Describe("Inclusion and clamp", func() {
		It("keeps the cursor's view within [ofs_begin, ofs_end) and the file bounds", func() {
			path = makeTempFile(1 << 20)
			mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096})
			cur := mgr.MakeCursor(winmap.Path(path))
			defer cur.Release()

			cur.UseRegion(10000, 100, 0)
			Expect(cur.IsValid()).To(BeTrue())

			included, err := cur.IncludesOfs(10000)
			Expect(err).NotTo(HaveOccurred())
			Expect(included).To(BeTrue())

			ofsEnd, err := cur.OfsEnd()
			Expect(err).NotTo(HaveOccurred())
			Expect(ofsEnd).To(BeNumerically("<=", 1<<20))
			Expect(cur.Size()).To(BeNumerically("<=", 4096))
		})
	})

	Describe("Eviction idempotence", func() {
		It("returns 0 on the second consecutive collect", func() {
			path = makeTempFile(1 << 20)
			mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096, MaxMemory: 8192})
			cur := mgr.MakeCursor(winmap.Path(path))

			cur.UseRegion(0, 100, 0)
			cur.UnuseRegion()
			cur.UseRegion(500000, 100, 0)
			cur.UnuseRegion()

			mgr.Collect()
			Expect(mgr.Collect()).To(Equal(0))
			cur.Release()
		})
	})

	Describe("LRU order", func() {
		It("evicts the region with the smallest last_used first", func() {
			path = makeTempFile(1 << 20)
			mgr := winmap.NewSlidingManager(winmap.Config{WindowSize: 4096, MaxMemory: 8192})
			cur := mgr.MakeCursor(winmap.Path(path))
			defer cur.Release()

			cur.UseRegion(0, 100, 0) // region A, last_used = tick 1
			cur.UnuseRegion()

			cur.UseRegion(300000, 100, 0) // region B, last_used = tick 2
			cur.UnuseRegion()

			// Budget holds exactly two regions' worth: this placement must
			// evict one idle region before mapping region C. Both A and B
			// are idle, so A - the smaller last_used - is the one evicted.
			cur.UseRegion(600000, 100, 0) // region C
			handlesAfterC := mgr.NumFileHandles()

			// Reuse never runs the budget/eviction path (placeSliding
			// returns early on a hit), so this check is side-effect free:
			// if B is still mapped, the handle count cannot change.
			cur.UseRegion(300000, 100, 0)
			Expect(mgr.NumFileHandles()).To(Equal(handlesAfterC), "region B should have survived - it was touched more recently than A")
			cur.UnuseRegion()
		})
	})

	Describe("EOF signalling", func() {
		It("reports an invalid cursor exactly at end of file and a 1-byte view just before it", func() {
			path = makeTempFile(100)
			mgr := winmap.NewStaticManager(winmap.Config{})
			cur := mgr.MakeCursor(winmap.Path(path))
			defer cur.Release()

			cur.UseRegion(100, 10, 0)
			Expect(cur.IsValid()).To(BeFalse())

			cur.UseRegion(99, 10, 0)
			Expect(cur.IsValid()).To(BeTrue())
			Expect(cur.Size()).To(Equal(int64(1)))
		})
	})
})
