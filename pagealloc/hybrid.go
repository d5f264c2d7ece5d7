package pagealloc

import (
	"sort"

	"karcfs/kerr"
)

// extent is an address-ordered free region, [start, start+size) in pages.
type extent struct {
	start int
	size  int
}

// HybridAllocator routes requests by size: extents at or above threshold
// pages are served from an address-ordered, coalescing free-list; smaller
// requests are served from a bitmap. The two pools are carved out of
// disjoint zones of the region at Init time so that a given page index
// unambiguously belongs to one pool, which is what lets DeallocPages route
// purely from the recorded allocation tag without scanning both pools.
type HybridAllocator struct {
	region
	threshold int

	bitmapPages int
	bits        []uint64

	listBase int // first page index of the free-list zone
	extents  []extent

	// tag records which pool owns an in-use allocation, keyed by start
	// page index, plus its length in pages.
	tag map[int]poolTag
}

type poolTag struct {
	pool string // "bitmap" or "list"
	size int
}

// NewHybrid constructs a HybridAllocator with the given pool-routing
// threshold, in pages.
func NewHybrid(threshold int) *HybridAllocator {
	if threshold < 1 {
		threshold = DefaultHybridThreshold
	}
	return &HybridAllocator{threshold: threshold}
}

// Init implements Allocator.
func (h *HybridAllocator) Init(start uintptr, size int) kerr.Err {
	base, totalPages, err := roundRegion(start, size)
	if err != kerr.OK {
		return err
	}
	h.base = base
	h.totalPages = totalPages
	h.tag = make(map[int]poolTag)

	bitmapPages := totalPages / 4
	if bitmapPages < h.threshold {
		bitmapPages = h.threshold
	}
	if bitmapPages > totalPages {
		bitmapPages = totalPages
	}
	h.bitmapPages = bitmapPages
	h.bits = make([]uint64, (bitmapPages+63)/64)
	for i := 0; i < bitmapPages; i++ {
		h.setBit(i, true)
	}

	h.listBase = bitmapPages
	if remain := totalPages - bitmapPages; remain > 0 {
		h.extents = []extent{{start: bitmapPages, size: remain}}
	}
	return kerr.OK
}

// Name implements Allocator.
func (h *HybridAllocator) Name() string { return "hybrid" }

func (h *HybridAllocator) bit(i int) bool {
	return h.bits[i/64]&(1<<uint(i%64)) != 0
}

func (h *HybridAllocator) setBit(i int, free bool) {
	if free {
		h.bits[i/64] |= 1 << uint(i%64)
	} else {
		h.bits[i/64] &^= 1 << uint(i%64)
	}
}

func (h *HybridAllocator) bitmapRunIsFree(start, n int) bool {
	if start < 0 || start+n > h.bitmapPages {
		return false
	}
	for i := start; i < start+n; i++ {
		if !h.bit(i) {
			return false
		}
	}
	return true
}

func (h *HybridAllocator) allocBitmap(n, alignPages int) (int, kerr.Err) {
	bestStart, bestLen := -1, -1
	i := 0
	for i < h.bitmapPages {
		if !h.bit(i) {
			i++
			continue
		}
		runStart := i
		for i < h.bitmapPages && h.bit(i) {
			i++
		}
		runLen := i - runStart
		aligned := roundUpIndex(runStart, alignPages)
		if aligned+n <= runStart+runLen && (bestLen == -1 || runLen < bestLen) {
			bestStart, bestLen = aligned, runLen
		}
	}
	if bestStart == -1 || !h.bitmapRunIsFree(bestStart, n) {
		return 0, kerr.NoMemory
	}
	for i := bestStart; i < bestStart+n; i++ {
		h.setBit(i, false)
	}
	return bestStart, kerr.OK
}

// allocList is a best-fit search over the free-list pool, honoring align.
func (h *HybridAllocator) allocList(n, alignPages int) (int, kerr.Err) {
	bestExtentIdx, bestStart, bestAvail := -1, -1, -1
	for i, e := range h.extents {
		start := roundUpIndex(e.start, alignPages)
		if start+n > e.start+e.size {
			continue
		}
		avail := e.size - (start - e.start)
		if bestExtentIdx == -1 || avail < bestAvail {
			bestExtentIdx, bestStart, bestAvail = i, start, avail
		}
	}
	if bestExtentIdx == -1 {
		return 0, kerr.NoMemory
	}
	h.carveList(bestExtentIdx, bestStart, n)
	return bestStart, kerr.OK
}

// carveList removes [start, start+n) from extents[idx], re-inserting
// whatever remains before and after the carved range.
func (h *HybridAllocator) carveList(idx, start, n int) {
	e := h.extents[idx]
	h.extents = append(h.extents[:idx], h.extents[idx+1:]...)
	if leftLen := start - e.start; leftLen > 0 {
		h.extents = append(h.extents, extent{start: e.start, size: leftLen})
	}
	if rightStart := start + n; rightStart < e.start+e.size {
		h.extents = append(h.extents, extent{start: rightStart, size: e.start + e.size - rightStart})
	}
	sort.Slice(h.extents, func(i, j int) bool { return h.extents[i].start < h.extents[j].start })
}

// freeList returns [start, start+n) to the free-list pool, coalescing with
// an adjacent predecessor or successor extent.
func (h *HybridAllocator) freeList(start, n int) {
	h.extents = append(h.extents, extent{start: start, size: n})
	sort.Slice(h.extents, func(i, j int) bool { return h.extents[i].start < h.extents[j].start })

	merged := h.extents[:0]
	for _, e := range h.extents {
		if len(merged) > 0 && merged[len(merged)-1].start+merged[len(merged)-1].size == e.start {
			merged[len(merged)-1].size += e.size
		} else {
			merged = append(merged, e)
		}
	}
	h.extents = merged
}

// AllocPages implements Allocator.
func (h *HybridAllocator) AllocPages(n int, align int) (uintptr, kerr.Err) {
	if err := validateAllocArgs(n, align); err != kerr.OK {
		return 0, err
	}
	alignPages := align / PageSize

	h.mu.Lock()
	defer h.mu.Unlock()

	if n >= h.threshold {
		idx, err := h.allocList(n, alignPages)
		if err != kerr.OK {
			return 0, err
		}
		h.tag[idx] = poolTag{pool: "list", size: n}
		return h.base + uintptr(idx)*PageSize, kerr.OK
	}
	idx, err := h.allocBitmap(n, alignPages)
	if err != kerr.OK {
		return 0, err
	}
	h.tag[idx] = poolTag{pool: "bitmap", size: n}
	return h.base + uintptr(idx)*PageSize, kerr.OK
}

// AllocPagesAt implements Allocator.
func (h *HybridAllocator) AllocPagesAt(addr uintptr, n int, align int) (uintptr, kerr.Err) {
	if err := validateAllocArgs(n, align); err != kerr.OK {
		return 0, err
	}
	if addr < h.base || addr%uintptr(align) != 0 {
		return 0, kerr.InvalidParam
	}
	idx := int(addr-h.base) / PageSize

	h.mu.Lock()
	defer h.mu.Unlock()

	if idx < h.bitmapPages {
		if !h.bitmapRunIsFree(idx, n) {
			return 0, kerr.NoMemory
		}
		for i := idx; i < idx+n; i++ {
			h.setBit(i, false)
		}
		h.tag[idx] = poolTag{pool: "bitmap", size: n}
		return addr, kerr.OK
	}
	for i, e := range h.extents {
		if idx >= e.start && idx+n <= e.start+e.size {
			h.carveList(i, idx, n)
			h.tag[idx] = poolTag{pool: "list", size: n}
			return addr, kerr.OK
		}
	}
	return 0, kerr.NoMemory
}

// DeallocPages implements Allocator.
func (h *HybridAllocator) DeallocPages(addr uintptr, _ int) {
	if addr < h.base || (addr-h.base)%PageSize != 0 {
		return
	}
	idx := int(addr-h.base) / PageSize

	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tag[idx]
	if !ok {
		return
	}
	delete(h.tag, idx)
	if t.pool == "bitmap" {
		for i := idx; i < idx+t.size; i++ {
			h.setBit(i, true)
		}
		return
	}
	h.freeList(idx, t.size)
}

// Stats implements Allocator.
func (h *HybridAllocator) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	bmStats := bitmapStats(h, h.bitmapPages)

	var listFree, listLargest int64
	for _, e := range h.extents {
		listFree += int64(e.size)
		if int64(e.size) > listLargest {
			listLargest = int64(e.size)
		}
	}
	listFreeBytes := listFree * PageSize
	freeBytes := bmStats.FreeBytes + listFreeBytes
	largest := listLargest * PageSize
	if bmLargest := int64((1 - bmStats.Fragmentation) * float64(bmStats.FreeBytes)); bmStats.FreeBytes > 0 && bmLargest > largest {
		largest = bmLargest
	}
	frag := 0.0
	if freeBytes > 0 {
		frag = 1 - float64(largest)/float64(freeBytes)
	}
	return Stats{FreeBytes: freeBytes, Fragmentation: frag}
}
