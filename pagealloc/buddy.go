package pagealloc

import (
	"karcfs/kerr"
	"karcfs/util"
)

// BuddyAllocator manages free space as power-of-two blocks with coalescing.
// A block at page index i of order k satisfies i mod 2^k == 0; its buddy is
// i XOR 2^k.
type BuddyAllocator struct {
	region
	maxOrder int
	// free[order] is a LIFO stack of free block start page indices at
	// that order. The most recently pushed block is the first reused,
	// matching the spec's stack-like free-list tie-break.
	free [][]int
	// allocOrder records the order an in-use block was allocated at,
	// keyed by its start page index, so DeallocPages need not trust a
	// caller-supplied size.
	allocOrder map[int]int
}

// Init implements Allocator.
func (b *BuddyAllocator) Init(start uintptr, size int) kerr.Err {
	base, totalPages, err := roundRegion(start, size)
	if err != kerr.OK {
		return err
	}
	b.base = base
	b.totalPages = totalPages
	b.maxOrder = int(util.Log2(util.NextPow2(totalPages)))
	if util.NextPow2(totalPages) > totalPages && b.maxOrder > 0 {
		// totalPages isn't itself a power of two; the highest usable
		// order is the largest block that still fits.
		b.maxOrder--
	}
	b.free = make([][]int, b.maxOrder+1)
	b.allocOrder = make(map[int]int)

	remaining := totalPages
	idx := 0
	for order := b.maxOrder; order >= 0 && remaining > 0; order-- {
		blockPages := 1 << uint(order)
		for remaining >= blockPages {
			b.free[order] = append(b.free[order], idx)
			idx += blockPages
			remaining -= blockPages
		}
	}
	return kerr.OK
}

// Name implements Allocator.
func (b *BuddyAllocator) Name() string { return "buddy" }

func (b *BuddyAllocator) orderFor(n, align int) (int, kerr.Err) {
	if n < 1 || align < PageSize || !isPow2(align) {
		return 0, kerr.InvalidParam
	}
	pages := util.Max(n, align/PageSize)
	order := int(util.Log2(util.NextPow2(pages)))
	if order > b.maxOrder {
		return 0, kerr.NoMemory
	}
	return order, kerr.OK
}

func popLIFO(stack []int) ([]int, int) {
	n := len(stack)
	return stack[:n-1], stack[n-1]
}

func removeIdx(stack []int, v int) ([]int, bool) {
	for i, e := range stack {
		if e == v {
			stack = append(stack[:i], stack[i+1:]...)
			return stack, true
		}
	}
	return stack, false
}

// AllocPages implements Allocator.
func (b *BuddyAllocator) AllocPages(n int, align int) (uintptr, kerr.Err) {
	order, err := b.orderFor(n, align)
	if err != kerr.OK {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	o := order
	for o <= b.maxOrder && len(b.free[o]) == 0 {
		o++
	}
	if o > b.maxOrder {
		return 0, kerr.NoMemory
	}

	var idx int
	b.free[o], idx = popLIFO(b.free[o])
	for o > order {
		o--
		half := idx + (1 << uint(o))
		b.free[o] = append(b.free[o], half)
	}
	b.allocOrder[idx] = order
	return b.base + uintptr(idx)*PageSize, kerr.OK
}

// AllocPagesAt implements Allocator.
func (b *BuddyAllocator) AllocPagesAt(addr uintptr, n int, align int) (uintptr, kerr.Err) {
	order, err := b.orderFor(n, align)
	if err != kerr.OK {
		return 0, err
	}
	if addr < b.base || addr%uintptr(align) != 0 {
		return 0, kerr.InvalidParam
	}
	idx := int(addr-b.base) / PageSize
	if idx >= b.totalPages || idx%(1<<uint(order)) != 0 {
		return 0, kerr.InvalidParam
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if ok := b.removeAt(order, idx); ok {
		b.allocOrder[idx] = order
		return addr, kerr.OK
	}

	// Look for a larger free block that contains idx and carve it down.
	for o := order + 1; o <= b.maxOrder; o++ {
		blockSize := 1 << uint(o)
		start := idx - (idx % blockSize)
		if removed, ok := removeIdx(b.free[o], start); ok {
			b.free[o] = removed
			b.splitDownTo(start, o, order, idx)
			b.allocOrder[idx] = order
			return addr, kerr.OK
		}
	}
	return 0, kerr.NoMemory
}

func (b *BuddyAllocator) removeAt(order, idx int) bool {
	removed, ok := removeIdx(b.free[order], idx)
	if ok {
		b.free[order] = removed
	}
	return ok
}

// splitDownTo repeatedly halves the block [start, start+2^from) until it
// reaches size 2^to pages, pushing the sibling that does not contain target
// onto the corresponding free-list at each step.
func (b *BuddyAllocator) splitDownTo(start, from, to, target int) {
	for cur := from; cur > to; cur-- {
		half := start + (1 << uint(cur-1))
		if target < half {
			b.free[cur-1] = append(b.free[cur-1], half)
		} else {
			b.free[cur-1] = append(b.free[cur-1], start)
			start = half
		}
	}
}

// DeallocPages implements Allocator.
func (b *BuddyAllocator) DeallocPages(addr uintptr, _ int) {
	if addr < b.base {
		return
	}
	off := addr - b.base
	if off%PageSize != 0 {
		return
	}
	idx := int(off) / PageSize
	if idx >= b.totalPages {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.allocOrder[idx]
	if !ok {
		return
	}
	delete(b.allocOrder, idx)

	cur := order
	for cur < b.maxOrder {
		buddy := idx ^ (1 << uint(cur))
		removed, ok := removeIdx(b.free[cur], buddy)
		if !ok {
			break
		}
		b.free[cur] = removed
		if buddy < idx {
			idx = buddy
		}
		cur++
	}
	b.free[cur] = append(b.free[cur], idx)
}

// Stats implements Allocator.
func (b *BuddyAllocator) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var freePages, largest int64
	for order, list := range b.free {
		n := int64(len(list))
		blockPages := int64(1) << uint(order)
		freePages += n * blockPages
		if n > 0 && blockPages > largest {
			largest = blockPages
		}
	}
	freeBytes := freePages * PageSize
	frag := 0.0
	if freeBytes > 0 {
		frag = 1 - float64(largest*PageSize)/float64(freeBytes)
	}
	return Stats{FreeBytes: freeBytes, Fragmentation: frag}
}
