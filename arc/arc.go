// Package arc implements an Adaptive Replacement Cache mapping string keys
// to byte-slice values. It maintains two resident lists (T1 recency, T2
// frequency) and two ghost lists (B1, B2, keys only) with an adaptive
// partition that shifts the balance between recency and frequency as
// access patterns change.
//
// Each of the four key lists is a container/list ordered, iterable
// collection paired with an index map for O(1) membership checks, since
// ARC needs to find an arbitrary key's list position on every operation
// rather than only walk front-to-back.
package arc

import (
	"container/list"
	"sync/atomic"

	"karcfs/kmutex"
	"karcfs/util"
)

// Stats reports the ARC partition and list sizes exposed by the cache.
type Stats struct {
	T1, T2, B1, B2 int
	P              int64
	Capacity       int64
	Hits, Misses   uint64
}

// HitRate returns Hits/(Hits+Misses), or 0 when no operation has run yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is an Adaptive Replacement Cache of capacity c.
type Cache struct {
	capacity int64
	p        int64 // atomic; 0 <= p <= capacity

	valueLock kmutex.IRQRWMutex
	t1Lock    kmutex.IRQRWMutex
	t2Lock    kmutex.IRQRWMutex
	b1Lock    kmutex.IRQRWMutex
	b2Lock    kmutex.IRQRWMutex

	t1, t2, b1, b2             *list.List
	t1idx, t2idx, b1idx, b2idx map[string]*list.Element
	values                     map[string][]byte
	// dirty is reserved for a future write-back mode and is never set by
	// Get/Put/Invalidate.
	dirty map[string]bool

	hits, misses uint64
}

// New constructs a Cache with the given capacity. capacity must be >= 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		panic("arc: capacity must be >= 1")
	}
	return &Cache{
		capacity: int64(capacity),
		t1:       list.New(),
		t2:       list.New(),
		b1:       list.New(),
		b2:       list.New(),
		t1idx:    make(map[string]*list.Element),
		t2idx:    make(map[string]*list.Element),
		b1idx:    make(map[string]*list.Element),
		b2idx:    make(map[string]*list.Element),
		values:   make(map[string][]byte),
		dirty:    make(map[string]bool),
	}
}

// lockAll acquires every list lock in the fixed order value-store -> T1 ->
// T2 -> B1 -> B2, the order every multi-list operation follows to avoid
// deadlock.
func (c *Cache) lockAll() {
	c.valueLock.Lock()
	c.t1Lock.Lock()
	c.t2Lock.Lock()
	c.b1Lock.Lock()
	c.b2Lock.Lock()
}

func (c *Cache) unlockAll() {
	c.b2Lock.Unlock()
	c.b1Lock.Unlock()
	c.t2Lock.Unlock()
	c.t1Lock.Unlock()
	c.valueLock.Unlock()
}

func (c *Cache) rlockAll() {
	c.valueLock.RLock()
	c.t1Lock.RLock()
	c.t2Lock.RLock()
	c.b1Lock.RLock()
	c.b2Lock.RLock()
}

func (c *Cache) runlockAll() {
	c.b2Lock.RUnlock()
	c.b1Lock.RUnlock()
	c.t2Lock.RUnlock()
	c.t1Lock.RUnlock()
	c.valueLock.RUnlock()
}

func (c *Cache) p_() int64    { return atomic.LoadInt64(&c.p) }
func (c *Cache) setP(v int64) { atomic.StoreInt64(&c.p, v) }

// Get returns the value stored under key, if resident, promoting it to the
// most-recently-used end of T2 and recording a hit. A miss returns
// (nil, false) and records a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.lockAll()
	defer c.unlockAll()

	if el, ok := c.t1idx[key]; ok {
		c.t1.Remove(el)
		delete(c.t1idx, key)
		c.t2idx[key] = c.t2.PushFront(key)
		atomic.AddUint64(&c.hits, 1)
		return c.copyValue(key), true
	}
	if el, ok := c.t2idx[key]; ok {
		c.t2.MoveToFront(el)
		atomic.AddUint64(&c.hits, 1)
		return c.copyValue(key), true
	}
	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

func (c *Cache) copyValue(key string) []byte {
	v := c.values[key]
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Put inserts or updates key with value, running the full ARC case
// analysis (resident hit, ghost hit in B1, ghost hit in B2, or miss). A put
// that lands on an already-resident key is counted as a hit, reflecting
// that the caller found a cache-effective write target; a put that lands
// on a ghost key adapts the partition but is not counted toward the
// hit/miss ratio, since no value is being retrieved.
func (c *Cache) Put(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.lockAll()
	defer c.unlockAll()

	if el, ok := c.t1idx[key]; ok {
		c.t1.Remove(el)
		delete(c.t1idx, key)
		c.t2idx[key] = c.t2.PushFront(key)
		c.values[key] = stored
		atomic.AddUint64(&c.hits, 1)
		return
	}
	if el, ok := c.t2idx[key]; ok {
		c.t2.MoveToFront(el)
		c.values[key] = stored
		atomic.AddUint64(&c.hits, 1)
		return
	}
	if el, ok := c.b1idx[key]; ok {
		b1Len, b2Len := int64(c.b1.Len()), int64(c.b2.Len())
		delta := util.Max(int64(1), b2Len/b1Len)
		c.setP(util.Min(c.capacity, c.p_()+delta))
		c.replace(key)
		c.b1.Remove(el)
		delete(c.b1idx, key)
		c.t2idx[key] = c.t2.PushFront(key)
		c.values[key] = stored
		return
	}
	if el, ok := c.b2idx[key]; ok {
		b1Len, b2Len := int64(c.b1.Len()), int64(c.b2.Len())
		delta := util.Max(int64(1), b1Len/b2Len)
		c.setP(util.Max(int64(0), c.p_()-delta))
		c.replace(key)
		c.b2.Remove(el)
		delete(c.b2idx, key)
		c.t2idx[key] = c.t2.PushFront(key)
		c.values[key] = stored
		return
	}

	cc := c.capacity
	t1Len, t2Len := int64(c.t1.Len()), int64(c.t2.Len())
	b1Len, b2Len := int64(c.b1.Len()), int64(c.b2.Len())
	total := t1Len + t2Len + b1Len + b2Len
	switch {
	case t1Len+b1Len == cc:
		if t1Len < cc {
			c.evictGhostLRU(c.b1, c.b1idx)
			c.replace(key)
		} else {
			c.evictResidentLRU(c.t1, c.t1idx, true)
		}
	case total >= cc:
		if total == 2*cc {
			c.evictGhostLRU(c.b2, c.b2idx)
		}
		c.replace(key)
	}
	c.t1idx[key] = c.t1.PushFront(key)
	c.values[key] = stored
}

// replace implements the spec's REPLACE(key) step: it evicts the LRU
// resident entry from T1 or T2 into the matching ghost list, dropping its
// value. key is the key currently being inserted/promoted, needed only to
// decide the T1-vs-T2 split when it originated from B2.
func (c *Cache) replace(key string) {
	t1Len := int64(c.t1.Len())
	p := c.p_()
	_, inB2 := c.b2idx[key]

	if t1Len > 0 && (t1Len > p || (inB2 && t1Len == p)) {
		el := c.t1.Back()
		k := el.Value.(string)
		c.t1.Remove(el)
		delete(c.t1idx, k)
		delete(c.values, k)
		c.b1idx[k] = c.b1.PushFront(k)
		c.trimGhost(c.b1, c.b1idx)
		return
	}
	el := c.t2.Back()
	if el == nil {
		return
	}
	k := el.Value.(string)
	c.t2.Remove(el)
	delete(c.t2idx, k)
	delete(c.values, k)
	c.b2idx[k] = c.b2.PushFront(k)
	c.trimGhost(c.b2, c.b2idx)
}

func (c *Cache) evictGhostLRU(l *list.List, idx map[string]*list.Element) {
	el := l.Back()
	if el == nil {
		return
	}
	k := el.Value.(string)
	l.Remove(el)
	delete(idx, k)
}

func (c *Cache) evictResidentLRU(l *list.List, idx map[string]*list.Element, dropValue bool) {
	el := l.Back()
	if el == nil {
		return
	}
	k := el.Value.(string)
	l.Remove(el)
	delete(idx, k)
	if dropValue {
		delete(c.values, k)
	}
}

func (c *Cache) trimGhost(l *list.List, idx map[string]*list.Element) {
	for int64(l.Len()) > c.capacity {
		c.evictGhostLRU(l, idx)
	}
}

// Invalidate removes key from whichever list contains it, dropping its
// value if resident. It is a no-op if key is absent everywhere.
func (c *Cache) Invalidate(key string) {
	c.lockAll()
	defer c.unlockAll()

	if el, ok := c.t1idx[key]; ok {
		c.t1.Remove(el)
		delete(c.t1idx, key)
		delete(c.values, key)
		return
	}
	if el, ok := c.t2idx[key]; ok {
		c.t2.Remove(el)
		delete(c.t2idx, key)
		delete(c.values, key)
		return
	}
	if el, ok := c.b1idx[key]; ok {
		c.b1.Remove(el)
		delete(c.b1idx, key)
		return
	}
	if el, ok := c.b2idx[key]; ok {
		c.b2.Remove(el)
		delete(c.b2idx, key)
	}
}

// Stats returns a snapshot of the cache's list sizes, partition, and
// monotone hit/miss counters.
func (c *Cache) Stats() Stats {
	c.rlockAll()
	defer c.runlockAll()
	return Stats{
		T1:       c.t1.Len(),
		T2:       c.t2.Len(),
		B1:       c.b1.Len(),
		B2:       c.b2.Len(),
		P:        c.p_(),
		Capacity: c.capacity,
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
	}
}
