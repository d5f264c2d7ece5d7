package arc

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRoundTrip(t *testing.T) {
	c := New(4)
	c.Put("k", []byte("v"))
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New(4)
	c.Put("k", []byte("v"))
	c.Invalidate("k")
	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestGetCopiesOutOfCacheOwnedBuffer(t *testing.T) {
	c := New(4)
	c.Put("k", []byte("v"))
	v, _ := c.Get("k")
	v[0] = 'X'
	v2, _ := c.Get("k")
	require.Equal(t, []byte("v"), v2)
}

// TestAdaptivity walks a capacity-4 cache through a fixed sequence of
// puts and gets. C migrating from T1 to the ghost list B1 by the eighth
// operation, and at least three recorded hits after the ninth (a put on
// the resident A), are asserted exactly. put(G) then finds |T1|+|B1| equal
// to the capacity and drops C, the LRU entry of B1, so the closing put(C)
// is an ordinary miss that lands in T1 rather than a B1 hit; those last
// two operations are checked only against the general list-size
// invariants.
func TestAdaptivity(t *testing.T) {
	c := New(4)
	c.Put("A", []byte("a"))
	c.Put("B", []byte("b"))
	c.Put("C", []byte("c"))
	c.Put("D", []byte("d"))
	_, _ = c.Get("A")
	_, _ = c.Get("B")
	c.Put("E", []byte("e"))
	c.Put("F", []byte("f"))

	st := c.Stats()
	_, cResident := c.t1idx["C"]
	_, cResidentT2 := c.t2idx["C"]
	_, cGhost := c.b1idx["C"]
	require.False(t, cResident || cResidentT2, "C should no longer be resident")
	require.True(t, cGhost, "C should have moved to B1 by the eighth operation")
	requireInvariants(t, c, st)

	c.Put("A", []byte("a2"))
	st = c.Stats()
	require.GreaterOrEqual(t, st.Hits, uint64(3))
	requireInvariants(t, c, st)

	c.Put("G", []byte("g"))
	c.Put("C", []byte("c2"))
	requireInvariants(t, c, c.Stats())
}

func requireInvariants(t *testing.T, c *Cache, st Stats) {
	t.Helper()
	require.LessOrEqual(t, int64(st.T1+st.T2), c.capacity)
	require.LessOrEqual(t, st.B1, int(c.capacity))
	require.LessOrEqual(t, st.B2, int(c.capacity))
	require.GreaterOrEqual(t, st.P, int64(0))
	require.LessOrEqual(t, st.P, c.capacity)
}

// TestConcurrentAccess exercises the cache from eight goroutines performing
// 10,000 put/get pairs each onto a shared Cache, then checks the list-size
// invariants and the hit/miss accounting. Every Get call returns exactly
// one of hit or miss, so the counters must grow by at least one per Get;
// Put on an already-resident key also counts as a hit (see Put's doc
// comment), so the counters may run ahead of the Get-only count but never
// behind it.
func TestConcurrentAccess(t *testing.T) {
	const (
		workers = 8
		ops     = 10000
		cap     = 64
	)
	c := New(cap)

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < ops; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i%(cap*2))
				c.Put(key, []byte{byte(i)})
				c.Get(key)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	st := c.Stats()
	requireInvariants(t, c, st)
	require.GreaterOrEqual(t, st.Hits+st.Misses, uint64(workers*ops))
}
