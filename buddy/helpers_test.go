package buddy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/buddykit/internal/format"
)

// smallConfig keeps test pools in the kilobyte range.
var smallConfig = Config{MinOrder: 6, MaxOrder: 24, DefaultOrder: 12}

// heapAcquirer hands out heap regions, records releases and can be told to fail.
type heapAcquirer struct {
	acquireErr error
	releaseErr error
	short      bool
	released   int
}

func (h *heapAcquirer) Acquire(n uint64) ([]byte, error) {
	if h.acquireErr != nil {
		return nil, h.acquireErr
	}
	if h.short {
		return make([]byte, n/2), nil
	}
	return make([]byte, n), nil
}

func (h *heapAcquirer) Release([]byte) error {
	h.released++
	return h.releaseErr
}

var errInjected = errors.New("injected failure")

// newTestPool creates a heap-backed pool of the given order and destroys it
// when the test ends.
func newTestPool(t testing.TB, order uint) *Pool {
	t.Helper()
	p, err := New(format.BlockSize(order), WithConfig(smallConfig), WithAcquirer(&heapAcquirer{}))
	require.NoError(t, err)
	require.Equal(t, order, p.MaxOrder())
	t.Cleanup(func() {
		if !p.Closed() {
			require.NoError(t, p.Destroy())
		}
	})
	return p
}

// requireFull checks the pool is fully merged: every list below the top order
// is an empty UNUSED sentinel and the top list holds exactly the block at 0.
func requireFull(t testing.TB, p *Pool) {
	t.Helper()
	for i := uint(0); i < p.order; i++ {
		s := p.table[i]
		self := format.SentinelLink(i)
		require.Equal(t, self, s.next, "list %d next", i)
		require.Equal(t, self, s.prev, "list %d prev", i)
		require.Equal(t, StateUnused, s.state, "list %d state", i)
		require.Equal(t, i, s.order, "list %d order", i)
		require.Zero(t, s.count, "list %d count", i)
	}

	top := p.table[p.order]
	require.Equal(t, Link(0), top.next, "top list should start at the pool base")
	require.Equal(t, Link(0), top.prev, "top list should end at the pool base")
	require.Equal(t, 1, top.count)

	hdr, err := format.ReadHeader(p.arena, 0)
	require.NoError(t, err)
	require.Equal(t, StateAvailable, hdr.State)
	require.Equal(t, p.order, hdr.Order)
	require.Equal(t, format.SentinelLink(p.order), hdr.Next)
	require.Equal(t, format.SentinelLink(p.order), hdr.Prev)
}

// requireEmpty checks that every list, the top one included, is empty.
func requireEmpty(t testing.TB, p *Pool) {
	t.Helper()
	for i := uint(0); i <= p.order; i++ {
		s := p.table[i]
		self := format.SentinelLink(i)
		require.Equal(t, self, s.next, "list %d next", i)
		require.Equal(t, self, s.prev, "list %d prev", i)
		require.Equal(t, StateUnused, s.state, "list %d state", i)
		require.Equal(t, i, s.order, "list %d order", i)
	}
}

// headerOf decodes the header in front of ptr.
func headerOf(t testing.TB, p *Pool, ptr Ptr) BlockHeader {
	t.Helper()
	hdr, err := format.ReadHeader(p.arena, uint64(ptr)-HeaderSize)
	require.NoError(t, err)
	return hdr
}
