package buddy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/buddykit/internal/format"
)

func TestFree_Nil(t *testing.T) {
	p := newTestPool(t, 10)
	before := p.Snapshot()
	require.NoError(t, p.Free(NilPtr))
	require.True(t, before.Equal(p.Snapshot()))
	require.Zero(t, p.Stats().FreeCalls)
}

func TestFree_Double(t *testing.T) {
	p := newTestPool(t, 10)
	keep, _, err := p.Alloc(1)
	require.NoError(t, err)
	ptr, _, err := p.Alloc(1)
	require.NoError(t, err)

	require.NoError(t, p.Free(ptr))
	before := p.Snapshot()

	err = p.Free(ptr)
	require.ErrorIs(t, err, ErrInvalidFree)
	require.True(t, before.Equal(p.Snapshot()), "rejected free must not touch the pool")
	require.Equal(t, 1, p.Stats().InvalidFrees)

	require.NoError(t, p.Free(keep))
	requireFull(t, p)

	// The header of a merged-away block is dead too.
	require.ErrorIs(t, p.Free(keep), ErrInvalidFree)
	require.ErrorIs(t, p.Free(ptr), ErrInvalidFree)
	requireFull(t, p)
}

func TestFree_Foreign(t *testing.T) {
	p := newTestPool(t, 10)
	ptr, _, err := p.Alloc(100)
	require.NoError(t, err)
	before := p.Snapshot()

	for _, bad := range []Ptr{
		1,                   // inside the first header
		HeaderSize - 1,      // before the first payload
		ptr + 1,             // inside a payload
		ptr + 128,           // payload of an AVAILABLE block
		Ptr(p.Len()),        // past the end
		Ptr(p.Len()) + 1000, // far past the end
	} {
		require.ErrorIs(t, p.Free(bad), ErrInvalidFree, "ptr 0x%X", uint64(bad))
		require.True(t, before.Equal(p.Snapshot()), "ptr 0x%X modified the pool", uint64(bad))
	}

	require.NoError(t, p.Free(ptr))
	requireFull(t, p)
}

func TestFree_RejectsMisalignedHeader(t *testing.T) {
	p := newTestPool(t, 10)
	ptr, _, err := p.Alloc(100) // order 7 at 0
	require.NoError(t, err)

	// Forge a reserved header inside the payload.
	fake := uint64(ptr) + 16
	require.NoError(t, format.WriteHeader(p.arena, fake, BlockHeader{State: StateReserved, Order: 5, Live: true}))
	require.ErrorIs(t, p.Free(Ptr(fake+HeaderSize)), ErrInvalidFree)

	require.NoError(t, p.Free(ptr))
	requireFull(t, p)
}

// TestFree_CoalescesToFull frees the splits of a single allocation in every
// possible position and checks the pool returns to a single block.
func TestFree_CoalescesToFull(t *testing.T) {
	p := newTestPool(t, 12)
	ptr, _, err := p.Alloc(1)
	require.NoError(t, err)
	require.NoError(t, p.Free(ptr))
	requireFull(t, p)
	require.Equal(t, 7, p.Stats().Merges)
}

// TestFree_Fragmentation allocates three differently sized blocks, frees the
// middle one, reuses the hole and finally releases everything in each order.
func TestFree_Fragmentation(t *testing.T) {
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, perm := range perms {
		p := newTestPool(t, 10)

		// 256 + 512 + 256 bytes: the pool is fully reserved afterwards.
		sizes := [3]uint64{200, 400, 200}
		var ptrs [3]Ptr
		for i, size := range sizes {
			ptr, _, err := p.Alloc(size)
			require.NoError(t, err)
			ptrs[i] = ptr
		}
		requireEmpty(t, p)

		hole := headerOf(t, p, ptrs[1])
		holeStart := uint64(ptrs[1]) - HeaderSize
		require.NoError(t, p.Free(ptrs[1]))

		// A smaller request is carved out of the freed region.
		small, _, err := p.Alloc(100)
		require.NoError(t, err)
		start := uint64(small) - HeaderSize
		require.GreaterOrEqual(t, start, holeStart)
		require.Less(t, start, holeStart+format.BlockSize(hole.Order))
		ptrs[1] = small

		for _, i := range perm {
			require.NoError(t, p.Free(ptrs[i]), "perm %v", perm)
		}
		requireFull(t, p)
	}
}

// TestFree_Exhaustion fills the pool with minimum blocks, checks the next
// request fails, then frees them all.
func TestFree_Exhaustion(t *testing.T) {
	p := newTestPool(t, 10)

	var ptrs []Ptr
	for {
		ptr, _, err := p.Alloc(1)
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfMemory)
			break
		}
		ptrs = append(ptrs, ptr)
	}
	require.Len(t, ptrs, 1<<(10-5))
	requireEmpty(t, p)

	for i := len(ptrs) - 1; i >= 0; i-- {
		require.NoError(t, p.Free(ptrs[i]))
	}
	requireFull(t, p)

	ptr, _, err := p.Alloc(p.Len() - HeaderSize)
	require.NoError(t, err)
	require.NoError(t, p.Free(ptr))
	requireFull(t, p)
}

func TestFreeBytes(t *testing.T) {
	p := newTestPool(t, 10)

	_, b, err := p.Alloc(50)
	require.NoError(t, err)
	ptr, ok := p.PtrOf(b)
	require.True(t, ok)
	require.Equal(t, StateReserved, headerOf(t, p, ptr).State)

	require.NoError(t, p.FreeBytes(b))
	requireFull(t, p)

	require.NoError(t, p.FreeBytes(nil))
	require.NoError(t, p.FreeBytes([]byte{}))

	foreign := make([]byte, 64)
	require.ErrorIs(t, p.FreeBytes(foreign), ErrInvalidFree)
	_, ok = p.PtrOf(foreign)
	require.False(t, ok)
	requireFull(t, p)
}
