package buddy_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/buddy/verify"
	"github.com/joshuapare/buddykit/internal/testutil"
)

type live struct {
	ptr     buddy.Ptr
	payload []byte
	fill    byte
}

// runRandom interleaves allocations and frees from a fixed seed, checking the
// structural invariants after every step and the payload contents before
// each free.
func runRandom(t *testing.T, p *buddy.Pool, seed int64, steps int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var blocks []live

	for step := range steps {
		if len(blocks) == 0 || rng.Intn(100) < 55 {
			size := uint64(rng.Intn(int(p.Len()/8))) + 1
			ptr, b, err := p.Alloc(size)
			if err != nil {
				require.ErrorIs(t, err, buddy.ErrOutOfMemory, "step %d", step)
				continue
			}
			require.GreaterOrEqual(t, uint64(len(b)), size)
			fill := byte(rng.Intn(255) + 1)
			for i := range b {
				b[i] = fill
			}
			blocks = append(blocks, live{ptr, b, fill})
		} else {
			i := rng.Intn(len(blocks))
			blk := blocks[i]
			for j, c := range blk.payload {
				if c != blk.fill {
					t.Fatalf("step %d: payload of 0x%X clobbered at +%d", step, uint64(blk.ptr), j)
				}
			}
			require.NoError(t, p.Free(blk.ptr), "step %d", step)
			blocks[i] = blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
		}
		require.NoError(t, verify.AllInvariants(p), "step %d", step)
	}

	for _, blk := range blocks {
		require.NoError(t, p.Free(blk.ptr))
	}
	require.NoError(t, verify.AllInvariants(p))
	require.NoError(t, verify.Full(p))
}

func TestRandomAllocFree(t *testing.T) {
	for _, seed := range []int64{1, 42, 1234, 99991} {
		p, _ := testutil.NewPool(t, 1<<14)
		runRandom(t, p, seed, 2000)
		require.Zero(t, p.Stats().ReservedBlocks)
	}
}

// TestDeterminism replays the same sequence on two pools and expects
// identical pointers and identical snapshots.
func TestDeterminism(t *testing.T) {
	a, _ := testutil.NewPool(t, 1<<12)
	b, _ := testutil.NewPool(t, 1<<12)

	rng := rand.New(rand.NewSource(7))
	var ptrs []buddy.Ptr
	for step := range 500 {
		if len(ptrs) == 0 || rng.Intn(2) == 0 {
			size := uint64(rng.Intn(400)) + 1
			pa, _, ea := a.Alloc(size)
			pb, _, eb := b.Alloc(size)
			require.Equal(t, pa, pb, "step %d", step)
			require.Equal(t, ea == nil, eb == nil, "step %d", step)
			if ea == nil {
				ptrs = append(ptrs, pa)
			}
		} else {
			i := rng.Intn(len(ptrs))
			require.NoError(t, a.Free(ptrs[i]))
			require.NoError(t, b.Free(ptrs[i]))
			ptrs = append(ptrs[:i], ptrs[i+1:]...)
		}
		require.True(t, a.Snapshot().Equal(b.Snapshot()), "step %d", step)
	}
}

// TestRegionPool runs the random workload against the default region source.
func TestRegionPool(t *testing.T) {
	p, err := buddy.New(1<<16, buddy.WithConfig(testutil.SmallConfig))
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Destroy()) }()

	require.NoError(t, verify.Full(p))
	runRandom(t, p, 5, 500)
}
