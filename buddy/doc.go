// Package buddy implements a fixed-capacity buddy allocator over a single
// contiguous region of 2^M bytes.
//
// # Overview
//
// Requests are served from power-of-two blocks. A request of n bytes needs a
// block of order k = OrderFor(n + HeaderSize). The allocator keeps one
// circular free list per order 0..M; allocation takes the lowest order with a
// free block and halves it until it has order k, and deallocation merges the
// block with its buddy for as long as the buddy is free at the same order.
// Every operation does O(M) work.
//
// # Usage Example
//
//	p, err := buddy.New(1 << 20)
//	if err != nil {
//	    return err
//	}
//	defer p.Destroy()
//
//	ptr, payload, err := p.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(payload, "hello")
//
//	// Later
//	err = p.Free(ptr) // or p.FreeBytes(payload)
//
// # Block Layout
//
// Every block starts with a HeaderSize (24 byte) header holding its state
// (UNUSED, AVAILABLE, RESERVED), its order and the next/prev links of its free
// list. Links are offsets into the region; list sentinels live outside the
// region and are referenced by tagged links, so the region holds no Go
// pointers. Ptr values are payload offsets: the header of a Ptr p sits at
// p - HeaderSize, and NilPtr (0) can never be a payload.
//
// # Buddies
//
// The buddy of the order-k block at offset a is the block at a XOR 2^k. The
// two together form the order-(k+1) block at min(a, a XOR 2^k). The block of
// order M spans the whole region and has no buddy.
//
// # Sizing
//
// New(sizeHint) creates a pool of order OrderFor(sizeHint), or
// Config.DefaultOrder for a zero hint, clamped to [Config.MinOrder,
// Config.MaxOrder]. The region comes from an Acquirer; the default maps
// anonymous memory on unix platforms.
//
// # Errors
//
//   - ErrInvalidArgument: zero-size allocation
//   - ErrOutOfMemory: no free block large enough
//   - ErrInvalidFree: the pointer is not a reserved block
//   - ErrRegionAcquire / ErrRegionRelease: the region source failed
//   - ErrClosed: the pool was destroyed
//
// Failed operations never modify the pool.
//
// # Thread Safety
//
// Pool instances are not thread-safe. Callers must synchronize access
// externally or wrap the pool with NewLocked.
//
// # Related Packages
//
//   - github.com/joshuapare/buddykit/buddy/verify: invariant checks
//   - github.com/joshuapare/buddykit/pkg/report: human-readable pool reports
//   - github.com/joshuapare/buddykit/pkg/metrics: Prometheus collector
package buddy
