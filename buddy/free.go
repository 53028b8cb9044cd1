package buddy

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/joshuapare/buddykit/internal/format"
)

// Free returns a block obtained from Alloc to the pool.
//
// NilPtr is a no-op. A pointer whose header is not a live RESERVED block
// aligned to its order (double free, foreign pointer, corrupted header) is
// rejected with ErrInvalidFree and the pool is left untouched.
//
// The block is merged with its buddy for as long as the buddy is AVAILABLE at
// the same order, climbing one order per merge. The merged block always takes
// the lower of the two offsets. The result is appended to the tail of its
// order list.
func (p *Pool) Free(ptr Ptr) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if ptr == NilPtr {
		return nil
	}
	p.stats.FreeCalls++

	off, hdr, err := p.reservedHeader(ptr)
	if err != nil {
		p.stats.InvalidFrees++
		if ce := p.log.Check(zap.DebugLevel, "rejected free"); ce != nil {
			ce.Write(zap.Uint64("ptr", uint64(ptr)), zap.Error(err))
		}
		return err
	}

	order := hdr.Order
	p.stats.ReservedBlocks--
	p.stats.BytesReserved -= format.BlockSize(order)
	p.stats.BytesRequested -= hdr.Next

	// Reclaimed: the header is dead until the block is reinserted.
	if err := format.WriteHeader(p.arena, off, BlockHeader{State: StateUnused, Order: order}); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	for order < p.order {
		b, ok := p.buddyOf(off, order)
		if !ok {
			break
		}
		bh, err := format.ReadHeader(p.arena, b)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if bh.State != StateAvailable || bh.Order != order {
			break
		}
		if err := p.unlink(b, bh); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		lo, hi := min(off, b), max(off, b)
		if err := format.WriteHeader(p.arena, hi, BlockHeader{State: StateUnused, Order: order}); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		p.stats.Merges++
		if ce := p.log.Check(zap.DebugLevel, "merge"); ce != nil {
			ce.Write(zap.Uint64("block", off), zap.Uint64("buddy", b), zap.Uint("order", order+1))
		}
		off = lo
		order++
	}

	if err := p.pushTail(order, off); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}

// reservedHeader recovers and validates the header in front of ptr.
func (p *Pool) reservedHeader(ptr Ptr) (uint64, BlockHeader, error) {
	if uint64(ptr) < HeaderSize || uint64(ptr) >= p.length {
		return 0, BlockHeader{}, fmt.Errorf("%w: pointer 0x%X outside pool", ErrInvalidFree, uint64(ptr))
	}
	off := uint64(ptr) - HeaderSize
	hdr, err := format.ReadHeader(p.arena, off)
	if err != nil {
		return 0, BlockHeader{}, fmt.Errorf("%w: %w", ErrInvalidFree, err)
	}
	switch {
	case hdr.State != StateReserved || !hdr.Live:
		return 0, BlockHeader{}, fmt.Errorf("%w: block at 0x%X is %s", ErrInvalidFree, off, hdr.State)
	case hdr.Order > p.order || format.BlockSize(hdr.Order) <= HeaderSize:
		return 0, BlockHeader{}, fmt.Errorf("%w: block at 0x%X has order %d", ErrInvalidFree, off, hdr.Order)
	case !format.IsAligned(off, hdr.Order):
		return 0, BlockHeader{}, fmt.Errorf("%w: block at 0x%X misaligned for order %d", ErrInvalidFree, off, hdr.Order)
	}
	return off, hdr, nil
}

// FreeBytes frees the block whose payload slice b was returned by Alloc.
// Nil and empty slices are a no-op; slices that do not start inside the pool
// are ErrInvalidFree.
func (p *Pool) FreeBytes(b []byte) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	ptr, ok := p.PtrOf(b)
	if !ok {
		if len(b) == 0 {
			return nil
		}
		p.stats.FreeCalls++
		p.stats.InvalidFrees++
		return fmt.Errorf("%w: slice does not start inside the pool", ErrInvalidFree)
	}
	return p.Free(ptr)
}

// PtrOf returns the pool offset of the first byte of b. ok is false for empty
// slices and slices that do not start inside the pool.
func (p *Pool) PtrOf(b []byte) (Ptr, bool) {
	if len(b) == 0 || len(p.arena) == 0 {
		return NilPtr, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.arena)))
	start := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if start < base || start-base >= uintptr(p.length) {
		return NilPtr, false
	}
	return Ptr(start - base), true
}
