package buddy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/buddykit/internal/buf"
	"github.com/joshuapare/buddykit/internal/format"
)

// Alloc reserves a block able to hold size bytes after its header.
//
// It returns the payload pointer and a slice over the whole payload of the
// block (at least size bytes). Failures leave the pool untouched:
//   - size == 0: ErrInvalidArgument
//   - no free block of order >= OrderFor(size+HeaderSize): ErrOutOfMemory
//
// The donor is the lowest order with a free block, taken from the head of its
// list, then halved until it matches the request. Each upper half is
// published at the head of the next lower list.
func (p *Pool) Alloc(size uint64) (Ptr, []byte, error) {
	if err := p.checkOpen(); err != nil {
		return NilPtr, nil, err
	}
	p.stats.AllocCalls++

	if size == 0 {
		p.stats.AllocFailures++
		p.stats.InvalidArgument++
		return NilPtr, nil, fmt.Errorf("%w: zero-size allocation", ErrInvalidArgument)
	}

	need, ok := buf.AddOverflowSafe(size, HeaderSize)
	if !ok {
		return NilPtr, nil, p.outOfMemory(size, 64)
	}
	k := OrderFor(need)
	if k > p.order {
		return NilPtr, nil, p.outOfMemory(size, k)
	}

	j, found := p.findDonor(k)
	if !found {
		return NilPtr, nil, p.outOfMemory(size, k)
	}

	off, err := p.popHead(j)
	if err != nil {
		return NilPtr, nil, err
	}

	for j > k {
		j--
		b, ok := p.buddyOf(off, j)
		if !ok {
			return NilPtr, nil, fmt.Errorf("%w: split of 0x%X at order %d leaves the pool", ErrCorrupt, off, j)
		}
		if err := p.pushHead(j, b); err != nil {
			return NilPtr, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		p.stats.Splits++
		if ce := p.log.Check(zap.DebugLevel, "split"); ce != nil {
			ce.Write(zap.Uint64("block", off), zap.Uint64("buddy", b), zap.Uint("order", j))
		}
	}

	// Links are meaningless while reserved; Next remembers the requested size.
	if err := format.WriteHeader(p.arena, off, BlockHeader{
		State: StateReserved,
		Order: k,
		Live:  true,
		Next:  size,
	}); err != nil {
		return NilPtr, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	blockSize := format.BlockSize(k)
	p.stats.ReservedBlocks++
	p.stats.BytesReserved += blockSize
	p.stats.BytesRequested += size

	ptr := Ptr(off + HeaderSize)
	return ptr, p.arena[ptr : off+blockSize : off+blockSize], nil
}

func (p *Pool) outOfMemory(size uint64, k uint) error {
	p.stats.AllocFailures++
	p.stats.OutOfMemory++
	if ce := p.log.Check(zap.DebugLevel, "out of memory"); ce != nil {
		ce.Write(zap.Uint64("size", size), zap.Uint("order", k), zap.Uint64("available", p.Available()))
	}
	return fmt.Errorf("%w: %d bytes (order %d, pool order %d)", ErrOutOfMemory, size, k, p.order)
}
