package buddy

import (
	"math/bits"

	"github.com/joshuapare/buddykit/internal/format"
)

// OrderFor returns the smallest k such that 2^k >= bytes.
//
//	OrderFor(0)       = 0
//	OrderFor(1)       = 0
//	OrderFor(16)      = 4
//	OrderFor(17)      = 5
//	OrderFor(1 << 20) = 20
func OrderFor(bytes uint64) uint {
	if bytes <= 1 {
		return 0
	}
	return uint(bits.Len64(bytes - 1))
}

// buddyOf returns the offset of the order-k sibling of the block at off.
// ok is false when the sibling would fall outside the pool, which is the case
// for the single block spanning the whole pool.
func (p *Pool) buddyOf(off uint64, order uint) (uint64, bool) {
	b := off ^ format.BlockSize(order)
	if b >= p.length {
		return 0, false
	}
	return b, true
}

// BuddyOf reads the order of the block at off from its header and returns the
// offset of its buddy. ok is false when the block has no buddy.
func (p *Pool) BuddyOf(off uint64) (uint64, bool, error) {
	if err := p.checkOpen(); err != nil {
		return 0, false, err
	}
	hdr, err := format.ReadHeader(p.arena, off)
	if err != nil {
		return 0, false, err
	}
	b, ok := p.buddyOf(off, hdr.Order)
	return b, ok, nil
}
