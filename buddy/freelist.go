package buddy

import (
	"fmt"

	"github.com/joshuapare/buddykit/internal/format"
)

// sentinel anchors the circular free list of one order. It lives outside the
// arena; blocks refer to it through a tagged Link.
type sentinel struct {
	next  Link
	prev  Link
	order uint
	state State
	count int
}

// SentinelInfo is the exported view of a free-list sentinel.
type SentinelInfo struct {
	Order uint
	State State
	Next  Link
	Prev  Link
	Count int
}

// resetTable creates empty self-referencing sentinels for orders 0..order.
func (p *Pool) resetTable(order uint) {
	p.table = make([]sentinel, order+1)
	for i := range p.table {
		self := format.SentinelLink(uint(i))
		p.table[i] = sentinel{
			next:  self,
			prev:  self,
			order: uint(i),
			state: StateUnused,
		}
	}
}

func (p *Pool) listEmpty(order uint) bool {
	return p.table[order].next == format.SentinelLink(order)
}

func (p *Pool) setNext(at, next Link) error {
	if format.IsSentinel(at) {
		p.table[format.SentinelOrder(at)].next = next
		return nil
	}
	return format.PutNext(p.arena, at, next)
}

func (p *Pool) setPrev(at, prev Link) error {
	if format.IsSentinel(at) {
		p.table[format.SentinelOrder(at)].prev = prev
		return nil
	}
	return format.PutPrev(p.arena, at, prev)
}

// pushHead publishes the block at off as AVAILABLE at the head of its list.
func (p *Pool) pushHead(order uint, off uint64) error {
	s := &p.table[order]
	head := s.next
	if err := format.WriteHeader(p.arena, off, BlockHeader{
		State: StateAvailable,
		Order: order,
		Live:  true,
		Next:  head,
		Prev:  format.SentinelLink(order),
	}); err != nil {
		return err
	}
	if err := p.setPrev(head, off); err != nil {
		return err
	}
	s.next = off
	s.count++
	return nil
}

// pushTail publishes the block at off as AVAILABLE at the tail of its list.
func (p *Pool) pushTail(order uint, off uint64) error {
	s := &p.table[order]
	tail := s.prev
	if err := format.WriteHeader(p.arena, off, BlockHeader{
		State: StateAvailable,
		Order: order,
		Live:  true,
		Next:  format.SentinelLink(order),
		Prev:  tail,
	}); err != nil {
		return err
	}
	if err := p.setNext(tail, off); err != nil {
		return err
	}
	s.prev = off
	s.count++
	return nil
}

// unlink detaches the AVAILABLE block at off from its list and clears its links.
// The header state is left to the caller.
func (p *Pool) unlink(off uint64, hdr BlockHeader) error {
	if err := p.setNext(hdr.Prev, hdr.Next); err != nil {
		return err
	}
	if err := p.setPrev(hdr.Next, hdr.Prev); err != nil {
		return err
	}
	p.table[hdr.Order].count--
	return format.PutLinks(p.arena, off, 0, 0)
}

// popHead removes the head block of the order list. The list must be non-empty.
func (p *Pool) popHead(order uint) (uint64, error) {
	off := p.table[order].next
	if format.IsSentinel(off) {
		return 0, fmt.Errorf("%w: pop from empty list %d", ErrCorrupt, order)
	}
	hdr, err := format.ReadHeader(p.arena, off)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if hdr.State != StateAvailable || hdr.Order != order {
		return 0, fmt.Errorf("%w: list %d head 0x%X is %s order %d",
			ErrCorrupt, order, off, hdr.State, hdr.Order)
	}
	if err := p.unlink(off, hdr); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return off, nil
}

// findDonor returns the lowest order >= k with a non-empty list.
func (p *Pool) findDonor(k uint) (uint, bool) {
	for j := k; j <= p.order; j++ {
		if !p.listEmpty(j) {
			return j, true
		}
	}
	return 0, false
}

// Sentinel returns the sentinel of the order list.
func (p *Pool) Sentinel(order uint) (SentinelInfo, error) {
	if err := p.checkOpen(); err != nil {
		return SentinelInfo{}, err
	}
	if order > p.order {
		return SentinelInfo{}, fmt.Errorf("%w: order %d > %d", ErrInvalidArgument, order, p.order)
	}
	s := p.table[order]
	return SentinelInfo{Order: s.order, State: s.state, Next: s.next, Prev: s.prev, Count: s.count}, nil
}

// FreeList returns the offsets in the order list, head first. The walk is
// bounded by the number of blocks of that order the pool can hold, so a
// corrupted cycle is reported instead of looping.
func (p *Pool) FreeList(order uint) ([]uint64, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if order > p.order {
		return nil, fmt.Errorf("%w: order %d > %d", ErrInvalidArgument, order, p.order)
	}
	limit := p.length >> order
	self := format.SentinelLink(order)
	var offs []uint64
	for cur := p.table[order].next; cur != self; {
		if format.IsSentinel(cur) {
			return offs, fmt.Errorf("%w: list %d reaches sentinel %d",
				ErrCorrupt, order, format.SentinelOrder(cur))
		}
		if uint64(len(offs)) >= limit {
			return offs, fmt.Errorf("%w: list %d does not terminate", ErrCorrupt, order)
		}
		offs = append(offs, cur)
		hdr, err := format.ReadHeader(p.arena, cur)
		if err != nil {
			return offs, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		cur = hdr.Next
	}
	return offs, nil
}

// FreeCounts returns the number of AVAILABLE blocks per order, index = order.
func (p *Pool) FreeCounts() []int {
	counts := make([]int, len(p.table))
	for i, s := range p.table {
		counts[i] = s.count
	}
	return counts
}
