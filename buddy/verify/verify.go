// Package verify provides validation functions for buddy pool structures.
// These helpers are used in tests and by buddyctl to ensure pool invariants
// are maintained.
package verify

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/internal/format"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Type    string
	Message string
	Offset  int64
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AllInvariants validates all pool invariants in one call.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(p *buddy.Pool) error {
	if err := PoolLength(p); err != nil {
		return err
	}
	if err := Blocks(p); err != nil {
		return err
	}
	if err := FreeLists(p); err != nil {
		return err
	}
	if err := Coalesced(p); err != nil {
		return err
	}
	return nil
}

// PoolLength checks that the pool length is a power of two within the
// configured order bounds.
func PoolLength(p *buddy.Pool) error {
	n := p.Len()
	if n == 0 || n&(n-1) != 0 {
		return &ValidationError{
			Type:    "PoolLength",
			Message: fmt.Sprintf("length %d is not a power of two", n),
			Offset:  -1,
		}
	}
	order := uint(bits.TrailingZeros64(n))
	if order != p.MaxOrder() {
		return &ValidationError{
			Type:    "PoolLength",
			Message: fmt.Sprintf("length 2^%d does not match order %d", order, p.MaxOrder()),
			Offset:  -1,
		}
	}
	cfg := p.Config()
	if order < cfg.MinOrder || order > cfg.MaxOrder {
		return &ValidationError{
			Type:    "PoolLength",
			Message: fmt.Sprintf("order %d outside [%d, %d]", order, cfg.MinOrder, cfg.MaxOrder),
			Offset:  -1,
			Details: map[string]interface{}{"min": cfg.MinOrder, "max": cfg.MaxOrder},
		}
	}
	return nil
}

// Blocks walks the pool in address order and checks that every block is
// aligned to its size, that each block below the top order has its buddy
// inside the pool, and that block sizes add up to the pool length.
func Blocks(p *buddy.Pool) error {
	var (
		total   uint64
		lastOff uint64
		verr    *ValidationError
	)
	err := p.Walk(func(off uint64, hdr buddy.BlockHeader) bool {
		lastOff = off
		if !hdr.Live {
			verr = &ValidationError{
				Type:    "Blocks",
				Message: fmt.Sprintf("%s block has no magic", hdr.State),
				Offset:  int64(off),
			}
			return false
		}
		if hdr.Order < p.MaxOrder() {
			b := off ^ format.BlockSize(hdr.Order)
			if b+format.BlockSize(hdr.Order) > p.Len() {
				verr = &ValidationError{
					Type:    "Blocks",
					Message: fmt.Sprintf("buddy 0x%X of order %d block outside pool", b, hdr.Order),
					Offset:  int64(off),
				}
				return false
			}
		}
		total += format.BlockSize(hdr.Order)
		return true
	})
	if verr != nil {
		return verr
	}
	if err != nil {
		return &ValidationError{
			Type:    "Blocks",
			Message: err.Error(),
			Offset:  int64(lastOff),
		}
	}
	if total != p.Len() {
		return &ValidationError{
			Type:    "Blocks",
			Message: fmt.Sprintf("block sizes sum to %d, pool length %d", total, p.Len()),
			Offset:  -1,
			Details: map[string]interface{}{"sum": total, "length": p.Len()},
		}
	}
	return nil
}

// FreeLists checks every free list: members are live AVAILABLE headers of the
// list's order, back links mirror forward links, the sentinel counts match,
// no block is in two lists, and every AVAILABLE block in the pool is listed.
func FreeLists(p *buddy.Pool) error {
	seen := make(map[uint64]uint)
	for order := uint(0); order <= p.MaxOrder(); order++ {
		s, err := p.Sentinel(order)
		if err != nil {
			return &ValidationError{Type: "FreeLists", Message: err.Error(), Offset: -1}
		}
		if s.Order != order || s.State != buddy.StateUnused {
			return &ValidationError{
				Type:    "FreeLists",
				Message: fmt.Sprintf("sentinel %d tagged order %d state %s", order, s.Order, s.State),
				Offset:  -1,
			}
		}
		offs, err := p.FreeList(order)
		if err != nil {
			return &ValidationError{Type: "FreeLists", Message: err.Error(), Offset: -1}
		}
		if len(offs) != s.Count {
			return &ValidationError{
				Type:    "FreeLists",
				Message: fmt.Sprintf("list %d holds %d blocks, sentinel counts %d", order, len(offs), s.Count),
				Offset:  -1,
			}
		}

		prev := format.SentinelLink(order)
		for _, off := range offs {
			if other, dup := seen[off]; dup {
				return &ValidationError{
					Type:    "FreeLists",
					Message: fmt.Sprintf("block in lists %d and %d", other, order),
					Offset:  int64(off),
				}
			}
			seen[off] = order

			hdr, err := p.Header(off)
			if err != nil {
				return &ValidationError{Type: "FreeLists", Message: err.Error(), Offset: int64(off)}
			}
			if hdr.State != buddy.StateAvailable || hdr.Order != order || !hdr.Live {
				return &ValidationError{
					Type:    "FreeLists",
					Message: fmt.Sprintf("list %d member is %s order %d", order, hdr.State, hdr.Order),
					Offset:  int64(off),
				}
			}
			if hdr.Prev != prev {
				return &ValidationError{
					Type:    "FreeLists",
					Message: fmt.Sprintf("prev link 0x%X, expected 0x%X", hdr.Prev, prev),
					Offset:  int64(off),
				}
			}
			prev = off
		}
		if s.Prev != prev {
			return &ValidationError{
				Type:    "FreeLists",
				Message: fmt.Sprintf("sentinel %d tail 0x%X, expected 0x%X", order, s.Prev, prev),
				Offset:  -1,
			}
		}
	}

	var verr *ValidationError
	err := p.Walk(func(off uint64, hdr buddy.BlockHeader) bool {
		if hdr.State != buddy.StateAvailable {
			return true
		}
		if _, ok := seen[off]; !ok {
			verr = &ValidationError{
				Type:    "FreeLists",
				Message: fmt.Sprintf("AVAILABLE order %d block missing from its list", hdr.Order),
				Offset:  int64(off),
			}
			return false
		}
		return true
	})
	if verr != nil {
		return verr
	}
	if err != nil {
		return &ValidationError{Type: "FreeLists", Message: err.Error(), Offset: -1}
	}
	return nil
}

// Coalesced checks that no two buddies are both AVAILABLE at the same order.
func Coalesced(p *buddy.Pool) error {
	var verr *ValidationError
	err := p.Walk(func(off uint64, hdr buddy.BlockHeader) bool {
		if hdr.State != buddy.StateAvailable || hdr.Order >= p.MaxOrder() {
			return true
		}
		b := off ^ format.BlockSize(hdr.Order)
		if b < off {
			// Pair already inspected from the lower half.
			return true
		}
		bh, err := p.Header(b)
		if err != nil {
			verr = &ValidationError{Type: "Coalesced", Message: err.Error(), Offset: int64(b)}
			return false
		}
		if bh.State == buddy.StateAvailable && bh.Order == hdr.Order {
			verr = &ValidationError{
				Type:    "Coalesced",
				Message: fmt.Sprintf("buddies 0x%X and 0x%X both AVAILABLE at order %d", off, b, hdr.Order),
				Offset:  int64(off),
			}
			return false
		}
		return true
	})
	if verr != nil {
		return verr
	}
	if err != nil {
		return &ValidationError{Type: "Coalesced", Message: err.Error(), Offset: -1}
	}
	return nil
}

// Full checks that the pool is fully merged: the list of the top order holds
// the single block at offset 0 and every lower list is empty.
func Full(p *buddy.Pool) error {
	top := p.MaxOrder()
	for order := uint(0); order < top; order++ {
		if err := emptyList(p, "Full", order); err != nil {
			return err
		}
	}
	offs, err := p.FreeList(top)
	if err != nil {
		return &ValidationError{Type: "Full", Message: err.Error(), Offset: -1}
	}
	if len(offs) != 1 || offs[0] != 0 {
		return &ValidationError{
			Type:    "Full",
			Message: fmt.Sprintf("top list %d holds %v, expected [0]", top, offs),
			Offset:  -1,
		}
	}
	hdr, err := p.Header(0)
	if err != nil {
		return &ValidationError{Type: "Full", Message: err.Error(), Offset: 0}
	}
	if hdr.State != buddy.StateAvailable || hdr.Order != top {
		return &ValidationError{
			Type:    "Full",
			Message: fmt.Sprintf("base block is %s order %d", hdr.State, hdr.Order),
			Offset:  0,
		}
	}
	return nil
}

// Empty checks that every free list, the top one included, is empty.
func Empty(p *buddy.Pool) error {
	for order := uint(0); order <= p.MaxOrder(); order++ {
		if err := emptyList(p, "Empty", order); err != nil {
			return err
		}
	}
	return nil
}

func emptyList(p *buddy.Pool, typ string, order uint) error {
	s, err := p.Sentinel(order)
	if err != nil {
		return &ValidationError{Type: typ, Message: err.Error(), Offset: -1}
	}
	self := format.SentinelLink(order)
	if s.Next != self || s.Prev != self || s.State != buddy.StateUnused || s.Order != order {
		return &ValidationError{
			Type:    typ,
			Message: fmt.Sprintf("list %d not empty (next 0x%X prev 0x%X state %s)", order, s.Next, s.Prev, s.State),
			Offset:  -1,
			Details: map[string]interface{}{"count": s.Count},
		}
	}
	return nil
}
