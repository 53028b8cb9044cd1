package buddy

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/buddykit/internal/format"
)

// Pool is a buddy allocator over one contiguous region of 2^order bytes.
//
// A Pool is not safe for concurrent use. Wrap it in a Locked or serialise
// access externally.
type Pool struct {
	arena  []byte
	length uint64
	order  uint // maximum order M; the whole arena is one block of this order
	table  []sentinel

	acq    Acquirer
	log    *zap.Logger
	config Config
	closed bool

	stats Stats
}

// New creates a pool sized from sizeHint.
//
// A zero hint selects Config.DefaultOrder. Otherwise the order is
// OrderFor(sizeHint), clamped to [Config.MinOrder, Config.MaxOrder]. The pool
// starts "full": one AVAILABLE block spanning the whole region.
func New(sizeHint uint64, opts ...Option) (*Pool, error) {
	o := buildOptions(opts)
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	order := o.config.clamp(sizeHint)
	length := format.BlockSize(order)

	arena, err := o.acquirer.Acquire(length)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrRegionAcquire, length, err)
	}
	if uint64(len(arena)) != length {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrRegionAcquire, len(arena), length)
	}

	p := &Pool{
		arena:  arena,
		length: length,
		order:  order,
		acq:    o.acquirer,
		log:    o.logger,
		config: o.config,
	}
	p.resetTable(order)
	if err := p.pushTail(order, 0); err != nil {
		// Only possible if the region is shorter than a header.
		_ = o.acquirer.Release(arena)
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	p.log.Info("pool created",
		zap.Uint64("size_hint", sizeHint),
		zap.Uint("order", order),
		zap.Uint64("bytes", length),
	)
	return p, nil
}

// MustNew is like New but panics when the pool cannot be created. Use it where
// a missing memory substrate leaves nothing meaningful to do.
func MustNew(sizeHint uint64, opts ...Option) *Pool {
	p, err := New(sizeHint, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Destroy releases the backing region. All blocks should have been freed; a
// pool destroyed with reserved blocks is released anyway and logged.
// Any use of the pool after Destroy returns ErrClosed.
func (p *Pool) Destroy() error {
	if p.closed {
		return ErrClosed
	}
	if p.stats.ReservedBlocks > 0 {
		p.log.Warn("pool destroyed with reserved blocks",
			zap.Int("blocks", p.stats.ReservedBlocks),
			zap.Uint64("bytes", p.stats.BytesReserved),
		)
	}

	arena := p.arena
	p.arena = nil
	p.table = nil
	p.closed = true

	if err := p.acq.Release(arena); err != nil {
		return fmt.Errorf("%w: %w", ErrRegionRelease, err)
	}
	p.log.Info("pool destroyed", zap.Uint("order", p.order), zap.Uint64("bytes", p.length))
	return nil
}

func (p *Pool) checkOpen() error {
	if p.closed {
		return ErrClosed
	}
	return nil
}

// Len returns the pool capacity in bytes (2^MaxOrder).
func (p *Pool) Len() uint64 { return p.length }

// MaxOrder returns the order of the pool, M.
func (p *Pool) MaxOrder() uint { return p.order }

// Config returns the bounds the pool was created with.
func (p *Pool) Config() Config { return p.config }

// Closed reports whether Destroy has been called.
func (p *Pool) Closed() bool { return p.closed }

// Header decodes the block header at off.
func (p *Pool) Header(off uint64) (BlockHeader, error) {
	if err := p.checkOpen(); err != nil {
		return BlockHeader{}, err
	}
	return format.ReadHeader(p.arena, off)
}

// Walk visits every block in address order, starting at offset 0 and stepping
// by each header's block size. It stops early when fn returns false and
// reports ErrCorrupt when a header cannot start a block.
func (p *Pool) Walk(fn func(off uint64, hdr BlockHeader) bool) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	for off := uint64(0); off < p.length; {
		hdr, err := format.ReadHeader(p.arena, off)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if hdr.State != StateAvailable && hdr.State != StateReserved {
			return fmt.Errorf("%w: block at 0x%X is %s", ErrCorrupt, off, hdr.State)
		}
		if hdr.Order > p.order || !format.IsAligned(off, hdr.Order) {
			return fmt.Errorf("%w: block at 0x%X has order %d", ErrCorrupt, off, hdr.Order)
		}
		if !fn(off, hdr) {
			return nil
		}
		off += format.BlockSize(hdr.Order)
	}
	return nil
}

// Snapshot is a deep copy of the pool metadata and arena, for comparisons.
type Snapshot struct {
	Arena     []byte
	Sentinels []SentinelInfo
}

// Equal reports whether two snapshots are byte-for-byte identical.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Sentinels) != len(o.Sentinels) {
		return false
	}
	for i := range s.Sentinels {
		if s.Sentinels[i] != o.Sentinels[i] {
			return false
		}
	}
	return bytes.Equal(s.Arena, o.Arena)
}

// Snapshot copies the current state of the pool.
func (p *Pool) Snapshot() Snapshot {
	s := Snapshot{
		Arena:     bytes.Clone(p.arena),
		Sentinels: make([]SentinelInfo, len(p.table)),
	}
	for i, t := range p.table {
		s.Sentinels[i] = SentinelInfo{Order: t.order, State: t.state, Next: t.next, Prev: t.prev, Count: t.count}
	}
	return s
}
