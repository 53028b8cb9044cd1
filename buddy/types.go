package buddy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/buddykit/internal/format"
	"github.com/joshuapare/buddykit/internal/region"
)

// HeaderSize is the number of bytes every block reserves for its header.
// A request of n bytes needs a block of at least n+HeaderSize bytes.
const HeaderSize = format.HeaderSize

// Ptr is a payload offset relative to the pool base. The header of the block
// sits at Ptr-HeaderSize.
type Ptr uint64

// NilPtr is the null pointer. No payload can start at offset 0.
const NilPtr Ptr = 0

// State is the lifecycle tag of a block header.
type State = format.State

// Block states (re-exported for convenience).
const (
	StateUnused    = format.StateUnused
	StateAvailable = format.StateAvailable
	StateReserved  = format.StateReserved
)

// BlockHeader is the decoded header of a block.
type BlockHeader = format.Header

// Link is a free-list reference: an arena offset or a tagged sentinel.
type Link = format.Link

// Config bounds the orders a pool may take.
type Config struct {
	// MinOrder is the smallest pool order New will create (hint is clamped up).
	MinOrder uint
	// MaxOrder is the largest pool order New will create (hint is clamped down).
	MaxOrder uint
	// DefaultOrder is used when New is called with a zero size hint.
	DefaultOrder uint
}

// DefaultConfig is used when no WithConfig option is given.
//
//	MinOrder     20  (1 MiB)
//	DefaultOrder 30  (1 GiB, lazily committed when mmap is available)
//	MaxOrder     48  (256 TiB, bounded by what the region source can map)
var DefaultConfig = Config{
	MinOrder:     20,
	MaxOrder:     48,
	DefaultOrder: 30,
}

// Validate checks that the bounds describe at least one usable pool.
func (c Config) Validate() error {
	switch {
	case c.MinOrder < format.MinBlockOrder():
		return fmt.Errorf("%w: min order %d below smallest block order %d",
			ErrInvalidConfig, c.MinOrder, format.MinBlockOrder())
	case c.MinOrder > c.MaxOrder:
		return fmt.Errorf("%w: min order %d > max order %d", ErrInvalidConfig, c.MinOrder, c.MaxOrder)
	case c.MaxOrder > format.MaxOrder:
		return fmt.Errorf("%w: max order %d > %d", ErrInvalidConfig, c.MaxOrder, format.MaxOrder)
	case c.DefaultOrder < c.MinOrder || c.DefaultOrder > c.MaxOrder:
		return fmt.Errorf("%w: default order %d outside [%d, %d]",
			ErrInvalidConfig, c.DefaultOrder, c.MinOrder, c.MaxOrder)
	}
	return nil
}

// clamp maps a size hint to a pool order within the configured bounds.
func (c Config) clamp(sizeHint uint64) uint {
	order := c.DefaultOrder
	if sizeHint != 0 {
		order = OrderFor(sizeHint)
	}
	return min(max(order, c.MinOrder), c.MaxOrder)
}

// Acquirer supplies and reclaims the backing region of a pool.
//
// Acquire must return a zero-filled, read/write region of exactly n bytes.
// Release receives the same slice once, when the pool is destroyed.
type Acquirer interface {
	Acquire(n uint64) ([]byte, error)
	Release(b []byte) error
}

// Observer is the read-only view of a pool used by reports and metrics.
type Observer interface {
	Len() uint64
	MaxOrder() uint
	Stats() Stats
	FreeCounts() []int
}

type options struct {
	config   Config
	logger   *zap.Logger
	acquirer Acquirer
}

// Option configures New.
type Option func(*options)

// WithConfig overrides DefaultConfig.
func WithConfig(c Config) Option {
	return func(o *options) { o.config = c }
}

// WithLogger sets the logger used for pool diagnostics. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAcquirer sets the region source. Default: region.Source.
func WithAcquirer(a Acquirer) Option {
	return func(o *options) {
		if a != nil {
			o.acquirer = a
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		config:   DefaultConfig,
		logger:   zap.NewNop(),
		acquirer: region.Source{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
