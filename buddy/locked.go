package buddy

import "sync"

// Locked serialises access to a Pool with a mutex. It adds no semantics of its
// own; every method forwards to the wrapped pool.
type Locked struct {
	mu sync.Mutex
	p  *Pool
}

// NewLocked wraps p. The caller must not use p directly afterwards.
func NewLocked(p *Pool) *Locked {
	return &Locked{p: p}
}

// Alloc is Pool.Alloc under the lock.
func (l *Locked) Alloc(size uint64) (Ptr, []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Alloc(size)
}

// Free is Pool.Free under the lock.
func (l *Locked) Free(ptr Ptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Free(ptr)
}

// FreeBytes is Pool.FreeBytes under the lock.
func (l *Locked) FreeBytes(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.FreeBytes(b)
}

// Destroy is Pool.Destroy under the lock.
func (l *Locked) Destroy() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Destroy()
}

// Len returns the pool capacity.
func (l *Locked) Len() uint64 { return l.p.Len() }

// MaxOrder returns the pool order.
func (l *Locked) MaxOrder() uint { return l.p.MaxOrder() }

// Stats is Pool.Stats under the lock.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Stats()
}

// FreeCounts is Pool.FreeCounts under the lock.
func (l *Locked) FreeCounts() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.FreeCounts()
}

// With runs fn with exclusive access to the underlying pool, for inspection
// (verify, reports) that needs more than the forwarded methods.
func (l *Locked) With(fn func(p *Pool) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.p)
}
