package buddy

// Stats holds allocator counters.
type Stats struct {
	AllocCalls      int // Total Alloc() calls
	AllocFailures   int // Alloc() calls that returned an error
	InvalidArgument int // Zero-size requests
	OutOfMemory     int // Requests no free block could satisfy
	FreeCalls       int // Free() calls with a non-nil pointer
	InvalidFrees    int // Free() calls rejected with ErrInvalidFree
	Splits          int // Block halvings during Alloc
	Merges          int // Buddy merges during Free

	ReservedBlocks int    // Blocks currently handed out
	BytesReserved  uint64 // Sum of reserved block sizes, headers included
	BytesRequested uint64 // Sum of the sizes callers asked for, still reserved
}

// Stats returns a copy of the pool counters.
func (p *Pool) Stats() Stats {
	return p.stats
}

// Available returns the number of bytes held by AVAILABLE blocks.
func (p *Pool) Available() uint64 {
	return p.length - p.stats.BytesReserved
}
