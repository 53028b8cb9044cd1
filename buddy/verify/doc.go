// Package verify provides validation functions for buddy pools.
//
// # Overview
//
// The checks mirror the pool invariants:
//   - PoolLength: length is a power of two within the configured order bounds
//   - Blocks: blocks are aligned to their size, buddies stay in the pool, and
//     block sizes add up to the pool length
//   - FreeLists: list members are AVAILABLE at the list's order, links are
//     consistent in both directions, and no block sits in two lists
//   - Coalesced: no two buddies are AVAILABLE at the same order
//
// Full and Empty describe the two extreme states: one maximal free block, or
// no free block at all.
//
// # Quick Start
//
//	if err := verify.AllInvariants(p); err != nil {
//	    fmt.Printf("Validation failed: %v\n", err)
//	}
//
// # ValidationError
//
// All validation functions return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string                 // Check name (e.g., "FreeLists")
//	    Message string                 // Human-readable description
//	    Offset  int64                  // Arena offset of the block (-1 if N/A)
//	    Details map[string]interface{} // Additional context
//	}
//
// # Usage in Tests
//
//	for i := range 1000 {
//	    // ... random Alloc / Free ...
//	    require.NoError(t, verify.AllInvariants(p), "step %d", i)
//	}
package verify
