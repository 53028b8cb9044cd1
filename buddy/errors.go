package buddy

import "errors"

var (
	// ErrInvalidArgument indicates a zero-size allocation request.
	ErrInvalidArgument = errors.New("buddy: invalid argument")

	// ErrOutOfMemory indicates that no free block of sufficient order exists,
	// or the request exceeds the pool capacity.
	ErrOutOfMemory = errors.New("buddy: out of memory")

	// ErrInvalidFree indicates an attempt to free something that is not a
	// currently reserved block (double free, foreign pointer, corrupted header).
	ErrInvalidFree = errors.New("buddy: invalid free")

	// ErrRegionAcquire indicates the backing region could not be obtained.
	ErrRegionAcquire = errors.New("buddy: region acquisition failed")

	// ErrRegionRelease indicates the backing region could not be released.
	ErrRegionRelease = errors.New("buddy: region release failed")

	// ErrClosed indicates an operation on a destroyed pool.
	ErrClosed = errors.New("buddy: pool destroyed")

	// ErrInvalidConfig indicates order bounds that cannot describe a pool.
	ErrInvalidConfig = errors.New("buddy: invalid config")

	// ErrCorrupt indicates pool metadata that violates the block layout.
	ErrCorrupt = errors.New("buddy: corrupt pool state")
)
