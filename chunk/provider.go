// Package chunk contains the contract through which a heap obtains and returns raw memory, along with
// the two providers used by the system: FrameProvider, which hands out runs of physical frames to the
// kernel heap, and VMAProvider, which carves chunks out of a reserved virtual region for user space.
package chunk

import "github.com/vkngwrapper/tagheap/memutils"

//go:generate mockgen -package mocks -destination mocks/mock_provider.go github.com/vkngwrapper/tagheap/chunk Provider

// Memory exposes the bytes backing a provider's address space. It is the only route by which
// addresses are turned into real memory.
type Memory interface {
	// Bytes returns the n bytes starting at addr. The boolean is false if any part of the range
	// lies outside the address space managed by the provider.
	Bytes(addr memutils.Addr, n int) ([]byte, bool)
}

// Provider supplies, reclaims and resizes chunks of raw memory.
type Provider interface {
	Memory

	// Granularity is the unit, in bytes, that chunk sizes are rounded to. It is always a power of two.
	Granularity() int

	// NewChunk returns the base address of a newly allocated chunk of at least size bytes, along
	// with the size that was actually granted. The returned error wraps memutils.ErrOutOfMemory
	// when the provider has run dry.
	NewChunk(size int) (memutils.Addr, int, error)
	// ReturnChunk releases a whole chunk previously obtained from NewChunk. size must be the chunk's
	// current size.
	ReturnChunk(base memutils.Addr, size int)
	// ExtendChunk attempts to grow the chunk at base, currently originalSize bytes, in place so that it
	// is at least size bytes. On success it returns the new total size of the chunk.
	ExtendChunk(base memutils.Addr, size, originalSize int) (int, bool)
	// ReduceChunk attempts to shrink the chunk at base, currently originalSize bytes, from its tail so
	// that it is size bytes, rounded up to the granularity. On success it returns the new total size.
	ReduceChunk(base memutils.Addr, size, originalSize int) (int, bool)
}
