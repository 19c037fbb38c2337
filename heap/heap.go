// Package heap implements a boundary-tag heap allocator. Memory is obtained from a chunk.Provider in
// chunks; every chunk is bounded by two border blocks and tiled by free and used blocks whose sizes
// and states are recorded at both ends, so neighbours can be found and merged in constant time.
//
// A Heap performs no locking of its own. Use Synchronized to serialize access from several goroutines.
package heap

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/chunk"
	"github.com/vkngwrapper/tagheap/memutils"
	"golang.org/x/exp/slog"
)

// Heap is a general-purpose allocator over chunks of memory supplied by a chunk.Provider
type Heap struct {
	logger   *slog.Logger
	provider chunk.Provider
	flags    CreateFlags
	strategy Strategy
	policy   fitPolicy
	magic    uint32

	defaultChunkSize int
	retainFreeBytes  int
	shrinkThreshold  int

	free   blockList
	used   blockList
	chunks blockList

	// freeSize is the sum of the payload sizes of every block on the free list
	freeSize int
	// usedSize is the sum of the payload sizes of every block on the used list
	usedSize int
	// totalSize is the sum of the sizes of every chunk
	totalSize int
}

var _ memutils.Validatable = &Heap{}

// Allocate returns the address of at least amount bytes of memory, aligned to Alignment and disjoint
// from every other live allocation. If the provider cannot supply more memory, Allocate returns
// memutils.Null and an error matching memutils.ErrOutOfMemory.
func (h *Heap) Allocate(amount int) (memutils.Addr, error) {
	if amount < 0 {
		return memutils.Null, errors.Errorf("invalid allocation size: %d", amount)
	}
	if amount == 0 {
		amount = 1
	}
	if limit := h.maxAllocation(); amount > limit {
		return memutils.Null, errors.Mark(errors.Errorf("allocation size %d exceeds the largest possible allocation of %d bytes", amount, limit), memutils.ErrOutOfMemory)
	}

	aligned := memutils.AlignUp(amount, Alignment)
	realSize := aligned + Overhead

	block := memutils.Null
	if aligned <= h.freeSize {
		block = h.policy.findFreeBlock(h, realSize)
	}

	if block == memutils.Null {
		var err error
		block, err = h.grow(realSize)
		if err != nil {
			return memutils.Null, err
		}
	}

	h.removeFree(block)
	h.useBlock(block, realSize)
	h.used.insert(block)
	h.usedSize += h.blockSize(block) - Overhead

	memutils.DebugValidate(h)

	return block + memutils.Addr(HeaderSize), nil
}

// maxAllocation is the largest request whose block and chunk sizes can be computed without overflow
func (h *Heap) maxAllocation() int {
	return math.MaxInt - Alignment - Overhead - ChunkOverhead - h.provider.Granularity()
}

// useBlock marks a block that has been taken off the free list as used, splitting off the tail
// as a new free block if there is room for one
func (h *Heap) useBlock(block memutils.Addr, realSize int) {
	size := h.blockSize(block)
	if size < realSize+Overhead {
		h.writeBlock(block, size, stateUsed)
		return
	}

	h.writeBlock(block, realSize, stateUsed)

	tail := block + memutils.Addr(realSize)
	h.writeBlock(tail, size-realSize, stateFree)
	h.insertFree(tail)
}

// Release frees an allocation previously returned by Allocate. Releasing memutils.Null does nothing.
// Releasing any other address that is not a live allocation is fatal.
func (h *Heap) Release(addr memutils.Addr) {
	if addr == memutils.Null {
		return
	}

	block := addr - memutils.Addr(HeaderSize)
	if addr < memutils.Addr(HeaderSize) || !h.isUsed(block) {
		panic(errors.AssertionFailedf("attempted to release %#x, which is not a live allocation", addr))
	}

	size := h.blockSize(block)
	h.used.disconnect(block)
	h.usedSize -= size - Overhead
	h.writeBlock(block, size, stateFree)

	next := block + memutils.Addr(size)
	if h.isFree(next) {
		h.removeFree(next)
		size += h.blockSize(next)
		h.writeBlock(block, size, stateFree)
	}

	listed := false
	prevFooter := block - memutils.Addr(FooterSize)
	if h.isFree(prevFooter) {
		// The previous block keeps its place in the free list and absorbs this one
		prev := h.headerOf(prevFooter)
		h.resizeFree(prev, h.blockSize(prev)+size)
		block = prev
		listed = true
	}

	h.settleFreeBlock(block, listed)

	memutils.DebugValidate(h)
}

// settleFreeBlock decides what becomes of a freshly coalesced free block: its whole chunk may be
// returned, the chunk may be shrunk, and otherwise the block ends up on the free list
func (h *Heap) settleFreeBlock(block memutils.Addr, listed bool) {
	size := h.blockSize(block)
	border := block + memutils.Addr(size)
	trailing := h.isBorder(border)

	freeSize := h.freeSize
	if !listed {
		freeSize += size - Overhead
	}

	if trailing && h.isBorder(block-memutils.Addr(FooterSize)) && freeSize > h.retainFreeBytes {
		if listed {
			h.removeFree(block)
		}
		h.returnChunk(border)
		return
	}

	if trailing && h.flags&CreateChunkResizing != 0 {
		if newSize, reduced := h.reduceChunk(border, block); reduced {
			size = newSize
		}
	}

	if listed {
		if size != h.blockSize(block) {
			h.resizeFree(block, size)
		}
		return
	}

	h.writeBlock(block, size, stateFree)
	h.insertFree(block)
}

// ReleaseAll returns every chunk to the provider, discarding all allocations. Allocations that are
// still live are logged as unreleased memory.
func (h *Heap) ReleaseAll() {
	for block := h.used.first(); block != memutils.Null; block = h.used.next(block) {
		h.logger.Error("[UNRELEASED MEMORY] allocation was still live when the heap was released",
			slog.Uint64("Address", uint64(block)+uint64(HeaderSize)),
			slog.Int("Size", h.blockSize(block)-Overhead))
	}

	for !h.chunks.empty() {
		h.returnChunk(h.chunks.first())
	}

	h.free.init(h)
	h.used.init(h)
	h.freeSize = 0
	h.usedSize = 0

	memutils.DebugValidate(h)
}

// FreeBytes returns the number of payload bytes currently available in free blocks
func (h *Heap) FreeBytes() int { return h.freeSize }

// TotalBytes returns the number of bytes in every chunk the heap holds
func (h *Heap) TotalBytes() int { return h.totalSize }

// ChunkCount returns the number of chunks the heap holds
func (h *Heap) ChunkCount() int { return h.chunks.length }

// AllocationCount returns the number of live allocations
func (h *Heap) AllocationCount() int { return h.used.length }

// Strategy returns the placement strategy currently in use
func (h *Heap) Strategy() Strategy { return h.strategy }

// SetStrategy changes the placement strategy. The free list is re-sorted to the new strategy's order.
func (h *Heap) SetStrategy(strategy Strategy) error {
	policy, err := policyFor(strategy)
	if err != nil {
		return err
	}

	var pending blockList
	pending.init(h)
	for !h.free.empty() {
		block := h.free.first()
		h.free.disconnect(block)
		pending.insert(block)
	}

	h.strategy = strategy.resolve()
	h.policy = policy

	for !pending.empty() {
		block := pending.first()
		pending.disconnect(block)
		h.policy.insertFreeBlock(h, block)
	}

	h.logger.Debug("Heap::SetStrategy", slog.String("Strategy", h.strategy.String()))
	memutils.DebugValidate(h)

	return nil
}

// Payload returns the memory of a live allocation. The slice aliases the heap's memory and is only
// valid until the allocation is released.
func (h *Heap) Payload(addr memutils.Addr) []byte {
	block := addr - memutils.Addr(HeaderSize)
	if addr < memutils.Addr(HeaderSize) || !h.isUsed(block) {
		panic(errors.AssertionFailedf("attempted to access %#x, which is not a live allocation", addr))
	}

	payload, ok := h.provider.Bytes(addr, h.blockSize(block)-Overhead)
	if !ok {
		panic(errors.AssertionFailedf("heap corruption: allocation at %#x extends outside of the provider's memory", addr))
	}
	return payload
}

func (h *Heap) insertFree(block memutils.Addr) {
	h.policy.insertFreeBlock(h, block)
	h.freeSize += h.blockSize(block) - Overhead
}

func (h *Heap) removeFree(block memutils.Addr) {
	h.free.disconnect(block)
	h.freeSize -= h.blockSize(block) - Overhead
}

func (h *Heap) resizeFree(block memutils.Addr, newSize int) {
	h.freeSize += newSize - h.blockSize(block)
	h.policy.resizeFreeBlock(h, block, newSize)
}
