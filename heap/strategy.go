package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
)

// Strategy selects how the heap chooses a free block for a new allocation, and how it orders its
// free list to make that choice
type Strategy uint32

const (
	// StrategyDefault selects the heap's default placement strategy, which is StrategyFirstFit
	StrategyDefault Strategy = iota
	// StrategyFirstFit keeps free blocks in address order and uses the first that is large enough
	StrategyFirstFit
	// StrategyNextFit keeps free blocks in address order. Each search finds the first block that is
	// large enough and then prefers the next adequate block after it, if there is one. The search
	// position is not remembered between allocations.
	StrategyNextFit
	// StrategyBestFit keeps free blocks in size order and uses the smallest that is large enough
	StrategyBestFit
	// StrategyWorstFit keeps free blocks in size order and uses the largest, if it is large enough
	StrategyWorstFit
)

var strategyMapping = map[Strategy]string{
	StrategyDefault:  "StrategyDefault",
	StrategyFirstFit: "StrategyFirstFit",
	StrategyNextFit:  "StrategyNextFit",
	StrategyBestFit:  "StrategyBestFit",
	StrategyWorstFit: "StrategyWorstFit",
}

func (s Strategy) String() string {
	return strategyMapping[s]
}

func (s Strategy) resolve() Strategy {
	if s == StrategyDefault {
		return StrategyFirstFit
	}
	return s
}

func (s Strategy) sizeOrdered() bool {
	s = s.resolve()
	return s == StrategyBestFit || s == StrategyWorstFit
}

// fitPolicy is the group of free list operations that make up a strategy. They are always swapped together.
type fitPolicy interface {
	// findFreeBlock returns a free block of at least realSize bytes, or memutils.Null
	findFreeBlock(h *Heap, realSize int) memutils.Addr
	// insertFreeBlock links a free block into the free list at the position the strategy dictates
	insertFreeBlock(h *Heap, block memutils.Addr)
	// resizeFreeBlock changes the size of a block that is already in the free list, keeping the
	// list ordered
	resizeFreeBlock(h *Heap, block memutils.Addr, newSize int)
}

func policyFor(strategy Strategy) (fitPolicy, error) {
	switch strategy.resolve() {
	case StrategyFirstFit:
		return firstFit{}, nil
	case StrategyNextFit:
		return nextFit{}, nil
	case StrategyBestFit:
		return bestFit{}, nil
	case StrategyWorstFit:
		return worstFit{}, nil
	default:
		return nil, errors.Errorf("unknown strategy: %d", uint32(strategy))
	}
}

type addressOrder struct{}

func (addressOrder) insertFreeBlock(h *Heap, block memutils.Addr) {
	at := h.free.first()
	for at != memutils.Null && at < block {
		at = h.free.next(at)
	}
	h.free.insertBefore(block, at)
}

func (addressOrder) resizeFreeBlock(h *Heap, block memutils.Addr, newSize int) {
	// The address doesn't change, so neither does the position
	h.writeBlock(block, newSize, stateFree)
}

type sizeOrder struct{}

func (sizeOrder) insertFreeBlock(h *Heap, block memutils.Addr) {
	size := h.blockSize(block)

	// Equal sizes go behind the blocks already present, so earlier blocks win ties
	at := h.free.first()
	for at != memutils.Null && h.blockSize(at) <= size {
		at = h.free.next(at)
	}
	h.free.insertBefore(block, at)
}

func (o sizeOrder) resizeFreeBlock(h *Heap, block memutils.Addr, newSize int) {
	h.free.disconnect(block)
	h.writeBlock(block, newSize, stateFree)
	o.insertFreeBlock(h, block)
}

func firstAdequate(h *Heap, from memutils.Addr, realSize int) memutils.Addr {
	for block := from; block != memutils.Null; block = h.free.next(block) {
		if h.blockSize(block) >= realSize {
			return block
		}
	}

	return memutils.Null
}

type firstFit struct{ addressOrder }

func (firstFit) findFreeBlock(h *Heap, realSize int) memutils.Addr {
	return firstAdequate(h, h.free.first(), realSize)
}

type nextFit struct{ addressOrder }

func (nextFit) findFreeBlock(h *Heap, realSize int) memutils.Addr {
	found := firstAdequate(h, h.free.first(), realSize)
	if found == memutils.Null {
		return memutils.Null
	}

	if further := firstAdequate(h, h.free.next(found), realSize); further != memutils.Null {
		return further
	}

	return found
}

type bestFit struct{ sizeOrder }

func (bestFit) findFreeBlock(h *Heap, realSize int) memutils.Addr {
	// Sorted by size, so the first adequate block is the smallest
	return firstAdequate(h, h.free.first(), realSize)
}

type worstFit struct{ sizeOrder }

func (worstFit) findFreeBlock(h *Heap, realSize int) memutils.Addr {
	largest := h.free.last()
	if largest != memutils.Null && h.blockSize(largest) >= realSize {
		return largest
	}

	return memutils.Null
}
