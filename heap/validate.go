package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/tagheap/memutils"
)

// Validate walks every chunk and every list the heap holds and returns an error describing the first
// inconsistency it finds. It never panics on a corrupted heap.
func (h *Heap) Validate() error {
	freeBlocks := swiss.NewMap[memutils.Addr, int](uint32(h.free.length + 1))
	usedBlocks := swiss.NewMap[memutils.Addr, int](uint32(h.used.length + 1))

	var chunkBytes int
	err := h.validateList(&h.chunks, "chunk", func(border memutils.Addr) error {
		size, err := h.validateChunk(border, freeBlocks, usedBlocks)
		chunkBytes += size
		return err
	})
	if err != nil {
		return err
	}

	if chunkBytes != h.totalSize {
		return errors.Errorf("chunks span %d bytes, but the heap recorded %d", chunkBytes, h.totalSize)
	}

	if freeBytes := sumPayloads(freeBlocks); freeBytes != h.freeSize {
		return errors.Errorf("free blocks hold %d bytes, but the heap recorded %d", freeBytes, h.freeSize)
	}

	if usedBytes := sumPayloads(usedBlocks); usedBytes != h.usedSize {
		return errors.Errorf("used blocks hold %d bytes, but the heap recorded %d", usedBytes, h.usedSize)
	}

	sizeOrdered := h.strategy.sizeOrdered()
	var previous memutils.Addr
	var previousSize int
	err = h.validateList(&h.free, "free", func(block memutils.Addr) error {
		size, ok := freeBlocks.Get(block)
		if !ok {
			return errors.Errorf("block at %#x is in the free list, but is not a free block in any chunk", block)
		}
		freeBlocks.Delete(block)

		if previous != memutils.Null {
			if sizeOrdered && size < previousSize {
				return errors.Errorf("free list is out of size order: block at %#x (%d bytes) follows block at %#x (%d bytes)", block, size, previous, previousSize)
			}
			if !sizeOrdered && block < previous {
				return errors.Errorf("free list is out of address order: block at %#x follows block at %#x", block, previous)
			}
		}

		previous = block
		previousSize = size
		return nil
	})
	if err != nil {
		return err
	}
	if freeBlocks.Count() != 0 {
		return errors.Errorf("%d free blocks are missing from the free list", freeBlocks.Count())
	}

	err = h.validateList(&h.used, "used", func(block memutils.Addr) error {
		if _, ok := usedBlocks.Get(block); !ok {
			return errors.Errorf("block at %#x is in the used list, but is not a used block in any chunk", block)
		}
		usedBlocks.Delete(block)
		return nil
	})
	if err != nil {
		return err
	}
	if usedBlocks.Count() != 0 {
		return errors.Errorf("%d used blocks are missing from the used list", usedBlocks.Count())
	}

	return nil
}

func sumPayloads(blocks *swiss.Map[memutils.Addr, int]) int {
	var sum int
	blocks.Iter(func(_ memutils.Addr, size int) bool {
		sum += size - Overhead
		return false
	})
	return sum
}

// validateChunk checks that the blocks of a chunk tile it exactly, that every header agrees with its
// footer, and that no two free blocks are adjacent. Every block found is recorded by state.
func (h *Heap) validateChunk(border memutils.Addr, freeBlocks, usedBlocks *swiss.Map[memutils.Addr, int]) (int, error) {
	state, ok := h.decodeTag(border)
	if !ok || state != stateBorder {
		return 0, errors.Errorf("chunk list node at %#x is not a chunk border", border)
	}

	chunkSize, _ := h.tryWord(border + sizeOffset)
	if chunkSize < uint64(ChunkOverhead) || chunkSize%uint64(h.provider.Granularity()) != 0 || uint64(border)+uint64(HeaderSize) < chunkSize {
		return 0, errors.Errorf("chunk border at %#x has invalid size %d", border, chunkSize)
	}

	base := border + memutils.Addr(HeaderSize) - memutils.Addr(chunkSize)
	state, ok = h.decodeTag(base)
	frontSize, _ := h.tryWord(base + sizeOffset)
	if !ok || state != stateBorder || frontSize != chunkSize {
		return 0, errors.Errorf("chunk at %#x does not begin with a border matching its back border at %#x", base, border)
	}

	at := base + memutils.Addr(FooterSize)
	previousFree := false
	for at < border {
		state, ok = h.decodeTag(at)
		if !ok || (state != stateFree && state != stateUsed) {
			return 0, errors.Errorf("block at %#x in chunk %#x has an invalid header tag", at, base)
		}

		size, _ := h.tryWord(at + sizeOffset)
		if size < uint64(Overhead) || size%uint64(Alignment) != 0 || size > uint64(border-at) {
			return 0, errors.Errorf("block at %#x in chunk %#x has invalid size %d", at, base, size)
		}

		footer := at + memutils.Addr(size) - memutils.Addr(FooterSize)
		footerState, ok := h.decodeTag(footer)
		footerSize, _ := h.tryWord(footer + sizeOffset)
		if !ok || footerState != state || footerSize != size {
			return 0, errors.Errorf("block at %#x has header (%s, %d) that does not match its footer", at, state, size)
		}

		if state == stateFree {
			if previousFree {
				return 0, errors.Errorf("free block at %#x was not merged with the free block before it", at)
			}
			freeBlocks.Put(at, int(size))
		} else {
			usedBlocks.Put(at, int(size))
		}

		previousFree = state == stateFree
		at += memutils.Addr(size)
	}

	if at != border {
		return 0, errors.Errorf("blocks in chunk %#x overrun its back border at %#x", base, border)
	}

	return int(chunkSize), nil
}

// validateList walks a block list by reading its links directly, verifying that every back link
// matches and that the list holds exactly as many nodes as it claims
func (h *Heap) validateList(list *blockList, name string, visit func(node memutils.Addr) error) error {
	count := 0
	previous := memutils.Null
	node := list.head
	for node != memutils.Null {
		if count >= list.length {
			return errors.Errorf("%s list holds more than the %d nodes it records", name, list.length)
		}

		prev, ok := h.tryWord(node + prevOffset)
		if !ok || memutils.Addr(prev) != previous {
			return errors.Errorf("%s list node at %#x has back link %#x, expected %#x", name, node, prev, previous)
		}

		if err := visit(node); err != nil {
			return err
		}

		next, ok := h.tryWord(node + nextOffset)
		if !ok {
			return errors.Errorf("%s list node at %#x is outside of the provider's memory", name, node)
		}

		count++
		previous = node
		node = memutils.Addr(next)
	}

	if count != list.length {
		return errors.Errorf("%s list holds %d nodes, but records %d", name, count, list.length)
	}
	if list.tail != previous {
		return errors.Errorf("%s list tail is %#x, but the last node is %#x", name, list.tail, previous)
	}

	return nil
}
