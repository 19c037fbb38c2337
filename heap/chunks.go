package heap

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
	"golang.org/x/exp/slog"
)

// grow obtains room for a block of realSize bytes, first by extending an existing chunk in place
// and then by requesting a new chunk. The returned block is on the free list.
func (h *Heap) grow(realSize int) (memutils.Addr, error) {
	if h.flags&CreateChunkResizing != 0 {
		for border := h.chunks.first(); border != memutils.Null; border = h.chunks.next(border) {
			block, extended := h.extendChunk(border, realSize)
			if extended {
				return block, nil
			}
		}
	}

	return h.newChunk(realSize)
}

func (h *Heap) newChunk(realSize int) (memutils.Addr, error) {
	granularity := h.provider.Granularity()
	memutils.DebugCheckPow2(granularity, "provider granularity")
	request := memutils.AlignUp(max(realSize+ChunkOverhead, h.defaultChunkSize), granularity)

	base, size, err := h.provider.NewChunk(request)
	if err != nil {
		h.logger.Debug("    Heap::newChunk FAILED", slog.Int("Size", request), slog.Any("error", err))
		return memutils.Null, errors.Mark(errors.Wrapf(err, "could not obtain a chunk of %d bytes", request), memutils.ErrOutOfMemory)
	}

	if size < request {
		panic(errors.AssertionFailedf("provider granted a chunk of %d bytes, but %d were requested", size, request))
	}
	if base == memutils.Null || int(base)%Alignment != 0 {
		panic(errors.AssertionFailedf("provider granted a chunk at %#x, which is not aligned to %d", base, Alignment))
	}

	h.writeBorderFooter(base, size)
	border := base + memutils.Addr(size-HeaderSize)
	h.writeBorderHeader(border, size, memutils.Null, memutils.Null)
	h.chunks.insert(border)
	h.totalSize += size

	block := base + memutils.Addr(FooterSize)
	h.writeBlock(block, size-ChunkOverhead, stateFree)
	h.insertFree(block)

	h.logger.Debug("Heap::newChunk", slog.Uint64("Base", uint64(base)), slog.Int("Size", size))

	return block, nil
}

// extendChunk attempts to grow a chunk in place so that its tail can hold a free block of realSize
// bytes. On success, the returned block is on the free list.
func (h *Heap) extendChunk(border memutils.Addr, realSize int) (memutils.Addr, bool) {
	chunk := h.chunkAt(border)
	base, chunkSize := chunk.base, chunk.size

	if realSize > math.MaxInt-chunkSize-h.provider.Granularity() {
		return memutils.Null, false
	}

	trailingFooter := border - memutils.Addr(FooterSize)
	trailingFree := h.isFree(trailingFooter)

	want := chunkSize + realSize
	if trailingFree {
		want -= h.blockSize(trailingFooter)
	}

	newSize, extended := h.provider.ExtendChunk(base, want, chunkSize)
	if !extended {
		return memutils.Null, false
	}
	if newSize < want {
		panic(errors.AssertionFailedf("provider extended the chunk at %#x to %d bytes, but %d were requested", base, newSize, want))
	}

	newBorder := h.moveBorder(chunk, newSize)

	var block memutils.Addr
	if trailingFree {
		block = h.headerOf(trailingFooter)
		h.resizeFree(block, int(newBorder-block))
	} else {
		// The old border's position is the start of the new free block
		block = border
		h.writeBlock(block, int(newBorder-block), stateFree)
		h.insertFree(block)
	}

	h.logger.Debug("Heap::extendChunk", slog.Uint64("Base", uint64(base)), slog.Int("OldSize", chunkSize), slog.Int("NewSize", newSize))

	return block, true
}

// reduceChunk attempts to shrink a chunk whose trailing block is free, leaving that block as small
// as possible. It returns the trailing block's new size, which the caller is responsible for
// writing; the block's header is not changed.
func (h *Heap) reduceChunk(border, block memutils.Addr) (int, bool) {
	// The provider may discard the tail pages, old border included, so read it first
	chunk := h.chunkAt(border)
	base, chunkSize := chunk.base, chunk.size

	want := memutils.AlignUp(int(block-base)+Overhead+HeaderSize, h.provider.Granularity())
	if chunkSize-want < h.shrinkThreshold {
		return 0, false
	}

	newSize, reduced := h.provider.ReduceChunk(base, want, chunkSize)
	if !reduced {
		return 0, false
	}
	if newSize < want || newSize > chunkSize {
		panic(errors.AssertionFailedf("provider reduced the chunk at %#x to %d bytes, but %d were requested", base, newSize, want))
	}

	newBorder := h.moveBorder(chunk, newSize)

	h.logger.Debug("Heap::reduceChunk", slog.Uint64("Base", uint64(base)), slog.Int("OldSize", chunkSize), slog.Int("NewSize", newSize))

	return int(newBorder - block), true
}

// chunkRef is a snapshot of a chunk's back border
type chunkRef struct {
	border memutils.Addr
	base   memutils.Addr
	size   int
	prev   memutils.Addr
	next   memutils.Addr
}

func (h *Heap) chunkAt(border memutils.Addr) chunkRef {
	return chunkRef{
		border: border,
		base:   h.chunkBase(border),
		size:   h.blockSize(border),
		prev:   h.chunks.prev(border),
		next:   h.chunks.next(border),
	}
}

// moveBorder rewrites both borders of a chunk whose size has changed and relinks the back border
// into the chunk list at its new address
func (h *Heap) moveBorder(chunk chunkRef, newSize int) memutils.Addr {
	newBorder := chunk.base + memutils.Addr(newSize-HeaderSize)
	h.writeBorderHeader(newBorder, newSize, chunk.prev, chunk.next)
	h.chunks.reconnect(newBorder)
	h.writeBorderFooter(chunk.base, newSize)

	h.totalSize += newSize - chunk.size

	return newBorder
}

func (h *Heap) returnChunk(border memutils.Addr) {
	base := h.chunkBase(border)
	size := h.blockSize(border)

	h.chunks.disconnect(border)
	h.totalSize -= size
	h.provider.ReturnChunk(base, size)

	h.logger.Debug("Heap::returnChunk", slog.Uint64("Base", uint64(base)), slog.Int("Size", size))
}
