package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
)

type freeLayout struct {
	large  memutils.Addr
	small  memutils.Addr
	medium memutils.Addr
	guard  memutils.Addr
}

// layoutFreeBlocks leaves free blocks of 256, 112 and 176 bytes, in that address order, each
// followed by a used guard block. The rest of the chunk is a free tail.
func layoutFreeBlocks(t *testing.T, h *Heap) freeLayout {
	var layout freeLayout

	layout.large = mustAllocate(t, h, 200)
	mustAllocate(t, h, 16)
	layout.small = mustAllocate(t, h, 64)
	mustAllocate(t, h, 16)
	layout.medium = mustAllocate(t, h, 120)
	layout.guard = mustAllocate(t, h, 16)

	mustRelease(t, h, layout.large)
	mustRelease(t, h, layout.small)
	mustRelease(t, h, layout.medium)

	require.Equal(t, 256, h.blockSize(headerFor(layout.large)))
	require.Equal(t, 112, h.blockSize(headerFor(layout.small)))
	require.Equal(t, 176, h.blockSize(headerFor(layout.medium)))
	require.Equal(t, 4, h.free.length)

	return layout
}

func freeListOf(h *Heap) []memutils.Addr {
	var blocks []memutils.Addr
	for block := h.free.first(); block != memutils.Null; block = h.free.next(block) {
		blocks = append(blocks, block)
	}
	return blocks
}

func TestStrategyString(t *testing.T) {
	require.Equal(t, "StrategyBestFit", StrategyBestFit.String())
	require.Equal(t, StrategyFirstFit, StrategyDefault.resolve())
	require.True(t, StrategyWorstFit.sizeOrdered())
	require.False(t, StrategyDefault.sizeOrdered())
}

func TestFirstFitSelection(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyFirstFit})
	layout := layoutFreeBlocks(t, h)

	// 100 bytes needs a 160 byte block: the first adequate one in address order is the large block
	a := mustAllocate(t, h, 100)
	require.Equal(t, layout.large, a)

	// The large block was split, and its 96 byte remainder stays in address order
	require.Equal(t, headerFor(a)+160, h.free.first())
}

func TestBestFitSelection(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyBestFit})
	layout := layoutFreeBlocks(t, h)

	require.Equal(t, headerFor(layout.small), h.free.first())

	a := mustAllocate(t, h, 100)
	require.Equal(t, layout.medium, a)

	b := mustAllocate(t, h, 100)
	require.Equal(t, layout.large, b)
}

func TestBestFitStableOnTies(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyBestFit})

	first := mustAllocate(t, h, 64)
	mustAllocate(t, h, 16)
	second := mustAllocate(t, h, 64)
	mustAllocate(t, h, 16)

	mustRelease(t, h, first)
	mustRelease(t, h, second)

	require.Equal(t, []memutils.Addr{headerFor(first), headerFor(second)}, freeListOf(h)[:2])
	require.Equal(t, first, mustAllocate(t, h, 64))
}

func TestWorstFitSelection(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyWorstFit})
	layout := layoutFreeBlocks(t, h)

	// The chunk tail is the largest block
	a := mustAllocate(t, h, 100)
	require.Greater(t, a, layout.guard)

	// A request larger than the tail needs a new chunk, even though the heap has free blocks
	b := mustAllocate(t, h, 3500)
	require.Equal(t, 2, h.ChunkCount())
	require.Greater(t, b, a)
}

func TestWorstFitTiesPickTail(t *testing.T) {
	for name, order := range coalesceOrders {
		t.Run(name, func(t *testing.T) {
			h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyWorstFit, RetainFreeBytes: 1 << 30})

			// Each allocation fills a whole chunk, so releasing leaves two equal free blocks
			chunks := []memutils.Addr{mustAllocate(t, h, 4000), mustAllocate(t, h, 4000)}
			require.Equal(t, []memutils.Addr{testFrameBase + 48, 2*testFrameBase + 48}, chunks)

			mustRelease(t, h, chunks[order.First])
			mustRelease(t, h, chunks[order.Second])
			require.Equal(t, 2, h.ChunkCount())
			require.Equal(t, []memutils.Addr{headerFor(chunks[order.First]), headerFor(chunks[order.Second])}, freeListOf(h))

			// The block released last sits at the tail and wins the tie
			require.Equal(t, chunks[order.Second], mustAllocate(t, h, 100))
		})
	}
}

func TestNextFitSelection(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyNextFit})
	layout := layoutFreeBlocks(t, h)

	// A first-fit scan stops at the large block, but the next adequate block after it is preferred
	a := mustAllocate(t, h, 100)
	require.Equal(t, layout.medium, a)

	// The next adequate block after the large one is now the chunk tail
	b := mustAllocate(t, h, 100)
	require.Greater(t, b, layout.guard)

	// No position is remembered: once the medium block is free again, the search starts from the
	// front of the list and prefers it over the tail it chose last time
	mustRelease(t, h, a)
	c := mustAllocate(t, h, 100)
	require.Equal(t, layout.medium, c)
}

func TestNextFitOnlyCandidate(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyNextFit})

	a := mustAllocate(t, h, 3000)
	mustAllocate(t, h, 500)
	mustRelease(t, h, a)

	// The block at the front is the only one large enough
	b := mustAllocate(t, h, 2000)
	require.Equal(t, a, b)
}

func TestSetStrategyResorts(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{Strategy: StrategyFirstFit})
	layout := layoutFreeBlocks(t, h)

	addressOrdered := freeListOf(h)
	require.Equal(t, headerFor(layout.large), addressOrdered[0])

	require.NoError(t, h.SetStrategy(StrategyBestFit))
	require.Equal(t, StrategyBestFit, h.Strategy())
	require.NoError(t, h.Validate())
	require.Equal(t, []memutils.Addr{
		headerFor(layout.small),
		headerFor(layout.medium),
		headerFor(layout.large),
		addressOrdered[3],
	}, freeListOf(h))

	require.NoError(t, h.SetStrategy(StrategyDefault))
	require.Equal(t, StrategyFirstFit, h.Strategy())
	require.NoError(t, h.Validate())
	require.Equal(t, addressOrdered, freeListOf(h))

	require.Error(t, h.SetStrategy(Strategy(42)))
	require.Equal(t, StrategyFirstFit, h.Strategy())
	require.Equal(t, addressOrdered, freeListOf(h))
}

func TestSetStrategyKeepsFreeBytes(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{})
	layoutFreeBlocks(t, h)

	before := h.FreeBytes()
	for _, strategy := range []Strategy{StrategyWorstFit, StrategyNextFit, StrategyBestFit, StrategyFirstFit} {
		require.NoError(t, h.SetStrategy(strategy))
		require.NoError(t, h.Validate())
		require.Equal(t, before, h.FreeBytes())
		require.Equal(t, 4, h.free.length)
	}
}
