package heap

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/tagheap/memutils"
)

// visitBlocks calls visit for every block of every chunk, in address order within each chunk
func (h *Heap) visitBlocks(visit func(base, block memutils.Addr, size int, free bool)) {
	for border := h.chunks.first(); border != memutils.Null; border = h.chunks.next(border) {
		base := h.chunkBase(border)
		for block := base + memutils.Addr(FooterSize); block < border; {
			size := h.blockSize(block)
			visit(base, block, size, h.isFree(block))
			block += memutils.Addr(size)
		}
	}
}

// AddStatistics sums this heap's statistics into the statistics currently present in the provided
// memutils.Statistics object.
func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	stats.ChunkCount += h.chunks.length
	stats.ChunkBytes += h.totalSize
	stats.AllocationCount += h.used.length
	stats.AllocationBytes += h.usedSize
	stats.FreeBytes += h.freeSize
}

// AddDetailedStatistics sums this heap's statistics, including the size ranges of its blocks, into
// the statistics currently present in the provided memutils.DetailedStatistics object.
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ChunkCount += h.chunks.length
	stats.ChunkBytes += h.totalSize

	h.visitBlocks(func(base, block memutils.Addr, size int, free bool) {
		if free {
			stats.AddFreeBlock(size - Overhead)
		} else {
			stats.AddAllocation(size - Overhead)
		}
	})
}

// PrintDetailedMap writes a json object describing every chunk and every block in the heap
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	objState.Name("Strategy").String(h.strategy.String())
	objState.Name("Flags").String(h.flags.String())
	objState.Name("TotalBytes").Int(h.totalSize)
	objState.Name("FreeBytes").Int(h.freeSize)

	chunksArray := objState.Name("Chunks").Array()
	defer chunksArray.End()

	for border := h.chunks.first(); border != memutils.Null; border = h.chunks.next(border) {
		h.printChunk(border, chunksArray.Object())
	}
}

func (h *Heap) printChunk(border memutils.Addr, json jwriter.ObjectState) {
	defer json.End()

	base := h.chunkBase(border)
	json.Name("Base").String(fmt.Sprintf("%#x", uint64(base)))
	json.Name("TotalBytes").Int(h.blockSize(border))

	blocksArray := json.Name("Blocks").Array()
	defer blocksArray.End()

	for block := base + memutils.Addr(FooterSize); block < border; {
		size := h.blockSize(block)

		obj := blocksArray.Object()
		obj.Name("Offset").Int(int(block - base))
		obj.Name("Type").String(h.state(block).String())
		obj.Name("Size").Int(size - Overhead)
		obj.End()

		block += memutils.Addr(size)
	}
}

// BuildStatsString returns a json document describing the heap. If detailed is true, every chunk
// and block is described as well as the summary statistics.
func (h *Heap) BuildStatsString(detailed bool) string {
	writer := jwriter.NewWriter()

	objState := writer.Object()

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	totalObj := objState.Name("Total").Object()
	totalObj.Name("ChunkCount").Int(stats.ChunkCount)
	totalObj.Name("ChunkBytes").Int(stats.ChunkBytes)
	totalObj.Name("AllocationCount").Int(stats.AllocationCount)
	totalObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	totalObj.Name("FreeBytes").Int(stats.FreeBytes)
	totalObj.Name("TagBytes").Int(stats.TagBytes())
	totalObj.Name("FreeBlockCount").Int(stats.FreeBlockCount)
	if stats.AllocationCount > 0 {
		totalObj.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		totalObj.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.FreeBlockCount > 0 {
		totalObj.Name("FreeBlockSizeMin").Int(stats.FreeBlockSizeMin)
		totalObj.Name("FreeBlockSizeMax").Int(stats.FreeBlockSizeMax)
	}
	totalObj.End()

	if detailed {
		h.PrintDetailedMap(objState.Name("DetailedMap"))
	}

	objState.End()

	return string(writer.Bytes())
}
