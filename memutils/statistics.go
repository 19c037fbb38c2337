package memutils

import "math"

// Statistics is a cheap summary of a heap: how many chunks it holds, how many bytes those chunks
// span, and how much of that is handed out to live allocations or waiting in free blocks
type Statistics struct {
	ChunkCount      int
	AllocationCount int
	ChunkBytes      int
	AllocationBytes int
	// FreeBytes is the payload capacity of every free block
	FreeBytes int
}

// TagBytes returns the bytes of chunk memory that belong to neither an allocation nor a free
// block's payload: boundary tags and chunk borders
func (s *Statistics) TagBytes() int {
	return s.ChunkBytes - s.AllocationBytes - s.FreeBytes
}

// Clear resets every counter to zero
func (s *Statistics) Clear() {
	s.ChunkCount = 0
	s.AllocationCount = 0
	s.ChunkBytes = 0
	s.AllocationBytes = 0
	s.FreeBytes = 0
}

// AddStatistics sums other into s
func (s *Statistics) AddStatistics(other *Statistics) {
	s.ChunkCount += other.ChunkCount
	s.AllocationCount += other.AllocationCount
	s.ChunkBytes += other.ChunkBytes
	s.AllocationBytes += other.AllocationBytes
	s.FreeBytes += other.FreeBytes
}

// DetailedStatistics extends Statistics with the size range of live allocations and free blocks.
// Call Clear before populating it, so the minimums start out at math.MaxInt
type DetailedStatistics struct {
	Statistics
	FreeBlockCount    int
	AllocationSizeMin int
	AllocationSizeMax int
	FreeBlockSizeMin  int
	FreeBlockSizeMax  int
}

// Clear resets every counter, leaving the minimums at math.MaxInt
func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeBlockCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.FreeBlockSizeMin = math.MaxInt
	s.FreeBlockSizeMax = 0
}

// AddFreeBlock records a free block with a payload of size bytes
func (s *DetailedStatistics) AddFreeBlock(size int) {
	s.FreeBlockCount++
	s.FreeBytes += size

	if size < s.FreeBlockSizeMin {
		s.FreeBlockSizeMin = size
	}

	if size > s.FreeBlockSizeMax {
		s.FreeBlockSizeMax = size
	}
}

// AddAllocation records a live allocation of size bytes
func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

// AddDetailedStatistics sums other into s, widening the size ranges
func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeBlockCount += other.FreeBlockCount

	if other.FreeBlockSizeMin < s.FreeBlockSizeMin {
		s.FreeBlockSizeMin = other.FreeBlockSizeMin
	}

	if other.FreeBlockSizeMax > s.FreeBlockSizeMax {
		s.FreeBlockSizeMax = other.FreeBlockSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}
