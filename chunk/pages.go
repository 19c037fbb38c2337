package chunk

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
)

// pageTable tracks which pages of a contiguous range are in use, one bit per page
type pageTable struct {
	bits      []uint64
	pageCount int
	usedCount int
}

func newPageTable(pageCount int) pageTable {
	return pageTable{
		bits:      make([]uint64, (pageCount+63)/64),
		pageCount: pageCount,
	}
}

func (t *pageTable) isUsed(page int) bool {
	return t.bits[page/64]&(1<<(page%64)) != 0
}

func (t *pageTable) mark(first, count int, used bool) {
	for page := first; page < first+count; page++ {
		if t.isUsed(page) == used {
			panic(errors.AssertionFailedf("page %d is already marked used=%t", page, used))
		}

		if used {
			t.bits[page/64] |= 1 << (page % 64)
		} else {
			t.bits[page/64] &^= 1 << (page % 64)
		}
	}

	if used {
		t.usedCount += count
	} else {
		t.usedCount -= count
	}
}

func (t *pageTable) rangeFree(first, count int) bool {
	if first < 0 || count < 0 || first+count > t.pageCount {
		return false
	}

	for page := first; page < first+count; page++ {
		if t.isUsed(page) {
			return false
		}
	}

	return true
}

// findRun returns the first page of the lowest run of count free pages
func (t *pageTable) findRun(count int) (int, bool) {
	if count <= 0 || count > t.pageCount-t.usedCount {
		return 0, false
	}

	runStart, runLength := 0, 0
	for page := 0; page < t.pageCount; {
		word := t.bits[page/64]
		if page%64 == 0 && word == math.MaxUint64 {
			runLength = 0
			page += 64
			continue
		}

		if page%64 == 0 && word == 0 && page+64 <= t.pageCount {
			if runLength == 0 {
				runStart = page
			}
			runLength += 64
			page += 64
		} else {
			if word&(1<<(page%64)) != 0 {
				runLength = 0
			} else {
				if runLength == 0 {
					runStart = page
				}
				runLength++
			}
			page++
		}

		if runLength >= count {
			return runStart, true
		}
	}

	return 0, false
}

func (t *pageTable) freePages() int {
	return t.pageCount - t.usedCount
}

func (t *pageTable) countUsed() int {
	var count int
	for _, word := range t.bits {
		count += bits.OnesCount64(word)
	}
	return count
}
