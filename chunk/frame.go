package chunk

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/tagheap/memutils"
)

const (
	defaultFrameSize  int = 4096
	defaultFrameCount int = 1024
)

// FrameOptions contains optional settings when creating a FrameProvider
type FrameOptions struct {
	// FrameSize is the size of a single physical frame in bytes. It must be a power of two.
	// The default is 4KiB.
	FrameSize int
	// FrameCount is the number of frames of physical memory the provider manages. The default is 1024.
	FrameCount int
	// PhysicalBase is the address of the first frame. It must be frame-aligned and nonzero. The default
	// is one frame, so that address 0 is never handed out.
	PhysicalBase memutils.Addr
}

// FrameProvider hands out physically contiguous runs of frames to the kernel heap. Physical
// frames cannot be resized in place, so ExtendChunk and ReduceChunk always fail.
type FrameProvider struct {
	frameSize int
	base      memutils.Addr
	memory    []byte
	frames    pageTable
	chunks    *swiss.Map[memutils.Addr, int]
}

var _ Provider = &FrameProvider{}
var _ memutils.Validatable = &FrameProvider{}

// NewFrameProvider creates a FrameProvider managing options.FrameCount frames of memory
func NewFrameProvider(options FrameOptions) (*FrameProvider, error) {
	if options.FrameSize == 0 {
		options.FrameSize = defaultFrameSize
	}
	if options.FrameCount == 0 {
		options.FrameCount = defaultFrameCount
	}
	if options.PhysicalBase == memutils.Null {
		options.PhysicalBase = memutils.Addr(options.FrameSize)
	}

	err := memutils.CheckPow2(options.FrameSize, "FrameOptions.FrameSize")
	if err != nil {
		return nil, err
	}
	if options.FrameCount < 0 {
		return nil, errors.Errorf("FrameOptions.FrameCount must not be negative, but it was %d", options.FrameCount)
	}
	if int(options.PhysicalBase)%options.FrameSize != 0 {
		return nil, errors.Errorf("FrameOptions.PhysicalBase %#x is not aligned to the frame size %d", options.PhysicalBase, options.FrameSize)
	}

	return &FrameProvider{
		frameSize: options.FrameSize,
		base:      options.PhysicalBase,
		memory:    make([]byte, options.FrameSize*options.FrameCount),
		frames:    newPageTable(options.FrameCount),
		chunks:    swiss.NewMap[memutils.Addr, int](16),
	}, nil
}

// Granularity returns the frame size
func (p *FrameProvider) Granularity() int { return p.frameSize }

// FreeFrames returns the number of frames not currently part of a chunk
func (p *FrameProvider) FreeFrames() int { return p.frames.freePages() }

// LiveChunks returns the number of chunks that have been handed out and not returned
func (p *FrameProvider) LiveChunks() int { return p.chunks.Count() }

// Bytes returns the n bytes of frame memory starting at addr
func (p *FrameProvider) Bytes(addr memutils.Addr, n int) ([]byte, bool) {
	return sliceRegion(p.memory, p.base, addr, n)
}

// NewChunk hands out the lowest run of free frames that can hold size bytes
func (p *FrameProvider) NewChunk(size int) (memutils.Addr, int, error) {
	if size <= 0 {
		return memutils.Null, 0, errors.Errorf("invalid chunk size %d", size)
	}
	if size > math.MaxInt-p.frameSize {
		return memutils.Null, 0, errors.Wrapf(memutils.ErrOutOfMemory, "chunk size %d cannot be rounded to whole frames", size)
	}

	frameCount := memutils.AlignUp(size, p.frameSize) / p.frameSize
	first, found := p.frames.findRun(frameCount)
	if !found {
		return memutils.Null, 0, errors.Wrapf(memutils.ErrOutOfMemory, "no run of %d contiguous free frames", frameCount)
	}

	p.frames.mark(first, frameCount, true)

	base := p.base + memutils.Addr(first*p.frameSize)
	granted := frameCount * p.frameSize
	p.chunks.Put(base, granted)
	memutils.DebugValidate(p)

	return base, granted, nil
}

// ReturnChunk marks the frames of a chunk free again
func (p *FrameProvider) ReturnChunk(base memutils.Addr, size int) {
	recorded, ok := p.chunks.Get(base)
	if !ok {
		panic(errors.AssertionFailedf("attempted to return chunk at %#x, which was never handed out", base))
	}
	if recorded != size {
		panic(errors.AssertionFailedf("attempted to return chunk at %#x with size %d, but its size is %d", base, size, recorded))
	}

	p.frames.mark(int(base-p.base)/p.frameSize, size/p.frameSize, false)
	p.chunks.Delete(base)
	memutils.DebugValidate(p)
}

// ExtendChunk always fails: frames are never resized in place
func (p *FrameProvider) ExtendChunk(base memutils.Addr, size, originalSize int) (int, bool) {
	return originalSize, false
}

// ReduceChunk always fails: frames are never resized in place
func (p *FrameProvider) ReduceChunk(base memutils.Addr, size, originalSize int) (int, bool) {
	return originalSize, false
}

// Validate checks the frame bitmap against the table of live chunks
func (p *FrameProvider) Validate() error {
	return validateChunkTable(&p.frames, p.chunks, p.frameSize)
}

func sliceRegion(region []byte, regionBase memutils.Addr, addr memutils.Addr, n int) ([]byte, bool) {
	if n < 0 || addr < regionBase {
		return nil, false
	}

	offset := uint64(addr - regionBase)
	if offset > uint64(len(region)) || uint64(n) > uint64(len(region))-offset {
		return nil, false
	}

	return region[offset : offset+uint64(n)], true
}

func validateChunkTable(pages *pageTable, chunks *swiss.Map[memutils.Addr, int], pageSize int) error {
	var chunkPages int
	var err error
	chunks.Iter(func(base memutils.Addr, size int) bool {
		if size%pageSize != 0 {
			err = errors.Errorf("chunk at %#x has size %d, which is not a multiple of the page size %d", base, size, pageSize)
			return true
		}
		chunkPages += size / pageSize
		return false
	})
	if err != nil {
		return err
	}

	if chunkPages != pages.usedCount {
		return errors.Errorf("live chunks span %d pages, but %d pages are marked in use", chunkPages, pages.usedCount)
	}

	if used := pages.countUsed(); used != pages.usedCount {
		return errors.Errorf("page bitmap has %d pages set, but the page table recorded %d", used, pages.usedCount)
	}

	return nil
}
