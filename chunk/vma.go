package chunk

import (
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/tagheap/memutils"
	"golang.org/x/exp/slog"
)

const (
	defaultPageSize     int           = 4096
	defaultReservePages int           = 4096
	defaultVirtualBase  memutils.Addr = 0x10000000
)

// VMAOptions contains optional settings when creating a VMAProvider
type VMAOptions struct {
	// PageSize is the size of a virtual page in bytes. It must be a power of two. The default is 4KiB.
	PageSize int
	// ReservePages is the number of pages in the reserved virtual region that chunks are carved from.
	// The default is 4096 (16MiB).
	ReservePages int
	// VirtualBase is the address at which the reserved region begins. It must be page-aligned and nonzero.
	VirtualBase memutils.Addr
	// Logger receives debug records when the operating system refuses to reclaim discarded pages.
	// It may be nil.
	Logger *slog.Logger
}

// VMAProvider carves chunks from a single reserved virtual memory area. Chunks can grow in place
// when the pages after them are unused, and shrinking a chunk hands its tail pages back to the
// operating system.
type VMAProvider struct {
	pageSize int
	base     memutils.Addr
	region   []byte
	pages    pageTable
	chunks   *swiss.Map[memutils.Addr, int]
	logger   *slog.Logger
	// discardPages lets the operating system reclaim the physical memory behind a range of pages
	discardPages func(pages []byte) error
}

var _ Provider = &VMAProvider{}
var _ memutils.Validatable = &VMAProvider{}

// NewVMAProvider reserves the virtual region described by options. Close must be called to release it.
func NewVMAProvider(options VMAOptions) (*VMAProvider, error) {
	if options.PageSize == 0 {
		options.PageSize = defaultPageSize
	}
	if options.ReservePages == 0 {
		options.ReservePages = defaultReservePages
	}
	if options.VirtualBase == memutils.Null {
		options.VirtualBase = defaultVirtualBase
	}

	err := memutils.CheckPow2(options.PageSize, "VMAOptions.PageSize")
	if err != nil {
		return nil, err
	}
	if options.ReservePages < 0 {
		return nil, errors.Errorf("VMAOptions.ReservePages must not be negative, but it was %d", options.ReservePages)
	}
	if int(options.VirtualBase)%options.PageSize != 0 {
		return nil, errors.Errorf("VMAOptions.VirtualBase %#x is not aligned to the page size %d", options.VirtualBase, options.PageSize)
	}

	region, err := reserveRegion(options.PageSize * options.ReservePages)
	if err != nil {
		return nil, errors.Wrap(err, "could not reserve the virtual region")
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &VMAProvider{
		pageSize:     options.PageSize,
		base:         options.VirtualBase,
		region:       region,
		pages:        newPageTable(options.ReservePages),
		chunks:       swiss.NewMap[memutils.Addr, int](16),
		logger:       logger,
		discardPages: discardPages,
	}, nil
}

// Close releases the reserved region. Any memory previously handed out becomes invalid.
func (p *VMAProvider) Close() error {
	if p.region == nil {
		return nil
	}

	err := releaseRegion(p.region)
	p.region = nil
	return err
}

// Granularity returns the page size
func (p *VMAProvider) Granularity() int { return p.pageSize }

// FreePages returns the number of pages in the reserved region not currently part of a chunk
func (p *VMAProvider) FreePages() int { return p.pages.freePages() }

// LiveChunks returns the number of chunks that have been handed out and not returned
func (p *VMAProvider) LiveChunks() int { return p.chunks.Count() }

// Bytes returns the n bytes of the reserved region starting at addr
func (p *VMAProvider) Bytes(addr memutils.Addr, n int) ([]byte, bool) {
	return sliceRegion(p.region, p.base, addr, n)
}

// NewChunk hands out the lowest run of free pages that can hold size bytes
func (p *VMAProvider) NewChunk(size int) (memutils.Addr, int, error) {
	if size <= 0 {
		return memutils.Null, 0, errors.Errorf("invalid chunk size %d", size)
	}
	if size > math.MaxInt-p.pageSize {
		return memutils.Null, 0, errors.Wrapf(memutils.ErrOutOfMemory, "chunk size %d cannot be rounded to whole pages", size)
	}

	pageCount := memutils.AlignUp(size, p.pageSize) / p.pageSize
	first, found := p.pages.findRun(pageCount)
	if !found {
		return memutils.Null, 0, errors.Wrapf(memutils.ErrOutOfMemory, "no run of %d free pages in the reserved region", pageCount)
	}

	p.pages.mark(first, pageCount, true)

	base := p.base + memutils.Addr(first*p.pageSize)
	granted := pageCount * p.pageSize
	p.chunks.Put(base, granted)
	memutils.DebugValidate(p)

	return base, granted, nil
}

// ReturnChunk frees a chunk's pages and discards their contents
func (p *VMAProvider) ReturnChunk(base memutils.Addr, size int) {
	p.checkChunk(base, size)

	first := p.pageIndex(base)
	pageCount := size / p.pageSize
	p.pages.mark(first, pageCount, false)
	p.discard(first, pageCount)
	p.chunks.Delete(base)
	memutils.DebugValidate(p)
}

// ExtendChunk grows a chunk in place if the pages after it are free
func (p *VMAProvider) ExtendChunk(base memutils.Addr, size, originalSize int) (int, bool) {
	p.checkChunk(base, originalSize)
	if size > math.MaxInt-p.pageSize {
		return originalSize, false
	}

	newPages := memutils.AlignUp(size, p.pageSize) / p.pageSize
	oldPages := originalSize / p.pageSize
	if newPages <= oldPages {
		return originalSize, false
	}

	tail := p.pageIndex(base) + oldPages
	if !p.pages.rangeFree(tail, newPages-oldPages) {
		return originalSize, false
	}

	p.pages.mark(tail, newPages-oldPages, true)
	p.chunks.Put(base, newPages*p.pageSize)
	memutils.DebugValidate(p)

	return newPages * p.pageSize, true
}

// ReduceChunk gives a chunk's tail pages back, keeping at least size bytes
func (p *VMAProvider) ReduceChunk(base memutils.Addr, size, originalSize int) (int, bool) {
	p.checkChunk(base, originalSize)

	newPages := memutils.AlignUp(size, p.pageSize) / p.pageSize
	oldPages := originalSize / p.pageSize
	if newPages <= 0 || newPages >= oldPages {
		return originalSize, false
	}

	tail := p.pageIndex(base) + newPages
	p.pages.mark(tail, oldPages-newPages, false)
	p.discard(tail, oldPages-newPages)
	p.chunks.Put(base, newPages*p.pageSize)
	memutils.DebugValidate(p)

	return newPages * p.pageSize, true
}

// Validate checks the page bitmap against the table of live chunks
func (p *VMAProvider) Validate() error {
	return validateChunkTable(&p.pages, p.chunks, p.pageSize)
}

func (p *VMAProvider) pageIndex(addr memutils.Addr) int {
	return int(addr-p.base) / p.pageSize
}

func (p *VMAProvider) checkChunk(base memutils.Addr, size int) {
	recorded, ok := p.chunks.Get(base)
	if !ok {
		panic(errors.AssertionFailedf("chunk at %#x was never handed out", base))
	}
	if recorded != size {
		panic(errors.AssertionFailedf("chunk at %#x was described with size %d, but its size is %d", base, size, recorded))
	}
}

// discard hands a range of pages back to the operating system. The pages stay reserved, so a
// refusal only costs memory and is logged rather than failing the caller.
func (p *VMAProvider) discard(first, pageCount int) {
	start := first * p.pageSize
	err := p.discardPages(p.region[start : start+pageCount*p.pageSize])
	if err != nil {
		p.logger.Debug("VMAProvider::discard FAILED",
			slog.Uint64("Address", uint64(p.base)+uint64(start)),
			slog.Int("Pages", pageCount),
			slog.Any("error", err))
	}
}
