package heap

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/chunk"
	"github.com/vkngwrapper/tagheap/memutils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateChunkResizing allows the heap to grow chunks in place when it runs out of free blocks
	// and to shrink them from the tail when their trailing block is freed. The chunk provider must
	// support resizing for this to have any effect.
	CreateChunkResizing CreateFlags = 1 << iota
	// CreateExternallySynchronized ensures that a Synchronized wrapping this heap will not take its
	// lock. The consumer must guarantee that the heap is used from only one goroutine at a time or is
	// synchronized by some other mechanism.
	CreateExternallySynchronized
)

var createFlagsMapping = map[CreateFlags]string{
	CreateChunkResizing:          "CreateChunkResizing",
	CreateExternallySynchronized: "CreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := CreateFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}

		name, ok := createFlagsMapping[bit]
		if !ok {
			name = "Unknown"
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// DefaultChunkSize is the chunk size requested from the provider when no CreateOptions.DefaultChunkSize
	// is provided. It is equal to 64KiB.
	DefaultChunkSize int = 64 * 1024
)

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags
	// Strategy is the placement strategy the heap starts out with
	Strategy Strategy
	// DefaultChunkSize is the smallest chunk the heap will request from its provider. Larger
	// allocations get a chunk sized to fit them.
	DefaultChunkSize int
	// RetainFreeBytes is the low-water mark of free memory the heap holds on to. A chunk that
	// becomes entirely free is only returned to the provider while the heap's free bytes exceed
	// this value. 0 selects DefaultChunkSize; a negative value returns every empty chunk.
	RetainFreeBytes int
	// ShrinkThreshold is the minimum number of bytes that must be reclaimable from a chunk's tail
	// before the heap asks the provider to shrink it. 0 selects the provider's granularity.
	ShrinkThreshold int
	// Identifier is folded into every boundary tag the heap writes, so that a block belonging to
	// another heap is detected as corruption
	Identifier uint32
	// Logger receives debug records about chunk traffic. It may be nil.
	Logger *slog.Logger
}

// KernelOptions returns the settings used for the kernel heap: physical frames cannot be resized,
// so chunks are only ever obtained and returned whole
func KernelOptions(logger *slog.Logger) CreateOptions {
	return CreateOptions{
		Strategy:   StrategyFirstFit,
		Identifier: 0x4B,
		Logger:     logger,
	}
}

// UserOptions returns the settings used for a user-space heap, whose chunks come from a virtual
// memory area that can grow and shrink in place
func UserOptions(logger *slog.Logger) CreateOptions {
	return CreateOptions{
		Flags:      CreateChunkResizing,
		Strategy:   StrategyFirstFit,
		Identifier: 0x55,
		Logger:     logger,
	}
}

// New creates a new, empty Heap. No memory is requested from the provider until the first allocation.
func New(provider chunk.Provider, options CreateOptions) (*Heap, error) {
	if provider == nil {
		return nil, errors.New("a chunk provider must be supplied")
	}

	granularity := provider.Granularity()
	err := memutils.CheckPow2(granularity, "provider granularity")
	if err != nil {
		return nil, err
	}
	if granularity < Alignment {
		return nil, errors.Errorf("provider granularity %d is smaller than the heap alignment %d", granularity, Alignment)
	}

	if options.DefaultChunkSize < 0 {
		return nil, errors.Errorf("CreateOptions.DefaultChunkSize must not be negative, but it was %d", options.DefaultChunkSize)
	}
	if options.DefaultChunkSize == 0 {
		options.DefaultChunkSize = DefaultChunkSize
	}
	if options.RetainFreeBytes == 0 {
		options.RetainFreeBytes = options.DefaultChunkSize
	}
	if options.ShrinkThreshold < 0 {
		return nil, errors.Errorf("CreateOptions.ShrinkThreshold must not be negative, but it was %d", options.ShrinkThreshold)
	}
	if options.ShrinkThreshold == 0 {
		options.ShrinkThreshold = granularity
	}

	policy, err := policyFor(options.Strategy)
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	heap := &Heap{
		logger:           logger,
		provider:         provider,
		flags:            options.Flags,
		strategy:         options.Strategy.resolve(),
		policy:           policy,
		magic:            baseMagic ^ options.Identifier,
		defaultChunkSize: options.DefaultChunkSize,
		retainFreeBytes:  options.RetainFreeBytes,
		shrinkThreshold:  options.ShrinkThreshold,
	}
	heap.free.init(heap)
	heap.used.init(heap)
	heap.chunks.init(heap)

	return heap, nil
}
