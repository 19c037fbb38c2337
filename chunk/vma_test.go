package chunk

import (
	"bytes"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
	"golang.org/x/exp/slog"
)

func newTestVMA(t *testing.T, pages int) *VMAProvider {
	provider, err := NewVMAProvider(VMAOptions{ReservePages: pages})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, provider.Close())
	})
	return provider
}

func TestVMAProviderExtend(t *testing.T) {
	provider := newTestVMA(t, 8)

	base, size, err := provider.NewChunk(4096)
	require.NoError(t, err)
	require.Equal(t, memutils.Addr(0x10000000), base)

	newSize, extended := provider.ExtendChunk(base, 3*4096-100, size)
	require.True(t, extended)
	require.Equal(t, 3*4096, newSize)
	require.Equal(t, 5, provider.FreePages())
	require.NoError(t, provider.Validate())

	// The extended pages are addressable
	b, ok := provider.Bytes(base+memutils.Addr(newSize)-8, 8)
	require.True(t, ok)
	b[7] = 1
}

func TestVMAProviderHugeSizes(t *testing.T) {
	provider := newTestVMA(t, 8)

	_, _, err := provider.NewChunk(math.MaxInt)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))

	base, size, err := provider.NewChunk(4096)
	require.NoError(t, err)

	for _, want := range []int{math.MaxInt, math.MaxInt - 100} {
		newSize, extended := provider.ExtendChunk(base, want, size)
		require.False(t, extended)
		require.Equal(t, size, newSize)
	}
	require.Equal(t, 7, provider.FreePages())
	require.NoError(t, provider.Validate())
}

func TestVMAProviderExtendBlocked(t *testing.T) {
	provider := newTestVMA(t, 8)

	first, size, err := provider.NewChunk(4096)
	require.NoError(t, err)
	_, _, err = provider.NewChunk(4096)
	require.NoError(t, err)

	newSize, extended := provider.ExtendChunk(first, 8192, size)
	require.False(t, extended)
	require.Equal(t, size, newSize)
	require.NoError(t, provider.Validate())
}

func TestVMAProviderExtendPastRegion(t *testing.T) {
	provider := newTestVMA(t, 2)

	base, size, err := provider.NewChunk(8192)
	require.NoError(t, err)

	_, extended := provider.ExtendChunk(base, 12288, size)
	require.False(t, extended)
}

func TestVMAProviderReduce(t *testing.T) {
	provider := newTestVMA(t, 8)

	base, size, err := provider.NewChunk(4 * 4096)
	require.NoError(t, err)

	newSize, reduced := provider.ReduceChunk(base, 4097, size)
	require.True(t, reduced)
	require.Equal(t, 8192, newSize)
	require.Equal(t, 6, provider.FreePages())
	require.NoError(t, provider.Validate())

	_, reduced = provider.ReduceChunk(base, 8192, newSize)
	require.False(t, reduced)

	_, reduced = provider.ReduceChunk(base, 0, newSize)
	require.False(t, reduced)

	provider.ReturnChunk(base, newSize)
	require.Equal(t, 8, provider.FreePages())
	require.Equal(t, 0, provider.LiveChunks())
}

func TestVMAProviderDiscardFailureLogged(t *testing.T) {
	var logs bytes.Buffer
	provider, err := NewVMAProvider(VMAOptions{
		ReservePages: 8,
		Logger:       slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, provider.Close())
	})

	var discarded []int
	provider.discardPages = func(pages []byte) error {
		discarded = append(discarded, len(pages))
		return errors.New("madvise refused")
	}

	base, size, err := provider.NewChunk(4 * 4096)
	require.NoError(t, err)

	// The shrink still succeeds and the pages are free for reuse
	newSize, reduced := provider.ReduceChunk(base, 4096, size)
	require.True(t, reduced)
	require.Equal(t, 4096, newSize)
	require.Equal(t, 7, provider.FreePages())
	require.NoError(t, provider.Validate())

	provider.ReturnChunk(base, newSize)
	require.Equal(t, 8, provider.FreePages())

	require.Equal(t, []int{3 * 4096, 4096}, discarded)
	require.Contains(t, logs.String(), "VMAProvider::discard FAILED")
	require.Contains(t, logs.String(), "madvise refused")
}

func TestVMAProviderReduceReusesTail(t *testing.T) {
	provider := newTestVMA(t, 4)

	base, size, err := provider.NewChunk(2 * 4096)
	require.NoError(t, err)

	b, ok := provider.Bytes(base+4096, 8)
	require.True(t, ok)
	b[0] = 0xFF

	_, reduced := provider.ReduceChunk(base, 4096, size)
	require.True(t, reduced)

	// The tail is handed out again to the next chunk
	second, _, err := provider.NewChunk(4096)
	require.NoError(t, err)
	require.Equal(t, base+4096, second)
}

func TestVMAProviderOutOfPages(t *testing.T) {
	provider := newTestVMA(t, 2)

	_, _, err := provider.NewChunk(3 * 4096)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
}

func TestVMAProviderMisuse(t *testing.T) {
	provider := newTestVMA(t, 4)

	base, size, err := provider.NewChunk(4096)
	require.NoError(t, err)

	require.Panics(t, func() { provider.ExtendChunk(base, 8192, size+4096) })
	require.Panics(t, func() { provider.ReturnChunk(base+4096, 4096) })
}
