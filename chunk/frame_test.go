package chunk

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
)

func TestFrameProviderDefaults(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{})
	require.NoError(t, err)

	require.Equal(t, 4096, provider.Granularity())
	require.Equal(t, 1024, provider.FreeFrames())

	base, size, err := provider.NewChunk(1)
	require.NoError(t, err)
	require.Equal(t, memutils.Addr(4096), base)
	require.Equal(t, 4096, size)
}

func TestFrameProviderBadOptions(t *testing.T) {
	_, err := NewFrameProvider(FrameOptions{FrameSize: 3000})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, err = NewFrameProvider(FrameOptions{PhysicalBase: 100})
	require.Error(t, err)

	_, err = NewFrameProvider(FrameOptions{FrameCount: -1})
	require.Error(t, err)
}

func TestFrameProviderChunkLifecycle(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{FrameCount: 8})
	require.NoError(t, err)

	first, size, err := provider.NewChunk(5000)
	require.NoError(t, err)
	require.Equal(t, 8192, size)

	second, size, err := provider.NewChunk(4096)
	require.NoError(t, err)
	require.Equal(t, 4096, size)
	require.Equal(t, first+8192, second)

	require.Equal(t, 5, provider.FreeFrames())
	require.Equal(t, 2, provider.LiveChunks())
	require.NoError(t, provider.Validate())

	provider.ReturnChunk(first, 8192)
	require.Equal(t, 7, provider.FreeFrames())
	require.Equal(t, 1, provider.LiveChunks())
	require.NoError(t, provider.Validate())

	reused, _, err := provider.NewChunk(8192)
	require.NoError(t, err)
	require.Equal(t, first, reused)
}

func TestFrameProviderOutOfFrames(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{FrameCount: 4})
	require.NoError(t, err)

	_, _, err = provider.NewChunk(3 * 4096)
	require.NoError(t, err)

	_, _, err = provider.NewChunk(2 * 4096)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
}

func TestFrameProviderHugeChunk(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{FrameCount: 4})
	require.NoError(t, err)

	for _, size := range []int{math.MaxInt, math.MaxInt - 100, math.MaxInt / 2} {
		_, _, err = provider.NewChunk(size)
		require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
	}
	require.Equal(t, 4, provider.FreeFrames())
	require.NoError(t, provider.Validate())
}

func TestFrameProviderNoResize(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{FrameCount: 4})
	require.NoError(t, err)

	base, size, err := provider.NewChunk(4096)
	require.NoError(t, err)

	newSize, extended := provider.ExtendChunk(base, 8192, size)
	require.False(t, extended)
	require.Equal(t, size, newSize)

	newSize, reduced := provider.ReduceChunk(base, 16, size)
	require.False(t, reduced)
	require.Equal(t, size, newSize)
}

func TestFrameProviderReturnUnknown(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{FrameCount: 4})
	require.NoError(t, err)

	base, _, err := provider.NewChunk(4096)
	require.NoError(t, err)

	require.Panics(t, func() { provider.ReturnChunk(base+4096, 4096) })
	require.Panics(t, func() { provider.ReturnChunk(base, 8192) })
}

func TestFrameProviderBytes(t *testing.T) {
	provider, err := NewFrameProvider(FrameOptions{FrameCount: 2})
	require.NoError(t, err)

	b, ok := provider.Bytes(4096, 16)
	require.True(t, ok)
	require.Len(t, b, 16)

	b[0] = 0xAB
	again, ok := provider.Bytes(4096, 1)
	require.True(t, ok)
	require.Equal(t, byte(0xAB), again[0])

	_, ok = provider.Bytes(4095, 1)
	require.False(t, ok)

	_, ok = provider.Bytes(4096+8192-8, 9)
	require.False(t, ok)

	_, ok = provider.Bytes(memutils.Null, 8)
	require.False(t, ok)
}
