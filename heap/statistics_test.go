package heap

import (
	"encoding/json"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/tagheap/memutils"
)

func TestStatistics(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{})

	a := mustAllocate(t, h, 32)
	mustAllocate(t, h, 64)
	mustAllocate(t, h, 5000)
	mustRelease(t, h, a)

	var stats memutils.Statistics
	h.AddStatistics(&stats)
	require.Equal(t, 2, stats.ChunkCount)
	require.Equal(t, 4096+8192, stats.ChunkBytes)
	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 64+5008, stats.AllocationBytes)
	require.Equal(t, h.FreeBytes(), stats.FreeBytes)

	// Every byte is payload or tag: two borders per chunk plus one tag pair per block
	require.Equal(t, 2*ChunkOverhead+5*Overhead, stats.TagBytes())

	var detailed memutils.DetailedStatistics
	detailed.Clear()
	h.AddDetailedStatistics(&detailed)
	require.Equal(t, stats, detailed.Statistics)
	require.Equal(t, 3, detailed.FreeBlockCount)
	require.Equal(t, 64, detailed.AllocationSizeMin)
	require.Equal(t, 5008, detailed.AllocationSizeMax)
	require.Equal(t, 32, detailed.FreeBlockSizeMin)
}

func TestPrintDetailedMap(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{})

	mustAllocate(t, h, 32)
	b := mustAllocate(t, h, 64)
	mustAllocate(t, h, 32)
	mustRelease(t, h, b)

	writer := jwriter.NewWriter()
	h.PrintDetailedMap(&writer)
	require.NoError(t, writer.Error())

	var detailedMap struct {
		Strategy   string
		TotalBytes int
		FreeBytes  int
		Chunks     []struct {
			Base       string
			TotalBytes int
			Blocks     []struct {
				Offset int
				Type   string
				Size   int
			}
		}
	}
	require.NoError(t, json.Unmarshal(writer.Bytes(), &detailedMap))

	require.Equal(t, "StrategyFirstFit", detailedMap.Strategy)
	require.Equal(t, 4096, detailedMap.TotalBytes)
	require.Equal(t, h.FreeBytes(), detailedMap.FreeBytes)
	require.Len(t, detailedMap.Chunks, 1)
	require.Equal(t, "0x1000", detailedMap.Chunks[0].Base)

	blocks := detailedMap.Chunks[0].Blocks
	require.Len(t, blocks, 4)
	require.Equal(t, "Used", blocks[0].Type)
	require.Equal(t, FooterSize, blocks[0].Offset)
	require.Equal(t, 32, blocks[0].Size)
	require.Equal(t, "Free", blocks[1].Type)
	require.Equal(t, 64, blocks[1].Size)
	require.Equal(t, "Used", blocks[2].Type)
	require.Equal(t, "Free", blocks[3].Type)
}

func TestBuildStatsString(t *testing.T) {
	h, _ := newFrameHeap(t, CreateOptions{})
	mustAllocate(t, h, 100)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.BuildStatsString(false)), &summary))
	require.Contains(t, summary, "Total")
	require.NotContains(t, summary, "DetailedMap")

	var detailed map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.BuildStatsString(true)), &detailed))
	require.Contains(t, detailed, "DetailedMap")

	total := detailed["Total"].(map[string]any)
	require.Equal(t, float64(1), total["ChunkCount"])
	require.Equal(t, float64(1), total["AllocationCount"])
	require.Equal(t, float64(112), total["AllocationBytes"])
	require.Equal(t, float64(h.FreeBytes()), total["FreeBytes"])
	require.Equal(t, float64(ChunkOverhead+2*Overhead), total["TagBytes"])
}
