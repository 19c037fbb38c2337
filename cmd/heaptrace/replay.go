package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/tagheap/chunk"
	"github.com/vkngwrapper/tagheap/heap"
	"github.com/vkngwrapper/tagheap/memutils"
	"golang.org/x/exp/slog"
)

var (
	replayProvider  string
	replayStrategy  string
	replayChunkSize int
	replayPages     int
	replayRetain    int
	replayDetailed  bool
	replayTeardown  bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVar(&replayProvider, "provider", "frame", "Chunk provider: frame (kernel heap) or vma (user heap)")
	cmd.Flags().StringVar(&replayStrategy, "strategy", "first", "Initial placement strategy: first, next, best or worst")
	cmd.Flags().IntVar(&replayChunkSize, "chunk-size", heap.DefaultChunkSize, "Smallest chunk requested from the provider")
	cmd.Flags().IntVar(&replayPages, "pages", 1024, "Number of frames or pages the provider manages")
	cmd.Flags().IntVar(&replayRetain, "retain", 0, "Free bytes to retain before returning empty chunks (negative returns every empty chunk)")
	cmd.Flags().BoolVar(&replayDetailed, "detailed", false, "Include the block map in the report")
	cmd.Flags().BoolVar(&replayTeardown, "release-all", false, "Release the whole heap after the trace, reporting unreleased allocations")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [trace]",
		Short: "Replay a trace and print heap statistics",
		Long: `The replay command reads an allocation trace from a file, or from stdin when no
file is given, and applies it to a fresh heap. The heap is validated after every operation.

Example:
  heaptrace replay workload.trace
  heaptrace replay workload.trace --provider vma --strategy best --detailed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "could not open trace")
				}
				defer file.Close()
				input = file
			}

			return runReplay(input, cmd.OutOrStdout())
		},
	}
	return cmd
}

type replayer struct {
	heap  *heap.Heap
	names map[string]memutils.Addr
}

func newHeap(logger *slog.Logger) (*heap.Heap, func() error, error) {
	strategy, err := parseStrategy(replayStrategy)
	if err != nil {
		return nil, nil, err
	}

	switch replayProvider {
	case "frame":
		frames, err := chunk.NewFrameProvider(chunk.FrameOptions{FrameCount: replayPages})
		if err != nil {
			return nil, nil, err
		}
		options := heap.KernelOptions(logger)
		options.Strategy = strategy
		options.DefaultChunkSize = replayChunkSize
		options.RetainFreeBytes = replayRetain
		h, err := heap.New(frames, options)
		return h, func() error { return nil }, err
	case "vma":
		vma, err := chunk.NewVMAProvider(chunk.VMAOptions{ReservePages: replayPages})
		if err != nil {
			return nil, nil, err
		}
		options := heap.UserOptions(logger)
		options.Strategy = strategy
		options.DefaultChunkSize = replayChunkSize
		options.RetainFreeBytes = replayRetain
		h, err := heap.New(vma, options)
		if err != nil {
			_ = vma.Close()
			return nil, nil, err
		}
		return h, vma.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown provider %q", replayProvider)
	}
}

func runReplay(input io.Reader, output io.Writer) error {
	ops, err := parseTrace(input)
	if err != nil {
		return err
	}

	h, closeProvider, err := newHeap(newLogger())
	if err != nil {
		return err
	}
	defer closeProvider()

	r := replayer{heap: h, names: map[string]memutils.Addr{}}
	for _, op := range ops {
		if err := r.apply(op); err != nil {
			return errors.Wrapf(err, "line %d", op.line)
		}
		if err := h.Validate(); err != nil {
			return errors.Wrapf(err, "heap is inconsistent after line %d", op.line)
		}
	}

	if !quiet {
		fmt.Fprintln(output, h.BuildStatsString(replayDetailed))
	}

	if replayTeardown {
		h.ReleaseAll()
	}

	return nil
}

func (r *replayer) apply(op traceOp) error {
	switch op.kind {
	case opAllocate:
		if _, exists := r.names[op.name]; exists {
			return errors.Errorf("allocation %q is already live", op.name)
		}
		addr, err := r.heap.Allocate(op.amount)
		if err != nil {
			return err
		}
		r.names[op.name] = addr
	case opRelease:
		addr, exists := r.names[op.name]
		if !exists {
			return errors.Errorf("allocation %q is not live", op.name)
		}
		r.heap.Release(addr)
		delete(r.names, op.name)
	case opStrategy:
		return r.heap.SetStrategy(op.strategy)
	case opCheck:
		var stats memutils.Statistics
		r.heap.AddStatistics(&stats)
		if stats.AllocationCount != len(r.names) {
			return errors.Errorf("heap holds %d allocations, but the trace has %d live", stats.AllocationCount, len(r.names))
		}
	}

	return nil
}
