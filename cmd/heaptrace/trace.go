package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/heap"
)

type opKind int

const (
	opAllocate opKind = iota
	opRelease
	opStrategy
	opCheck
)

// traceOp is a single line of a trace:
//
//	alloc <name> <bytes>
//	free <name>
//	strategy first|next|best|worst
//	check
//
// Blank lines and lines starting with # are ignored.
type traceOp struct {
	kind     opKind
	line     int
	name     string
	amount   int
	strategy heap.Strategy
}

var strategyNames = map[string]heap.Strategy{
	"default": heap.StrategyDefault,
	"first":   heap.StrategyFirstFit,
	"next":    heap.StrategyNextFit,
	"best":    heap.StrategyBestFit,
	"worst":   heap.StrategyWorstFit,
}

func parseStrategy(name string) (heap.Strategy, error) {
	strategy, ok := strategyNames[strings.ToLower(name)]
	if !ok {
		return heap.StrategyDefault, errors.Errorf("unknown strategy %q", name)
	}
	return strategy, nil
}

func parseTrace(r io.Reader) ([]traceOp, error) {
	var ops []traceOp

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		op, err := parseOp(strings.Fields(line))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNumber)
		}
		op.line = lineNumber
		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read trace")
	}

	return ops, nil
}

func parseOp(fields []string) (traceOp, error) {
	switch fields[0] {
	case "alloc", "malloc":
		if len(fields) != 3 {
			return traceOp{}, errors.New("alloc takes a name and a size")
		}
		amount, err := strconv.Atoi(fields[2])
		if err != nil || amount < 0 {
			return traceOp{}, errors.Errorf("invalid size %q", fields[2])
		}
		return traceOp{kind: opAllocate, name: fields[1], amount: amount}, nil
	case "free":
		if len(fields) != 2 {
			return traceOp{}, errors.New("free takes a name")
		}
		return traceOp{kind: opRelease, name: fields[1]}, nil
	case "strategy":
		if len(fields) != 2 {
			return traceOp{}, errors.New("strategy takes a strategy name")
		}
		strategy, err := parseStrategy(fields[1])
		if err != nil {
			return traceOp{}, err
		}
		return traceOp{kind: opStrategy, strategy: strategy}, nil
	case "check":
		if len(fields) != 1 {
			return traceOp{}, errors.New("check takes no arguments")
		}
		return traceOp{kind: opCheck}, nil
	default:
		return traceOp{}, errors.Errorf("unknown operation %q", fields[0])
	}
}
