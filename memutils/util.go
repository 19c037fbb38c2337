package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// Addr is a logical byte address inside the address space exposed by a chunk provider
type Addr uint64

// Null is the address that is never handed out by any provider
const Null Addr = 0

func CheckPow2[T constraints.Integer](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T constraints.Integer](value T, alignment T) T {
	return (value + alignment - 1) &^ (alignment - 1)
}

func AlignDown[T constraints.Integer](value T, alignment T) T {
	return value &^ (alignment - 1)
}
