package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")
	// ErrOutOfMemory is returned when a chunk provider could not supply the memory needed to satisfy an allocation
	ErrOutOfMemory error = errors.New("out of memory")
)
