// Package global holds the process-wide kernel and user heaps for code that needs a global
// allocation entry point. Everything else should own a heap.Heap and pass it around.
package global

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/exclusion"
	"github.com/vkngwrapper/tagheap/heap"
	"github.com/vkngwrapper/tagheap/memutils"
)

// ErrNotInstalled is returned when allocating from a global heap that has not been installed
var ErrNotInstalled = errors.New("no heap has been installed")

var (
	kernel atomic.Pointer[heap.Synchronized]
	user   atomic.Pointer[heap.Synchronized]
)

// InstallKernel makes h the kernel heap, guarded by an exclusion.InterruptGuard. It returns the
// previously installed kernel heap, if any.
func InstallKernel(h *heap.Heap) *heap.Synchronized {
	return kernel.Swap(heap.NewSynchronized(h, &exclusion.InterruptGuard{}))
}

// InstallUser makes h the user heap, guarded by an exclusion.YieldingSpinlock. It returns the
// previously installed user heap, if any.
func InstallUser(h *heap.Heap) *heap.Synchronized {
	return user.Swap(heap.NewSynchronized(h, &exclusion.YieldingSpinlock{}))
}

// UninstallKernel removes the kernel heap and returns it
func UninstallKernel() *heap.Synchronized {
	return kernel.Swap(nil)
}

// UninstallUser removes the user heap and returns it
func UninstallUser() *heap.Synchronized {
	return user.Swap(nil)
}

// Kmalloc allocates amount bytes from the kernel heap
func Kmalloc(amount int) (memutils.Addr, error) {
	h := kernel.Load()
	if h == nil {
		return memutils.Null, errors.Wrap(ErrNotInstalled, "kernel heap")
	}

	return h.Allocate(amount)
}

// Kfree releases an allocation made by Kmalloc. Freeing memutils.Null does nothing.
func Kfree(addr memutils.Addr) {
	h := kernel.Load()
	if h == nil {
		if addr == memutils.Null {
			return
		}
		panic(errors.AssertionFailedf("attempted to free %#x with no kernel heap installed", addr))
	}

	h.Release(addr)
}

// Malloc allocates amount bytes from the user heap
func Malloc(amount int) (memutils.Addr, error) {
	h := user.Load()
	if h == nil {
		return memutils.Null, errors.Wrap(ErrNotInstalled, "user heap")
	}

	return h.Allocate(amount)
}

// Free releases an allocation made by Malloc. Freeing memutils.Null does nothing.
func Free(addr memutils.Addr) {
	h := user.Load()
	if h == nil {
		if addr == memutils.Null {
			return
		}
		panic(errors.AssertionFailedf("attempted to free %#x with no user heap installed", addr))
	}

	h.Release(addr)
}
