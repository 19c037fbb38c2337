// Package exclusion contains the two mutual exclusion disciplines a heap can be serialized with.
// Kernel heaps are guarded by InterruptGuard, which models disabling interrupts for the length of
// a call. User heaps are guarded by YieldingSpinlock, which gives up the processor while it waits
// instead of burning it. Both implement sync.Locker and can be handed to heap.NewSynchronized.
package exclusion
