package exclusion

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// YieldingSpinlock is a spinlock that yields the processor between attempts to acquire it. The
// zero value is unlocked.
type YieldingSpinlock struct {
	state atomic.Uint32
}

var _ sync.Locker = &YieldingSpinlock{}

// TryLock acquires the lock if it is free and reports whether it did
func (l *YieldingSpinlock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Lock spins until the lock is acquired
func (l *YieldingSpinlock) Lock() {
	for !l.TryLock() {
		runtime.Gosched()
	}
}

// Unlock releases the lock. Unlocking a lock that is not held is fatal.
func (l *YieldingSpinlock) Unlock() {
	if !l.state.CompareAndSwap(1, 0) {
		panic(errors.AssertionFailedf("attempted to unlock a spinlock that was not locked"))
	}
}
