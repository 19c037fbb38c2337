package exclusion

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// InterruptGuard models a processor's interrupt enable flag. Lock saves the flag, disables
// interrupts and enters an exclusive section; Unlock restores the saved flag.
type InterruptGuard struct {
	mutex    sync.Mutex
	disabled atomic.Bool
	saved    bool
	sections atomic.Int64
}

var _ sync.Locker = &InterruptGuard{}

// DisableInterrupts clears the interrupt enable flag and returns whether interrupts had already
// been disabled
func (g *InterruptGuard) DisableInterrupts() bool {
	return g.disabled.Swap(true)
}

// RestoreInterrupts sets the interrupt enable flag back to a state returned by DisableInterrupts
func (g *InterruptGuard) RestoreInterrupts(previouslyDisabled bool) {
	g.disabled.Store(previouslyDisabled)
}

// InterruptsEnabled reports whether interrupts are currently enabled
func (g *InterruptGuard) InterruptsEnabled() bool {
	return !g.disabled.Load()
}

// Sections returns the number of exclusive sections that have been entered
func (g *InterruptGuard) Sections() int64 {
	return g.sections.Load()
}

// Lock enters an exclusive section with interrupts disabled
func (g *InterruptGuard) Lock() {
	g.mutex.Lock()
	g.saved = g.DisableInterrupts()
	g.sections.Add(1)
}

// Unlock leaves the exclusive section, restoring the interrupt state saved by Lock
func (g *InterruptGuard) Unlock() {
	if g.InterruptsEnabled() {
		panic(errors.AssertionFailedf("interrupts were enabled inside an exclusive section"))
	}

	g.RestoreInterrupts(g.saved)
	g.mutex.Unlock()
}
