package heap

import (
	"sync"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/tagheap/internal/utils"
	"github.com/vkngwrapper/tagheap/memutils"
)

// Synchronized serializes every call to a Heap through a lock. If the heap was created with
// CreateExternallySynchronized, the lock is never taken.
type Synchronized struct {
	heap *Heap
	lock utils.OptionalLocker
}

// NewSynchronized wraps heap so that every call holds locker. A nil locker selects a sync.Mutex.
func NewSynchronized(heap *Heap, locker sync.Locker) *Synchronized {
	if locker == nil {
		locker = &sync.Mutex{}
	}

	return &Synchronized{
		heap: heap,
		lock: utils.OptionalLocker{
			Locker:  locker,
			UseLock: heap.flags&CreateExternallySynchronized == 0,
		},
	}
}

// Allocate calls Heap.Allocate while holding the lock
func (s *Synchronized) Allocate(amount int) (memutils.Addr, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.Allocate(amount)
}

// Release calls Heap.Release while holding the lock
func (s *Synchronized) Release(addr memutils.Addr) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.heap.Release(addr)
}

// ReleaseAll returns every chunk of the wrapped heap to its provider
func (s *Synchronized) ReleaseAll() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.heap.ReleaseAll()
}

// FreeBytes returns the number of payload bytes available in free blocks
func (s *Synchronized) FreeBytes() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.FreeBytes()
}

// TotalBytes returns the number of bytes in every chunk the heap holds
func (s *Synchronized) TotalBytes() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.TotalBytes()
}

// Strategy returns the placement strategy currently in use
func (s *Synchronized) Strategy() Strategy {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.Strategy()
}

// SetStrategy changes the placement strategy, re-sorting the free list
func (s *Synchronized) SetStrategy(strategy Strategy) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.SetStrategy(strategy)
}

// Payload returns the memory of a live allocation. The lock is not held while the caller uses
// the returned slice.
func (s *Synchronized) Payload(addr memutils.Addr) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.Payload(addr)
}

// Validate audits the wrapped heap without allowing concurrent changes
func (s *Synchronized) Validate() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.Validate()
}

// AddStatistics sums the wrapped heap's statistics into stats
func (s *Synchronized) AddStatistics(stats *memutils.Statistics) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.heap.AddStatistics(stats)
}

// AddDetailedStatistics sums the wrapped heap's detailed statistics into stats
func (s *Synchronized) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.heap.AddDetailedStatistics(stats)
}

// PrintDetailedMap writes a json description of every chunk and block
func (s *Synchronized) PrintDetailedMap(writer *jwriter.Writer) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.heap.PrintDetailedMap(writer)
}

// BuildStatsString returns a json document describing the wrapped heap
func (s *Synchronized) BuildStatsString(detailed bool) string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.heap.BuildStatsString(detailed)
}
