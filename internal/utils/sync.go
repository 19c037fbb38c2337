package utils

import (
	"sync"
)

// OptionalLocker wraps a sync.Locker that is only taken when UseLock is set
type OptionalLocker struct {
	Locker  sync.Locker
	UseLock bool
}

func (l *OptionalLocker) Lock() {
	if l.UseLock {
		l.Locker.Lock()
	}
}

func (l *OptionalLocker) Unlock() {
	if l.UseLock {
		l.Locker.Unlock()
	}
}
