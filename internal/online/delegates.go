package online

import (
	"sync"
	"sync/atomic"
)

// DelegateHandle correlates a registered completion delegate with the request
// that registered it. The zero value is never issued.
type DelegateHandle uint64

func (h DelegateHandle) IsValid() bool {
	return h != 0
}

var lastHandle uint64

func nextHandle() DelegateHandle {
	return DelegateHandle(atomic.AddUint64(&lastHandle, 1))
}

type delegateEntry[F any] struct {
	handle DelegateHandle
	fn     F
}

// DelegateList holds the completion delegates registered for one operation kind.
// Handles are unique across all lists in the process.
type DelegateList[F any] struct {
	mu      sync.Mutex
	entries []delegateEntry[F]
}

func (l *DelegateList[F]) Add(fn F) DelegateHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := nextHandle()
	l.entries = append(l.entries, delegateEntry[F]{handle: h, fn: fn})
	return h
}

// Remove drops the delegate registered under h and reports whether it was present.
func (l *DelegateList[F]) Remove(h DelegateHandle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.handle == h {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l *DelegateList[F]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns the registered delegates in registration order. Delegates are
// invoked from the copy so that they may clear themselves while running.
func (l *DelegateList[F]) Snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()

	fns := make([]F, 0, len(l.entries))
	for _, e := range l.entries {
		fns = append(fns, e.fn)
	}
	return fns
}
