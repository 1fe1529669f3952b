package sessions

import "sync"

// ListenerID identifies a registered listener so that it can be removed.
type ListenerID uint64

type listener[T any] struct {
	id ListenerID
	fn func(T)
}

// Event is a broadcast channel with any number of listeners. Broadcast invokes
// every listener synchronously, in the order they were added.
type Event[T any] struct {
	mu        sync.Mutex
	lastID    ListenerID
	listeners []listener[T]
}

func (e *Event[T]) Add(fn func(T)) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastID++
	e.listeners = append(e.listeners, listener[T]{id: e.lastID, fn: fn})
	return e.lastID
}

func (e *Event[T]) Remove(id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Broadcast delivers v to the listeners registered at the time of the call.
// Listeners may add or remove listeners while running.
func (e *Event[T]) Broadcast(v T) {
	e.mu.Lock()
	fns := make([]func(T), len(e.listeners))
	for i, l := range e.listeners {
		fns[i] = l.fn
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
