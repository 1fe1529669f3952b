// Package loop provides the single game thread that session state lives on.
// Backends finish their work wherever they like and Post the completion back
// onto the loop, so everything that touches the session manager runs on one
// goroutine and needs no locking.
package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Run once the loop has already been stopped.
var ErrStopped = errors.New("loop: stopped")

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	running bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn to run on the loop goroutine. It never blocks, including when
// called from a task already running on the loop. It returns false if the loop
// has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted tasks in order until ctx is done. Tasks still queued when
// the context ends are dropped and further posts are refused.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	if l.running {
		l.mu.Unlock()
		return errors.New("loop: already running")
	}
	l.running = true
	l.mu.Unlock()

	defer l.stop()

	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending runs the tasks queued so far, including any they post in turn, and
// returns how many ran. It is meant for driving the loop by hand.
func (l *Loop) RunPending() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return ran
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		ran++
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.running = false
	l.queue = nil
	l.mu.Unlock()
}
