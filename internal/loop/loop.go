// Package loop provides the single-threaded cooperative event loop the
// quickpanel engine runs on. Every registry update, timer callback, gesture
// and animation callback is executed serially on one loop.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending callback that can be retired before it fires.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// Loop is what engine components need from the event loop.
type Loop interface {
	// Post schedules fn to run on the loop after the current callback.
	Post(fn func())
	// AfterFunc schedules fn to run on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Now returns the loop's notion of the current time.
	Now() time.Time
}

// EventLoop is a Loop backed by a goroutine draining an unbounded queue.
type EventLoop struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}

	running atomic.Bool
}

// New creates an EventLoop. Run must be called to start processing.
func New(logger *slog.Logger) *EventLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLoop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Post queues fn. It is safe to call from any goroutine, including the loop itself.
func (l *EventLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc schedules fn on the loop after d.
func (l *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &eventTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have been called between the wall-clock timer
			// firing and this callback reaching the front of the queue.
			if !t.done.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	})
	return t
}

// Now returns the wall-clock time.
func (l *EventLoop) Now() time.Time {
	return time.Now()
}

// Run processes queued callbacks until ctx is cancelled.
func (l *EventLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("event loop already running")
	}
	defer l.running.Store(false)

	l.logger.Debug("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped")
			return ctx.Err()
		case <-l.wake:
			l.drain()
		}
	}
}

// Invoke runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine.
func (l *EventLoop) Invoke(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs everything queued so far, including callbacks posted while draining.
func (l *EventLoop) drain() {
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			l.call(fn)
		}
	}
}

func (l *EventLoop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop callback panicked", "panic", r)
		}
	}()
	fn()
}

type eventTimer struct {
	timer *time.Timer
	done  atomic.Bool
}

func (t *eventTimer) Stop() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	t.timer.Stop()
	return true
}
