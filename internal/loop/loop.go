// Package loop runs the compositor's single control goroutine. Event
// handlers, timeouts and painting all execute on it; other goroutines hand
// work over with Post or Call.
package loop

import (
	"container/heap"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Clock reads the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Handle identifies a timeout. The zero Handle is never issued.
type Handle uint64

type timeout struct {
	handle   Handle
	deadline time.Time
	fn       func()
	index    int
}

type timeoutHeap []*timeout

func (h timeoutHeap) Len() int { return len(h) }
func (h timeoutHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].handle < h[j].handle
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timeoutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timeoutHeap) Push(x any) {
	t := x.(*timeout)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Loop multiplexes posted functions and timeouts on one goroutine.
// AddTimeout, RemoveTimeout and Deadline must only be called from that
// goroutine.
type Loop struct {
	clock  Clock
	logger *slog.Logger

	mu     sync.Mutex
	posted []func()
	wake   chan struct{}

	timeouts timeoutHeap
	byHandle map[Handle]*timeout
	next     Handle
}

// New creates a loop. A nil clock uses the system clock.
func New(clock Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:    clock,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		byHandle: make(map[Handle]*timeout),
	}
}

// Now returns the loop clock's time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// AddTimeout schedules fn to run once after d.
func (l *Loop) AddTimeout(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	l.next++
	t := &timeout{handle: l.next, deadline: l.clock.Now().Add(d), fn: fn}
	heap.Push(&l.timeouts, t)
	l.byHandle[t.handle] = t
	return t.handle
}

// RemoveTimeout cancels a pending timeout. It reports whether the timeout
// was still pending.
func (l *Loop) RemoveTimeout(h Handle) bool {
	t, ok := l.byHandle[h]
	if !ok {
		return false
	}
	heap.Remove(&l.timeouts, t.index)
	delete(l.byHandle, h)
	return true
}

// Deadline returns when a pending timeout fires.
func (l *Loop) Deadline(h Handle) (time.Time, bool) {
	t, ok := l.byHandle[h]
	if !ok {
		return time.Time{}, false
	}
	return t.deadline, true
}

// Pending returns the number of pending timeouts.
func (l *Loop) Pending() int {
	return len(l.timeouts)
}

// Post queues fn to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
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

// RunPending runs every posted function, then every timeout that is due.
// Timeouts added while running, or removed by an earlier timeout, do not
// run in this pass.
func (l *Loop) RunPending() {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, fn := range posted {
		fn()
	}

	now := l.clock.Now()
	var due []Handle
	for _, t := range l.timeouts {
		if !t.deadline.After(now) {
			due = append(due, t.handle)
		}
	}
	slices.SortFunc(due, func(a, b Handle) int {
		return l.byHandle[a].deadline.Compare(l.byHandle[b].deadline)
	})
	for _, h := range due {
		// An earlier timeout in this pass may have removed it.
		t, ok := l.byHandle[h]
		if !ok {
			continue
		}
		heap.Remove(&l.timeouts, t.index)
		delete(l.byHandle, h)
		t.fn()
	}
}

// nextWait returns how long the loop may sleep before the earliest timeout.
func (l *Loop) nextWait() (time.Duration, bool) {
	if len(l.timeouts) == 0 {
		return 0, false
	}
	d := l.timeouts[0].deadline.Sub(l.clock.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// Run drives the loop until ctx is cancelled. It blocks only until the
// earliest timeout deadline or the next posted function.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		l.RunPending()
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		more := len(l.posted) > 0
		l.mu.Unlock()
		if more {
			continue
		}

		var timerC <-chan time.Time
		if d, ok := l.nextWait(); ok {
			if d == 0 {
				continue
			}
			timer.Reset(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-timerC:
		}
		timer.Stop()
	}
}
