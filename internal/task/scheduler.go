// Package task runs timed continuations on the shift's frame clock.
//
// Nothing here sleeps. The owner advances the clock once per tick and every
// task whose due time has passed runs on that same goroutine, in due order.
// A Handle cancels a pending task; a Slot holds at most one pending task and
// cancels it before scheduling a replacement.
package task

import (
	"container/heap"
	"time"
)

type task struct {
	due       time.Duration
	seq       uint64
	fn        func()
	index     int
	cancelled bool
	done      bool
}

// Handle refers to one scheduled task.
type Handle struct {
	t *task
	s *Scheduler
}

// Cancel prevents the task from running. It reports whether the task was
// still pending.
func (h *Handle) Cancel() bool {
	if h == nil || h.t == nil || h.t.done || h.t.cancelled {
		return false
	}
	h.t.cancelled = true
	h.s.queue.remove(h.t)
	return true
}

// Pending reports whether the task has neither run nor been cancelled.
func (h *Handle) Pending() bool {
	return h != nil && h.t != nil && !h.t.done && !h.t.cancelled
}

// Due returns the frame-clock time at which the task fires.
func (h *Handle) Due() time.Duration {
	if h == nil || h.t == nil {
		return 0
	}
	return h.t.due
}

// Scheduler is a frame-clock driven queue of delayed continuations.
// It is not safe for concurrent use; the game loop owns it.
type Scheduler struct {
	now   time.Duration
	seq   uint64
	queue *taskHeap
}

// NewScheduler creates a scheduler whose clock starts at zero.
func NewScheduler() *Scheduler {
	h := &taskHeap{}
	heap.Init(h)
	return &Scheduler{queue: h}
}

// Now returns the elapsed frame time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After schedules fn to run once delay of frame time has elapsed.
// A non-positive delay runs on the next Advance.
func (s *Scheduler) After(delay time.Duration, fn func()) *Handle {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t := &task{due: s.now + delay, seq: s.seq, fn: fn}
	heap.Push(s.queue, t)
	return &Handle{t: t, s: s}
}

// Advance moves the clock forward by dt and runs every task that came due,
// including tasks scheduled by those tasks if they are already due.
// It returns the number of tasks run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}
	ran := 0
	for {
		t := s.queue.popDue(s.now)
		if t == nil {
			return ran
		}
		if t.cancelled {
			continue
		}
		t.done = true
		t.fn()
		ran++
	}
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Slot holds a single replaceable task, such as a station's current scan
// resolution or skip countdown.
type Slot struct {
	h *Handle
}

// Replace cancels whatever the slot holds and schedules fn after delay.
func (sl *Slot) Replace(s *Scheduler, delay time.Duration, fn func()) *Handle {
	sl.Cancel()
	sl.h = s.After(delay, fn)
	return sl.h
}

// Cancel cancels the held task, if any, and empties the slot.
func (sl *Slot) Cancel() bool {
	if sl.h == nil {
		return false
	}
	cancelled := sl.h.Cancel()
	sl.h = nil
	return cancelled
}

// Pending reports whether the slot holds a task that has not run yet.
func (sl *Slot) Pending() bool {
	return sl.h.Pending()
}
