// Package countdown provides a restartable, whole-second countdown timer.
//
// A Timer has four hooks: start, tick, cancel and complete.  While it runs it
// ticks once a second and completes once its full duration has elapsed; the
// last second ends in completion rather than a tick.  The same Timer can drive
// both a visible "time left" display and the action that happens when time
// runs out.
//
// Effects are scheduled on a clockwork.Clock, so tests can drive a Timer with
// a fake clock.  Like time.AfterFunc, hooks fired by the clock run on their
// own goroutine.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// A Timer counts down from a fixed number of seconds.  It is safe for
// concurrent use; hooks are never called with the Timer's lock held, so they
// may call back into the Timer.
type Timer struct {
	clock clockwork.Clock
	total int

	mu        sync.Mutex
	remaining int
	// run identifies the current arming; effects from an earlier run are
	// ignored if they fire after being cleared.
	run uint64
	// fired counts the clock's ticks in this run.
	fired int
	tick  clockwork.Timer
	done  clockwork.Timer

	onStart    func(remaining int)
	onTick     func(remaining int)
	onCancel   func()
	onComplete func()
}

// An Option configures a Timer.
type Option func(*Timer)

// WithClock schedules the Timer's effects on c instead of the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// New returns a stopped Timer for the given number of seconds.  It panics if
// seconds is not positive.
func New(seconds int, opts ...Option) *Timer {
	if seconds <= 0 {
		panic(fmt.Sprintf("countdown: non-positive duration %d", seconds))
	}
	t := &Timer{clock: clockwork.NewRealClock(), total: seconds, remaining: seconds}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnStart sets the function called with the full duration when the Timer starts.
func (t *Timer) OnStart(fn func(remaining int)) *Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
	return t
}

// OnTick sets the function called with the remaining seconds after every tick.
func (t *Timer) OnTick(fn func(remaining int)) *Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
	return t
}

// OnCancel sets the function called whenever Cancel is.
func (t *Timer) OnCancel(fn func()) *Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = fn
	return t
}

// OnComplete sets the function called when the Timer runs out.
func (t *Timer) OnComplete(fn func()) *Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onComplete = fn
	return t
}

// Start resets the Timer to its full duration and begins counting down.
// Starting a running Timer does nothing.
func (t *Timer) Start() *Timer {
	t.mu.Lock()
	if t.done != nil {
		t.mu.Unlock()
		return t
	}
	t.run++
	run := t.run
	t.remaining = t.total
	t.fired = 0
	if t.total > 1 {
		t.tick = t.clock.AfterFunc(time.Second, func() { t.fireTick(run) })
	}
	t.done = t.clock.AfterFunc(time.Duration(t.total)*time.Second, func() { t.fireComplete(run) })
	fn := t.onStart
	t.mu.Unlock()

	if fn != nil {
		fn(t.total)
	}
	return t
}

// Tick takes one second off the remaining time, stopping at zero.
func (t *Timer) Tick() *Timer {
	t.mu.Lock()
	if t.remaining > 0 {
		t.remaining--
	}
	remaining, fn := t.remaining, t.onTick
	t.mu.Unlock()

	if fn != nil {
		fn(remaining)
	}
	return t
}

// Cancel stops the Timer if it is running.  The cancel hook is called either
// way.
func (t *Timer) Cancel() *Timer {
	t.mu.Lock()
	t.clear()
	fn := t.onCancel
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	return t
}

// Running reports whether the Timer is counting down.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil
}

// Remaining returns the seconds left on the countdown.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Total returns the Timer's full duration in seconds.
func (t *Timer) Total() int { return t.total }

// clear releases both effects.  t.mu must be held.
func (t *Timer) clear() {
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
	if t.done != nil {
		t.done.Stop()
		t.done = nil
	}
	t.run++
}

func (t *Timer) fireTick(run uint64) {
	t.mu.Lock()
	if run != t.run || t.tick == nil {
		t.mu.Unlock()
		return
	}
	t.fired++
	t.tick = nil
	// no tick shares the completion's deadline
	if t.fired < t.total-1 {
		t.tick = t.clock.AfterFunc(time.Second, func() { t.fireTick(run) })
	}
	t.mu.Unlock()
	t.Tick()
}

func (t *Timer) fireComplete(run uint64) {
	t.mu.Lock()
	if run != t.run || t.done == nil {
		t.mu.Unlock()
		return
	}
	t.clear()
	t.remaining = 0
	fn := t.onComplete
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Format renders seconds as m:ss, eg. 300 -> "5:00".
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
