package loop

import (
	"sort"
	"time"
)

// Manual is a Loop driven by a virtual clock. Nothing runs until the owner
// calls RunPending or Advance, which makes timer ordering deterministic.
// It is used by tests and by scenario replay.
type Manual struct {
	now     time.Time
	seq     uint64
	timers  []*manualTimer
	pending []func()
}

// NewManual creates a Manual loop whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Post queues fn until the next RunPending or Advance.
func (m *Manual) Post(fn func()) {
	if fn == nil {
		return
	}
	m.pending = append(m.pending, fn)
}

// AfterFunc schedules fn at Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{when: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].when.Equal(m.timers[j].when) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].when.Before(m.timers[j].when)
	})
	return t
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// RunPending runs posted callbacks, including ones they post, in FIFO order.
func (m *Manual) RunPending() {
	for len(m.pending) > 0 {
		fn := m.pending[0]
		m.pending = m.pending[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.RunPending()
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		if t.when.After(m.now) {
			m.now = t.when
		}
		t.fired = true
		t.fn()
		m.RunPending()
	}
	m.now = target
}

// ActiveTimers returns the number of timers that have neither fired nor been stopped.
func (m *Manual) ActiveTimers() int {
	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	live := m.timers[:0]
	var due *manualTimer
	for _, t := range m.timers {
		if t.fired || t.stopped {
			continue
		}
		live = append(live, t)
		if due == nil && !t.when.After(target) {
			due = t
		}
	}
	m.timers = live
	return due
}

type manualTimer struct {
	when    time.Time
	seq     uint64
	fn      func()
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
