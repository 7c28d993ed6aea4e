// Package headsup arbitrates the single heads-up banner slot.
//
// One record is shown at a time. Records offered while the slot is busy wait
// in one of two queues: auto-remove records ordered by expiry, and sticky
// records ordered by arrival. Queued auto-remove records that expire before
// they are promoted are dropped without ever being shown.
package headsup

import (
	"log/slog"
	"sort"
	"time"

	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/model"
)

// State is the banner slot lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateShowing
	StateHiding    // Hiding with nothing queued
	StateReplacing // Hiding with a successor queued
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateShowing:
		return "showing"
	case StateHiding:
		return "hiding"
	case StateReplacing:
		return "replacing"
	default:
		return "unknown"
	}
}

// Reason describes why a banner left the slot.
type Reason int

const (
	ReasonUser Reason = iota
	ReasonTimeout
	ReasonGesture
	ReasonRemoved
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonUser:
		return "user"
	case ReasonTimeout:
		return "timeout"
	case ReasonGesture:
		return "gesture"
	case ReasonRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Direction is the direction of a flick on the banner.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

// ParseDirection parses a direction name.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return DirectionUp, true
	case "down":
		return DirectionDown, true
	case "left":
		return DirectionLeft, true
	case "right":
		return DirectionRight, true
	}
	return DirectionUp, false
}

// Gates are the external conditions that suppress banners.
type Gates struct {
	DoNotDisturb   bool
	LockScreen     bool
	QuickPanelOpen bool
}

// Presenter shows and hides the banner view. The queue is its only caller.
type Presenter interface {
	// Show builds the banner for rec and starts showing it.
	Show(rec *model.Record) error
	// Update replaces the payload of the visible banner.
	Update(rec *model.Record) error
	// Hide starts hiding the banner and calls done once it is gone.
	Hide(done func())
}

// Options configures banner timing.
type Options struct {
	Enabled       bool
	CloseDuration time.Duration // Display time for records without their own timeout
	MinVisible    time.Duration // Floor for the close timer
}

// DefaultOptions returns the default banner timing.
func DefaultOptions() Options {
	return Options{
		Enabled:       true,
		CloseDuration: 5 * time.Second,
		MinVisible:    time.Second,
	}
}

// EventKind identifies a queue event.
type EventKind int

const (
	EventShown EventKind = iota
	EventHidden
	EventQueued
	EventDropped
	EventExpired
	EventFailed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventShown:
		return "shown"
	case EventHidden:
		return "hidden"
	case EventQueued:
		return "queued"
	case EventDropped:
		return "dropped"
	case EventExpired:
		return "expired"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports a queue transition to observers.
type Event struct {
	Kind   EventKind
	ID     int
	Reason Reason // Set for EventHidden
}

// Snapshot is a read-only view of the queue.
type Snapshot struct {
	State      State
	Current    *model.Record
	AutoRemove []int
	Sticky     []int
}

type entry struct {
	rec    *model.Record
	expiry time.Time  // Zero for sticky entries
	timer  loop.Timer // Expiry timer while queued, close timer while current
}

func (e *entry) sticky() bool {
	return !e.rec.AutoRemove
}

func (e *entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Queue owns the banner slot. All methods must be called on the engine loop.
type Queue struct {
	loop      loop.Loop
	presenter Presenter
	logger    *slog.Logger
	opts      Options
	gates     Gates

	state   State
	current *entry
	leaving *entry // Banner being hidden; guides successor choice

	autoRemove []*entry
	sticky     []*entry

	onEvent func(Event)
}

// New creates an empty Queue.
func New(l loop.Loop, presenter Presenter, opts Options, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		loop:      l,
		presenter: presenter,
		logger:    logger,
		opts:      opts,
	}
}

// SetEventHook sets a callback invoked for every queue event.
func (q *Queue) SetEventHook(fn func(Event)) {
	q.onEvent = fn
}

// SetOptions changes timing for banners shown afterwards.
func (q *Queue) SetOptions(opts Options) {
	q.opts = opts
}

// SetGates replaces the suppression gates. Banners already shown or queued
// are not affected.
func (q *Queue) SetGates(g Gates) {
	q.gates = g
}

// Gates returns the current suppression gates.
func (q *Queue) Gates() Gates {
	return q.gates
}

// State returns the slot state.
func (q *Queue) State() State {
	return q.state
}

// Current returns the id of the shown banner.
func (q *Queue) Current() (int, bool) {
	if q.current == nil {
		return 0, false
	}
	return q.current.rec.ID, true
}

// Offer submits a record for display. It returns false if the record was
// dropped.
func (q *Queue) Offer(rec *model.Record) bool {
	if rec == nil {
		return false
	}
	if reason, ok := q.eligible(rec); !ok {
		q.logger.Debug("heads-up dropped", "id", rec.ID, "reason", reason)
		q.emit(Event{Kind: EventDropped, ID: rec.ID})
		return false
	}
	if q.has(rec.ID) {
		return q.Update(rec)
	}

	e := &entry{rec: rec.Clone()}
	if !e.sticky() {
		e.expiry = rec.ExpiresAt(q.opts.CloseDuration)
		if !e.expiry.After(q.loop.Now()) {
			q.logger.Debug("heads-up dropped: expired on arrival", "id", rec.ID)
			q.emit(Event{Kind: EventDropped, ID: rec.ID})
			return false
		}
	}

	if q.state == StateEmpty {
		if q.show(e) {
			return true
		}
		q.promote()
		return false
	}

	q.enqueue(e)
	return true
}

// Dismiss removes the shown banner. It is a no-op unless a banner is showing.
func (q *Queue) Dismiss(reason Reason) {
	if q.state != StateShowing || q.current == nil {
		return
	}

	e := q.current
	e.stop()
	q.current = nil
	q.leaving = e

	if len(q.autoRemove) > 0 || len(q.sticky) > 0 {
		q.state = StateReplacing
	} else {
		q.state = StateHiding
	}
	q.logger.Debug("heads-up dismissed", "id", e.rec.ID, "reason", reason, "state", q.state)

	q.presenter.Hide(func() {
		q.hidden(e, reason)
	})
}

// Gesture handles a flick on the banner. Only an upward flick dismisses.
func (q *Queue) Gesture(dir Direction) {
	if dir != DirectionUp {
		return
	}
	q.Dismiss(ReasonGesture)
}

// Update replaces the record of a shown or queued banner. It returns false if
// id is unknown to the queue.
func (q *Queue) Update(rec *model.Record) bool {
	if rec == nil {
		return false
	}

	if q.current != nil && q.current.rec.ID == rec.ID && q.state == StateShowing {
		q.current.rec = rec.Clone()
		if err := q.presenter.Update(q.current.rec); err != nil {
			q.logger.Warn("heads-up update failed", "id", rec.ID, "error", err)
		}
		q.armClose(q.current)
		return true
	}

	e := q.unqueue(rec.ID)
	if e == nil {
		return false
	}
	e.rec = rec.Clone()
	if e.sticky() {
		e.expiry = time.Time{}
	} else {
		e.expiry = rec.ExpiresAt(q.opts.CloseDuration)
		if !e.expiry.After(q.loop.Now()) {
			q.emit(Event{Kind: EventExpired, ID: rec.ID})
			return true
		}
	}
	q.enqueue(e)
	return true
}

// Remove drops id from the queue, hiding it if it is the shown banner.
func (q *Queue) Remove(id int) {
	if q.current != nil && q.current.rec.ID == id {
		q.Dismiss(ReasonRemoved)
		return
	}
	q.unqueue(id)
}

// Clear empties both queues and hides the shown banner.
func (q *Queue) Clear() {
	for _, e := range q.autoRemove {
		e.stop()
	}
	for _, e := range q.sticky {
		e.stop()
	}
	q.autoRemove = nil
	q.sticky = nil
	q.Dismiss(ReasonRemoved)
}

// Snapshot returns a copy of the queue state.
func (q *Queue) Snapshot() Snapshot {
	s := Snapshot{
		State:      q.state,
		AutoRemove: make([]int, 0, len(q.autoRemove)),
		Sticky:     make([]int, 0, len(q.sticky)),
	}
	if q.current != nil {
		s.Current = q.current.rec.Clone()
	}
	for _, e := range q.autoRemove {
		s.AutoRemove = append(s.AutoRemove, e.rec.ID)
	}
	for _, e := range q.sticky {
		s.Sticky = append(s.Sticky, e.rec.ID)
	}
	return s
}

func (q *Queue) eligible(rec *model.Record) (string, bool) {
	switch {
	case !q.opts.Enabled:
		return "disabled", false
	case !rec.WantsHeadsUp():
		return "not requested", false
	case q.gates.LockScreen:
		return "lock screen", false
	case q.gates.DoNotDisturb:
		return "do not disturb", false
	case q.gates.QuickPanelOpen && rec.Flags.Has(model.DisplayTrayOnly):
		return "panel open", false
	}
	return "", true
}

func (q *Queue) has(id int) bool {
	if q.current != nil && q.current.rec.ID == id {
		return true
	}
	return indexOf(q.autoRemove, id) >= 0 || indexOf(q.sticky, id) >= 0
}

// show makes e the current banner. On construction failure the slot is left
// Empty and false is returned.
func (q *Queue) show(e *entry) bool {
	q.state = StateShowing
	q.current = e
	if err := q.presenter.Show(e.rec); err != nil {
		q.logger.Warn("heads-up banner failed", "id", e.rec.ID, "error", err)
		q.current = nil
		q.state = StateEmpty
		q.emit(Event{Kind: EventFailed, ID: e.rec.ID})
		return false
	}
	q.armClose(e)
	q.logger.Debug("heads-up shown", "id", e.rec.ID, "sticky", e.sticky())
	q.emit(Event{Kind: EventShown, ID: e.rec.ID})
	return true
}

// armClose (re)arms the close timer of the current banner.
func (q *Queue) armClose(e *entry) {
	e.stop()

	now := q.loop.Now()
	var remaining time.Duration
	if e.sticky() {
		remaining = q.opts.CloseDuration - now.Sub(e.rec.Timestamp)
	} else {
		remaining = e.rec.ExpiresAt(q.opts.CloseDuration).Sub(now)
	}
	remaining = max(remaining, q.opts.MinVisible)

	e.timer = q.loop.AfterFunc(remaining, func() {
		e.timer = nil
		if q.current == e {
			q.Dismiss(ReasonTimeout)
		}
	})
}

func (q *Queue) hidden(e *entry, reason Reason) {
	q.emit(Event{Kind: EventHidden, ID: e.rec.ID, Reason: reason})
	q.state = StateEmpty
	q.promote()
	q.leaving = nil
}

// promote fills an Empty slot from the queues.
func (q *Queue) promote() {
	for q.state == StateEmpty {
		next := q.next()
		if next == nil {
			return
		}
		next.stop()
		q.show(next)
	}
}

// next takes the successor out of its queue. Sticky records win, except
// that after a sticky banner an older sticky head yields to a pending
// auto-remove record so auto-remove records are never starved.
func (q *Queue) next() *entry {
	if len(q.autoRemove) == 0 && len(q.sticky) == 0 {
		return nil
	}

	takeSticky := len(q.sticky) > 0
	if takeSticky && q.leaving != nil && q.leaving.sticky() && len(q.autoRemove) > 0 {
		takeSticky = q.sticky[0].rec.Timestamp.After(q.leaving.rec.Timestamp)
	}

	var e *entry
	if takeSticky {
		e, q.sticky = q.sticky[0], q.sticky[1:]
	} else {
		e, q.autoRemove = q.autoRemove[0], q.autoRemove[1:]
	}
	return e
}

func (q *Queue) enqueue(e *entry) {
	if e.sticky() {
		q.sticky = append(q.sticky, e)
		sort.SliceStable(q.sticky, func(i, j int) bool {
			return q.sticky[i].rec.Timestamp.Before(q.sticky[j].rec.Timestamp)
		})
	} else {
		e.timer = q.loop.AfterFunc(e.expiry.Sub(q.loop.Now()), func() {
			e.timer = nil
			q.expire(e)
		})
		q.autoRemove = append(q.autoRemove, e)
		sort.SliceStable(q.autoRemove, func(i, j int) bool {
			return q.autoRemove[i].expiry.Before(q.autoRemove[j].expiry)
		})
	}
	if q.state == StateHiding {
		q.state = StateReplacing
	}
	q.logger.Debug("heads-up queued", "id", e.rec.ID, "sticky", e.sticky())
	q.emit(Event{Kind: EventQueued, ID: e.rec.ID})
}

// expire drops a queued auto-remove entry that was never promoted.
func (q *Queue) expire(e *entry) {
	i := indexOf(q.autoRemove, e.rec.ID)
	if i < 0 || q.autoRemove[i] != e {
		return
	}
	q.autoRemove = append(q.autoRemove[:i], q.autoRemove[i+1:]...)
	q.logger.Debug("heads-up expired in queue", "id", e.rec.ID)
	q.emit(Event{Kind: EventExpired, ID: e.rec.ID})
}

// unqueue removes id from whichever queue holds it and retires its timer.
func (q *Queue) unqueue(id int) *entry {
	if i := indexOf(q.autoRemove, id); i >= 0 {
		e := q.autoRemove[i]
		q.autoRemove = append(q.autoRemove[:i], q.autoRemove[i+1:]...)
		e.stop()
		return e
	}
	if i := indexOf(q.sticky, id); i >= 0 {
		e := q.sticky[i]
		q.sticky = append(q.sticky[:i], q.sticky[i+1:]...)
		return e
	}
	return nil
}

func (q *Queue) emit(ev Event) {
	if q.onEvent != nil {
		q.onEvent(ev)
	}
}

func indexOf(entries []*entry, id int) int {
	for i, e := range entries {
		if e.rec.ID == id {
			return i
		}
	}
	return -1
}
