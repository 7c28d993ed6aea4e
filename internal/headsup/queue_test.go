package headsup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/model"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakePresenter struct {
	clock     *loop.Manual
	hideDelay time.Duration
	fail      map[int]bool

	shown   []int
	updated []int
	hides   int
}

func (p *fakePresenter) Show(rec *model.Record) error {
	if p.fail[rec.ID] {
		return errors.New("no view")
	}
	p.shown = append(p.shown, rec.ID)
	return nil
}

func (p *fakePresenter) Update(rec *model.Record) error {
	p.updated = append(p.updated, rec.ID)
	return nil
}

func (p *fakePresenter) Hide(done func()) {
	p.hides++
	p.clock.AfterFunc(p.hideDelay, done)
}

func newQueue(t *testing.T) (*Queue, *fakePresenter, *loop.Manual) {
	t.Helper()
	clock := loop.NewManual(t0)
	p := &fakePresenter{clock: clock, fail: make(map[int]bool)}
	q := New(clock, p, Options{
		Enabled:       true,
		CloseDuration: 5 * time.Second,
		MinVisible:    time.Second,
	}, nil)
	return q, p, clock
}

func autoRecord(id int, ts time.Time, timeout time.Duration) *model.Record {
	return &model.Record{
		ID:         id,
		Timestamp:  ts,
		Flags:      model.DefaultDisplayFlags,
		AutoRemove: true,
		Timeout:    timeout,
	}
}

func stickyRecord(id int, ts time.Time) *model.Record {
	return &model.Record{
		ID:        id,
		Timestamp: ts,
		Flags:     model.DefaultDisplayFlags,
	}
}

// dismiss dismisses the current banner and lets the hide finish.
func dismiss(q *Queue, clock *loop.Manual) {
	q.Dismiss(ReasonUser)
	clock.Advance(0)
}

func TestQueue_OrderingStickyThenAutoRemoveByExpiry(t *testing.T) {
	q, p, clock := newQueue(t)

	require.True(t, q.Offer(autoRecord(100, t0, 30*time.Second)))
	clock.Advance(2 * time.Second)

	// A: auto-remove expiring at 10s, B: sticky, C: auto-remove expiring at 3s.
	require.True(t, q.Offer(autoRecord(1, t0, 10*time.Second)))
	require.True(t, q.Offer(stickyRecord(2, t0.Add(time.Second))))
	require.True(t, q.Offer(autoRecord(3, t0.Add(2*time.Second), time.Second)))

	snap := q.Snapshot()
	assert.Equal(t, []int{3, 1}, snap.AutoRemove)
	assert.Equal(t, []int{2}, snap.Sticky)

	dismiss(q, clock)
	dismiss(q, clock)
	dismiss(q, clock)

	assert.Equal(t, []int{100, 2, 3, 1}, p.shown)
	id, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestQueue_ExpiredOnArrivalIsDropped(t *testing.T) {
	q, p, clock := newQueue(t)
	clock.Advance(10 * time.Second)

	stale := autoRecord(1, t0, 5*time.Second)
	assert.False(t, q.Offer(stale))
	assert.Equal(t, StateEmpty, q.State())

	// Same while the slot is busy.
	require.True(t, q.Offer(stickyRecord(2, clock.Now())))
	assert.False(t, q.Offer(stale))
	assert.Empty(t, q.Snapshot().AutoRemove)

	dismiss(q, clock)
	assert.Equal(t, []int{2}, p.shown)
	assert.Equal(t, StateEmpty, q.State())
}

func TestQueue_QueuedAutoRemoveExpiresUnseen(t *testing.T) {
	q, p, clock := newQueue(t)

	var events []Event
	q.SetEventHook(func(ev Event) { events = append(events, ev) })

	require.True(t, q.Offer(stickyRecord(1, t0)))
	require.True(t, q.Offer(autoRecord(2, t0, time.Second)))
	assert.Equal(t, []int{2}, q.Snapshot().AutoRemove)

	clock.Advance(time.Second)
	assert.Empty(t, q.Snapshot().AutoRemove)
	assert.Contains(t, events, Event{Kind: EventExpired, ID: 2})

	// The sticky banner closes on its own timer and nothing follows it.
	clock.Advance(4 * time.Second)
	assert.Equal(t, StateEmpty, q.State())
	assert.Equal(t, []int{1}, p.shown)
	assert.Contains(t, events, Event{Kind: EventHidden, ID: 1, Reason: ReasonTimeout})
	assert.Equal(t, 0, clock.ActiveTimers())
}

func TestQueue_CloseTimerFloor(t *testing.T) {
	q, _, clock := newQueue(t)

	// 4.5s already elapsed of a 5s display time: floored at 1s.
	require.True(t, q.Offer(stickyRecord(1, t0.Add(-4500*time.Millisecond))))

	clock.Advance(900 * time.Millisecond)
	assert.Equal(t, StateShowing, q.State())
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, StateEmpty, q.State())
}

func TestQueue_AutoRemoveClosesAtExpiry(t *testing.T) {
	q, _, clock := newQueue(t)

	require.True(t, q.Offer(autoRecord(1, t0, 3*time.Second)))
	clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, StateShowing, q.State())
	clock.Advance(time.Millisecond)
	assert.Equal(t, StateEmpty, q.State())
}

func TestQueue_Gesture(t *testing.T) {
	q, p, clock := newQueue(t)
	require.True(t, q.Offer(stickyRecord(1, t0)))

	for _, dir := range []Direction{DirectionDown, DirectionLeft, DirectionRight} {
		q.Gesture(dir)
		assert.Equal(t, StateShowing, q.State(), "direction %d", dir)
	}
	assert.Equal(t, 0, p.hides)

	q.Gesture(DirectionUp)
	assert.Equal(t, StateHiding, q.State())
	clock.Advance(0)
	assert.Equal(t, StateEmpty, q.State())
	assert.Equal(t, 0, clock.ActiveTimers(), "close timer retired with the banner")
}

func TestQueue_DismissEmptyIsNoop(t *testing.T) {
	q, p, _ := newQueue(t)
	q.Dismiss(ReasonUser)
	q.Gesture(DirectionUp)
	assert.Equal(t, 0, p.hides)
	assert.Equal(t, StateEmpty, q.State())
}

func TestQueue_ConstructionFailure(t *testing.T) {
	q, p, clock := newQueue(t)
	p.fail[1] = true
	p.fail[3] = true

	assert.False(t, q.Offer(stickyRecord(1, t0)))
	assert.Equal(t, StateEmpty, q.State())
	_, ok := q.Current()
	assert.False(t, ok)

	// A failing successor is skipped.
	require.True(t, q.Offer(stickyRecord(2, t0)))
	require.True(t, q.Offer(stickyRecord(3, t0.Add(time.Second))))
	require.True(t, q.Offer(stickyRecord(4, t0.Add(2*time.Second))))
	dismiss(q, clock)

	id, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, 4, id)
	assert.Equal(t, []int{2, 4}, p.shown)
}

func TestQueue_Gates(t *testing.T) {
	tests := []struct {
		name  string
		gates Gates
		flags model.DisplayFlags
		want  bool
	}{
		{"open", Gates{}, model.DefaultDisplayFlags, true},
		{"lock screen", Gates{LockScreen: true}, model.DefaultDisplayFlags, false},
		{"do not disturb", Gates{DoNotDisturb: true}, model.DefaultDisplayFlags, false},
		{"panel open", Gates{QuickPanelOpen: true}, model.DefaultDisplayFlags, true},
		{"panel open tray only", Gates{QuickPanelOpen: true}, model.DefaultDisplayFlags | model.DisplayTrayOnly, false},
		{"no heads-up flag", Gates{}, model.DisplayList, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _, _ := newQueue(t)
			q.SetGates(tt.gates)
			rec := stickyRecord(1, t0)
			rec.Flags = tt.flags
			assert.Equal(t, tt.want, q.Offer(rec))
		})
	}
}

func TestQueue_StickyContinuity(t *testing.T) {
	t.Run("older sticky yields to auto-remove", func(t *testing.T) {
		q, p, clock := newQueue(t)
		require.True(t, q.Offer(stickyRecord(1, t0)))
		require.True(t, q.Offer(stickyRecord(2, t0.Add(-time.Second))))
		require.True(t, q.Offer(autoRecord(3, t0, time.Minute)))

		dismiss(q, clock)
		assert.Equal(t, []int{1, 3}, p.shown)
	})

	t.Run("newer sticky keeps the slot", func(t *testing.T) {
		q, p, clock := newQueue(t)
		require.True(t, q.Offer(stickyRecord(1, t0)))
		require.True(t, q.Offer(stickyRecord(2, t0.Add(time.Second))))
		require.True(t, q.Offer(autoRecord(3, t0, time.Minute)))

		dismiss(q, clock)
		assert.Equal(t, []int{1, 2}, p.shown)
	})
}

func TestQueue_OfferWhileHiding(t *testing.T) {
	q, p, clock := newQueue(t)
	p.hideDelay = 100 * time.Millisecond

	require.True(t, q.Offer(stickyRecord(1, t0)))
	q.Dismiss(ReasonUser)
	assert.Equal(t, StateHiding, q.State())

	require.True(t, q.Offer(stickyRecord(2, t0)))
	assert.Equal(t, StateReplacing, q.State())
	assert.Equal(t, []int{1}, p.shown)

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, StateShowing, q.State())
	assert.Equal(t, []int{1, 2}, p.shown)
}

func TestQueue_UpdateAndRemove(t *testing.T) {
	q, p, clock := newQueue(t)

	require.True(t, q.Offer(stickyRecord(1, t0)))
	require.True(t, q.Offer(autoRecord(2, t0, time.Minute)))
	require.True(t, q.Offer(stickyRecord(3, t0)))

	// Offering a known id updates it in place.
	updated := stickyRecord(1, t0)
	updated.Title = "new"
	assert.True(t, q.Offer(updated))
	assert.Equal(t, []int{1}, p.updated)
	assert.Equal(t, "new", q.Snapshot().Current.Title)

	// An auto-remove entry turning sticky moves queues.
	assert.True(t, q.Update(stickyRecord(2, t0.Add(time.Second))))
	snap := q.Snapshot()
	assert.Empty(t, snap.AutoRemove)
	assert.Equal(t, []int{3, 2}, snap.Sticky)

	assert.False(t, q.Update(stickyRecord(99, t0)))

	q.Remove(3)
	assert.Equal(t, []int{2}, q.Snapshot().Sticky)
	q.Remove(99)

	q.Remove(1)
	clock.Advance(0)
	id, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestQueue_Clear(t *testing.T) {
	q, _, clock := newQueue(t)

	require.True(t, q.Offer(stickyRecord(1, t0)))
	require.True(t, q.Offer(autoRecord(2, t0, time.Minute)))
	require.True(t, q.Offer(stickyRecord(3, t0)))

	q.Clear()
	clock.Advance(0)

	snap := q.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.AutoRemove)
	assert.Empty(t, snap.Sticky)
	assert.Equal(t, 0, clock.ActiveTimers())
}

func TestQueue_Disabled(t *testing.T) {
	q, p, _ := newQueue(t)
	opts := DefaultOptions()
	opts.Enabled = false
	q.SetOptions(opts)

	assert.False(t, q.Offer(stickyRecord(1, t0)))
	assert.Empty(t, p.shown)
}
