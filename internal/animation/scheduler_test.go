package animation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
)

const stepDur = 100 * time.Millisecond

type fixture struct {
	clock     *loop.Manual
	renderer  *render.Headless
	scheduler *Scheduler
	list      *Container
	results   []Result
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := loop.NewManual(time.Unix(1700000000, 0))
	r := render.NewHeadless(clock, render.HeadlessOptions{Width: 100, ItemHeight: 10}, nil)
	s := New(r, Options{TranslateDuration: stepDur, FadeDuration: stepDur}, nil)
	list := NewContainer("list", 0, 0, 2)
	s.AddContainer(list)
	return &fixture{clock: clock, renderer: r, scheduler: s, list: list}
}

func (f *fixture) item(t *testing.T, id int, typ ItemType) *Item {
	t.Helper()
	view, err := f.renderer.CreateView(&model.Record{ID: id, Timestamp: f.clock.Now()})
	require.NoError(t, err)
	return &Item{ID: id, Type: typ, View: view, MinSize: render.Size{W: 100, H: 10}}
}

func (f *fixture) start(op Op, it *Item, pos Position) *VI {
	return f.scheduler.Start(Request{
		Op:        op,
		Container: "list",
		Item:      it,
		Position:  pos,
		OnDone:    func(r Result) { f.results = append(f.results, r) },
	})
}

func (f *fixture) settle() {
	f.clock.Advance(10 * stepDur)
}

func TestScheduler_InsertCompletesOnce(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 1, ItemNormal)

	vi := f.start(OpInsert, it, Ordered())
	require.NotNil(t, vi)
	assert.Equal(t, PhaseJob, vi.Phase)
	assert.Empty(t, f.list.IDs(), "insert packs on Done")
	assert.Same(t, vi, f.scheduler.InFlight("list", 1))

	f.settle()

	require.Len(t, f.results, 1)
	assert.Equal(t, PhaseDone, f.results[0].Phase)
	assert.False(t, f.results[0].Abandoned)
	assert.Equal(t, vi.ID.String(), f.results[0].ID)
	assert.Equal(t, []int{1}, f.list.IDs())
	assert.Nil(t, f.scheduler.InFlight("list", 1))
	assert.Equal(t, 0, f.scheduler.Busy())
}

func TestScheduler_SiblingsMoveBeforeTargetFades(t *testing.T) {
	f := newFixture(t)
	normal := f.item(t, 1, ItemNormal)
	f.start(OpInsert, normal, Ordered())
	f.settle()

	ongoing := f.item(t, 2, ItemOngoing)
	f.start(OpInsert, ongoing, Ordered())

	// First step: the normal item moves down to make room.
	f.clock.Advance(stepDur)
	assert.Equal(t, 12, f.renderer.Geometry(normal.View).Y)
	views := f.renderer.Snapshot("list")
	require.Len(t, views, 2)
	assert.Equal(t, ongoing.View, views[0].Handle)
	assert.Zero(t, views[0].Opacity, "target fades only after siblings moved")
	assert.Len(t, f.results, 1)

	// Second step: the ongoing item fades in at the top.
	f.clock.Advance(stepDur)
	views = f.renderer.Snapshot("list")
	assert.Equal(t, 1.0, views[0].Opacity)
	assert.Equal(t, []int{2, 1}, f.list.IDs())
	assert.Len(t, f.results, 2)
}

func TestScheduler_InterruptedInsertStillPacks(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 1, ItemNormal)

	var phases []string
	f.scheduler.SetPhaseHook(func(vi *VI) {
		phases = append(phases, fmt.Sprintf("%s:%s", vi.Op, vi.Phase))
	})

	f.start(OpInsert, it, Ordered())
	f.clock.Advance(stepDur / 2)
	f.start(OpDelete, it, Position{})

	require.Len(t, f.results, 1)
	assert.Equal(t, OpInsert, f.results[0].Op)
	assert.Equal(t, PhaseInterrupted, f.results[0].Phase)

	// The insert reached Interrupted before the delete reached Init.
	assert.Equal(t, []string{
		"insert:init", "insert:job", "insert:interrupted",
		"delete:init", "delete:job",
	}, phases)

	f.settle()
	require.Len(t, f.results, 2)
	assert.Equal(t, OpDelete, f.results[1].Op)
	assert.Equal(t, PhaseDone, f.results[1].Phase)
	assert.Empty(t, f.list.IDs())
	assert.Equal(t, 0, f.renderer.Count(), "deleted view is destroyed")
}

func TestScheduler_InterruptedInsertShowsItem(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 1, ItemNormal)

	f.start(OpInsert, it, Ordered())
	f.scheduler.InterruptAll()

	views := f.renderer.Snapshot("list")
	require.Len(t, views, 1)
	assert.Equal(t, 1.0, views[0].Opacity)
	assert.Equal(t, []int{1}, f.list.IDs())
}

func TestScheduler_InterruptedDeleteStillRemoves(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 1, ItemNormal)
	f.start(OpInsert, it, Ordered())
	f.settle()

	f.start(OpDelete, it, Position{})
	f.scheduler.InterruptAll()

	require.Len(t, f.results, 2)
	assert.Equal(t, PhaseInterrupted, f.results[1].Phase)
	assert.Empty(t, f.list.IDs())
	assert.Equal(t, render.NoView, it.View)

	// Nothing fires later.
	f.settle()
	assert.Len(t, f.results, 2)
}

func TestScheduler_IndependentItemsDoNotConflict(t *testing.T) {
	f := newFixture(t)
	a := f.item(t, 1, ItemNormal)
	b := f.item(t, 2, ItemOngoing)

	viA := f.start(OpInsert, a, Ordered())
	viB := f.start(OpInsert, b, Ordered())

	assert.Empty(t, f.results)
	assert.Equal(t, 2, f.scheduler.Busy())
	assert.False(t, viA.Finished())
	assert.False(t, viB.Finished())

	f.settle()
	require.Len(t, f.results, 2)
	for _, r := range f.results {
		assert.Equal(t, PhaseDone, r.Phase)
	}
	assert.ElementsMatch(t, []int{1, 2}, f.list.IDs())
}

func TestScheduler_OverlappingInsertsRealign(t *testing.T) {
	f := newFixture(t)
	normal := f.item(t, 1, ItemNormal)
	ongoing := f.item(t, 2, ItemOngoing)

	f.start(OpInsert, normal, Ordered())
	f.clock.Advance(stepDur / 2)
	viB := f.start(OpInsert, ongoing, Ordered())
	assert.Equal(t, 0, viB.Target().Y, "planned without the unpacked normal item")

	f.settle()
	assert.Equal(t, []int{2, 1}, f.list.IDs())
	assert.Equal(t, 0, f.renderer.Geometry(ongoing.View).Y)
	assert.Equal(t, 12, f.renderer.Geometry(normal.View).Y)
	assert.Equal(t, 0, f.scheduler.Busy())
}

func TestScheduler_OverlappingDeletesRealign(t *testing.T) {
	f := newFixture(t)
	items := make([]*Item, 4)
	for i := range items {
		items[i] = f.item(t, i+1, ItemNormal)
		f.start(OpInsert, items[i], Ordered())
	}
	f.settle()
	require.Equal(t, []int{1, 2, 3, 4}, f.list.IDs())

	f.start(OpDelete, items[0], Position{})
	f.clock.Advance(stepDur / 2)
	f.start(OpDelete, items[2], Position{})
	f.settle()

	assert.Equal(t, []int{2, 4}, f.list.IDs())
	views := f.renderer.Snapshot("list")
	require.Len(t, views, 2)
	assert.Equal(t, items[1].View, views[0].Handle)
	assert.Equal(t, 0, views[0].Rect.Y)
	assert.Equal(t, items[3].View, views[1].Handle)
	assert.Equal(t, 12, views[1].Rect.Y)
}

func TestScheduler_DeleteAll(t *testing.T) {
	f := newFixture(t)
	for id := 1; id <= 3; id++ {
		f.start(OpInsert, f.item(t, id, ItemNormal), Ordered())
	}
	f.settle()

	// One more insert still animating when the list is cleared.
	late := f.item(t, 4, ItemNormal)
	f.start(OpInsert, late, Ordered())
	f.scheduler.Start(Request{
		Op:        OpDeleteAll,
		Container: "list",
		OnDone:    func(r Result) { f.results = append(f.results, r) },
	})

	require.Len(t, f.results, 4)
	assert.Equal(t, PhaseInterrupted, f.results[3].Phase)
	assert.Equal(t, []int{1, 2, 3, 4}, f.list.IDs())

	f.settle()
	require.Len(t, f.results, 5)
	assert.Equal(t, OpDeleteAll, f.results[4].Op)
	assert.Empty(t, f.list.IDs())
	assert.Equal(t, 0, f.renderer.Count())
}

func TestScheduler_Reorder(t *testing.T) {
	f := newFixture(t)
	items := make([]*Item, 3)
	for i := range items {
		items[i] = f.item(t, i+1, ItemNormal)
		f.start(OpInsert, items[i], Ordered())
		f.settle()
	}
	require.Equal(t, []int{1, 2, 3}, f.list.IDs())

	f.start(OpReorder, items[2], Before(1))
	assert.Equal(t, []int{3, 1, 2}, f.list.IDs(), "reorder updates layout in Job")

	f.settle()
	assert.Equal(t, 0, f.renderer.Geometry(items[2].View).Y)
	assert.Equal(t, 12, f.renderer.Geometry(items[0].View).Y)
	assert.Equal(t, 24, f.renderer.Geometry(items[1].View).Y)
	assert.Equal(t, PhaseDone, f.results[len(f.results)-1].Phase)
}

func TestScheduler_MissingTargetIsAbandoned(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 1, ItemNormal)

	vi := f.scheduler.Start(Request{
		Op:        OpInsert,
		Container: "nope",
		Item:      it,
		OnDone:    func(r Result) { f.results = append(f.results, r) },
	})
	assert.Nil(t, vi)

	// Deleting an item that was never packed.
	assert.Nil(t, f.start(OpDelete, it, Position{}))

	require.Len(t, f.results, 2)
	for _, r := range f.results {
		assert.True(t, r.Abandoned)
		assert.Equal(t, PhaseInit, r.Phase)
	}
	assert.Equal(t, 0, f.scheduler.Busy())
}

func TestScheduler_UnknownOpStillCompletes(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, 1, ItemNormal)

	f.start(Op(99), it, Ordered())

	require.Len(t, f.results, 1)
	assert.False(t, f.results[0].Abandoned)
	assert.Equal(t, PhaseDone, f.results[0].Phase)
	assert.Empty(t, f.list.IDs())
	assert.Equal(t, 0, f.scheduler.Busy())
}

func TestScheduler_ZeroGeometryUsesMinSize(t *testing.T) {
	f := newFixture(t)
	it := &Item{ID: 1, Type: ItemNormal, View: render.NoView, MinSize: render.Size{W: 50, H: 30}}
	f.start(OpInsert, it, Ordered())
	f.settle()

	next := f.item(t, 2, ItemNormal)
	vi := f.start(OpInsert, next, Ordered())
	require.NotNil(t, vi)
	assert.Equal(t, 32, vi.Target().Y)
}

func TestScheduler_EveryVICompletesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))

	items := make([]*Item, 6)
	for i := range items {
		items[i] = f.item(t, i+1, ItemType(rng.Intn(2)))
	}

	calls := make(map[string]int)
	started := 0
	for range 500 {
		it := items[rng.Intn(len(items))]
		op := Op(rng.Intn(4))
		req := Request{
			Op:        op,
			Container: "list",
			Item:      it,
			Position:  Ordered(),
			OnDone:    func(r Result) { calls[r.ID]++ },
		}
		if op == OpDeleteAll {
			req.Item = nil
		}
		f.scheduler.Start(req)
		started++

		f.clock.Advance(time.Duration(rng.Intn(250)) * time.Millisecond)
	}
	f.settle()

	assert.Equal(t, 0, f.scheduler.Busy())
	assert.Len(t, calls, started)
	for id, n := range calls {
		require.Equal(t, 1, n, "vi %s completed %d times", id, n)
	}

	seen := make(map[int]bool)
	for _, id := range f.list.IDs() {
		require.False(t, seen[id], "item %d packed twice", id)
		seen[id] = true
	}
}
