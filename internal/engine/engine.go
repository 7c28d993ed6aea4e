// Package engine wires the notification lifecycle together: the registry, the
// list and banner animation scheduler, the heads-up queue and the LED
// arbitrator. It receives events from a notification source and exposes the
// operations the panel UI may request.
//
// Every method must be called on the engine loop.
package engine

import (
	"log/slog"

	"github.com/jmylchreest/quickpanel/internal/animation"
	"github.com/jmylchreest/quickpanel/internal/audio"
	"github.com/jmylchreest/quickpanel/internal/gates"
	"github.com/jmylchreest/quickpanel/internal/headsup"
	"github.com/jmylchreest/quickpanel/internal/led"
	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/metrics"
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/registry"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// Sounder plays a sound file.
type Sounder interface {
	Play(path string) error
}

// ClosedFunc is called when a notification leaves the panel for a reason the
// source did not cause itself.
type ClosedFunc func(id int, reason CloseReason)

// ActionFunc forwards an invoked action to the source. It reports whether
// the notification should be dismissed afterwards.
type ActionFunc func(id int, key string) bool

// CloseReason is why a notification was closed by the panel.
type CloseReason int

const (
	CloseDismissed CloseReason = iota // Removed by the user
	CloseCleared                      // Removed by "clear all"
)

// Engine owns all lifecycle state. It is constructed on Start and released
// on Stop.
type Engine struct {
	loop     loop.Loop
	renderer render.Renderer
	logger   *slog.Logger
	opts     Options

	registry  *registry.Registry
	scheduler *animation.Scheduler
	list      *animation.Container
	banner    *animation.Container
	headsUp   *headsup.Queue
	led       *led.Arbitrator

	// items is the list-side table: one animatable item per registry entry
	// that is shown in the list.
	items map[int]*animation.Item

	sound   Sounder
	metrics *metrics.Metrics

	ledGate bool

	onClosed ClosedFunc
	onAction ActionFunc
	onVI     func(animation.Result)
	onStatus func(Status)
	stopped  bool
}

// Deps are the optional collaborators of an Engine.
type Deps struct {
	Sound   Sounder
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// New creates an Engine that draws through renderer and drives hw.
func New(l loop.Loop, renderer render.Renderer, hw led.Hardware, opts Options, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		loop:     l,
		renderer: renderer,
		logger:   logger,
		opts:     opts,
		registry: registry.New(logger.With("component", "registry")),
		items:    make(map[int]*animation.Item),
		sound:    deps.Sound,
		metrics:  deps.Metrics,
		ledGate:  true,
	}

	e.scheduler = animation.New(renderer, opts.Animation, logger.With("component", "animation"))
	e.list = animation.NewContainer(ContainerList, 0, 0, opts.Gap)
	e.banner = animation.NewContainer(ContainerBanner, 0, 0, 0)
	e.scheduler.AddContainer(e.list)
	e.scheduler.AddContainer(e.banner)
	e.scheduler.SetPhaseHook(func(vi *animation.VI) {
		if vi.Phase == animation.PhaseInit {
			e.metrics.VIStarted(vi.Op.String())
		}
	})

	e.headsUp = headsup.New(l, &bannerPresenter{engine: e}, opts.HeadsUp, logger.With("component", "headsup"))
	e.headsUp.SetEventHook(func(ev headsup.Event) {
		e.metrics.HeadsUp(ev.Kind.String())
		e.notify()
	})

	e.led = led.New(l, hw, opts.LED, logger.With("component", "led"))
	e.led.SetApplyHook(func(s led.State) {
		e.metrics.LEDApplied(s.On)
	})

	return e
}

// SetClosedHook sets the callback for panel-initiated closes.
func (e *Engine) SetClosedHook(fn ClosedFunc) {
	e.onClosed = fn
}

// SetActionHook sets the callback for InvokeAction.
func (e *Engine) SetActionHook(fn ActionFunc) {
	e.onAction = fn
}

// SetVIHook sets a callback invoked for every completed visual interaction.
func (e *Engine) SetVIHook(fn func(animation.Result)) {
	e.onVI = fn
}

// SetStatusHook sets a callback invoked with a fresh status after changes.
func (e *Engine) SetStatusHook(fn func(Status)) {
	e.onStatus = fn
}

// OnInsert handles a new notification from the source. It returns false if
// the record was rejected.
func (e *Engine) OnInsert(rec *model.Record) bool {
	e.metrics.SourceEvent("insert")
	var ok bool
	if rec != nil && e.registry.Get(rec.ID) != nil {
		ok = e.update(rec)
	} else {
		ok = e.insert(rec, true)
	}
	e.notify()
	return ok
}

// OnUpdate handles a changed notification. Unknown ids are inserted.
func (e *Engine) OnUpdate(rec *model.Record) bool {
	e.metrics.SourceEvent("update")
	var ok bool
	if rec != nil && e.registry.Get(rec.ID) == nil {
		ok = e.insert(rec, true)
	} else {
		ok = e.update(rec)
	}
	e.notify()
	return ok
}

// OnDelete handles a notification withdrawn by the source.
func (e *Engine) OnDelete(id int) {
	e.metrics.SourceEvent("delete")
	e.remove(id)
	e.notify()
}

// OnDeleteAll handles the source dropping every notification.
func (e *Engine) OnDeleteAll() {
	e.metrics.SourceEvent("delete_all")
	e.removeAll()
	e.notify()
}

// OnServiceReady resynchronizes with the full set of records the source
// holds: missing records are inserted without a banner, known ones updated
// and stale ones deleted.
func (e *Engine) OnServiceReady(records []*model.Record) {
	e.metrics.SourceEvent("service_ready")

	live := make(map[int]bool, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		live[rec.ID] = true
		if e.registry.Get(rec.ID) == nil {
			e.insert(rec, false)
		} else {
			e.update(rec)
		}
	}
	for _, id := range e.registry.IDs() {
		if !live[id] {
			e.remove(id)
		}
	}

	e.logger.Info("resynchronized with source", "records", len(live), "normal", e.registry.Count(model.CategoryNormal), "ongoing", e.registry.Count(model.CategoryOngoing))
	e.notify()
}

// Dismiss removes a notification on behalf of the user and reports it
// through the closed hook.
func (e *Engine) Dismiss(id int) bool {
	if e.registry.Get(id) == nil {
		return false
	}
	e.remove(id)
	if e.onClosed != nil {
		e.onClosed(id, CloseDismissed)
	}
	e.notify()
	return true
}

// InvokeAction activates an action of a notification. Without an action
// hook normal notifications are dismissed and ongoing ones stay.
func (e *Engine) InvokeAction(id int, key string) bool {
	entry := e.registry.Get(id)
	if entry == nil {
		return false
	}
	dismiss := entry.Record.Category == model.CategoryNormal
	if e.onAction != nil {
		dismiss = e.onAction(id, key)
	}
	e.logger.Debug("action invoked", "id", id, "action", key, "dismiss", dismiss)
	if dismiss {
		e.Dismiss(id)
	}
	return true
}

// ClearAll removes every notification on behalf of the user.
func (e *Engine) ClearAll() {
	ids := e.registry.IDs()
	e.removeAll()
	if e.onClosed != nil {
		for _, id := range ids {
			e.onClosed(id, CloseCleared)
		}
	}
	e.notify()
}

// RegistryCount returns the number of notifications in category, or all of
// them for model.CategoryAll.
func (e *Engine) RegistryCount(category model.Category) int {
	return e.registry.Count(category)
}

// RegistryLookup returns a copy of the entry for id.
func (e *Engine) RegistryLookup(id int) (registry.Entry, bool) {
	entry := e.registry.Get(id)
	if entry == nil {
		return registry.Entry{}, false
	}
	return registry.Entry{ID: entry.ID, Record: entry.Record.Clone(), View: entry.View}, true
}

// RequestMutation starts a visual interaction on a container item. onDone
// always fires. It returns false if the request was abandoned or ignored.
func (e *Engine) RequestMutation(op animation.Op, container string, id int, pos animation.Position, onDone animation.DoneFunc) bool {
	var item *animation.Item
	if c := e.scheduler.Container(container); c != nil {
		item = c.Item(id)
		if item == nil && container == ContainerList {
			item = e.items[id]
		}
	}
	if op == animation.OpDeleteAll {
		item = nil
	}
	vi := e.start(op, container, item, pos, onDone)
	return vi != nil && op.Valid()
}

// HeadsUpOffer offers a record for the banner directly.
func (e *Engine) HeadsUpOffer(rec *model.Record) bool {
	ok := e.headsUp.Offer(rec)
	e.notify()
	return ok
}

// HeadsUpDismiss dismisses the banner.
func (e *Engine) HeadsUpDismiss(reason headsup.Reason) {
	e.headsUp.Dismiss(reason)
}

// HeadsUpGesture forwards a flick on the banner.
func (e *Engine) HeadsUpGesture(dir headsup.Direction) {
	e.headsUp.Gesture(dir)
}

// LedUpsert adds or refreshes an LED request.
func (e *Engine) LedUpsert(id int, op led.Op, color uint32, onMs, offMs int) {
	e.led.Upsert(id, op, color, onMs, offMs)
	e.notify()
}

// LedRemove withdraws an LED request.
func (e *Engine) LedRemove(id int) {
	e.led.Remove(id)
	e.notify()
}

// SetGate changes one feature gate.
func (e *Engine) SetGate(name gates.Name, enabled bool) {
	g := e.headsUp.Gates()
	switch name {
	case gates.LED:
		e.ledGate = enabled
		e.led.SetEnabled(e.opts.LED.Enabled && enabled)
	case gates.DoNotDisturb:
		g.DoNotDisturb = enabled
	case gates.LockScreen:
		g.LockScreen = enabled
	case gates.QuickPanel:
		g.QuickPanelOpen = enabled
	default:
		e.logger.Warn("unknown gate", "gate", name)
		return
	}
	e.headsUp.SetGates(g)
	e.logger.Debug("gate changed", "gate", name, "enabled", enabled)
	e.notify()
}

// ApplyGates applies a persisted gate state.
func (e *Engine) ApplyGates(s *gates.State) {
	for _, n := range gates.Names() {
		e.SetGate(n, s.Get(n))
	}
}

// ApplyOptions swaps timing and LED defaults, e.g. after a config reload.
// Animations and banners already running keep their old timing.
func (e *Engine) ApplyOptions(opts Options) {
	e.opts = opts
	e.scheduler.UpdateOptions(opts.Animation)
	e.headsUp.SetOptions(opts.HeadsUp)
	e.led.SetOptions(opts.LED)
	e.led.SetEnabled(opts.LED.Enabled && e.ledGate)
	e.notify()
}

// Stop interrupts all animations and releases every resource. The engine
// must not be used afterwards.
func (e *Engine) Stop() {
	if e.stopped {
		return
	}
	e.headsUp.Clear()
	e.removeAll()
	e.start(animation.OpDeleteAll, ContainerBanner, nil, animation.Position{}, nil)
	e.scheduler.InterruptAll()
	e.stopped = true
	e.logger.Debug("engine stopped")
}

func (e *Engine) insert(rec *model.Record, announce bool) bool {
	if rec == nil {
		return false
	}
	if err := rec.Validate(); err != nil {
		e.logger.Warn("rejected notification", "id", rec.ID, "error", err)
		return false
	}

	view := render.NoView
	if rec.Flags.Has(model.DisplayList) {
		var err error
		if view, err = e.renderer.CreateView(rec); err != nil {
			e.logger.Warn("failed to build notification view", "id", rec.ID, "error", err)
			return false
		}
	}

	entry := e.registry.Add(rec.ID, rec, view)
	if entry == nil {
		if view != render.NoView {
			e.renderer.DestroyView(view)
		}
		return false
	}

	if view != render.NoView {
		e.packListItem(entry.Record, view)
	}

	if announce && rec.WantsHeadsUp() {
		e.headsUp.Offer(entry.Record)
	}
	e.syncLED(entry.Record)
	e.countEntries()

	e.logger.Debug("notification inserted", "id", rec.ID, "category", rec.Category)
	return true
}

func (e *Engine) update(rec *model.Record) bool {
	if rec == nil {
		return false
	}
	if err := rec.Validate(); err != nil {
		e.logger.Warn("rejected notification update", "id", rec.ID, "error", err)
		return false
	}

	old, ok := e.registry.Update(rec.ID, rec)
	if !ok {
		return false
	}
	entry := e.registry.Get(rec.ID)

	item := e.items[rec.ID]
	switch wantsList := rec.Flags.Has(model.DisplayList); {
	case item == nil && wantsList:
		view, err := e.renderer.CreateView(entry.Record)
		if err != nil {
			e.logger.Warn("failed to build notification view", "id", rec.ID, "error", err)
			break
		}
		e.registry.SetView(rec.ID, view)
		e.packListItem(entry.Record, view)
	case item != nil && !wantsList:
		e.registry.SetView(rec.ID, render.NoView)
		e.unpackListItem(rec.ID)
	case item != nil:
		if item.View != render.NoView {
			if err := e.renderer.UpdateView(item.View, entry.Record); err != nil {
				e.logger.Warn("failed to update notification view", "id", rec.ID, "error", err)
			}
		}
		if old != rec.Category {
			item.Type = animation.ItemTypeFor(rec.Category)
			item.MinSize = e.minSize(rec.Category)
			e.start(animation.OpReorder, ContainerList, item, animation.Ordered(), nil)
		}
	}

	e.headsUp.Update(entry.Record)
	e.syncLED(entry.Record)
	e.countEntries()
	return true
}

func (e *Engine) remove(id int) {
	if e.registry.Get(id) == nil {
		return
	}
	e.registry.Remove(id)

	e.unpackListItem(id)
	e.headsUp.Remove(id)
	e.led.Remove(id)
	e.countEntries()
	e.logger.Debug("notification removed", "id", id)
}

// packListItem animates a list item for rec into the list.
func (e *Engine) packListItem(rec *model.Record, view render.ViewHandle) {
	item := &animation.Item{
		ID:      rec.ID,
		Type:    animation.ItemTypeFor(rec.Category),
		View:    view,
		MinSize: e.minSize(rec.Category),
	}
	e.items[rec.ID] = item
	e.start(animation.OpInsert, ContainerList, item, animation.Ordered(), nil)
}

func (e *Engine) unpackListItem(id int) {
	item := e.items[id]
	if item == nil {
		return
	}
	delete(e.items, id)
	e.start(animation.OpDelete, ContainerList, item, animation.Position{}, nil)
}

func (e *Engine) removeAll() {
	e.registry.RemoveAll()
	e.items = make(map[int]*animation.Item)
	e.start(animation.OpDeleteAll, ContainerList, nil, animation.Position{}, nil)
	e.headsUp.Clear()
	e.led.Clear()
	e.countEntries()
}

// start runs a visual interaction, recording its outcome.
func (e *Engine) start(op animation.Op, container string, item *animation.Item, pos animation.Position, onDone animation.DoneFunc) *animation.VI {
	return e.scheduler.Start(animation.Request{
		Op:        op,
		Container: container,
		Item:      item,
		Position:  pos,
		OnDone: func(res animation.Result) {
			outcome := "done"
			switch {
			case res.Abandoned:
				outcome = "abandoned"
			case res.Phase == animation.PhaseInterrupted:
				outcome = "interrupted"
			}
			e.metrics.VICompleted(res.Op.String(), outcome)
			// An abandoned delete never reaches commit, so its view is ours to free.
			if res.Abandoned && op == animation.OpDelete && item != nil && item.View != render.NoView {
				e.renderer.DestroyView(item.View)
				item.View = render.NoView
			}
			if onDone != nil {
				onDone(res)
			}
			if e.onVI != nil {
				e.onVI(res)
			}
		},
	})
}

func (e *Engine) syncLED(rec *model.Record) {
	if !rec.WantsLED() {
		e.led.Remove(rec.ID)
		return
	}
	op := led.OpOn
	if rec.LED.Custom {
		op = led.OpOnCustomColor
	}
	e.led.Upsert(rec.ID, op, rec.LED.Color, rec.LED.OnMs, rec.LED.OffMs)
}

func (e *Engine) playSound(rec *model.Record) {
	if e.sound == nil || !e.opts.SoundEnabled {
		return
	}
	path := audio.Resolve(rec.Sound, e.opts.DefaultSound)
	if path == "" {
		return
	}
	if err := e.sound.Play(path); err != nil {
		e.logger.Warn("failed to play sound", "id", rec.ID, "path", path, "error", err)
	}
}

func (e *Engine) minSize(c model.Category) render.Size {
	if c == model.CategoryOngoing && e.opts.OngoingSize.H > 0 {
		return e.opts.OngoingSize
	}
	return e.opts.ItemSize
}

func (e *Engine) countEntries() {
	e.metrics.SetEntries(model.CategoryNormal.String(), e.registry.Count(model.CategoryNormal))
	e.metrics.SetEntries(model.CategoryOngoing.String(), e.registry.Count(model.CategoryOngoing))
}

func (e *Engine) notify() {
	if e.onStatus != nil {
		e.onStatus(e.Status())
	}
}
