package engine

import (
	"context"

	"github.com/jmylchreest/quickpanel/internal/gates"
	"github.com/jmylchreest/quickpanel/internal/headsup"
	"github.com/jmylchreest/quickpanel/internal/model"
)

// Invoker runs functions on the engine loop.
type Invoker interface {
	Post(fn func())
	Invoke(ctx context.Context, fn func()) error
}

// Async exposes an Engine to other goroutines by posting every call onto
// the engine loop. Calls that do not return a value are fire-and-forget.
type Async struct {
	loop   Invoker
	engine *Engine
}

// NewAsync wraps e, which must run on l.
func NewAsync(l Invoker, e *Engine) *Async {
	return &Async{loop: l, engine: e}
}

// Status returns an engine snapshot taken on the loop.
func (a *Async) Status(ctx context.Context) (Status, error) {
	var s Status
	err := a.loop.Invoke(ctx, func() {
		s = a.engine.Status()
	})
	return s, err
}

// Insert posts OnInsert.
func (a *Async) Insert(rec *model.Record) {
	a.loop.Post(func() { a.engine.OnInsert(rec) })
}

// Update posts OnUpdate.
func (a *Async) Update(rec *model.Record) {
	a.loop.Post(func() { a.engine.OnUpdate(rec) })
}

// Delete posts OnDelete.
func (a *Async) Delete(id int) {
	a.loop.Post(func() { a.engine.OnDelete(id) })
}

// ServiceReady posts OnServiceReady.
func (a *Async) ServiceReady(records []*model.Record) {
	a.loop.Post(func() { a.engine.OnServiceReady(records) })
}

// Dismiss posts Dismiss.
func (a *Async) Dismiss(id int) {
	a.loop.Post(func() { a.engine.Dismiss(id) })
}

// ClearAll posts ClearAll.
func (a *Async) ClearAll() {
	a.loop.Post(a.engine.ClearAll)
}

// InvokeAction posts InvokeAction.
func (a *Async) InvokeAction(id int, key string) {
	a.loop.Post(func() { a.engine.InvokeAction(id, key) })
}

// DismissBanner dismisses the heads-up banner on behalf of the user.
func (a *Async) DismissBanner() {
	a.loop.Post(func() { a.engine.HeadsUpDismiss(headsup.ReasonUser) })
}

// Gesture posts a banner flick.
func (a *Async) Gesture(dir headsup.Direction) {
	a.loop.Post(func() { a.engine.HeadsUpGesture(dir) })
}

// SetGate posts a gate change.
func (a *Async) SetGate(name gates.Name, enabled bool) {
	a.loop.Post(func() { a.engine.SetGate(name, enabled) })
}

// ApplyGates posts a persisted gate state.
func (a *Async) ApplyGates(s *gates.State) {
	a.loop.Post(func() { a.engine.ApplyGates(s) })
}

// ApplyOptions posts new options.
func (a *Async) ApplyOptions(opts Options) {
	a.loop.Post(func() { a.engine.ApplyOptions(opts) })
}

// Stop stops the engine and waits for it.
func (a *Async) Stop(ctx context.Context) error {
	return a.loop.Invoke(ctx, a.engine.Stop)
}
