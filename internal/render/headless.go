package render

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/model"
)

// View is the headless renderer's record of a built view.
type View struct {
	Handle    ViewHandle
	Record    *model.Record
	Container string
	Rect      Rect
	Opacity   float64
	Animating bool
}

// HeadlessOptions sizes the views built by the headless renderer.
type HeadlessOptions struct {
	Width         int
	ItemHeight    int
	OngoingHeight int
}

// Headless is a Renderer that keeps geometry and opacity in memory and
// completes transitions on loop timers. It backs the daemon when no screen is
// attached and is embedded by the terminal renderer.
type Headless struct {
	loop   loop.Loop
	logger *slog.Logger
	opts   HeadlessOptions

	mu    sync.RWMutex
	next  ViewHandle
	views map[ViewHandle]*View

	onChange func()
}

// NewHeadless creates a headless renderer.
func NewHeadless(l loop.Loop, opts HeadlessOptions, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Width <= 0 {
		opts.Width = 360
	}
	if opts.ItemHeight <= 0 {
		opts.ItemHeight = 64
	}
	if opts.OngoingHeight <= 0 {
		opts.OngoingHeight = opts.ItemHeight
	}
	return &Headless{
		loop:   l,
		logger: logger,
		opts:   opts,
		views:  make(map[ViewHandle]*View),
	}
}

// SetChangeCallback sets a callback invoked after any visible change.
func (h *Headless) SetChangeCallback(cb func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = cb
}

// CreateView builds an invisible view for rec.
func (h *Headless) CreateView(rec *model.Record) (ViewHandle, error) {
	if rec == nil {
		return NoView, &RenderError{Message: "cannot build view for nil record"}
	}

	height := h.opts.ItemHeight
	if rec.Category == model.CategoryOngoing {
		height = h.opts.OngoingHeight
	}

	h.mu.Lock()
	h.next++
	handle := h.next
	h.views[handle] = &View{
		Handle: handle,
		Record: rec.Clone(),
		Rect:   Rect{W: h.opts.Width, H: height},
	}
	h.mu.Unlock()

	h.logger.Debug("view created", "view", handle, "id", rec.ID)
	h.changed()
	return handle, nil
}

// UpdateView replaces the payload shown by a view.
func (h *Headless) UpdateView(view ViewHandle, rec *model.Record) error {
	if rec == nil {
		return &RenderError{Message: "cannot update view with nil record"}
	}

	h.mu.Lock()
	v, exists := h.views[view]
	if exists {
		v.Record = rec.Clone()
	}
	h.mu.Unlock()

	if !exists {
		return &RenderError{Message: "unknown view"}
	}
	h.changed()
	return nil
}

// DestroyView releases a view. Unknown handles are ignored.
func (h *Headless) DestroyView(view ViewHandle) {
	h.mu.Lock()
	_, exists := h.views[view]
	delete(h.views, view)
	h.mu.Unlock()

	if exists {
		h.logger.Debug("view destroyed", "view", view)
		h.changed()
	}
}

// Animate runs tr and reports completion on the loop after tr.Duration.
func (h *Headless) Animate(tr Transition, onProgress func(float64), onDone func()) CancelFunc {
	h.mu.Lock()
	if v, ok := h.views[tr.View]; ok {
		v.Container = tr.Container
		v.Animating = true
		if tr.Kind == TransitionFadeIn {
			v.Rect = tr.To
			v.Opacity = 0
		}
	}
	h.mu.Unlock()
	h.changed()

	timer := h.loop.AfterFunc(tr.Duration, func() {
		h.finish(tr)
		if onProgress != nil {
			onProgress(1)
		}
		if onDone != nil {
			onDone()
		}
	})

	return func() {
		if timer.Stop() {
			h.finish(tr)
		}
	}
}

// Geometry returns the current rectangle of a view.
func (h *Headless) Geometry(view ViewHandle) Rect {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if v, ok := h.views[view]; ok {
		return v.Rect
	}
	return Rect{}
}

// Snapshot returns copies of the views placed in container, top to bottom.
func (h *Headless) Snapshot(container string) []View {
	h.mu.RLock()
	defer h.mu.RUnlock()

	views := make([]View, 0, len(h.views))
	for _, v := range h.views {
		if v.Container != container {
			continue
		}
		c := *v
		c.Record = v.Record.Clone()
		views = append(views, c)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Rect.Y == views[j].Rect.Y {
			return views[i].Handle < views[j].Handle
		}
		return views[i].Rect.Y < views[j].Rect.Y
	})
	return views
}

// Count returns the number of live views.
func (h *Headless) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.views)
}

// finish applies the end state of tr.
func (h *Headless) finish(tr Transition) {
	h.mu.Lock()
	if v, ok := h.views[tr.View]; ok {
		v.Animating = false
		switch tr.Kind {
		case TransitionTranslate:
			v.Rect = tr.To
		case TransitionFadeIn:
			v.Rect = tr.To
			v.Opacity = 1
		case TransitionFadeOut:
			v.Opacity = 0
		}
	}
	h.mu.Unlock()
	h.changed()
}

func (h *Headless) changed() {
	h.mu.RLock()
	cb := h.onChange
	h.mu.RUnlock()
	if cb != nil {
		cb()
	}
}
