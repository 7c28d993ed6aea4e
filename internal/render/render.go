// Package render defines the renderer contract between the quickpanel engine
// and whatever draws the panel, plus a headless implementation.
package render

import (
	"time"

	"github.com/jmylchreest/quickpanel/internal/model"
)

// ViewHandle identifies a view built by a Renderer. The zero value means no view.
type ViewHandle uint64

// NoView is the null view handle.
const NoView ViewHandle = 0

// Rect is an on-screen rectangle in renderer units.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle has no size.
func (r Rect) Empty() bool {
	return r.W == 0 && r.H == 0
}

// Size is a width/height pair.
type Size struct {
	W, H int
}

// TransitionKind selects the visual effect of a transition.
type TransitionKind int

const (
	// TransitionTranslate moves a view from one rectangle to another.
	TransitionTranslate TransitionKind = iota
	// TransitionFadeIn raises opacity from 0 to 1.
	TransitionFadeIn
	// TransitionFadeOut lowers opacity from 1 to 0.
	TransitionFadeOut
)

// String returns the string representation of the kind.
func (k TransitionKind) String() string {
	switch k {
	case TransitionTranslate:
		return "translate"
	case TransitionFadeIn:
		return "fade-in"
	case TransitionFadeOut:
		return "fade-out"
	default:
		return "unknown"
	}
}

// Transition describes one animation step.
type Transition struct {
	Kind      TransitionKind
	Container string
	View      ViewHandle
	From      Rect
	To        Rect
	Duration  time.Duration
}

// CancelFunc stops a running transition and leaves the view at the
// transition's end state. After it returns the done callback will not be called.
type CancelFunc func()

// Renderer is the GUI layer as seen by the engine.
//
// Every method is called on the engine loop. Animate reports completion by
// calling onDone at most once, on the loop, and never after cancellation.
type Renderer interface {
	CreateView(rec *model.Record) (ViewHandle, error)
	UpdateView(view ViewHandle, rec *model.Record) error
	DestroyView(view ViewHandle)
	Animate(tr Transition, onProgress func(float64), onDone func()) CancelFunc
	Geometry(view ViewHandle) Rect
}

// RenderError represents a renderer failure.
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
