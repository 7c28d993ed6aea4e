package tui

import (
	"log/slog"

	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// Renderer is the headless renderer plus a change feed for the terminal
// program. Bursts of changes collapse into one pending signal.
type Renderer struct {
	*render.Headless
	changes chan struct{}
}

// NewRenderer creates a Renderer driven by l.
func NewRenderer(l loop.Loop, opts render.HeadlessOptions, logger *slog.Logger) *Renderer {
	r := &Renderer{
		Headless: render.NewHeadless(l, opts, logger),
		changes:  make(chan struct{}, 1),
	}
	r.SetChangeCallback(r.signal)
	return r
}

// Changes returns the change feed.
func (r *Renderer) Changes() <-chan struct{} {
	return r.changes
}

func (r *Renderer) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}
