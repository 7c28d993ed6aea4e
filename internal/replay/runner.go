package replay

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmylchreest/quickpanel/internal/animation"
	"github.com/jmylchreest/quickpanel/internal/config"
	"github.com/jmylchreest/quickpanel/internal/engine"
	"github.com/jmylchreest/quickpanel/internal/gates"
	"github.com/jmylchreest/quickpanel/internal/headsup"
	"github.com/jmylchreest/quickpanel/internal/led"
	"github.com/jmylchreest/quickpanel/internal/loop"
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// Epoch is the virtual time every replay starts at.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Failure is an expectation that did not hold.
type Failure struct {
	Step    int // 1-based
	Kind    string
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("step %d (%s): %s", f.Step, f.Kind, f.Message)
}

// Result summarizes a replay.
type Result struct {
	Name        string
	Steps       int
	Elapsed     time.Duration // Virtual time
	VIs         int
	Interrupted int
	Abandoned   int
	LEDWrites   int
	Final       engine.Status // Taken before the engine stops
	Failures    []Failure
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

type runner struct {
	clock  *loop.Manual
	engine *engine.Engine
	result *Result
	logger *slog.Logger
}

// Run replays s against a fresh engine on a virtual clock. Expectation
// mismatches are collected in the result; a malformed step aborts the run
// with an error.
func Run(s *Scenario, opts engine.Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := applyOverrides(opts, s.Options)
	if err != nil {
		return nil, err
	}

	clock := loop.NewManual(Epoch)
	view := render.NewHeadless(clock, render.HeadlessOptions{
		Width:         opts.ItemSize.W,
		ItemHeight:    opts.ItemSize.H,
		OngoingHeight: opts.OngoingSize.H,
	}, logger.With("component", "render"))
	hw := led.NewLogger(logger.With("component", "led-hw"))

	r := &runner{
		clock:  clock,
		engine: engine.New(clock, view, hw, opts, engine.Deps{Logger: logger}),
		result: &Result{Name: s.Name, Steps: len(s.Steps)},
		logger: logger,
	}
	r.engine.SetVIHook(func(res animation.Result) {
		r.result.VIs++
		switch {
		case res.Abandoned:
			r.result.Abandoned++
		case res.Phase == animation.PhaseInterrupted:
			r.result.Interrupted++
		}
	})

	for i := range s.Steps {
		if err := r.step(i+1, &s.Steps[i]); err != nil {
			r.engine.Stop()
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	status := r.engine.Status()
	r.result.Final = status
	r.result.LEDWrites = status.LED.Writes
	r.result.Elapsed = clock.Now().Sub(Epoch)
	r.engine.Stop()

	logger.Debug("replay finished", "name", s.Name, "steps", len(s.Steps), "failures", len(r.result.Failures))
	return r.result, nil
}

func (r *runner) step(n int, s *Step) error {
	kind, err := s.kind()
	if err != nil {
		return err
	}
	e := r.engine
	now := r.clock.Now()

	switch kind {
	case "insert":
		rec, err := s.Insert.Record(now)
		if err != nil {
			return err
		}
		if !e.OnInsert(rec) {
			r.logger.Debug("insert rejected", "step", n, "id", rec.ID)
		}
	case "update":
		rec, err := s.Update.Record(now)
		if err != nil {
			return err
		}
		if !e.OnUpdate(rec) {
			r.logger.Debug("update rejected", "step", n, "id", rec.ID)
		}
	case "delete":
		e.OnDelete(*s.Delete)
	case "delete_all":
		e.OnDeleteAll()
	case "advance":
		r.clock.Advance(*s.Advance)
	case "gesture":
		dir, ok := headsup.ParseDirection(s.Gesture)
		if !ok {
			return fmt.Errorf("unknown gesture %q", s.Gesture)
		}
		e.HeadsUpGesture(dir)
	case "dismiss":
		e.HeadsUpDismiss(headsup.ReasonUser)
	case "gate":
		name, err := gates.ParseName(s.Gate.Name)
		if err != nil {
			return err
		}
		e.SetGate(name, s.Gate.Enabled)
	case "led":
		if err := r.led(s.LED); err != nil {
			return err
		}
	case "expect_count":
		r.expectCount(n, s.ExpectCount)
	case "expect_banner":
		r.expectBanner(n, s.ExpectBanner)
	case "expect_led":
		r.expectLED(n, s.ExpectLED)
	case "expect_list":
		if got := e.Status().List; !slices.Equal(got, s.ExpectList) {
			r.fail(n, kind, "list is %v, want %v", got, s.ExpectList)
		}
	}

	r.clock.RunPending()
	return nil
}

func (r *runner) led(s *LEDSpec) error {
	if s.Remove {
		r.engine.LedRemove(s.ID)
		return nil
	}

	op := led.OpOn
	if s.Op != "" {
		var err error
		if op, err = led.ParseOp(s.Op); err != nil {
			return err
		}
	}
	var color uint32
	if s.Color != "" {
		var err error
		if color, err = config.ParseColor(s.Color); err != nil {
			return err
		}
		if s.Op == "" {
			op = led.OpOnCustomColor
		}
	}
	r.engine.LedUpsert(s.ID, op, color, s.OnMs, s.OffMs)
	return nil
}

func (r *runner) expectCount(n int, want *CountSpec) {
	checks := []struct {
		category model.Category
		want     *int
	}{
		{model.CategoryNormal, want.Normal},
		{model.CategoryOngoing, want.Ongoing},
		{model.CategoryAll, want.All},
	}
	for _, c := range checks {
		if c.want == nil {
			continue
		}
		if got := r.engine.RegistryCount(c.category); got != *c.want {
			r.fail(n, "expect_count", "%s count is %d, want %d", c.category, got, *c.want)
		}
	}
}

func (r *runner) expectBanner(n int, want *BannerSpec) {
	b := r.engine.Status().Banner
	if want.State != "" && b.State != want.State {
		r.fail(n, "expect_banner", "state is %s, want %s", b.State, want.State)
	}
	if want.ID == nil {
		return
	}
	switch {
	case b.Current == nil:
		r.fail(n, "expect_banner", "no banner, want #%d", *want.ID)
	case b.Current.ID != *want.ID:
		r.fail(n, "expect_banner", "banner is #%d, want #%d", b.Current.ID, *want.ID)
	}
}

func (r *runner) expectLED(n int, want *LEDExpect) {
	l := r.engine.Status().LED
	if l.On != want.On {
		r.fail(n, "expect_led", "on is %t, want %t", l.On, want.On)
		return
	}
	if want.Owner != nil && l.Owner != *want.Owner {
		r.fail(n, "expect_led", "owner is #%d, want #%d", l.Owner, *want.Owner)
	}
	if want.Color != "" && l.Color != want.Color {
		r.fail(n, "expect_led", "color is %s, want %s", l.Color, want.Color)
	}
}

func (r *runner) fail(n int, kind, format string, args ...any) {
	f := Failure{Step: n, Kind: kind, Message: fmt.Sprintf(format, args...)}
	r.logger.Debug("expectation failed", "step", n, "kind", kind, "message", f.Message)
	r.result.Failures = append(r.result.Failures, f)
}

func applyOverrides(opts engine.Options, o *Overrides) (engine.Options, error) {
	if o == nil {
		return opts, nil
	}
	if o.CloseDuration != nil {
		opts.HeadsUp.CloseDuration = *o.CloseDuration
	}
	if o.MinVisible != nil {
		opts.HeadsUp.MinVisible = *o.MinVisible
	}
	if o.Translate != nil {
		opts.Animation.TranslateDuration = *o.Translate
	}
	if o.Fade != nil {
		opts.Animation.FadeDuration = *o.Fade
	}
	if o.LEDColor != "" {
		color, err := config.ParseColor(o.LEDColor)
		if err != nil {
			return opts, err
		}
		opts.LED.DefaultColor = color
	}
	return opts, nil
}
