// Package led arbitrates the notification indicator LED.
//
// Many notifications may ask for the LED at once; the hardware shows only the
// most recent request. The arbitrator is the only writer of the hardware.
package led

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmylchreest/quickpanel/internal/loop"
)

// Op is the requested LED operation.
type Op int

const (
	OpOff Op = iota
	OpOn
	OpOnCustomColor
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpOff:
		return "off"
	case OpOn:
		return "on"
	case OpOnCustomColor:
		return "on-custom"
	default:
		return "unknown"
	}
}

// ParseOp parses an op name.
func ParseOp(s string) (Op, error) {
	switch s {
	case "off":
		return OpOff, nil
	case "on":
		return OpOn, nil
	case "on-custom", "custom":
		return OpOnCustomColor, nil
	}
	return OpOff, fmt.Errorf("unknown led op %q", s)
}

// Request is one notification's claim on the LED.
type Request struct {
	ID        int
	Op        Op
	Color     uint32
	OnMs      int
	OffMs     int
	Timestamp time.Time

	seq uint64
}

// State is what the hardware is told to show.
type State struct {
	On    bool
	Owner int // Request id driving the LED, valid while On
	Color uint32
	OnMs  int // Zero OnMs and OffMs mean solid
	OffMs int
}

func (s State) String() string {
	if !s.On {
		return "off"
	}
	return fmt.Sprintf("#%06x %d/%dms (id %d)", s.Color, s.OnMs, s.OffMs, s.Owner)
}

// Hardware drives the physical indicator.
type Hardware interface {
	Apply(s State) error
}

// Options configures defaults for requests that do not carry their own.
type Options struct {
	Enabled      bool
	DefaultColor uint32
	OnMs         int
	OffMs        int
}

// DefaultOptions returns the default LED options.
func DefaultOptions() Options {
	return Options{
		Enabled:      true,
		DefaultColor: 0x00ff00,
		OnMs:         500,
		OffMs:        2000,
	}
}

// Arbitrator owns the LED request list and the hardware.
// All methods must be called on the engine loop.
type Arbitrator struct {
	loop   loop.Loop
	hw     Hardware
	logger *slog.Logger
	opts   Options

	enabled  bool
	requests []*Request // Newest first
	seq      uint64
	state    State
	writes   int

	onApply func(State)
}

// New creates an Arbitrator and turns the hardware off.
func New(l loop.Loop, hw Hardware, opts Options, logger *slog.Logger) *Arbitrator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Arbitrator{
		loop:    l,
		hw:      hw,
		logger:  logger,
		opts:    opts,
		enabled: opts.Enabled,
	}
	a.derive()
	return a
}

// SetApplyHook sets a callback invoked after every hardware write.
func (a *Arbitrator) SetApplyHook(fn func(State)) {
	a.onApply = fn
}

// SetOptions changes request defaults. The enable gate is set separately.
func (a *Arbitrator) SetOptions(opts Options) {
	a.opts = opts
	a.derive()
}

// Upsert adds or refreshes the request for id. OpOff withdraws it.
func (a *Arbitrator) Upsert(id int, op Op, color uint32, onMs, offMs int) {
	i := a.index(id)

	if op == OpOff {
		if i >= 0 {
			a.requests = append(a.requests[:i], a.requests[i+1:]...)
		}
		a.derive()
		return
	}

	a.seq++
	req := &Request{
		ID:        id,
		Op:        op,
		Color:     color,
		OnMs:      onMs,
		OffMs:     offMs,
		Timestamp: a.loop.Now(),
		seq:       a.seq,
	}
	if i >= 0 {
		a.requests[i] = req
	} else {
		a.requests = append(a.requests, req)
	}
	sort.SliceStable(a.requests, func(i, j int) bool {
		ri, rj := a.requests[i], a.requests[j]
		if ri.Timestamp.Equal(rj.Timestamp) {
			return ri.seq > rj.seq
		}
		return ri.Timestamp.After(rj.Timestamp)
	})
	a.derive()
}

// Remove withdraws the request for id. Unknown ids still re-derive.
func (a *Arbitrator) Remove(id int) {
	if i := a.index(id); i >= 0 {
		a.requests = append(a.requests[:i], a.requests[i+1:]...)
	}
	a.derive()
}

// Clear withdraws every request.
func (a *Arbitrator) Clear() {
	a.requests = nil
	a.derive()
}

// SetEnabled flips the feature gate and re-applies hardware state.
func (a *Arbitrator) SetEnabled(enabled bool) {
	a.enabled = enabled
	a.derive()
}

// Enabled returns the feature gate.
func (a *Arbitrator) Enabled() bool {
	return a.enabled
}

// State returns the state last written to the hardware.
func (a *Arbitrator) State() State {
	return a.state
}

// Writes returns the number of hardware writes so far.
func (a *Arbitrator) Writes() int {
	return a.writes
}

// Requests returns a copy of the request list, newest first.
func (a *Arbitrator) Requests() []Request {
	reqs := make([]Request, len(a.requests))
	for i, r := range a.requests {
		reqs[i] = *r
	}
	return reqs
}

func (a *Arbitrator) index(id int) int {
	for i, r := range a.requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Derive computes the hardware state from the gate and the head request.
func Derive(enabled bool, head *Request, opts Options) State {
	if !enabled || head == nil {
		return State{}
	}
	s := State{
		On:    true,
		Owner: head.ID,
		Color: opts.DefaultColor,
		OnMs:  head.OnMs,
		OffMs: head.OffMs,
	}
	if head.Op == OpOnCustomColor && head.Color != 0 {
		s.Color = head.Color
	}
	if s.OnMs <= 0 && s.OffMs <= 0 {
		s.OnMs, s.OffMs = opts.OnMs, opts.OffMs
	}
	return s
}

// derive writes the derived state. It always writes: the gate can change
// without the list changing.
func (a *Arbitrator) derive() {
	var head *Request
	if len(a.requests) > 0 {
		head = a.requests[0]
	}
	s := Derive(a.enabled, head, a.opts)

	a.writes++
	if err := a.hw.Apply(s); err != nil {
		a.logger.Warn("led apply failed", "state", s.String(), "error", err)
	} else {
		a.logger.Debug("led applied", "state", s.String())
	}
	a.state = s
	if a.onApply != nil {
		a.onApply(s)
	}
}
