// Package animation implements the visual interaction (VI) scheduler: every
// insert, delete, delete-all and reorder of an on-screen list runs through a
// fixed Init → Job → Done phase sequence, and may be cut short into
// Interrupted without losing its data effect.
package animation

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/quickpanel/internal/render"
)

// Op is the kind of list mutation a VI performs.
type Op int

const (
	OpInsert Op = iota
	OpDelete
	OpDeleteAll
	OpReorder
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	case OpDeleteAll:
		return "delete-all"
	case OpReorder:
		return "reorder"
	default:
		return "unknown"
	}
}

// Valid reports whether o is a known op.
func (o Op) Valid() bool {
	return o >= OpInsert && o <= OpReorder
}

// Phase is the lifecycle position of a VI.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseJob
	PhaseDone
	PhaseInterrupted
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseJob:
		return "job"
	case PhaseDone:
		return "done"
	case PhaseInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Result is passed to a VI's completion callback.
type Result struct {
	ID        string
	Op        Op
	Container string
	ItemID    int
	Phase     Phase // PhaseDone or PhaseInterrupted, PhaseInit when abandoned
	Abandoned bool  // Container or item was missing; no Job or Done ran
}

// DoneFunc receives the completion of a VI. It is called exactly once.
type DoneFunc func(Result)

// Request asks the scheduler for one visual interaction.
type Request struct {
	Op        Op
	Container string
	Item      *Item // nil for OpDeleteAll
	Position  Position
	OnDone    DoneFunc
}

// Options configures transition durations.
type Options struct {
	TranslateDuration time.Duration
	FadeDuration      time.Duration
}

// DefaultOptions returns the default transition durations.
func DefaultOptions() Options {
	return Options{
		TranslateDuration: 200 * time.Millisecond,
		FadeDuration:      250 * time.Millisecond,
	}
}

// VI is one visual interaction in flight.
type VI struct {
	ID        ulid.ULID
	Op        Op
	Container *Container
	Item      *Item
	Position  Position
	Phase     Phase

	target   render.Rect
	steps    [][]render.Transition
	current  *step
	onDone   DoneFunc
	finished bool
}

// step is one group of transitions started together.
type step struct {
	outstanding int
	cancels     []render.CancelFunc
	cancelled   bool
}

// drift is a translate that moves an idle item back onto its layout slot.
type drift struct {
	to     render.Rect
	cancel render.CancelFunc
}

// inflightKey identifies the resource a VI owns. whole marks a container-wide VI.
type inflightKey struct {
	container string
	item      int
	whole     bool
}

// Scheduler executes VIs against a renderer. It must only be used from the
// engine loop.
type Scheduler struct {
	renderer render.Renderer
	logger   *slog.Logger
	opts     Options

	containers map[string]*Container
	inflight   map[inflightKey]*VI
	drift      map[inflightKey]*drift

	onPhase func(vi *VI)
}

// New creates a Scheduler.
func New(renderer render.Renderer, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		renderer:   renderer,
		logger:     logger,
		opts:       opts,
		containers: make(map[string]*Container),
		inflight:   make(map[inflightKey]*VI),
		drift:      make(map[inflightKey]*drift),
	}
}

// AddContainer registers a container under its name.
func (s *Scheduler) AddContainer(c *Container) {
	s.containers[c.Name] = c
}

// Container returns the named container, or nil.
func (s *Scheduler) Container(name string) *Container {
	return s.containers[name]
}

// SetPhaseHook sets a callback invoked on every phase transition.
func (s *Scheduler) SetPhaseHook(fn func(vi *VI)) {
	s.onPhase = fn
}

// UpdateOptions changes transition durations for VIs started afterwards.
func (s *Scheduler) UpdateOptions(opts Options) {
	s.opts = opts
}

// InFlight returns the VI currently owning the item, or nil.
func (s *Scheduler) InFlight(container string, itemID int) *VI {
	if vi := s.inflight[inflightKey{container: container, item: itemID}]; vi != nil {
		return vi
	}
	return s.inflight[inflightKey{container: container, whole: true}]
}

// Busy returns the number of VIs in flight.
func (s *Scheduler) Busy() int {
	return len(s.inflight)
}

// Start runs a VI. Any VI already owning the same item (or the whole
// container) is interrupted first. The completion callback always fires,
// possibly before Start returns. The returned VI is nil when abandoned.
func (s *Scheduler) Start(req Request) *VI {
	vi := &VI{
		ID:       ulid.Make(),
		Op:       req.Op,
		Item:     req.Item,
		Position: req.Position,
		Phase:    PhaseInit,
		onDone:   req.OnDone,
	}

	c := s.containers[req.Container]
	if c == nil || (req.Op != OpDeleteAll && req.Item == nil) {
		s.logger.Debug("vi abandoned: missing target", "vi", vi.ID, "op", vi.Op, "container", req.Container)
		s.complete(vi, req.Container, true)
		return nil
	}
	vi.Container = c

	if !vi.Op.Valid() {
		s.logger.Warn("vi with unknown op ignored", "vi", vi.ID, "op", int(vi.Op))
		vi.Phase = PhaseDone
		s.complete(vi, c.Name, false)
		return vi
	}

	s.interruptConflicts(vi)

	switch vi.Op {
	case OpInsert:
		if c.contains(vi.Item) {
			s.logger.Debug("vi abandoned: item already packed", "vi", vi.ID, "item", vi.Item.ID)
			s.complete(vi, c.Name, true)
			return nil
		}
		s.initInsert(vi)
	case OpDelete, OpReorder:
		if !c.contains(vi.Item) {
			s.logger.Debug("vi abandoned: item not packed", "vi", vi.ID, "op", vi.Op, "item", vi.Item.ID)
			s.complete(vi, c.Name, true)
			return nil
		}
		if vi.Op == OpDelete {
			s.initDelete(vi)
		} else {
			s.initReorder(vi)
		}
	case OpDeleteAll:
		s.initDeleteAll(vi)
	}

	s.inflight[vi.key()] = vi
	s.setPhase(vi, PhaseInit)
	s.setPhase(vi, PhaseJob)
	s.job(vi)
	return vi
}

// Interrupt cuts a VI short. Its data effect is still committed.
func (s *Scheduler) Interrupt(vi *VI) {
	if vi == nil || vi.finished {
		return
	}
	if vi.current != nil {
		vi.current.cancel()
	}
	s.settle(vi)
	s.setPhase(vi, PhaseInterrupted)
	s.commit(vi)
	s.finish(vi)
}

// InterruptAll interrupts every VI in flight. Used on teardown.
func (s *Scheduler) InterruptAll() {
	for _, vi := range s.snapshot() {
		s.Interrupt(vi)
	}
}

func (s *Scheduler) snapshot() []*VI {
	vis := make([]*VI, 0, len(s.inflight))
	for _, vi := range s.inflight {
		vis = append(vis, vi)
	}
	return vis
}

// interruptConflicts interrupts every VI that owns a resource vi needs.
// Interrupted callbacks may start new VIs, so conflicts are rechecked.
func (s *Scheduler) interruptConflicts(vi *VI) {
	for range 16 {
		var conflicts []*VI
		for key, other := range s.inflight {
			if key.container != vi.Container.Name {
				continue
			}
			if vi.Op == OpDeleteAll || key.whole || key.item == vi.Item.ID {
				conflicts = append(conflicts, other)
			}
		}
		if len(conflicts) == 0 {
			return
		}
		for _, other := range conflicts {
			s.logger.Debug("interrupting vi", "vi", other.ID, "op", other.Op, "by", vi.ID)
			s.Interrupt(other)
		}
	}
	s.logger.Warn("vi conflicts did not settle", "vi", vi.ID)
}

// Init handlers: capture preconditions and build the continuation list.
// Siblings always move before the target item's fade.

func (s *Scheduler) initInsert(vi *VI) {
	c := vi.Container
	index := c.resolve(vi.Item, vi.Position)

	future := make([]*Item, 0, c.Len()+1)
	future = append(future, c.items[:index]...)
	future = append(future, vi.Item)
	future = append(future, c.items[index:]...)
	rects := s.layout(c, future)
	vi.target = rects[index]

	var siblings []render.Transition
	for i := index + 1; i < len(future); i++ {
		siblings = append(siblings, s.translate(c, future[i], rects[i]))
	}
	vi.steps = appendStep(vi.steps, siblings)
	vi.steps = appendStep(vi.steps, []render.Transition{{
		Kind:      render.TransitionFadeIn,
		Container: c.Name,
		View:      vi.Item.View,
		From:      vi.target,
		To:        vi.target,
		Duration:  s.opts.FadeDuration,
	}})
}

func (s *Scheduler) initDelete(vi *VI) {
	c := vi.Container
	index := c.Index(vi.Item.ID)

	future := make([]*Item, 0, c.Len())
	for _, it := range c.items {
		if it != vi.Item {
			future = append(future, it)
		}
	}
	rects := s.layout(c, future)
	vi.target = s.geometry(vi.Item)

	var siblings []render.Transition
	for i := index; i < len(future); i++ {
		siblings = append(siblings, s.translate(c, future[i], rects[i]))
	}
	vi.steps = appendStep(vi.steps, siblings)
	vi.steps = appendStep(vi.steps, []render.Transition{s.fadeOut(c, vi.Item)})
}

func (s *Scheduler) initDeleteAll(vi *VI) {
	c := vi.Container
	fades := make([]render.Transition, 0, c.Len())
	for _, it := range c.items {
		fades = append(fades, s.fadeOut(c, it))
	}
	vi.steps = appendStep(vi.steps, fades)
}

func (s *Scheduler) initReorder(vi *VI) {
	c := vi.Container
	index := c.resolve(vi.Item, vi.Position)

	future := make([]*Item, 0, c.Len())
	for _, it := range c.items {
		if it != vi.Item {
			future = append(future, it)
		}
	}
	future = append(future[:index], append([]*Item{vi.Item}, future[index:]...)...)
	rects := s.layout(c, future)
	vi.target = rects[index]

	var siblings []render.Transition
	for i, it := range future {
		if it == vi.Item {
			continue
		}
		if s.geometry(it).Y != rects[i].Y {
			siblings = append(siblings, s.translate(c, it, rects[i]))
		}
	}
	vi.steps = appendStep(vi.steps, siblings)
	vi.steps = appendStep(vi.steps, []render.Transition{s.translate(c, vi.Item, vi.target)})
}

// job applies the Job-phase data effect and runs the continuation list.
func (s *Scheduler) job(vi *VI) {
	if vi.Op == OpReorder {
		vi.Container.unpack(vi.Item)
		vi.Container.pack(vi.Item, vi.Container.resolve(vi.Item, vi.Position))
	}
	s.next(vi)
}

// next starts the next step, or moves to Done when none remain.
func (s *Scheduler) next(vi *VI) {
	if vi.finished {
		return
	}
	if len(vi.steps) == 0 {
		vi.current = nil
		s.setPhase(vi, PhaseDone)
		s.commit(vi)
		s.finish(vi)
		return
	}

	transitions := vi.steps[0]
	vi.steps = vi.steps[1:]

	st := &step{outstanding: len(transitions)}
	vi.current = st
	for _, tr := range transitions {
		cancel := s.renderer.Animate(tr, nil, func() {
			if st.cancelled || vi.finished {
				return
			}
			st.outstanding--
			if st.outstanding == 0 && vi.current == st {
				s.next(vi)
			}
		})
		st.cancels = append(st.cancels, cancel)
	}
}

// settle jumps every transition not yet started to its end state.
func (s *Scheduler) settle(vi *VI) {
	for _, transitions := range vi.steps {
		for _, tr := range transitions {
			if cancel := s.renderer.Animate(tr, nil, nil); cancel != nil {
				cancel()
			}
		}
	}
	vi.steps = nil
}

// commit applies the data effect shared by Done and Interrupted.
func (s *Scheduler) commit(vi *VI) {
	c := vi.Container
	switch vi.Op {
	case OpInsert:
		if !c.contains(vi.Item) {
			c.pack(vi.Item, c.resolve(vi.Item, vi.Position))
		}
	case OpDelete:
		if c.unpack(vi.Item) {
			s.release(vi.Item)
		}
	case OpDeleteAll:
		for _, it := range c.Items() {
			c.unpack(it)
			s.release(it)
		}
	case OpReorder:
		// Layout was already committed in Job.
	}
}

func (s *Scheduler) release(item *Item) {
	if item.View != render.NoView {
		s.renderer.DestroyView(item.View)
		item.View = render.NoView
	}
}

func (s *Scheduler) finish(vi *VI) {
	if vi.finished {
		return
	}
	vi.finished = true
	if s.inflight[vi.key()] == vi {
		delete(s.inflight, vi.key())
	}
	s.realign(vi.Container)
	s.complete(vi, vi.Container.Name, false)
}

// realign moves every packed item no VI owns onto its layout slot. A VI
// plans against the items packed at its Init and never sees siblings
// committed after that.
func (s *Scheduler) realign(c *Container) {
	if s.inflight[inflightKey{container: c.Name, whole: true}] != nil {
		return
	}

	rects := s.layout(c, c.items)
	for i, it := range c.items {
		key := inflightKey{container: c.Name, item: it.ID}
		if it.View == render.NoView || s.inflight[key] != nil {
			continue
		}
		if d := s.drift[key]; d != nil {
			if d.to == rects[i] {
				continue
			}
		} else if g := s.geometry(it); g.X == rects[i].X && g.Y == rects[i].Y {
			continue
		}

		tr := s.translate(c, it, rects[i])
		d := &drift{to: rects[i]}
		s.drift[key] = d
		d.cancel = s.renderer.Animate(tr, nil, func() {
			if s.drift[key] == d {
				delete(s.drift, key)
			}
		})
	}
}

// stopDrift jumps a pending realign translate of it to its end.
func (s *Scheduler) stopDrift(c *Container, it *Item) {
	key := inflightKey{container: c.Name, item: it.ID}
	d := s.drift[key]
	if d == nil {
		return
	}
	delete(s.drift, key)
	if d.cancel != nil {
		d.cancel()
	}
}

func (s *Scheduler) complete(vi *VI, container string, abandoned bool) {
	vi.finished = true
	res := Result{
		ID:        vi.ID.String(),
		Op:        vi.Op,
		Container: container,
		Phase:     vi.Phase,
		Abandoned: abandoned,
	}
	if vi.Item != nil {
		res.ItemID = vi.Item.ID
	}
	s.logger.Debug("vi complete", "vi", res.ID, "op", res.Op, "item", res.ItemID, "phase", res.Phase, "abandoned", abandoned)
	if vi.onDone != nil {
		vi.onDone(res)
	}
}

func (s *Scheduler) setPhase(vi *VI, p Phase) {
	vi.Phase = p
	if s.onPhase != nil {
		s.onPhase(vi)
	}
}

// layout stacks items top to bottom from the container origin.
func (s *Scheduler) layout(c *Container, items []*Item) []render.Rect {
	rects := make([]render.Rect, len(items))
	y := c.Y
	for i, it := range items {
		g := s.geometry(it)
		rects[i] = render.Rect{X: c.X, Y: y, W: g.W, H: g.H}
		y += g.H + c.Gap
	}
	return rects
}

// geometry returns the item's geometry, falling back to its minimum size
// when the renderer reports nothing.
func (s *Scheduler) geometry(it *Item) render.Rect {
	g := s.renderer.Geometry(it.View)
	if g.Empty() {
		g.W, g.H = it.MinSize.W, it.MinSize.H
	}
	return g
}

func (s *Scheduler) translate(c *Container, it *Item, to render.Rect) render.Transition {
	s.stopDrift(c, it)
	return render.Transition{
		Kind:      render.TransitionTranslate,
		Container: c.Name,
		View:      it.View,
		From:      s.geometry(it),
		To:        to,
		Duration:  s.opts.TranslateDuration,
	}
}

func (s *Scheduler) fadeOut(c *Container, it *Item) render.Transition {
	s.stopDrift(c, it)
	g := s.geometry(it)
	return render.Transition{
		Kind:      render.TransitionFadeOut,
		Container: c.Name,
		View:      it.View,
		From:      g,
		To:        g,
		Duration:  s.opts.FadeDuration,
	}
}

func (vi *VI) key() inflightKey {
	if vi.Op == OpDeleteAll || vi.Item == nil {
		return inflightKey{container: vi.Container.Name, whole: true}
	}
	return inflightKey{container: vi.Container.Name, item: vi.Item.ID}
}

// Target returns the rectangle computed for the item during Init.
func (vi *VI) Target() render.Rect {
	return vi.target
}

// Finished reports whether the VI has completed.
func (vi *VI) Finished() bool {
	return vi.finished
}

func (st *step) cancel() {
	if st.cancelled {
		return
	}
	st.cancelled = true
	for _, cancel := range st.cancels {
		if cancel != nil {
			cancel()
		}
	}
}

func appendStep(steps [][]render.Transition, transitions []render.Transition) [][]render.Transition {
	if len(transitions) == 0 {
		return steps
	}
	return append(steps, transitions)
}
