// Package tui draws the quick panel in a terminal with BubbleTea. It shows
// the heads-up banner, the notification list and the LED, and maps keys to
// dismissals, banner gestures and feature gates.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/quickpanel/internal/engine"
	"github.com/jmylchreest/quickpanel/internal/gates"
	"github.com/jmylchreest/quickpanel/internal/headsup"
	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// Controller is the engine as seen from the terminal. Every method must be
// safe to call from any goroutine.
type Controller interface {
	Status(ctx context.Context) (engine.Status, error)
	Dismiss(id int)
	ClearAll()
	InvokeAction(id int, key string)
	DismissBanner()
	Gesture(dir headsup.Direction)
	SetGate(name gates.Name, enabled bool)
}

// ViewSource provides the views placed in a container, top to bottom.
type ViewSource interface {
	Snapshot(container string) []render.View
}

const (
	refreshInterval = time.Second
	statusTimeout   = 2 * time.Second
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cursorStyle  = lipgloss.NewStyle().Bold(true)
	bannerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1)
	ongoingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Model is the BubbleTea model of the panel.
type Model struct {
	ctrl    Controller
	views   ViewSource
	changes <-chan struct{}

	keys     KeyMap
	help     help.Model
	showHelp bool

	status engine.Status
	list   []render.View
	banner []render.View
	cursor int
	err    error

	width  int
	height int
	now    func() time.Time
}

// New creates a Model. changes may be nil, in which case the view refreshes
// on a timer only.
func New(ctrl Controller, views ViewSource, changes <-chan struct{}) Model {
	return Model{
		ctrl:    ctrl,
		views:   views,
		changes: changes,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		now:     time.Now,
	}
}

type changedMsg struct{}

type tickMsg time.Time

type refreshedMsg struct {
	status engine.Status
	list   []render.View
	banner []render.View
	err    error
}

// Init starts the refresh, the change watcher and the timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, m.waitForChange, tick())
}

func (m Model) refresh() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	status, err := m.ctrl.Status(ctx)
	return refreshedMsg{
		status: status,
		list:   m.views.Snapshot(engine.ContainerList),
		banner: m.views.Snapshot(engine.ContainerBanner),
		err:    err,
	}
}

func (m Model) waitForChange() tea.Msg {
	if m.changes == nil {
		return nil
	}
	if _, ok := <-m.changes; !ok {
		return nil
	}
	return changedMsg{}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.refresh, m.waitForChange)

	case tickMsg:
		return m, tea.Batch(m.refresh, tick())

	case refreshedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		m.list = msg.list
		m.banner = msg.banner
		m.cursor = min(m.cursor, max(len(m.list)-1, 0))
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.list)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if rec := m.selected(); rec != nil {
			m.ctrl.InvokeAction(rec.ID, "default")
		}
	case key.Matches(msg, m.keys.Dismiss):
		if rec := m.selected(); rec != nil {
			m.ctrl.Dismiss(rec.ID)
		}
	case key.Matches(msg, m.keys.ClearAll):
		m.ctrl.ClearAll()

	case key.Matches(msg, m.keys.DismissBanner):
		m.ctrl.DismissBanner()
	case key.Matches(msg, m.keys.FlickUp):
		m.ctrl.Gesture(headsup.DirectionUp)
	case key.Matches(msg, m.keys.FlickDown):
		m.ctrl.Gesture(headsup.DirectionDown)
	case key.Matches(msg, m.keys.FlickLeft):
		m.ctrl.Gesture(headsup.DirectionLeft)
	case key.Matches(msg, m.keys.FlickRight):
		m.ctrl.Gesture(headsup.DirectionRight)

	case key.Matches(msg, m.keys.ToggleDND):
		m.ctrl.SetGate(gates.DoNotDisturb, !m.status.Gates.DoNotDisturb)
		m.status.Gates.DoNotDisturb = !m.status.Gates.DoNotDisturb
	case key.Matches(msg, m.keys.ToggleLock):
		m.ctrl.SetGate(gates.LockScreen, !m.status.Gates.LockScreen)
		m.status.Gates.LockScreen = !m.status.Gates.LockScreen
	case key.Matches(msg, m.keys.TogglePanel):
		m.ctrl.SetGate(gates.QuickPanel, !m.status.Gates.QuickPanel)
		m.status.Gates.QuickPanel = !m.status.Gates.QuickPanel
	case key.Matches(msg, m.keys.ToggleLED):
		m.ctrl.SetGate(gates.LED, !m.status.Gates.LED)
		m.status.Gates.LED = !m.status.Gates.LED
	}
	return m, nil
}

func (m Model) selected() *model.Record {
	if m.cursor < 0 || m.cursor >= len(m.list) {
		return nil
	}
	return m.list[m.cursor].Record
}

// View renders the panel.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("quickpanel"))
	b.WriteString("  ")
	b.WriteString(m.viewGates())
	b.WriteString("\n")
	b.WriteString(m.viewLED())
	b.WriteString("\n\n")

	if banner := m.viewBanner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n\n")
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("%d ongoing, %d notifications", m.status.Ongoing, m.status.Normal)))
	b.WriteString("\n")
	if len(m.list) == 0 {
		b.WriteString(dimStyle.Render("  nothing here"))
		b.WriteString("\n")
	}
	for i, v := range m.list {
		b.WriteString(m.viewRow(v, i == m.cursor))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("engine: " + m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewGates() string {
	g := m.status.Gates
	flags := []struct {
		label string
		on    bool
	}{
		{"dnd", g.DoNotDisturb},
		{"lock", g.LockScreen},
		{"panel", g.QuickPanel},
		{"led", g.LED},
	}

	parts := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.on {
			parts = append(parts, onStyle.Render(f.label))
		} else {
			parts = append(parts, dimStyle.Render(f.label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) viewLED() string {
	l := m.status.LED
	if !l.On {
		return dimStyle.Render("○ LED off")
	}
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(l.Color)).Render("●")
	if l.OnMs > 0 && l.OffMs > 0 {
		return fmt.Sprintf("%s LED %s blinking %d/%dms for #%d", dot, l.Color, l.OnMs, l.OffMs, l.Owner)
	}
	return fmt.Sprintf("%s LED %s solid for #%d", dot, l.Color, l.Owner)
}

func (m Model) viewBanner() string {
	if len(m.banner) == 0 || m.banner[0].Record == nil {
		return ""
	}
	v := m.banner[0]
	rec := v.Record

	content := cursorStyle.Render(rec.Title)
	if rec.AppName != "" {
		content = dimStyle.Render(rec.AppName) + "\n" + content
	}
	if rec.Body != "" {
		content += "\n" + rec.Body
	}

	style := bannerStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	if v.Opacity < 1 {
		style = style.Faint(true)
	}
	return style.Render(content)
}

func (m Model) viewRow(v render.View, selected bool) string {
	rec := v.Record
	if rec == nil {
		return ""
	}

	prefix := "  "
	if selected {
		prefix = cursorStyle.Render("▸ ")
	}

	marker := "•"
	if rec.Category == model.CategoryOngoing {
		marker = ongoingStyle.Render("◆")
	}

	line := fmt.Sprintf("%s %s", marker, rec.Title)
	if rec.AppName != "" {
		line += dimStyle.Render(" · " + rec.AppName)
	}
	if !rec.Timestamp.IsZero() {
		line += dimStyle.Render(" · " + humanize.RelTime(rec.Timestamp, m.now(), "ago", "from now"))
	}

	if v.Animating || v.Opacity < 1 {
		line = lipgloss.NewStyle().Faint(true).Render(line)
	}
	if selected {
		line = cursorStyle.Render(line)
	}
	return prefix + line
}

// Run starts the terminal program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, ctrl Controller, r *Renderer) error {
	p := tea.NewProgram(New(ctrl, r, r.Changes()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
