package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/puzzlebox/internal/groups"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

var (
	tileBase = lipgloss.NewStyle().
			Width(12).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("#121213")).
			Background(lipgloss.Color("#EFEFE6"))

	tileSelected = tileBase.
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5A594E"))

	tileCursor = lipgloss.NewStyle().Underline(true)

	tileShaking = tileBase.Background(lipgloss.Color("#FF6B6B"))

	// tier colours, easiest first
	tierColors = []lipgloss.Color{"#F9DF6D", "#A0C35A", "#B0C4EF", "#BA81C5"}
)

type groupKeys struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Toggle   key.Binding
	Submit   key.Binding
	Shuffle  key.Binding
	Deselect key.Binding
	Retry    key.Binding
	Quit     key.Binding
}

func (k groupKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Submit, k.Shuffle, k.Deselect, k.Retry, k.Quit}
}

func (k groupKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Left, k.Right}, k.ShortHelp()}
}

func defaultGroupKeys() groupKeys {
	return groupKeys{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Shuffle:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		Deselect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "deselect all")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "new puzzle")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// GroupsModel is the bubbletea model for the grouping game.
type GroupsModel struct {
	ctx     context.Context
	eng     *groups.Engine
	changes notifier
	keys    groupKeys
	help    help.Model

	state   groups.State
	cursor  int
	err     error
	ticking bool
}

// NewGroupsModel builds an engine over src and wraps it.
func NewGroupsModel(ctx context.Context, src puzzle.Source, opts ...groups.Option) *GroupsModel {
	m := &GroupsModel{
		ctx:     ctx,
		changes: newNotifier(),
		keys:    defaultGroupKeys(),
		help:    help.New(),
	}
	m.eng = groups.New(src, append(opts, groups.WithListener(m.changes.notify))...)
	m.state = m.eng.State()
	return m
}

// Engine exposes the underlying engine.
func (m *GroupsModel) Engine() *groups.Engine { return m.eng }

func (m *GroupsModel) Init() tea.Cmd {
	return tea.Batch(
		run("load", func() error { return m.eng.Load(m.ctx) }),
		m.changes.wait(),
	)
}

func (m *GroupsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case changedMsg:
		m.refresh()
		return m, tea.Batch(m.changes.wait(), m.maybeTick())

	case tickMsg:
		m.ticking = false
		m.refresh()
		return m, m.maybeTick()

	case opDoneMsg:
		m.err = nil
		if msg.err != nil && !expectedGroupsErr(msg.err) {
			m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
		}
		m.refresh()
	}
	return m, nil
}

func (m *GroupsModel) refresh() {
	m.state = m.eng.State()
	if n := len(m.state.Board); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m *GroupsModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	n := len(m.state.Board)
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor >= puzzle.GroupSize {
			m.cursor -= puzzle.GroupSize
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor+puzzle.GroupSize < n {
			m.cursor += puzzle.GroupSize
		}
	case key.Matches(msg, m.keys.Left):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Right):
		if m.cursor < n-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if m.cursor < n {
			_ = m.eng.ToggleTile(m.state.Board[m.cursor].ID)
		}
	case key.Matches(msg, m.keys.Deselect):
		_ = m.eng.DeselectAll()
	case key.Matches(msg, m.keys.Submit):
		return run("submit", func() error { return m.eng.Submit(m.ctx) })
	case key.Matches(msg, m.keys.Shuffle):
		return run("shuffle", func() error { return m.eng.Shuffle(m.ctx) })
	case key.Matches(msg, m.keys.Retry):
		return run("retry", func() error { return m.eng.Retry(m.ctx) })
	}
	return nil
}

func (m *GroupsModel) maybeTick() tea.Cmd {
	if m.ticking || len(m.state.Shaking) == 0 {
		return nil
	}
	m.ticking = true
	return tick()
}

func expectedGroupsErr(err error) bool {
	for _, target := range []error{
		groups.ErrWrongGroup, groups.ErrNeedFour, groups.ErrBusy,
		groups.ErrRoundOver, groups.ErrNotLoaded, groups.ErrStale,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m *GroupsModel) View() string {
	s := m.state
	var b strings.Builder

	b.WriteString(titleStyle.Render("GROUPS"))
	b.WriteString("  Create four groups of four!\n\n")

	switch s.Status {
	case groups.StatusLoading:
		b.WriteString(s.Message + "\n")
		return b.String()
	case groups.StatusError:
		b.WriteString(errorStyle.Render(s.Message) + "\n\n")
		b.WriteString(helpStyle.Render("r try again • q quit"))
		return b.String()
	}

	for _, g := range s.Solved {
		labels := make([]string, len(g.Tiles))
		for i, t := range g.Tiles {
			labels[i] = t.Label
		}
		band := lipgloss.NewStyle().
			Width(4*13-1).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("#121213")).
			Background(tierColors[g.Tier%len(tierColors)])
		b.WriteString(band.Render(g.Title+"\n"+strings.Join(labels, ", ")) + "\n")
	}

	moving := make(map[string]groups.Move, len(s.Moves))
	for _, mv := range s.Moves {
		moving[mv.TileID] = mv
	}
	for i, t := range s.Board {
		st := tileBase
		switch {
		case containsID(s.Shaking, t.ID):
			st = tileShaking
		case s.IsSelected(t.ID):
			st = tileSelected
		}
		label := t.Label
		if _, ok := s.WaveDelay[t.ID]; ok {
			label = "↑" + label
		}
		if mv, ok := moving[t.ID]; ok {
			label = fmt.Sprintf("%s→%d", label, mv.ToSlot+1)
		}
		cell := st.Render(label)
		if i == m.cursor {
			cell = tileCursor.Render(cell)
		}
		b.WriteString(cell)
		if i%puzzle.GroupSize == puzzle.GroupSize-1 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}

	b.WriteString("\nMistakes Remaining: ")
	b.WriteString(strings.Repeat("● ", s.MistakesRemaining))
	b.WriteString(strings.Repeat("○ ", groups.MaxMistakes-s.MistakesRemaining))
	b.WriteString("\n")

	if s.Status.Over() {
		title := "Round complete"
		if s.Status == groups.StatusWon {
			title = "All 4 groups solved"
		}
		b.WriteString("\n" + alertStyle.Render(title) + " " + feedbackStyle.Render(s.Message) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
