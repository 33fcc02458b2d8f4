package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/puzzlebox/internal/game"
)

var (
	cellBase = lipgloss.NewStyle().
			Width(3).
			Align(lipgloss.Center).
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA"))

	cellColors = map[game.CellState]lipgloss.Color{
		game.StateIdle:    lipgloss.Color("#3A3A3C"),
		game.StateCorrect: lipgloss.Color("#538D4E"),
		game.StatePresent: lipgloss.Color("#B59F3B"),
		game.StateAbsent:  lipgloss.Color("#222224"),
	}

	keyRows = []string{"QWERTYUIOP", "ASDFGHJKL", "ZXCVBNM"}
)

type wordKeys struct {
	Submit    key.Binding
	Backspace key.Binding
	NewGame   key.Binding
	Quit      key.Binding
}

func (k wordKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Backspace, k.NewGame, k.Quit}
}

func (k wordKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

func defaultWordKeys() wordKeys {
	return wordKeys{
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Backspace: key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "delete")),
		NewGame:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new game")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// WordModel is the bubbletea model for the word-guess game.
type WordModel struct {
	ctx     context.Context
	eng     *game.Engine
	changes notifier
	keys    wordKeys
	help    help.Model

	state   game.State
	err     error
	ticking bool
}

// NewWordModel builds an engine over words and checker and wraps it.
func NewWordModel(ctx context.Context, words game.WordSource, checker game.GuessChecker, opts ...game.Option) *WordModel {
	m := &WordModel{
		ctx:     ctx,
		changes: newNotifier(),
		keys:    defaultWordKeys(),
		help:    help.New(),
	}
	m.eng = game.New(words, checker, append(opts, game.WithListener(m.changes.notify))...)
	m.state = m.eng.State()
	return m
}

// Engine exposes the underlying engine.
func (m *WordModel) Engine() *game.Engine { return m.eng }

func (m *WordModel) Init() tea.Cmd {
	return tea.Batch(m.start(), m.changes.wait())
}

func (m *WordModel) start() tea.Cmd {
	return run("start", func() error { return m.eng.Start(m.ctx) })
}

func (m *WordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case changedMsg:
		m.state = m.eng.State()
		return m, tea.Batch(m.changes.wait(), m.maybeTick())

	case tickMsg:
		m.ticking = false
		m.state = m.eng.State()
		return m, m.maybeTick()

	case opDoneMsg:
		m.err = nil
		if msg.err != nil && !expectedWordErr(msg.err) {
			m.err = msg.err
		}
		m.state = m.eng.State()
	}
	return m, nil
}

func (m *WordModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.NewGame):
		return m.start()
	case key.Matches(msg, m.keys.Submit):
		return run("submit", func() error { return m.eng.SubmitRow(m.ctx) })
	case key.Matches(msg, m.keys.Backspace):
		_ = m.eng.Backspace()
	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1:
		_ = m.eng.InputLetter(msg.Runes[0])
	}
	return nil
}

// maybeTick keeps re-rendering while an alert or shake is showing so it
// disappears on time.
func (m *WordModel) maybeTick() tea.Cmd {
	if m.ticking || (m.state.Alert == "" && m.state.ShakeRow < 0) {
		return nil
	}
	m.ticking = true
	return tick()
}

// Sentinel results that are already visible in the state.
func expectedWordErr(err error) bool {
	for _, target := range []error{
		game.ErrIncompleteRow, game.ErrNotAWord, game.ErrNotReady,
		game.ErrBusy, game.ErrGameOver, game.ErrStale,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m *WordModel) View() string {
	s := m.state
	var b strings.Builder

	b.WriteString(titleStyle.Render("WORD"))
	b.WriteString("\n\n")

	for r := 0; r < game.Rows; r++ {
		if r == s.ShakeRow {
			b.WriteString(errorStyle.Render("» "))
		} else {
			b.WriteString("  ")
		}
		cells := make([]string, game.Cols)
		for c, cell := range s.Board[r] {
			letter := " "
			if cell.Letter != 0 {
				letter = string(cell.Letter)
			}
			cells[c] = cellBase.Background(cellColors[cell.State]).Render(letter)
		}
		b.WriteString(strings.Join(cells, " "))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, row := range keyRows {
		keys := make([]string, 0, len(row))
		for i := 0; i < len(row); i++ {
			st := s.Hints[row[i]]
			if st == "" {
				st = game.StateIdle
			}
			keys = append(keys, cellBase.Background(cellColors[st]).Render(string(row[i])))
		}
		b.WriteString(strings.Join(keys, ""))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if s.Alert != "" {
		b.WriteString(alertStyle.Render(s.Alert))
		b.WriteString("\n")
	}
	if s.Checking {
		b.WriteString(feedbackStyle.Render("Checking..."))
		b.WriteString("\n")
	}
	if s.Feedback != "" {
		b.WriteString(feedbackStyle.Render(s.Feedback))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}
