// Package tui renders the two games in the terminal with bubbletea.
//
// The engines block inside Submit/Shuffle/Start while they pace their
// animations, so every long call runs as a tea.Cmd. Engine listeners only
// poke a one-slot channel; the model re-reads State() when it wakes up.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#121213")).
			Background(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)

	feedbackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// changedMsg means the engine reported a change.
type changedMsg struct{}

// tickMsg re-renders while a timed effect is running.
type tickMsg time.Time

// opDoneMsg carries the result of a blocking engine call.
type opDoneMsg struct {
	op  string
	err error
}

const tickEvery = 100 * time.Millisecond

// notifier coalesces engine notifications into at most one pending wake-up.
type notifier chan struct{}

func newNotifier() notifier { return make(notifier, 1) }

func (n notifier) notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}

func (n notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n
		return changedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// run wraps a blocking engine call as a command.
func run(op string, fn func() error) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{op: op, err: fn()} }
}
