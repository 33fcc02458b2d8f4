package groups

import (
	"time"

	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

// MaxMistakes is the mistake budget of a round.
const MaxMistakes = 4

// Status is the round lifecycle.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Over reports a finished round.
func (s Status) Over() bool { return s == StatusWon || s == StatusLost }

// Move asks the renderer to slide TileID from board slot FromSlot into the
// vacant top-row slot ToSlot, starting after Delay.
type Move struct {
	TileID   string        `json:"tileId"`
	FromSlot int           `json:"fromSlot"`
	ToSlot   int           `json:"toSlot"`
	Delay    time.Duration `json:"delay"`
}

// SolvedGroup is one finished group, in the order it was solved.
type SolvedGroup struct {
	GroupID      string        `json:"groupId"`
	Title        string        `json:"title"`
	Level        int           `json:"level"`
	Tier         int           `json:"tier"`
	Tiles        []puzzle.Tile `json:"tiles"`
	AutoRevealed bool          `json:"autoRevealed"`
}

// State is a consistent snapshot of an Engine.
type State struct {
	RoundID  string `json:"roundId"`
	PuzzleID int    `json:"puzzleId"`
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`

	Board             []puzzle.Tile `json:"board"`
	Selected          []string      `json:"selected"`
	Solved            []SolvedGroup `json:"solved"`
	MistakesRemaining int           `json:"mistakesRemaining"`

	Submitting    bool `json:"submitting"`
	Shuffling     bool `json:"shuffling"`
	AutoRevealing bool `json:"autoRevealing"`

	// Solve animation, empty outside a solve sequence.
	WaveDelay map[string]time.Duration `json:"waveDelay,omitempty"`
	Moves     []Move                   `json:"moves,omitempty"`

	// Tiles shaking after a wrong guess; ShakeToken changes on every retrigger.
	Shaking    []string `json:"shaking,omitempty"`
	ShakeToken int      `json:"shakeToken,omitempty"`
}

// IsSelected reports whether id is in the selection.
func (s State) IsSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Busy reports whether a sequence is running.
func (s State) Busy() bool { return s.Submitting || s.Shuffling || s.AutoRevealing }
