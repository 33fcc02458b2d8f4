// internal/game/types.go
//
// Core type definitions for the word-guess engine.
// Defines:
//   - CellState: per-letter result of a guess (idle/correct/present/absent).
//   - Cell, Board: the fixed 6x5 grid.
//   - Status: in_progress / won / lost.
//   - State: the read-only snapshot handed to renderers.

package game

import "context"

const (
	Rows = 6
	Cols = 5
)

// CellState represents the evaluation result for a single letter.
//   - "idle":    not yet revealed.
//   - "correct": letter is in the target at this position.
//   - "present": letter is in the target at another, unconsumed position.
//   - "absent":  no unconsumed occurrence left in the target.
type CellState string

const (
	StateIdle    CellState = "idle"
	StateCorrect CellState = "correct"
	StatePresent CellState = "present"
	StateAbsent  CellState = "absent"
)

// priority orders revealed states for keyboard hints. idle ranks lowest.
func (s CellState) priority() int {
	switch s {
	case StateCorrect:
		return 3
	case StatePresent:
		return 2
	case StateAbsent:
		return 1
	}
	return 0
}

// Cell is one square of the board. Letter is 0 when empty.
type Cell struct {
	Letter byte      `json:"letter"`
	State  CellState `json:"state"`
}

// Board is the full guess grid.
type Board [Rows][Cols]Cell

// RowWord returns the letters typed on row r.
func (b *Board) RowWord(r int) string {
	buf := make([]byte, 0, Cols)
	for _, c := range b[r] {
		if c.Letter != 0 {
			buf = append(buf, c.Letter)
		}
	}
	return string(buf)
}

// Status is the coarse game state.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
)

// Over reports whether the game reached a terminal status.
func (s Status) Over() bool { return s == StatusWon || s == StatusLost }

// WordSource supplies target words (GET /api/word or the local bank).
type WordSource interface {
	TargetWord(ctx context.Context) (string, error)
}

// GuessChecker decides whether a full row is a real word.
// A non-nil error means the check itself failed; the engine rejects the guess.
type GuessChecker interface {
	IsValidGuess(ctx context.Context, word string) (bool, error)
}

// CheckerFunc adapts a plain function to GuessChecker.
type CheckerFunc func(ctx context.Context, word string) (bool, error)

func (f CheckerFunc) IsValidGuess(ctx context.Context, word string) (bool, error) {
	return f(ctx, word)
}

// State is a consistent snapshot of the engine.
type State struct {
	RoundID  string             `json:"roundId"`
	Board    Board              `json:"board"`
	Row      int                `json:"row"`
	Col      int                `json:"col"`
	Status   Status             `json:"status"`
	Hints    map[byte]CellState `json:"hints"`
	Checking bool               `json:"checking"`
	Ready    bool               `json:"ready"`

	// Target is only exposed once the game is over.
	Target string `json:"target,omitempty"`

	Feedback string `json:"feedback,omitempty"`
	Alert    string `json:"alert,omitempty"`

	// ShakeRow is the row currently shaking, or -1.
	ShakeRow   int `json:"shakeRow"`
	ShakeToken int `json:"shakeToken"`
}
