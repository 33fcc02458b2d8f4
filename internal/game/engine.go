// internal/game/engine.go
//
// Core engine for a single word-guess game.
// Responsibilities:
//   - Start games from a WordSource (6x5 board, uppercase target).
//   - Accept letters / backspace on the current row.
//   - Validate full rows through a GuessChecker, then reveal the result one
//     cell at a time on the injected clock.
//   - Maintain keyboard hints and track in_progress → won/lost.
//
// Notes:
//   - All state lives behind one mutex; the lock is never held across a clock
//     wait or a collaborator call.
//   - While a row is being checked or revealed every input is rejected with
//     ErrBusy, so at most one validation is in flight.
//   - Every reset bumps a generation counter. A check or reveal that resumes
//     under another generation returns ErrStale without touching state.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/puzzlebox/internal/clock"
)

var (
	ErrBusy          = errors.New("guess check in progress")
	ErrGameOver      = errors.New("game finished")
	ErrRowFull       = errors.New("row is full")
	ErrRowEmpty      = errors.New("row is empty")
	ErrNotLetter     = errors.New("not a letter")
	ErrIncompleteRow = errors.New("not enough letters")
	ErrNotReady      = errors.New("game is still loading")
	ErrNotAWord      = errors.New("not a real word")
	ErrStale         = errors.New("result discarded after reset")
	ErrBadTarget     = errors.New("target word must be 5 letters a-z")
)

// User-facing messages.
const (
	msgNotEnough    = "Not enough letters."
	msgNotAWord     = "Not a real word."
	msgLoading      = "Game is still loading."
	msgCheckFailed  = "Could not validate word."
	msgLoadFailed   = "Could not load game word."
	msgStartFailed  = "Could not start a new game."
	msgSolved       = "You solved it."
	msgRevealTarget = "The word was %s."
)

// Timing controls reveal pacing and how long transient effects last.
type Timing struct {
	RevealStep time.Duration // delay after each revealed cell
	Shake      time.Duration // row shake on a rejected submit
	Alert      time.Duration // top alert lifetime
}

// DefaultTiming matches the board animations of the web client.
func DefaultTiming() Timing {
	return Timing{
		RevealStep: 450 * time.Millisecond,
		Shake:      420 * time.Millisecond,
		Alert:      3 * time.Second,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the clock used for reveal pacing and effect expiry.
func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clk = c } }

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option { return func(e *Engine) { e.timing = t } }

// WithListener registers fn to be called after every observable change.
// fn runs outside the engine lock and may call State.
func WithListener(fn func()) Option { return func(e *Engine) { e.listener = fn } }

// Engine is the word-guess state machine.
type Engine struct {
	mu       sync.Mutex
	words    WordSource
	checker  GuessChecker
	clk      clockwork.Clock
	timing   Timing
	listener func()

	roundID  string
	board    Board
	row, col int
	target   string
	status   Status
	hints    map[byte]CellState
	checking bool

	feedback string
	alert    string
	alertFx  clock.Expiry
	shakeRow int
	shakeFx  clock.Expiry

	gen      uint64 // bumped by every reset
	startSeq uint64 // bumped by every Start/StartWith
}

// New constructs an engine with an empty board and no target.
// SubmitRow returns ErrNotReady until Start or StartWith succeeds.
func New(words WordSource, checker GuessChecker, opts ...Option) *Engine {
	e := &Engine{
		words:    words,
		checker:  checker,
		clk:      clock.Real(),
		timing:   DefaultTiming(),
		board:    newBoard(),
		status:   StatusInProgress,
		hints:    make(map[byte]CellState),
		shakeRow: -1,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start fetches a target from the WordSource and resets the game.
// On failure the previous game is kept as-is and a feedback message is set.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.startSeq++
	seq := e.startSeq
	e.mu.Unlock()

	word, err := e.words.TargetWord(ctx)
	if err == nil {
		word, err = normalizeTarget(word)
	}

	e.mu.Lock()
	if seq != e.startSeq {
		e.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		if e.target == "" {
			e.feedback = msgLoadFailed
		} else {
			e.feedback = msgStartFailed
		}
		e.mu.Unlock()
		e.notify()
		log.Warn().Err(err).Msg("load target word")
		return fmt.Errorf("start game: %w", err)
	}
	e.reset(word)
	roundID := e.roundID
	e.mu.Unlock()

	log.Debug().Str("round", roundID).Msg("word game started")
	e.notify()
	return nil
}

// StartWith resets the game with an explicit target.
func (e *Engine) StartWith(word string) error {
	w, err := normalizeTarget(word)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.startSeq++
	e.reset(w)
	e.mu.Unlock()
	e.notify()
	return nil
}

// InputLetter appends r to the current row.
func (e *Engine) InputLetter(r rune) error {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 'A' || r > 'Z' {
		return ErrNotLetter
	}

	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.col >= Cols {
		e.mu.Unlock()
		return ErrRowFull
	}
	e.board[e.row][e.col].Letter = byte(r)
	e.col++
	e.clearMessages()
	e.mu.Unlock()

	e.notify()
	return nil
}

// Backspace clears the last letter of the current row.
func (e *Engine) Backspace() error {
	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.col == 0 {
		e.mu.Unlock()
		return ErrRowEmpty
	}
	e.col--
	e.board[e.row][e.col].Letter = 0
	e.clearMessages()
	e.mu.Unlock()

	e.notify()
	return nil
}

// SubmitRow validates and reveals the current row. It blocks for the whole
// reveal (Cols * RevealStep). Cancelling ctx skips the remaining waits but
// still completes the row so the engine never stays in the checking state.
func (e *Engine) SubmitRow(ctx context.Context) error {
	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.col != Cols {
		e.feedback = ""
		e.raiseAlert(msgNotEnough)
		e.triggerShake()
		e.mu.Unlock()
		e.notify()
		return ErrIncompleteRow
	}
	if len(e.target) != Cols {
		e.clearMessages()
		e.feedback = msgLoading
		e.mu.Unlock()
		e.notify()
		return ErrNotReady
	}
	row, gen, target := e.row, e.gen, e.target
	guess := e.board.RowWord(row)
	e.checking = true
	e.clearMessages()
	e.mu.Unlock()
	e.notify()

	ok, err := e.checker.IsValidGuess(ctx, guess)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	if err != nil || !ok {
		e.checking = false
		e.raiseAlert(msgNotAWord)
		e.triggerShake()
		if err != nil {
			e.feedback = msgCheckFailed
		}
		e.mu.Unlock()
		e.notify()
		if err != nil {
			log.Warn().Err(err).Str("guess", guess).Msg("guess check failed")
			return fmt.Errorf("%w: %w", ErrNotAWord, err)
		}
		return ErrNotAWord
	}
	e.mu.Unlock()

	states := Evaluate(guess, target)
	for c := 0; c < Cols; c++ {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return ErrStale
		}
		e.board[row][c].State = states[c]
		e.mu.Unlock()
		e.notify()

		// a cancelled ctx makes the remaining waits return at once
		_ = clock.Sleep(ctx, e.clk, e.timing.RevealStep)
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	e.mergeHints(guess, states)
	switch {
	case allCorrect(states):
		e.status = StatusWon
		e.feedback = msgSolved
	case row == Rows-1:
		e.status = StatusLost
		e.feedback = fmt.Sprintf(msgRevealTarget, e.target)
	default:
		e.row++
		e.col = 0
	}
	e.checking = false
	status, roundID := e.status, e.roundID
	e.mu.Unlock()

	if status.Over() {
		log.Debug().Str("round", roundID).Str("status", string(status)).Int("rows", row+1).Msg("word game finished")
	}
	e.notify()
	return nil
}

// State returns a snapshot. Expired effects are omitted.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	s := State{
		RoundID:  e.roundID,
		Board:    e.board,
		Row:      e.row,
		Col:      e.col,
		Status:   e.status,
		Hints:    make(map[byte]CellState, len(e.hints)),
		Checking: e.checking,
		Ready:    len(e.target) == Cols,
		Feedback: e.feedback,
		ShakeRow: -1,
	}
	for k, v := range e.hints {
		s.Hints[k] = v
	}
	if e.status.Over() {
		s.Target = e.target
	}
	if e.alertFx.Active(now) {
		s.Alert = e.alert
	}
	if e.shakeFx.Active(now) {
		s.ShakeRow = e.shakeRow
		s.ShakeToken = e.shakeFx.Token
	}
	return s
}

// Hint reports the best state seen for letter (idle if never revealed).
func (e *Engine) Hint(letter byte) CellState {
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.hints[letter]; ok {
		return s
	}
	return StateIdle
}

// ------------------------------- internals ----------------------------------

// reset starts a fresh round. Caller holds e.mu.
func (e *Engine) reset(target string) {
	e.gen++
	e.roundID = uuid.NewString()
	e.board = newBoard()
	e.row, e.col = 0, 0
	e.target = target
	e.status = StatusInProgress
	e.hints = make(map[byte]CellState)
	e.checking = false
	e.feedback = ""
	e.alert = ""
	e.alertFx.Clear()
	e.shakeRow = -1
	e.shakeFx.Clear()
}

// inputGate rejects input while checking or after the game ended.
func (e *Engine) inputGate() error {
	if e.checking {
		return ErrBusy
	}
	if e.status.Over() {
		return ErrGameOver
	}
	return nil
}

func (e *Engine) clearMessages() {
	e.feedback = ""
	e.alert = ""
	e.alertFx.Clear()
}

func (e *Engine) raiseAlert(msg string) {
	e.alert = msg
	e.alertFx.Trigger(e.clk.Now(), e.timing.Alert)
}

func (e *Engine) triggerShake() {
	e.shakeRow = e.row
	e.shakeFx.Trigger(e.clk.Now(), e.timing.Shake)
}

// mergeHints upgrades keyboard hints; a hint never moves to a lower priority.
func (e *Engine) mergeHints(guess string, states [Cols]CellState) {
	for i := 0; i < Cols; i++ {
		l := guess[i]
		if states[i].priority() > e.hints[l].priority() {
			e.hints[l] = states[i]
		}
	}
}

func (e *Engine) notify() {
	if e.listener != nil {
		e.listener()
	}
}

func newBoard() Board {
	var b Board
	for r := range b {
		for c := range b[r] {
			b[r][c].State = StateIdle
		}
	}
	return b
}

// normalizeTarget uppercases w and checks it is 5 ASCII letters.
func normalizeTarget(w string) (string, error) {
	w = strings.ToUpper(strings.TrimSpace(w))
	if len(w) != Cols {
		return "", ErrBadTarget
	}
	for i := 0; i < len(w); i++ {
		if w[i] < 'A' || w[i] > 'Z' {
			return "", ErrBadTarget
		}
	}
	return w, nil
}
