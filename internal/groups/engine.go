// internal/groups/engine.go
//
// Engine for the four-groups-of-four puzzle.
// Responsibilities:
//   - Load a puzzle list from a Source and deal a random puzzle as 16 tiles.
//   - Track the selection (max 4), the mistake budget and the solved groups.
//   - Run the solve sequence on the injected clock: wave, gather moves,
//     removal. On the last mistake, solve every remaining group in order.
//   - Shuffle the board with a short two-step animation.
//
// Notes:
//   - Same locking model as the word game: one mutex, never held across a
//     clock wait or a Source call, listener called outside the lock.
//   - submitting / shuffling / autoRevealing gate every mutating input.
//   - Load and LoadPuzzle are hard resets. They bump the generation, and any
//     sequence still running under the old generation returns ErrStale.
package groups

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/puzzlebox/internal/clock"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

var (
	ErrBusy          = errors.New("sequence in progress")
	ErrNotLoaded     = errors.New("no puzzle loaded")
	ErrRoundOver     = errors.New("round finished")
	ErrUnknownTile   = errors.New("tile is not on the board")
	ErrSelectionFull = errors.New("four tiles already selected")
	ErrNeedFour      = errors.New("select exactly four tiles")
	ErrWrongGroup    = errors.New("tiles do not share a group")
	ErrStale         = errors.New("sequence discarded after reset")
)

const (
	msgLoading    = "Loading puzzle..."
	msgLoadFailed = "Unable to load Connections puzzle."
	msgWon        = "Great solve. Every group was correct."
	msgLost       = "No mistakes left. Review the solved groups above."
)

// Timing controls the solve, reveal and shuffle sequences.
type Timing struct {
	Frame           time.Duration // pause before a sequence starts
	WaveStep        time.Duration // wave offset per board row
	SolveSettle     time.Duration // wait after the wave, before moves
	NoWaveSettle    time.Duration // same wait for auto-revealed groups
	Gather          time.Duration // wait for moves to land, after the wave
	RevealPause     time.Duration // pause between auto-revealed groups
	ShuffleSwap     time.Duration // when the board is reordered
	ShuffleDuration time.Duration // when shuffling ends
	Shake           time.Duration // wrong-guess shake
}

func DefaultTiming() Timing {
	return Timing{
		Frame:           clock.Frame,
		WaveStep:        140 * time.Millisecond,
		SolveSettle:     420 * time.Millisecond,
		NoWaveSettle:    80 * time.Millisecond,
		Gather:          620 * time.Millisecond,
		RevealPause:     180 * time.Millisecond,
		ShuffleSwap:     140 * time.Millisecond,
		ShuffleDuration: 420 * time.Millisecond,
		Shake:           420 * time.Millisecond,
	}
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clk = c } }

// WithRand injects the source used to pick puzzles and shuffle tiles.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

func WithTiming(t Timing) Option { return func(e *Engine) { e.timing = t } }

// WithListener registers fn to be called after every observable change,
// outside the engine lock.
func WithListener(fn func()) Option { return func(e *Engine) { e.listener = fn } }

// Engine is the group-solve state machine.
type Engine struct {
	mu       sync.Mutex
	src      puzzle.Source
	clk      clockwork.Clock
	rng      *rand.Rand
	timing   Timing
	listener func()

	puzzles  []puzzle.Puzzle // last fetched list, used by Retry
	active   puzzle.Puzzle
	dealt    bool
	roundID  string
	groups   []puzzle.Group
	groupBy  map[string]puzzle.Group
	board    []puzzle.Tile
	selected []string
	solved   []SolvedGroup
	mistakes int
	status   Status
	message  string

	submitting    bool
	shuffling     bool
	autoRevealing bool

	wave     map[string]time.Duration
	moves    []Move
	shakeIDs []string
	shakeFx  clock.Expiry

	gen     uint64
	loadSeq uint64
}

// New returns an engine in the loading state. Call Load or LoadPuzzle.
func New(src puzzle.Source, opts ...Option) *Engine {
	e := &Engine{
		src:      src,
		clk:      clock.Real(),
		timing:   DefaultTiming(),
		status:   StatusLoading,
		message:  msgLoading,
		mistakes: MaxMistakes,
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

// Load fetches the puzzle list and deals a random puzzle. On failure the
// engine moves to StatusError and the error is returned.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	e.gen++
	e.clearSequence()
	e.status = StatusLoading
	e.message = msgLoading
	e.mu.Unlock()
	e.notify()

	ps, err := e.src.Puzzles(ctx)
	if err == nil {
		ps = puzzle.Filter(ps)
	}

	e.mu.Lock()
	if seq != e.loadSeq {
		e.mu.Unlock()
		return ErrStale
	}
	var p puzzle.Puzzle
	if err == nil {
		p, err = puzzle.Choose(ps, e.rng)
	}
	if err != nil {
		e.status = StatusError
		e.message = msgLoadFailed
		e.mu.Unlock()
		e.notify()
		log.Warn().Err(err).Msg("load puzzles")
		return fmt.Errorf("load puzzle: %w", err)
	}
	e.puzzles = ps
	e.deal(p)
	e.mu.Unlock()

	e.notify()
	return nil
}

// LoadPuzzle deals p directly, replacing whatever is in play.
func (e *Engine) LoadPuzzle(p puzzle.Puzzle) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.loadSeq++
	if !slices.ContainsFunc(e.puzzles, func(q puzzle.Puzzle) bool { return q.ID == p.ID }) {
		e.puzzles = append(e.puzzles, p)
	}
	e.deal(p)
	e.mu.Unlock()
	e.notify()
	return nil
}

// Retry reloads after a failed load, otherwise deals a different puzzle
// from the last fetched list.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	if e.busy() || (e.status == StatusLoading && e.dealt) {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.status == StatusError || len(e.puzzles) == 0 {
		e.mu.Unlock()
		return e.Load(ctx)
	}
	p, err := puzzle.ChooseExcept(e.puzzles, e.active.ID, e.rng)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.loadSeq++
	e.deal(p)
	e.mu.Unlock()
	e.notify()
	return nil
}

// ToggleTile selects or deselects id.
func (e *Engine) ToggleTile(id string) error {
	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	if !slices.ContainsFunc(e.board, func(t puzzle.Tile) bool { return t.ID == id }) {
		e.mu.Unlock()
		return ErrUnknownTile
	}
	if i := slices.Index(e.selected, id); i >= 0 {
		e.selected = slices.Delete(e.selected, i, i+1)
	} else {
		if len(e.selected) >= puzzle.GroupSize {
			e.mu.Unlock()
			return ErrSelectionFull
		}
		e.selected = append(e.selected, id)
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// DeselectAll clears the selection.
func (e *Engine) DeselectAll() error {
	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.selected = nil
	e.mu.Unlock()
	e.notify()
	return nil
}

// Shuffle reorders the board. It blocks for ShuffleDuration.
func (e *Engine) Shuffle(ctx context.Context) error {
	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.shuffling = true
	gen := e.gen
	e.mu.Unlock()
	e.notify()

	_ = clock.Sleep(ctx, e.clk, e.timing.ShuffleSwap)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	e.rng.Shuffle(len(e.board), func(i, j int) { e.board[i], e.board[j] = e.board[j], e.board[i] })
	e.mu.Unlock()
	e.notify()

	_ = clock.Sleep(ctx, e.clk, e.timing.ShuffleDuration-e.timing.ShuffleSwap)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	e.shuffling = false
	e.mu.Unlock()
	e.notify()
	return nil
}

// Submit checks the four selected tiles.
//
// A correct group runs the solve sequence and returns nil once the group is
// solved. A wrong group costs one mistake and returns ErrWrongGroup; on the
// last mistake Submit first auto-reveals every remaining group, which blocks
// for the whole reveal.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if err := e.inputGate(); err != nil {
		e.mu.Unlock()
		return err
	}
	if len(e.selected) != puzzle.GroupSize {
		e.mu.Unlock()
		return ErrNeedFour
	}
	gen := e.gen
	ids := slices.Clone(e.selected)

	if gid, ok := e.sharedGroup(ids); ok {
		e.submitting = true
		e.mu.Unlock()
		e.notify()

		if err := e.solve(ctx, gen, gid, ids, true, false); err != nil {
			return err
		}

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return ErrStale
		}
		e.submitting = false
		e.finishIfSolved()
		e.mu.Unlock()
		e.notify()
		return nil
	}

	e.mistakes = max(0, e.mistakes-1)
	if e.mistakes > 0 {
		e.shakeIDs = ids
		e.shakeFx.Trigger(e.clk.Now(), e.timing.Shake)
		e.mu.Unlock()
		e.notify()
		return ErrWrongGroup
	}

	e.submitting = true
	e.autoRevealing = true
	e.shakeIDs = nil
	e.shakeFx.Clear()
	e.mu.Unlock()
	e.notify()

	if err := e.autoReveal(ctx, gen); err != nil {
		return err
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	e.selected = nil
	e.submitting = false
	e.autoRevealing = false
	e.status = StatusLost
	e.message = msgLost
	roundID := e.roundID
	e.mu.Unlock()

	log.Debug().Str("round", roundID).Msg("groups round lost")
	e.notify()
	return ErrWrongGroup
}

// State returns a snapshot. Expired shakes are omitted.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{
		RoundID:           e.roundID,
		PuzzleID:          e.active.ID,
		Status:            e.status,
		Message:           e.message,
		Board:             slices.Clone(e.board),
		Selected:          slices.Clone(e.selected),
		Solved:            slices.Clone(e.solved),
		MistakesRemaining: e.mistakes,
		Submitting:        e.submitting,
		Shuffling:         e.shuffling,
		AutoRevealing:     e.autoRevealing,
		Moves:             slices.Clone(e.moves),
	}
	if len(e.wave) > 0 {
		s.WaveDelay = make(map[string]time.Duration, len(e.wave))
		for k, v := range e.wave {
			s.WaveDelay[k] = v
		}
	}
	if e.shakeFx.Active(e.clk.Now()) {
		s.Shaking = slices.Clone(e.shakeIDs)
		s.ShakeToken = e.shakeFx.Token
	}
	return s
}

// ------------------------------- sequences ----------------------------------

// solve runs the wave, gather and removal steps for one group whose tiles are
// ids. With wave=false the tiles move together after NoWaveSettle.
func (e *Engine) solve(ctx context.Context, gen uint64, gid string, ids []string, wave, auto bool) error {
	_ = clock.Sleep(ctx, e.clk, e.timing.Frame)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	slots := e.slotsOf(ids)
	delays := make(map[string]time.Duration, len(slots))
	var maxDelay time.Duration
	if wave {
		rowDelay := map[int]time.Duration{}
		for _, slot := range slots {
			row := slot / puzzle.GroupSize
			if _, ok := rowDelay[row]; !ok {
				rowDelay[row] = time.Duration(len(rowDelay)) * e.timing.WaveStep
			}
		}
		for _, slot := range slots {
			d := rowDelay[slot/puzzle.GroupSize]
			delays[e.board[slot].ID] = d
			maxDelay = max(maxDelay, d)
		}
		e.wave = delays
	}
	e.mu.Unlock()
	e.notify()

	settle := e.timing.NoWaveSettle
	if wave {
		settle = maxDelay + e.timing.SolveSettle
	}
	_ = clock.Sleep(ctx, e.clk, settle)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	e.moves = e.gatherMoves(e.slotsOf(ids), delays)
	e.mu.Unlock()
	e.notify()

	_ = clock.Sleep(ctx, e.clk, maxDelay+e.timing.Gather)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrStale
	}
	tiles := make([]puzzle.Tile, 0, len(ids))
	for _, id := range ids {
		if i := slices.IndexFunc(e.board, func(t puzzle.Tile) bool { return t.ID == id }); i >= 0 {
			tiles = append(tiles, e.board[i])
		}
	}
	e.board = slices.DeleteFunc(e.board, func(t puzzle.Tile) bool { return slices.Contains(ids, t.ID) })
	g := e.groupBy[gid]
	e.solved = append(e.solved, SolvedGroup{
		GroupID:      gid,
		Title:        g.Title,
		Level:        g.Level,
		Tier:         g.Tier,
		Tiles:        tiles,
		AutoRevealed: auto,
	})
	e.selected = nil
	e.wave = nil
	e.moves = nil
	e.mu.Unlock()
	e.notify()
	return nil
}

// autoReveal solves every group still on the board, in puzzle order.
func (e *Engine) autoReveal(ctx context.Context, gen uint64) error {
	e.mu.Lock()
	order := slices.Clone(e.groups)
	e.mu.Unlock()

	for _, g := range order {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return ErrStale
		}
		var ids []string
		for _, t := range e.board {
			if t.GroupID == g.ID {
				ids = append(ids, t.ID)
			}
		}
		if len(ids) != puzzle.GroupSize {
			e.mu.Unlock()
			continue
		}
		e.selected = ids
		e.mu.Unlock()
		e.notify()

		_ = clock.Sleep(ctx, e.clk, e.timing.Frame)
		if err := e.solve(ctx, gen, g.ID, ids, false, true); err != nil {
			return err
		}
		_ = clock.Sleep(ctx, e.clk, e.timing.RevealPause)
	}
	return nil
}

// ------------------------------- internals ----------------------------------

// deal resets the round around p. Caller holds e.mu.
func (e *Engine) deal(p puzzle.Puzzle) {
	e.gen++
	e.clearSequence()

	groups, tiles := puzzle.Build(p)
	e.rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })

	e.active = p
	e.dealt = true
	e.roundID = uuid.NewString()
	e.groups = groups
	e.groupBy = make(map[string]puzzle.Group, len(groups))
	for _, g := range groups {
		e.groupBy[g.ID] = g
	}
	e.board = tiles
	e.selected = nil
	e.solved = nil
	e.mistakes = MaxMistakes
	e.status = StatusPlaying
	e.message = ""

	log.Debug().Str("round", e.roundID).Int("puzzle", p.ID).Msg("groups round dealt")
}

// clearSequence drops busy flags and animation state. Caller holds e.mu.
func (e *Engine) clearSequence() {
	e.submitting = false
	e.shuffling = false
	e.autoRevealing = false
	e.wave = nil
	e.moves = nil
	e.shakeIDs = nil
	e.shakeFx.Clear()
}

func (e *Engine) busy() bool { return e.submitting || e.shuffling || e.autoRevealing }

// inputGate is the precondition shared by every interactive operation.
func (e *Engine) inputGate() error {
	switch {
	case e.status.Over():
		return ErrRoundOver
	case e.status != StatusPlaying:
		return ErrNotLoaded
	case e.busy():
		return ErrBusy
	}
	return nil
}

func (e *Engine) sharedGroup(ids []string) (string, bool) {
	var gid string
	for _, id := range ids {
		i := slices.IndexFunc(e.board, func(t puzzle.Tile) bool { return t.ID == id })
		if i < 0 {
			return "", false
		}
		switch g := e.board[i].GroupID; {
		case gid == "":
			gid = g
		case g != gid:
			return "", false
		}
	}
	return gid, gid != ""
}

// slotsOf returns the board indexes of ids in ascending order.
func (e *Engine) slotsOf(ids []string) []int {
	var out []int
	for i, t := range e.board {
		if slices.Contains(ids, t.ID) {
			out = append(out, i)
		}
	}
	return out
}

// gatherMoves pairs selected tiles below the top row, in board order, with
// the top-row slots not already holding a selected tile.
func (e *Engine) gatherMoves(slots []int, delays map[string]time.Duration) []Move {
	var vacant []int
	for i := 0; i < puzzle.GroupSize && i < len(e.board); i++ {
		if !slices.Contains(slots, i) {
			vacant = append(vacant, i)
		}
	}
	var moves []Move
	for _, slot := range slots {
		if slot < puzzle.GroupSize || len(moves) >= len(vacant) {
			continue
		}
		id := e.board[slot].ID
		moves = append(moves, Move{TileID: id, FromSlot: slot, ToSlot: vacant[len(moves)], Delay: delays[id]})
	}
	return moves
}

func (e *Engine) finishIfSolved() {
	if len(e.solved) == len(e.groups) && e.status == StatusPlaying {
		e.status = StatusWon
		e.message = msgWon
		log.Debug().Str("round", e.roundID).Int("mistakesRemaining", e.mistakes).Msg("groups round won")
	}
}

func (e *Engine) notify() {
	if e.listener != nil {
		e.listener()
	}
}
