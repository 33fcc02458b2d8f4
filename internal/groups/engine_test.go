package groups

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

type fakeClock interface {
	clockwork.Clock
	Advance(time.Duration)
	BlockUntil(int)
}

func fixture(id int) puzzle.Puzzle {
	return puzzle.Puzzle{
		ID: id,
		Answers: []puzzle.Answer{
			{Level: 3, Group: "INSTRUMENTS", Members: []string{"PIANO", "DRUM", "FLUTE", "VIOLIN"}},
			{Level: 0, Group: "FRUITS", Members: []string{"APPLE", "BANANA", "GRAPE", "MANGO"}},
			{Level: 2, Group: "COLORS", Members: []string{"RED", "BLUE", "GREEN", "BLACK"}},
			{Level: 1, Group: "ANIMALS", Members: []string{"DOG", "CAT", "LION", "WOLF"}},
		},
	}
}

func newTestEngine(t *testing.T, src puzzle.Source, opts ...Option) (*Engine, fakeClock) {
	t.Helper()
	var fc fakeClock = clockwork.NewFakeClock()
	base := []Option{WithClock(fc), WithRand(rand.New(rand.NewPCG(3, 4)))}
	e := New(src, append(base, opts...)...)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e, fc
}

// drive runs fn and keeps advancing the fake clock while fn is waiting on it.
func drive(t *testing.T, fc fakeClock, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return finish(t, fc, done)
}

// finish advances the fake clock until a sequence already running reports on
// done.
func finish(t *testing.T, fc fakeClock, done <-chan error) error {
	t.Helper()
	for {
		blocked := make(chan struct{})
		go func() {
			fc.BlockUntil(1)
			close(blocked)
		}()
		select {
		case err := <-done:
			return err
		case <-blocked:
			fc.Advance(time.Second)
		case <-time.After(10 * time.Second):
			t.Fatal("sequence did not finish")
			return nil
		}
	}
}

// groupTiles returns the ids on the board belonging to the group of the
// given display tier.
func groupTiles(s State, tier int) []string {
	groups, _ := puzzle.Build(fixture(0))
	var ids []string
	for _, tl := range s.Board {
		if tl.GroupID == groups[tier].ID {
			ids = append(ids, tl.ID)
		}
	}
	return ids
}

func selectAll(t *testing.T, e *Engine, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := e.ToggleTile(id); err != nil {
			t.Fatalf("ToggleTile(%s): %v", id, err)
		}
	}
}

// wrongGuess returns three tiles of tier a and one of tier b.
func wrongGuess(s State, a, b int) []string {
	return append(groupTiles(s, a)[:3:3], groupTiles(s, b)[0])
}

func TestLoadDealsSixteenTiles(t *testing.T) {
	e, _ := newTestEngine(t, puzzle.Static{fixture(1)})

	s := e.State()
	if s.Status != StatusPlaying || s.PuzzleID != 1 || s.RoundID == "" {
		t.Fatalf("unexpected state %+v", s)
	}
	if len(s.Board) != puzzle.TileCount || s.MistakesRemaining != MaxMistakes {
		t.Fatalf("board %d tiles, %d mistakes", len(s.Board), s.MistakesRemaining)
	}
	for tier := 0; tier < puzzle.GroupCount; tier++ {
		if n := len(groupTiles(s, tier)); n != puzzle.GroupSize {
			t.Errorf("tier %d has %d tiles", tier, n)
		}
	}
}

func TestLoadFailureThenRetry(t *testing.T) {
	fail := true
	src := puzzle.SourceFunc(func(context.Context) ([]puzzle.Puzzle, error) {
		if fail {
			return nil, errors.New("connections feed 503")
		}
		return []puzzle.Puzzle{fixture(5)}, nil
	})
	e := New(src, WithClock(clockwork.NewFakeClock()))

	if s := e.State(); s.Status != StatusLoading {
		t.Fatalf("new engine status = %s", s.Status)
	}
	if err := e.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	s := e.State()
	if s.Status != StatusError || s.Message != "Unable to load Connections puzzle." {
		t.Fatalf("unexpected state %+v", s)
	}
	if err := e.ToggleTile("x"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("ToggleTile in error state: %v", err)
	}

	fail = false
	if err := e.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if s := e.State(); s.Status != StatusPlaying || s.PuzzleID != 5 || s.Message != "" {
		t.Fatalf("unexpected state after retry %+v", s)
	}
}

func TestLoadEmptyListIsAnError(t *testing.T) {
	e := New(puzzle.Static{}, WithClock(clockwork.NewFakeClock()))
	if err := e.Load(context.Background()); !errors.Is(err, puzzle.ErrNoPuzzles) {
		t.Fatalf("expected ErrNoPuzzles, got %v", err)
	}
	if e.State().Status != StatusError {
		t.Error("expected error status")
	}
}

func TestToggleTileSelection(t *testing.T) {
	e, _ := newTestEngine(t, puzzle.Static{fixture(1)})
	board := e.State().Board

	selectAll(t, e, board[0].ID, board[1].ID, board[2].ID, board[3].ID)
	if err := e.ToggleTile(board[4].ID); !errors.Is(err, ErrSelectionFull) {
		t.Fatalf("fifth tile: expected ErrSelectionFull, got %v", err)
	}
	if err := e.ToggleTile(board[1].ID); err != nil {
		t.Fatal(err)
	}
	s := e.State()
	want := []string{board[0].ID, board[2].ID, board[3].ID}
	if !slices.Equal(s.Selected, want) {
		t.Errorf("selected = %v, want %v", s.Selected, want)
	}
	if !s.IsSelected(board[2].ID) || s.IsSelected(board[1].ID) {
		t.Error("IsSelected disagrees with Selected")
	}
	if err := e.ToggleTile("group-9-9-0-nope"); !errors.Is(err, ErrUnknownTile) {
		t.Errorf("expected ErrUnknownTile, got %v", err)
	}
	if err := e.Submit(context.Background()); !errors.Is(err, ErrNeedFour) {
		t.Errorf("Submit with 3 selected: expected ErrNeedFour, got %v", err)
	}
	if err := e.DeselectAll(); err != nil {
		t.Fatal(err)
	}
	if len(e.State().Selected) != 0 {
		t.Error("DeselectAll left a selection")
	}
}

func TestCorrectSubmitWaveThenMoves(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1)})
	tm := DefaultTiming()
	ids := groupTiles(e.State(), 1)
	selectAll(t, e, ids...)

	done := make(chan error, 1)
	go func() { done <- e.Submit(context.Background()) }()

	fc.BlockUntil(1)
	if s := e.State(); !s.Submitting || len(s.WaveDelay) != 0 {
		t.Fatalf("before first frame: %+v", s)
	}
	if err := e.ToggleTile(ids[0]); !errors.Is(err, ErrBusy) {
		t.Errorf("ToggleTile while submitting: expected ErrBusy, got %v", err)
	}
	fc.Advance(tm.Frame)

	// settle wait: wave assigned, no moves yet
	fc.BlockUntil(1)
	s := e.State()
	if len(s.WaveDelay) != puzzle.GroupSize || len(s.Moves) != 0 {
		t.Fatalf("wave phase: %+v", s)
	}
	rowDelay := map[int]time.Duration{}
	var maxDelay time.Duration
	for slot, tl := range s.Board {
		d, ok := s.WaveDelay[tl.ID]
		if !ok {
			continue
		}
		if prev, seen := rowDelay[slot/4]; seen && prev != d {
			t.Errorf("row %d has two delays %v and %v", slot/4, prev, d)
		}
		rowDelay[slot/4] = d
		maxDelay = max(maxDelay, d)
	}
	var rows []int
	for r := range rowDelay {
		rows = append(rows, r)
	}
	slices.Sort(rows)
	for i, r := range rows {
		if rowDelay[r] != time.Duration(i)*tm.WaveStep {
			t.Errorf("row %d delay %v, want %v", r, rowDelay[r], time.Duration(i)*tm.WaveStep)
		}
	}

	fc.Advance(maxDelay + tm.SolveSettle - time.Millisecond)
	if len(e.State().Moves) != 0 {
		t.Fatal("moves emitted before the settle wait ended")
	}
	fc.Advance(time.Millisecond)

	// gather wait: moves point selected lower tiles at free top-row slots
	fc.BlockUntil(1)
	s = e.State()
	var selectedSlots, lower []int
	for slot, tl := range s.Board {
		if slices.Contains(ids, tl.ID) {
			selectedSlots = append(selectedSlots, slot)
			if slot >= 4 {
				lower = append(lower, slot)
			}
		}
	}
	if len(s.Moves) != len(lower) {
		t.Fatalf("got %d moves for %d lower tiles", len(s.Moves), len(lower))
	}
	seenTo := map[int]bool{}
	for i, m := range s.Moves {
		if m.FromSlot != lower[i] || s.Board[m.FromSlot].ID != m.TileID {
			t.Errorf("move %d from wrong slot: %+v", i, m)
		}
		if m.ToSlot >= 4 || slices.Contains(selectedSlots, m.ToSlot) || seenTo[m.ToSlot] {
			t.Errorf("move %d to bad slot: %+v", i, m)
		}
		seenTo[m.ToSlot] = true
		if m.Delay != s.WaveDelay[m.TileID] {
			t.Errorf("move %d delay %v, want wave delay %v", i, m.Delay, s.WaveDelay[m.TileID])
		}
	}

	fc.Advance(maxDelay + tm.Gather)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s = e.State()
	if len(s.Solved) != 1 || s.Solved[0].Title != "ANIMALS" || s.Solved[0].Tier != 1 || s.Solved[0].AutoRevealed {
		t.Fatalf("solved = %+v", s.Solved)
	}
	if len(s.Board) != 12 || len(s.Selected) != 0 || s.Submitting || len(s.Moves) != 0 || len(s.WaveDelay) != 0 {
		t.Fatalf("unexpected state after solve %+v", s)
	}
	for _, tl := range s.Board {
		if slices.Contains(ids, tl.ID) {
			t.Errorf("solved tile %s still on the board", tl.ID)
		}
	}
	if s.Status != StatusPlaying || s.MistakesRemaining != MaxMistakes {
		t.Errorf("status %s mistakes %d", s.Status, s.MistakesRemaining)
	}
}

func TestWrongSubmitShakesAndKeepsSelection(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1)})
	guess := wrongGuess(e.State(), 0, 1)
	selectAll(t, e, guess...)

	if err := e.Submit(context.Background()); !errors.Is(err, ErrWrongGroup) {
		t.Fatalf("expected ErrWrongGroup, got %v", err)
	}
	s := e.State()
	if s.MistakesRemaining != 3 || !slices.Equal(s.Selected, guess) || !slices.Equal(s.Shaking, guess) {
		t.Fatalf("unexpected state %+v", s)
	}
	token := s.ShakeToken

	if err := e.Submit(context.Background()); !errors.Is(err, ErrWrongGroup) {
		t.Fatal(err)
	}
	s = e.State()
	if s.MistakesRemaining != 2 || s.ShakeToken == token {
		t.Errorf("shake not retriggered: %+v", s)
	}

	fc.Advance(DefaultTiming().Shake)
	if s := e.State(); len(s.Shaking) != 0 {
		t.Errorf("shake still active after %v", DefaultTiming().Shake)
	}
}

func TestFourthMistakeAutoRevealsRemainingGroups(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1)})

	// solve tier 2 by hand first
	selectAll(t, e, groupTiles(e.State(), 2)...)
	if err := drive(t, fc, func() error { return e.Submit(context.Background()) }); err != nil {
		t.Fatal(err)
	}

	selectAll(t, e, wrongGuess(e.State(), 0, 3)...)
	for i := 0; i < 3; i++ {
		if err := e.Submit(context.Background()); !errors.Is(err, ErrWrongGroup) {
			t.Fatalf("mistake %d: %v", i+1, err)
		}
	}
	if m := e.State().MistakesRemaining; m != 1 {
		t.Fatalf("mistakes remaining = %d", m)
	}

	var sawAutoReveal bool
	e.listener = func() {
		if e.State().AutoRevealing {
			sawAutoReveal = true
		}
	}
	err := drive(t, fc, func() error { return e.Submit(context.Background()) })
	if !errors.Is(err, ErrWrongGroup) {
		t.Fatalf("expected ErrWrongGroup, got %v", err)
	}
	if !sawAutoReveal {
		t.Error("listener never saw the auto-reveal")
	}

	s := e.State()
	if s.Status != StatusLost || s.MistakesRemaining != 0 || len(s.Board) != 0 || len(s.Selected) != 0 {
		t.Fatalf("unexpected final state %+v", s)
	}
	if s.Busy() || s.Message != "No mistakes left. Review the solved groups above." {
		t.Errorf("flags or message wrong: %+v", s)
	}
	wantTiers := []int{2, 0, 1, 3}
	for i, g := range s.Solved {
		if g.Tier != wantTiers[i] || len(g.Tiles) != 4 || g.AutoRevealed != (i > 0) {
			t.Errorf("solved[%d] = %+v", i, g)
		}
	}
	if err := e.ToggleTile("anything"); !errors.Is(err, ErrRoundOver) {
		t.Errorf("input after loss: expected ErrRoundOver, got %v", err)
	}
	if err := e.DeselectAll(); !errors.Is(err, ErrRoundOver) {
		t.Errorf("DeselectAll after loss: expected ErrRoundOver, got %v", err)
	}
}

func TestSolveAllGroupsWins(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1), fixture(2)})

	for _, tier := range []int{3, 0, 2, 1} {
		selectAll(t, e, groupTiles(e.State(), tier)...)
		if err := drive(t, fc, func() error { return e.Submit(context.Background()) }); err != nil {
			t.Fatalf("tier %d: %v", tier, err)
		}
	}
	s := e.State()
	if s.Status != StatusWon || len(s.Board) != 0 || len(s.Solved) != 4 {
		t.Fatalf("unexpected state %+v", s)
	}
	if s.Message != "Great solve. Every group was correct." {
		t.Errorf("message = %q", s.Message)
	}

	// retry deals the other puzzle with a clean round
	prevRound, prevPuzzle := s.RoundID, s.PuzzleID
	if err := e.Retry(context.Background()); err != nil {
		t.Fatal(err)
	}
	s = e.State()
	if s.Status != StatusPlaying || s.PuzzleID == prevPuzzle || s.RoundID == prevRound {
		t.Fatalf("retry did not deal a new puzzle: %+v", s)
	}
	if len(s.Board) != puzzle.TileCount || len(s.Solved) != 0 || s.MistakesRemaining != MaxMistakes {
		t.Fatalf("retry did not reset: %+v", s)
	}
}

func TestShuffleIsNotReentrant(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1)})
	tm := DefaultTiming()
	before := e.State().Board
	selectAll(t, e, before[0].ID)

	done := make(chan error, 1)
	go func() { done <- e.Shuffle(context.Background()) }()

	fc.BlockUntil(1)
	if !e.State().Shuffling {
		t.Fatal("expected shuffling")
	}
	if err := e.Shuffle(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Shuffle: expected ErrBusy, got %v", err)
	}
	if err := e.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Submit while shuffling: expected ErrBusy, got %v", err)
	}
	if err := e.Retry(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Retry while shuffling: expected ErrBusy, got %v", err)
	}
	if err := e.DeselectAll(); !errors.Is(err, ErrBusy) {
		t.Errorf("DeselectAll while shuffling: expected ErrBusy, got %v", err)
	}

	fc.Advance(tm.ShuffleSwap)
	fc.BlockUntil(1)
	after := e.State()
	if !after.Shuffling {
		t.Error("shuffling cleared before the duration ended")
	}
	ids := func(ts []puzzle.Tile) []string {
		out := make([]string, len(ts))
		for i, tl := range ts {
			out[i] = tl.ID
		}
		slices.Sort(out)
		return out
	}
	if !slices.Equal(ids(before), ids(after.Board)) {
		t.Error("shuffle changed the tile set")
	}

	fc.Advance(tm.ShuffleDuration - tm.ShuffleSwap)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if s := e.State(); s.Shuffling || !slices.Equal(s.Selected, []string{before[0].ID}) {
		t.Errorf("unexpected state after shuffle %+v", s)
	}
}

func TestLoadPuzzleDiscardsRunningSolve(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1)})
	selectAll(t, e, groupTiles(e.State(), 0)...)

	done := make(chan error, 1)
	go func() { done <- e.Submit(context.Background()) }()
	fc.BlockUntil(1)

	if err := e.LoadPuzzle(fixture(9)); err != nil {
		t.Fatal(err)
	}
	fc.Advance(time.Second)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	s := e.State()
	if s.PuzzleID != 9 || len(s.Board) != puzzle.TileCount || len(s.Solved) != 0 || s.Busy() {
		t.Fatalf("stale solve leaked into the new round: %+v", s)
	}
}

func TestLoadPuzzleRejectsMalformed(t *testing.T) {
	e, _ := newTestEngine(t, puzzle.Static{fixture(1)})
	bad := fixture(2)
	bad.Answers = bad.Answers[:3]
	if err := e.LoadPuzzle(bad); err == nil {
		t.Fatal("expected validation error")
	}
	if e.State().PuzzleID != 1 {
		t.Error("malformed puzzle replaced the active one")
	}
}

func TestCancelledSubmitStillCompletes(t *testing.T) {
	e, _ := newTestEngine(t, puzzle.Static{fixture(1)})
	selectAll(t, e, groupTiles(e.State(), 0)...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	if s := e.State(); len(s.Solved) != 1 || s.Submitting {
		t.Fatalf("cancelled solve did not complete: %+v", s)
	}
}

func TestAutoRevealSkipsTheWave(t *testing.T) {
	e, fc := newTestEngine(t, puzzle.Static{fixture(1)})
	tm := DefaultTiming()

	selectAll(t, e, wrongGuess(e.State(), 0, 1)...)
	for i := 0; i < MaxMistakes-1; i++ {
		if err := e.Submit(context.Background()); !errors.Is(err, ErrWrongGroup) {
			t.Fatalf("mistake %d: %v", i+1, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- e.Submit(context.Background()) }()

	// first group in puzzle order is selected, then one frame
	fc.BlockUntil(1)
	s := e.State()
	first := groupTiles(s, 0)
	if !s.AutoRevealing || !slices.Equal(s.Selected, first) || len(s.WaveDelay) != 0 || len(s.Moves) != 0 {
		t.Fatalf("auto-reveal start: %+v", s)
	}
	if s.MistakesRemaining != 0 || len(s.Shaking) != 0 {
		t.Fatalf("mistakes %d shaking %v", s.MistakesRemaining, s.Shaking)
	}
	fc.Advance(tm.Frame)

	// solve frame
	fc.BlockUntil(1)
	if s := e.State(); !slices.Equal(s.Selected, first) || len(s.WaveDelay) != 0 {
		t.Fatalf("solve frame: %+v", s)
	}
	fc.Advance(tm.Frame)

	// settle: no wave assigned, no moves yet
	fc.BlockUntil(1)
	if s := e.State(); len(s.WaveDelay) != 0 || len(s.Moves) != 0 {
		t.Fatalf("settle phase: %+v", s)
	}
	fc.Advance(tm.NoWaveSettle - time.Millisecond)
	if len(e.State().Moves) != 0 {
		t.Fatal("moves emitted before NoWaveSettle ended")
	}
	fc.Advance(time.Millisecond)

	// gather: every move starts at once
	fc.BlockUntil(1)
	s = e.State()
	var lower int
	for slot, tl := range s.Board {
		if slot >= puzzle.GroupSize && slices.Contains(first, tl.ID) {
			lower++
		}
	}
	if len(s.Moves) != lower || len(s.WaveDelay) != 0 || !slices.Equal(s.Selected, first) {
		t.Fatalf("gather phase: %+v", s)
	}
	for _, m := range s.Moves {
		if m.Delay != 0 {
			t.Errorf("auto-reveal move delayed: %+v", m)
		}
	}
	fc.Advance(tm.Gather - time.Millisecond)
	if len(e.State().Solved) != 0 {
		t.Fatal("group removed before the gather ended")
	}
	fc.Advance(time.Millisecond)

	// reveal pause: one group solved, nothing selected
	fc.BlockUntil(1)
	s = e.State()
	if len(s.Solved) != 1 || !s.Solved[0].AutoRevealed || s.Solved[0].Tier != 0 {
		t.Fatalf("solved after first reveal = %+v", s.Solved)
	}
	if len(s.Selected) != 0 || len(s.Moves) != 0 || len(s.Board) != puzzle.TileCount-puzzle.GroupSize {
		t.Fatalf("reveal pause: %+v", s)
	}
	fc.Advance(tm.RevealPause - time.Millisecond)
	if len(e.State().Selected) != 0 {
		t.Fatal("next group selected before RevealPause ended")
	}
	fc.Advance(time.Millisecond)

	// next group starts
	fc.BlockUntil(1)
	if s := e.State(); !slices.Equal(s.Selected, groupTiles(s, 1)) || len(s.Solved) != 1 {
		t.Fatalf("second reveal start: %+v", s)
	}

	if err := finish(t, fc, done); !errors.Is(err, ErrWrongGroup) {
		t.Fatalf("expected ErrWrongGroup, got %v", err)
	}
	if s := e.State(); s.Status != StatusLost || len(s.Solved) != puzzle.GroupCount {
		t.Fatalf("unexpected final state %+v", s)
	}
}

func TestLoadDiscardsSupersededFetch(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	src := puzzle.SourceFunc(func(context.Context) ([]puzzle.Puzzle, error) {
		close(started)
		<-release
		return []puzzle.Puzzle{fixture(1)}, nil
	})
	e := New(src, WithClock(clockwork.NewFakeClock()))

	done := make(chan error, 1)
	go func() { done <- e.Load(context.Background()) }()
	<-started

	if err := e.LoadPuzzle(fixture(3)); err != nil {
		t.Fatal(err)
	}
	round := e.State().RoundID
	close(release)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("late Load: expected ErrStale, got %v", err)
	}

	s := e.State()
	if s.PuzzleID != 3 || s.RoundID != round || s.Status != StatusPlaying || len(s.Board) != puzzle.TileCount {
		t.Fatalf("late fetch replaced the round: %+v", s)
	}
}
