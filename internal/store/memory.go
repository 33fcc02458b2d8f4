// internal/store/memory.go
//
// In-memory implementation of Store.
// Used when DATABASE_PATH is empty: the server seeds it from the embedded
// puzzle pack at startup and the catalog is lost on restart.
//
// Characteristics:
//   - Puzzles keyed by ID; saving an existing ID replaces it.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Puzzles lists in ascending ID order, like the SQLite store.

package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("store: closed")

// Store is the puzzle catalog. Every Store is also a puzzle.Source.
type Store interface {
	// SavePuzzles inserts or replaces puzzles by ID and reports how many
	// were written.
	SavePuzzles(ctx context.Context, ps []puzzle.Puzzle) (int, error)

	// Puzzles returns the whole catalog ordered by ID.
	Puzzles(ctx context.Context) ([]puzzle.Puzzle, error)

	Close() error
}

type memory struct {
	mu      sync.RWMutex
	puzzles map[int]puzzle.Puzzle
	closed  bool
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() Store {
	return &memory{puzzles: make(map[int]puzzle.Puzzle)}
}

func (m *memory) SavePuzzles(_ context.Context, ps []puzzle.Puzzle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	for _, p := range ps {
		p.Answers = slices.Clone(p.Answers)
		m.puzzles[p.ID] = p
	}
	return len(ps), nil
}

func (m *memory) Puzzles(_ context.Context) ([]puzzle.Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]puzzle.Puzzle, 0, len(m.puzzles))
	for _, id := range slices.Sorted(maps.Keys(m.puzzles)) {
		out = append(out, m.puzzles[id])
	}
	return out, nil
}

func (m *memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
