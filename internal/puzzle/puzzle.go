// internal/puzzle/puzzle.go
//
// Puzzle model for the grouping game.
//
// A Puzzle is four answers of four members each. Before play the answers are
// ordered by level (0 = easiest) with level -1 entries last, then expanded into
// sixteen tiles whose ids are stable for the life of the puzzle:
//
//   group id  group-<answerIndex>-<level>
//   tile id   <groupID>-<memberIndex>-<slug(member)>
//
// Decode drops puzzles that fail validation instead of failing the whole list,
// so one malformed entry upstream does not take the game down.

package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	GroupCount = 4
	GroupSize  = 4
	TileCount  = GroupCount * GroupSize
)

// ErrNoPuzzles is returned when a list has nothing to choose from.
var ErrNoPuzzles = errors.New("puzzle: no puzzles available")

// Answer is one group of a puzzle.
type Answer struct {
	Level   int      `json:"level"   validate:"min=-1"`
	Group   string   `json:"group"   validate:"required"`
	Members []string `json:"members" validate:"len=4,dive,required"`
}

// Puzzle is one day of the upstream answers feed.
type Puzzle struct {
	ID      int      `json:"id"      validate:"min=0"`
	Date    string   `json:"date"`
	Answers []Answer `json:"answers" validate:"len=4,dive"`
}

// Tile is one selectable word on the board.
type Tile struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	GroupID string `json:"groupId"`
}

// Group is a solvable answer. Tier is the display order (0..3) used for colour.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level int    `json:"level"`
	Tier  int    `json:"tier"`
}

var validate = validator.New()

// Validate checks the 4x4 shape.
func (p Puzzle) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("puzzle %d: %w", p.ID, err)
	}
	return nil
}

// Decode reads a JSON array of puzzles and keeps the valid ones.
func Decode(r io.Reader) ([]Puzzle, error) {
	var raw []Puzzle
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode puzzles: %w", err)
	}
	return Filter(raw), nil
}

// Filter returns the puzzles that pass Validate, logging the rest.
func Filter(ps []Puzzle) []Puzzle {
	out := make([]Puzzle, 0, len(ps))
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			log.Warn().Err(err).Int("puzzle", p.ID).Msg("dropping malformed puzzle")
			continue
		}
		out = append(out, p)
	}
	return out
}

// SortedAnswers returns the answers ordered by ascending level, level -1 last.
// Equal levels keep their original order.
func (p Puzzle) SortedAnswers() []Answer {
	out := slices.Clone(p.Answers)
	slices.SortStableFunc(out, func(a, b Answer) int {
		switch {
		case a.Level == b.Level:
			return 0
		case a.Level == -1:
			return 1
		case b.Level == -1:
			return -1
		default:
			return a.Level - b.Level
		}
	})
	return out
}

// Build expands p into groups (display order) and tiles (group order).
func Build(p Puzzle) ([]Group, []Tile) {
	answers := p.SortedAnswers()
	groups := make([]Group, 0, len(answers))
	tiles := make([]Tile, 0, len(answers)*GroupSize)
	for i, a := range answers {
		gid := fmt.Sprintf("group-%d-%d", i, a.Level)
		groups = append(groups, Group{ID: gid, Title: a.Group, Level: a.Level, Tier: i})
		for j, m := range a.Members {
			tiles = append(tiles, Tile{
				ID:      fmt.Sprintf("%s-%d-%s", gid, j, Slug(m)),
				Label:   m,
				GroupID: gid,
			})
		}
	}
	return groups, tiles
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses every run of other characters into "-".
func Slug(s string) string {
	return nonSlug.ReplaceAllString(strings.ToLower(s), "-")
}

// Choose picks a puzzle uniformly at random. rng may be nil.
func Choose(ps []Puzzle, rng *rand.Rand) (Puzzle, error) {
	if len(ps) == 0 {
		return Puzzle{}, ErrNoPuzzles
	}
	return ps[intN(rng, len(ps))], nil
}

// ChooseExcept is Choose over the puzzles whose id is not excludeID. When
// that leaves nothing, it falls back to the full list.
func ChooseExcept(ps []Puzzle, excludeID int, rng *rand.Rand) (Puzzle, error) {
	pool := make([]Puzzle, 0, len(ps))
	for _, p := range ps {
		if p.ID != excludeID {
			pool = append(pool, p)
		}
	}
	if len(pool) == 0 {
		pool = ps
	}
	return Choose(pool, rng)
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}
