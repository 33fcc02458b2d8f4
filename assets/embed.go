// assets/embed.go
//
// Embedded content shipped with the binary.
//
//   puzzles.json  seed puzzle pack used when no database or upstream source
//                 is configured (and by tests).

package assets

import (
	_ "embed"
)

//go:embed puzzles.json
var puzzlePack []byte

// PuzzlePack returns the raw seed pack as a JSON array of puzzles.
// The returned slice is a copy.
func PuzzlePack() []byte {
	out := make([]byte, len(puzzlePack))
	copy(out, puzzlePack)
	return out
}
