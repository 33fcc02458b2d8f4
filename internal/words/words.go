// internal/words/words.go
//
// Word bank for the word-guess game.
//
// Responsibilities:
//   - Load the allow-list from a file or fall back to the embedded default.
//   - Answer "is this guess on the allow-list" (case-insensitive).
//   - Pick uniformly random target words from the allow-list.
//
// Word lists:
//   - One word per line; blank lines and lines starting with '#' are skipped.
//   - Only 5-letter alphabetic words are kept, normalized to uppercase.
//
// Environment variables (read by internal/config):
//   WORDS_ALLOWED_FILE=/path/to/words.txt
//
// A Bank is safe for concurrent use. Replace swaps the whole list at once,
// which is what the file watcher does on reload.

package words

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
)

// WordLen is the only accepted word length.
const WordLen = 5

//go:embed default_words.txt
var embeddedWords string

// ErrEmpty is returned when a list ends up with no usable words.
var ErrEmpty = errors.New("words: word list is empty")

// Bank holds the allow-list.
type Bank struct {
	mu   sync.Mutex
	list []string
	set  map[string]struct{}
	rng  *rand.Rand // nil → math/rand/v2 global source
}

// NewBank builds a bank from list. Invalid entries are dropped.
func NewBank(list []string, rng *rand.Rand) (*Bank, error) {
	b := &Bank{rng: rng}
	if err := b.Replace(list); err != nil {
		return nil, err
	}
	return b, nil
}

// Load builds a bank from path, or from the embedded default when path is empty.
func Load(path string, rng *rand.Rand) (*Bank, error) {
	if path == "" {
		return NewBank(parseLines(embeddedWords), rng)
	}
	list, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewBank(list, rng)
}

// ReadFile loads one word per line from path.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w, ok := normalize(sc.Text()); ok {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

// Replace swaps the bank contents. The old list is kept if list is unusable.
func (b *Bank) Replace(list []string) error {
	clean := make([]string, 0, len(list))
	set := make(map[string]struct{}, len(list))
	for _, raw := range list {
		w, ok := normalize(raw)
		if !ok {
			continue
		}
		if _, dup := set[w]; dup {
			continue
		}
		set[w] = struct{}{}
		clean = append(clean, w)
	}
	if len(clean) == 0 {
		return ErrEmpty
	}

	b.mu.Lock()
	b.list, b.set = clean, set
	b.mu.Unlock()
	return nil
}

// Random returns a uniformly random word from the allow-list.
func (b *Bank) Random() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var i int
	if b.rng != nil {
		i = b.rng.IntN(len(b.list))
	} else {
		i = rand.IntN(len(b.list))
	}
	return b.list[i]
}

// TargetWord implements game.WordSource.
func (b *Bank) TargetWord(context.Context) (string, error) { return b.Random(), nil }

// IsAllowed reports whether w is on the allow-list (case-insensitive, exact length).
func (b *Bank) IsAllowed(w string) bool {
	w = strings.ToUpper(w)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.set[w]
	return ok
}

// Len returns the number of loaded words.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.list)
}

// Words returns a copy of the list in load order.
func (b *Bank) Words() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.list...)
}

// IsWordShaped reports whether s is exactly WordLen ASCII letters, any case.
func IsWordShaped(s string) bool {
	if len(s) != WordLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20 // fold to lowercase
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// normalize trims and uppercases one line; ok is false for comments and
// anything that is not a 5-letter word.
func normalize(line string) (string, bool) {
	w := strings.TrimSpace(line)
	if w == "" || strings.HasPrefix(w, "#") || !IsWordShaped(w) {
		return "", false
	}
	return strings.ToUpper(w), true
}

// parseLines splits an embedded multiline string into words.
func parseLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if w, ok := normalize(line); ok {
			out = append(out, w)
		}
	}
	return out
}
