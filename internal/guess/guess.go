// internal/guess/guess.go
//
// Guess validation: allow-list first, dictionary oracle second.
//
// Decision order:
//   1. Not exactly 5 letters → invalid, no lookup.
//   2. On the allow-list → valid.
//   3. Dictionary lookup of the lowercased word:
//        found     → valid   (source "dictionary")
//        not found → invalid (source "dictionary")
//        error     → invalid (source "dictionary-error-rejected", detail = error)
//
// Step 3 fails closed: a flaky upstream rejects real words. The reason tag
// lets clients tell that apart from a genuine miss.

package guess

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/puzzlebox/internal/metrics"
	"github.com/robalobadob/puzzlebox/internal/words"
)

const (
	SourceDictionary              = "dictionary"
	SourceDictionaryErrorRejected = "dictionary-error-rejected"
)

// Verdict is the validate-guess response body.
type Verdict struct {
	Guess   string `json:"guess"`
	IsValid bool   `json:"isValid"`
	Source  string `json:"source,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// AllowList is satisfied by *words.Bank.
type AllowList interface {
	IsAllowed(word string) bool
}

// Dictionary is satisfied by *dictionary.Client.
type Dictionary interface {
	Lookup(ctx context.Context, word string) (bool, error)
}

// Checker combines the allow-list and the dictionary.
type Checker struct {
	allow   AllowList
	dict    Dictionary // nil → allow-list only
	metrics *metrics.Metrics
}

// New returns a Checker. dict and m may be nil.
func New(allow AllowList, dict Dictionary, m *metrics.Metrics) *Checker {
	return &Checker{allow: allow, dict: dict, metrics: m}
}

// Check validates raw. The echoed guess is uppercased.
func (c *Checker) Check(ctx context.Context, raw string) Verdict {
	g := strings.ToUpper(raw)
	v := Verdict{Guess: g}

	switch {
	case !words.IsWordShaped(g):
	case c.allow.IsAllowed(g):
		v.IsValid = true
	case c.dict != nil:
		v = c.lookup(ctx, g)
	}
	c.metrics.RecordGuessCheck(v.Source, v.IsValid)
	return v
}

// IsValidGuess implements game.GuessChecker. Upstream failures are already
// folded into the verdict, so the error is always nil.
func (c *Checker) IsValidGuess(ctx context.Context, word string) (bool, error) {
	return c.Check(ctx, word).IsValid, nil
}

func (c *Checker) lookup(ctx context.Context, g string) Verdict {
	start := time.Now()
	ok, err := c.dict.Lookup(ctx, strings.ToLower(g))
	took := time.Since(start)

	if err != nil {
		c.metrics.RecordDictionaryLookup("error", took)
		log.Warn().Err(err).Str("guess", g).Dur("took", took).Msg("dictionary lookup failed; rejecting guess")
		return Verdict{Guess: g, Source: SourceDictionaryErrorRejected, Detail: err.Error()}
	}
	if ok {
		c.metrics.RecordDictionaryLookup("found", took)
	} else {
		c.metrics.RecordDictionaryLookup("not_found", took)
	}
	return Verdict{Guess: g, IsValid: ok, Source: SourceDictionary}
}
