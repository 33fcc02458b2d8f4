package puzzle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/robalobadob/puzzlebox/assets"
)

// DefaultUpstreamURL is the public NYT Connections answers feed.
const DefaultUpstreamURL = "https://raw.githubusercontent.com/Eyefyre/NYT-Connections-Answers/main/connections.json"

// Source supplies the list of playable puzzles.
type Source interface {
	Puzzles(ctx context.Context) ([]Puzzle, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Puzzle, error)

func (f SourceFunc) Puzzles(ctx context.Context) ([]Puzzle, error) { return f(ctx) }

// Static serves a fixed list.
type Static []Puzzle

func (s Static) Puzzles(context.Context) ([]Puzzle, error) { return slices.Clone(s), nil }

// Embedded returns the seed pack compiled into the binary.
func Embedded() ([]Puzzle, error) {
	return Decode(bytes.NewReader(assets.PuzzlePack()))
}

// HTTPSource fetches a JSON puzzle array from URL. It works against both the
// upstream feed and this server's /api/puzzles.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns an HTTPSource with its own client and timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSource) Puzzles(ctx context.Context) ([]Puzzle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch puzzles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch puzzles: %d %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	ps, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrNoPuzzles
	}
	return ps, nil
}
