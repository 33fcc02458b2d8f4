// Package client talks to the puzzlebox HTTP API. A Client satisfies
// game.WordSource, game.GuessChecker and puzzle.Source, so the terminal
// games can run against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robalobadob/puzzlebox/internal/guess"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// TargetWord fetches a random word from /api/word.
func (c *Client) TargetWord(ctx context.Context) (string, error) {
	var res struct {
		Word string `json:"word"`
	}
	if err := c.getJSON(ctx, "/api/word", &res); err != nil {
		return "", fmt.Errorf("fetch word: %w", err)
	}
	if res.Word == "" {
		return "", fmt.Errorf("fetch word: empty response")
	}
	return res.Word, nil
}

// Validate asks /api/validate-guess about word.
func (c *Client) Validate(ctx context.Context, word string) (guess.Verdict, error) {
	var v guess.Verdict
	err := c.getJSON(ctx, "/api/validate-guess?guess="+url.QueryEscape(word), &v)
	if err != nil {
		return v, fmt.Errorf("validate guess: %w", err)
	}
	return v, nil
}

// IsValidGuess reports the server's verdict. Transport failures are returned
// as errors so the caller can reject the guess.
func (c *Client) IsValidGuess(ctx context.Context, word string) (bool, error) {
	v, err := c.Validate(ctx, word)
	if err != nil {
		return false, err
	}
	return v.IsValid, nil
}

// Puzzles fetches the catalog from /api/puzzles.
func (c *Client) Puzzles(ctx context.Context) ([]puzzle.Puzzle, error) {
	src := &puzzle.HTTPSource{URL: c.BaseURL + "/api/puzzles", Client: c.HTTP}
	return src.Puzzles(ctx)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %d %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
