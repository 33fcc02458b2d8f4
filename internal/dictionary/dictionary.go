// internal/dictionary/dictionary.go
//
// Client for the free dictionary API (https://dictionaryapi.dev).
// Only the HTTP status matters:
//   - 200 → the word exists
//   - 404 → the word does not exist
//   - anything else, or a transport failure → error
//
// Callers decide what an error means; the guess checker treats it as a
// rejected guess.

package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public entries endpoint (language appended).
const DefaultBaseURL = "https://api.dictionaryapi.dev/api/v2/entries/en"

// StatusError reports an unexpected upstream status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Dictionary API error: %d %s", e.Code, e.Body)
}

// ErrEmptyWord is returned for a blank lookup.
var ErrEmptyWord = errors.New("dictionary: empty word")

// Client performs lookups against BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client with the given base URL and request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Lookup reports whether word is a dictionary entry. The word is lowercased
// and path-escaped before the request.
func (c *Client) Lookup(ctx context.Context, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, ErrEmptyWord
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+url.PathEscape(word), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("dictionary lookup: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		_, _ = io.Copy(io.Discard, res.Body)
		return true, nil
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, res.Body)
		return false, nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return false, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
}
