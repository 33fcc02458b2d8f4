package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/robalobadob/puzzlebox/internal/guess"
	"github.com/robalobadob/puzzlebox/internal/metrics"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
	"github.com/robalobadob/puzzlebox/internal/words"
)

type stubDict map[string]bool

func (d stubDict) Lookup(_ context.Context, w string) (bool, error) {
	if w == "boomy" {
		return false, errors.New("Dictionary API error: 500 upstream down")
	}
	return d[w], nil
}

func newTestServer(t *testing.T, src puzzle.Source) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	bank, err := words.NewBank([]string{"OCEAN"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New("puzzlebox")
	checker := guess.New(bank, stubDict{"plain": true}, m)
	ts := httptest.NewServer(New(bank, checker, src, m).Router())
	t.Cleanup(ts.Close)
	return ts, m
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestWord(t *testing.T) {
	ts, _ := newTestServer(t, puzzle.Static{})
	resp, body := get(t, ts.URL+"/api/word")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != `{"word":"OCEAN"}` {
		t.Errorf("body = %s", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type %q", ct)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestValidateGuess(t *testing.T) {
	ts, _ := newTestServer(t, puzzle.Static{})

	cases := []struct {
		query string
		want  string
	}{
		{"ocean", `{"guess":"OCEAN","isValid":true}`},
		{"plain", `{"guess":"PLAIN","isValid":true,"source":"dictionary"}`},
		{"zzzzz", `{"guess":"ZZZZZ","isValid":false,"source":"dictionary"}`},
		{"ab1de", `{"guess":"AB1DE","isValid":false}`},
		{"", `{"guess":"","isValid":false}`},
		{"boomy", `{"guess":"BOOMY","isValid":false,"source":"dictionary-error-rejected","detail":"Dictionary API error: 500 upstream down"}`},
	}
	for _, tc := range cases {
		resp, body := get(t, ts.URL+"/api/validate-guess?guess="+tc.query)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%q: status %d", tc.query, resp.StatusCode)
		}
		if got := strings.TrimSpace(string(body)); got != tc.want {
			t.Errorf("%q: body = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestMethodsAndNotFound(t *testing.T) {
	ts, _ := newTestServer(t, puzzle.Static{})

	resp, err := http.Post(ts.URL+"/api/validate-guess?guess=ocean", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || strings.TrimSpace(string(body)) != `{"error":"Method not allowed"}` {
		t.Errorf("POST validate: %d %s", resp.StatusCode, body)
	}

	resp, body = get(t, ts.URL+"/api/nope")
	if resp.StatusCode != http.StatusNotFound || strings.TrimSpace(string(body)) != `{"error":"Not found"}` {
		t.Errorf("unknown path: %d %s", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/validate-guess", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || len(body) != 0 {
		t.Errorf("preflight: %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") != "GET, OPTIONS" {
		t.Errorf("allow methods = %q", resp.Header.Get("Access-Control-Allow-Methods"))
	}
}

func TestPuzzles(t *testing.T) {
	ps, err := puzzle.Embedded()
	if err != nil {
		t.Fatal(err)
	}
	ts, _ := newTestServer(t, puzzle.Static(ps))

	resp, body := get(t, ts.URL+"/api/puzzles")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var got []puzzle.Puzzle
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ps) || got[0].Answers[0].Members[0] != ps[0].Answers[0].Members[0] {
		t.Errorf("unexpected puzzles %+v", got)
	}

	failing := puzzle.SourceFunc(func(context.Context) ([]puzzle.Puzzle, error) {
		return nil, errors.New("disk on fire")
	})
	ts, _ = newTestServer(t, failing)
	resp, _ = get(t, ts.URL+"/api/puzzles")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("failing source: status %d", resp.StatusCode)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	ts, _ := newTestServer(t, puzzle.Static{})
	get(t, ts.URL+"/api/word")
	get(t, ts.URL+"/api/validate-guess?guess=ocean")

	resp, body := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || string(body) != `{"ok":true}` {
		t.Errorf("health: %d %s", resp.StatusCode, body)
	}

	_, body = get(t, ts.URL+"/metrics")
	for _, want := range []string{
		"puzzlebox_target_words_served_total 1",
		`puzzlebox_guess_validations_total{source="allow_list",valid="true"} 1`,
		`puzzlebox_http_requests_total{method="GET",route="/api/word",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	_, body = get(t, ts.URL+"/debug/words")
	if strings.TrimSpace(string(body)) != `{"allowed":1}` {
		t.Errorf("debug words = %s", body)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	bank, _ := words.NewBank([]string{"OCEAN"}, nil)
	s := New(bank, guess.New(bank, nil, nil), puzzle.Static{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
