package dictionary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ocean":
			_, _ = w.Write([]byte(`[{"word":"ocean"}]`))
		case "/hellp":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"title":"No Definitions Found"}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	c := New(newUpstream(t).URL, time.Second)

	ok, err := c.Lookup(context.Background(), "OCEAN")
	if err != nil || !ok {
		t.Errorf("OCEAN: got %v, %v", ok, err)
	}

	ok, err = c.Lookup(context.Background(), "hellp")
	if err != nil || ok {
		t.Errorf("hellp: got %v, %v", ok, err)
	}

	_, err = c.Lookup(context.Background(), "zzzzz")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Errorf("unexpected status error %+v", se)
	}
	if se.Error() != "Dictionary API error: 429 slow down" {
		t.Errorf("unexpected message %q", se.Error())
	}
}

func TestLookupTransportError(t *testing.T) {
	srv := newUpstream(t)
	c := New(srv.URL, time.Second)
	srv.Close()

	if _, err := c.Lookup(context.Background(), "ocean"); err == nil {
		t.Fatal("expected transport error")
	}
	if _, err := c.Lookup(context.Background(), "  "); !errors.Is(err, ErrEmptyWord) {
		t.Errorf("expected ErrEmptyWord, got %v", err)
	}
}
