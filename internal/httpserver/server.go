// internal/httpserver/server.go
//
// HTTP server wiring for the word and puzzle API.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     access log, request metrics).
//   - Public endpoints: "/", "/health", "/metrics", "/debug/words".
//   - Word endpoints: GET /api/word, GET /api/validate-guess.
//   - Puzzle endpoint: GET /api/puzzles.
//
// Notes:
//   - CORS is fully open (any origin, GET and OPTIONS only). Preflight
//     requests get 204 before routing.
//   - Unknown paths answer 404 {"error":"Not found"}, wrong methods answer
//     405 {"error":"Method not allowed"}.
//   - validate-guess always answers 200; the verdict carries the outcome,
//     including dictionary failures.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/puzzlebox/internal/guess"
	"github.com/robalobadob/puzzlebox/internal/metrics"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
	"github.com/robalobadob/puzzlebox/internal/words"
)

// Server bundles the router and the collaborators behind it.
type Server struct {
	r       *chi.Mux
	words   *words.Bank
	guesses *guess.Checker
	puzzles puzzle.Source
	metrics *metrics.Metrics
}

// New constructs a Server, installs middleware, and registers routes.
// m may be nil.
func New(bank *words.Bank, guesses *guess.Checker, puzzles puzzle.Source, m *metrics.Metrics) *Server {
	s := &Server{r: chi.NewRouter(), words: bank, guesses: guesses, puzzles: puzzles, metrics: m}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(s.accessLog)                     // one log line + metrics per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(15 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(openCORS)                        // any origin, GET/OPTIONS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"puzzlebox","endpoints":["/health","/api/word","/api/validate-guess?guess=","/api/puzzles","/metrics"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"allowed": s.words.Len()})
	})
	s.r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// --- API ---
	s.r.Get("/api/word", s.handleWord)
	s.r.Get("/api/validate-guess", s.handleValidateGuess)
	s.r.Get("/api/puzzles", s.handlePuzzles)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})

	return s
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("http server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// openCORS allows any origin to GET and answers preflights with 204.
func openCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one zerolog line per request and records request metrics
// under the matched route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		took := time.Since(start)
		s.metrics.RecordHTTPRequest(route, r.Method, status, took)

		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", took).
			Msg("http request")
	})
}

// ------------------------------- API ---------------------------------------

type errorBody struct {
	Error string `json:"error"`
}

type wordRes struct {
	Word string `json:"word"`
}

// handleWord returns a uniformly random word from the allow-list.
func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordWordServed()
	writeJSON(w, http.StatusOK, wordRes{Word: s.words.Random()})
}

// handleValidateGuess answers whether ?guess= is a playable word.
func (s *Server) handleValidateGuess(w http.ResponseWriter, r *http.Request) {
	v := s.guesses.Check(r.Context(), r.URL.Query().Get("guess"))
	writeJSON(w, http.StatusOK, v)
}

// handlePuzzles returns the whole puzzle catalog.
func (s *Server) handlePuzzles(w http.ResponseWriter, r *http.Request) {
	ps, err := s.puzzles.Puzzles(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list puzzles")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Unable to load puzzles"})
		return
	}
	if ps == nil {
		ps = []puzzle.Puzzle{}
	}
	s.metrics.RecordPuzzlesServed()
	writeJSON(w, http.StatusOK, ps)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
