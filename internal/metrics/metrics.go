package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the word and puzzle API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Guess validation
	guessChecks     *prometheus.CounterVec
	dictLookups     *prometheus.CounterVec
	dictLookupTimes prometheus.Histogram

	// Content served
	wordsServed   prometheus.Counter
	puzzlesServed prometheus.Counter

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a collector set on its own registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		guessChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guess_validations_total",
				Help:      "Guess validations by decision source and outcome",
			},
			[]string{"source", "valid"},
		),
		dictLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dictionary_lookups_total",
				Help:      "Dictionary lookups by outcome (found, not_found, error)",
			},
			[]string{"outcome"},
		),
		dictLookupTimes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dictionary_lookup_duration_seconds",
				Help:      "Latency of dictionary lookups in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		wordsServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "target_words_served_total",
				Help:      "Random target words handed out",
			},
		),
		puzzlesServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "puzzle_lists_served_total",
				Help:      "Puzzle list responses served",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(
		m.guessChecks,
		m.dictLookups,
		m.dictLookupTimes,
		m.wordsServed,
		m.puzzlesServed,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordGuessCheck counts one validation decision. source is "" for
// allow-list and shape decisions.
func (m *Metrics) RecordGuessCheck(source string, valid bool) {
	if m == nil {
		return
	}
	if source == "" {
		source = "allow_list"
	}
	m.guessChecks.WithLabelValues(source, strconv.FormatBool(valid)).Inc()
}

// RecordDictionaryLookup counts one upstream lookup and its latency.
func (m *Metrics) RecordDictionaryLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.dictLookups.WithLabelValues(outcome).Inc()
	m.dictLookupTimes.Observe(d.Seconds())
}

// RecordWordServed counts a /api/word response.
func (m *Metrics) RecordWordServed() {
	if m == nil {
		return
	}
	m.wordsServed.Inc()
}

// RecordPuzzlesServed counts a /api/puzzles response.
func (m *Metrics) RecordPuzzlesServed() {
	if m == nil {
		return
	}
	m.puzzlesServed.Inc()
}

// RecordHTTPRequest counts one finished request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
