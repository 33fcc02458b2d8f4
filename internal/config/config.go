// internal/config/config.go
//
// Runtime configuration.
//
// Sources, later ones win:
//   1. Defaults (Default()).
//   2. Optional YAML file passed with --config.
//   3. Environment variables (a .env file is loaded into the environment by
//      main via godotenv before this runs):
//        PORT, LOG_LEVEL,
//        WORDS_ALLOWED_FILE, WORDS_WATCH,
//        DICTIONARY_URL, DICTIONARY_TIMEOUT,
//        PUZZLES_URL, DATABASE_PATH, API_BASE_URL
//
// The merged result is checked with validator before use.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/puzzlebox/internal/dictionary"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
)

type Words struct {
	// AllowedFile replaces the embedded word list when set.
	AllowedFile string `yaml:"allowed_file"`
	// Watch reloads AllowedFile when it changes on disk.
	Watch bool `yaml:"watch"`
}

type Dictionary struct {
	URL     string        `yaml:"url"     validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type Puzzles struct {
	// URL is the upstream feed used by `puzzles import`.
	URL string `yaml:"url" validate:"required,url"`
}

// Config is the merged configuration for every command.
type Config struct {
	Port     string `yaml:"port"      validate:"required,numeric"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`

	Words      Words      `yaml:"words"`
	Dictionary Dictionary `yaml:"dictionary"`
	Puzzles    Puzzles    `yaml:"puzzles"`

	// DatabasePath enables the SQLite puzzle catalog. Empty keeps the
	// catalog in memory, seeded from the embedded pack.
	DatabasePath string `yaml:"database_path"`

	// APIBaseURL is where `play` reaches the server.
	APIBaseURL string `yaml:"api_base_url" validate:"required,url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     "5175",
		LogLevel: "info",
		Dictionary: Dictionary{
			URL:     dictionary.DefaultBaseURL,
			Timeout: 5 * time.Second,
		},
		Puzzles:    Puzzles{URL: puzzle.DefaultUpstreamURL},
		APIBaseURL: "http://localhost:5175",
	}
}

// Load merges defaults, the YAML file at path (if non-empty) and the process
// environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("WORDS_ALLOWED_FILE", &c.Words.AllowedFile)
	str("DICTIONARY_URL", &c.Dictionary.URL)
	str("PUZZLES_URL", &c.Puzzles.URL)
	str("DATABASE_PATH", &c.DatabasePath)
	str("API_BASE_URL", &c.APIBaseURL)

	if v, ok := lookup("WORDS_WATCH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WORDS_WATCH: %w", err)
		}
		c.Words.Watch = b
	}
	if v, ok := lookup("DICTIONARY_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DICTIONARY_TIMEOUT: %w", err)
		}
		c.Dictionary.Timeout = d
	}
	return nil
}
