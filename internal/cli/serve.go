package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/puzzlebox/internal/config"
	"github.com/robalobadob/puzzlebox/internal/dictionary"
	"github.com/robalobadob/puzzlebox/internal/guess"
	"github.com/robalobadob/puzzlebox/internal/httpserver"
	"github.com/robalobadob/puzzlebox/internal/metrics"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
	"github.com/robalobadob/puzzlebox/internal/store"
	"github.com/robalobadob/puzzlebox/internal/words"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the word and puzzle HTTP API",
		Long: `Run the HTTP API used by the games:

  GET /api/word             random target word
  GET /api/validate-guess   allow-list, then dictionary lookup
  GET /api/puzzles          puzzle catalog
  GET /metrics              Prometheus metrics`,
		Example: `  # Serve on the configured port
  puzzlebox serve

  # Serve with a custom word list that reloads on change
  WORDS_ALLOWED_FILE=./words.txt WORDS_WATCH=true puzzlebox serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	bank, err := words.Load(cfg.Words.AllowedFile, nil)
	if err != nil {
		return fmt.Errorf("load word list: %w", err)
	}
	log.Info().Int("words", bank.Len()).Str("file", cfg.Words.AllowedFile).Msg("word list loaded")

	m := metrics.New("puzzlebox")
	checker := guess.New(bank, dictionary.New(cfg.Dictionary.URL, cfg.Dictionary.Timeout), m)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := httpserver.New(bank, checker, st, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ":"+cfg.Port) })
	if cfg.Words.Watch && cfg.Words.AllowedFile != "" {
		g.Go(func() error { return words.Watch(gctx, cfg.Words.AllowedFile, bank) })
	}
	return g.Wait()
}

// openStore opens the SQLite catalog when DATABASE_PATH is set, otherwise an
// in-memory one. An empty catalog is seeded from the embedded pack.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	if cfg.DatabasePath != "" {
		st, err = store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	} else {
		st = store.NewMemoryStore()
	}

	existing, err := st.Puzzles(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("read puzzles: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Int("puzzles", len(existing)).Msg("puzzle catalog ready")
		return st, nil
	}

	seed, err := puzzle.Embedded()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load embedded puzzles: %w", err)
	}
	if _, err := st.SavePuzzles(ctx, seed); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed puzzles: %w", err)
	}
	log.Info().Int("puzzles", len(seed)).Msg("puzzle catalog seeded from embedded pack")
	return st, nil
}
