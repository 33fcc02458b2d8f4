package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/puzzlebox/internal/puzzle"
	"github.com/robalobadob/puzzlebox/internal/store"
)

func newPuzzlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puzzles",
		Short: "Manage the puzzle catalog",
	}
	cmd.AddCommand(newPuzzlesImportCommand())
	cmd.AddCommand(newPuzzlesListCommand())
	return cmd
}

func newPuzzlesImportCommand() *cobra.Command {
	var (
		url     string
		file    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import puzzles into the SQLite catalog",
		Long: `Import puzzles from the upstream answers feed (or a local JSON file)
into the catalog at DATABASE_PATH. Existing puzzles with the same id are
replaced; malformed puzzles are skipped.`,
		Example: `  # Import the public feed
  DATABASE_PATH=./data/puzzles.db puzzlebox puzzles import

  # Import a local copy
  DATABASE_PATH=./data/puzzles.db puzzlebox puzzles import --file connections.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabasePath == "" {
				return errors.New("puzzles import needs DATABASE_PATH (or database_path in the config file)")
			}
			if url == "" {
				url = cfg.Puzzles.URL
			}

			var ps []puzzle.Puzzle
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if ps, err = puzzle.Decode(f); err != nil {
					return err
				}
			} else {
				log.Info().Str("url", url).Msg("fetching puzzles")
				if ps, err = puzzle.NewHTTPSource(url, timeout).Puzzles(cmd.Context()); err != nil {
					return err
				}
			}

			st, err := store.OpenSQLite(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			n, err := st.SavePuzzles(cmd.Context(), ps)
			if err != nil {
				return err
			}
			log.Info().Int("puzzles", n).Str("database", cfg.DatabasePath).Msg("puzzles imported")
			printf(cmd, "imported %d puzzles\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "feed URL (defaults to PUZZLES_URL)")
	cmd.Flags().StringVar(&file, "file", "", "read puzzles from a local JSON file")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout for the feed")
	return cmd
}

func newPuzzlesListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the puzzle catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ps, err := st.Puzzles(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ps)
			}
			for _, p := range ps {
				titles := make([]string, 0, len(p.Answers))
				for _, a := range p.SortedAnswers() {
					titles = append(titles, a.Group)
				}
				printf(cmd, "%5d  %-10s  %s\n", p.ID, p.Date, strings.Join(titles, " | "))
			}
			printf(cmd, "%d puzzles\n", len(ps))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}
