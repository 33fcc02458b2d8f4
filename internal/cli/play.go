package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/puzzlebox/internal/client"
	"github.com/robalobadob/puzzlebox/internal/config"
	"github.com/robalobadob/puzzlebox/internal/guess"
	"github.com/robalobadob/puzzlebox/internal/puzzle"
	"github.com/robalobadob/puzzlebox/internal/tui"
	"github.com/robalobadob/puzzlebox/internal/words"
)

type playFlags struct {
	offline bool
	logFile string
}

func newPlayCommand() *cobra.Command {
	var flags playFlags

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game in the terminal",
		Long: `Play one of the games in the terminal.

By default the game talks to the API at API_BASE_URL. With --offline it
uses the embedded word list and puzzle pack instead.`,
	}
	cmd.PersistentFlags().BoolVar(&flags.offline, "offline", false, "use embedded content instead of the API")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "write logs to this file while playing")

	cmd.AddCommand(&cobra.Command{
		Use:   "word",
		Short: "Guess the five-letter word",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := playSetup(flags)
			if err != nil {
				return err
			}
			defer closeLog()

			var model *tui.WordModel
			if flags.offline {
				bank, err := words.Load(cfg.Words.AllowedFile, nil)
				if err != nil {
					return fmt.Errorf("load word list: %w", err)
				}
				model = tui.NewWordModel(cmd.Context(), bank, guess.New(bank, nil, nil))
			} else {
				api := client.New(cfg.APIBaseURL, 2*cfg.Dictionary.Timeout)
				model = tui.NewWordModel(cmd.Context(), api, api)
			}
			return runProgram(cmd, model)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "groups",
		Short: "Sort sixteen words into four groups of four",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := playSetup(flags)
			if err != nil {
				return err
			}
			defer closeLog()

			var src puzzle.Source
			if flags.offline {
				ps, err := puzzle.Embedded()
				if err != nil {
					return err
				}
				src = puzzle.Static(ps)
			} else {
				src = client.New(cfg.APIBaseURL, 2*cfg.Dictionary.Timeout)
			}
			return runProgram(cmd, tui.NewGroupsModel(cmd.Context(), src))
		},
	})

	return cmd
}

// playSetup loads config and points logging away from the terminal the UI
// is drawing on. The returned func restores the previous logger so errors
// from the game still reach stderr.
func playSetup(flags playFlags) (config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	prev := log.Logger
	if flags.logFile == "" {
		log.Logger = zerolog.Nop()
		return cfg, func() { log.Logger = prev }, nil
	}
	f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return cfg, nil, fmt.Errorf("open log file: %w", err)
	}
	setupLogging(f, cfg.LogLevel)
	return cfg, func() {
		log.Logger = prev
		_ = f.Close()
	}, nil
}

func runProgram(cmd *cobra.Command, model tea.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run game: %w", err)
	}
	return nil
}
