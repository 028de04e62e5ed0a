package cmd

import (
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/roadsight/vannot/internal/session"
	"github.com/roadsight/vannot/internal/tui"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Open the interactive review session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := newStore(cfg)
		if err != nil {
			return err
		}

		// The TUI owns the terminal; keep the session quiet unless asked.
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		if verbose {
			log = newLogger()
		}

		sess, err := session.New(st, log)
		if err != nil {
			return err
		}

		p := tea.NewProgram(tui.New(sess, st, cfg.ReportPrefix), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("review session: %w", err)
		}
		return nil
	},
}
