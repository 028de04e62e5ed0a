package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print verification progress",
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
		ledger, err := st.LoadLedger()
		if err != nil {
			return err
		}
		stats := ledger.Stats()
		fmt.Printf("Total samples: %d\n", stats.Total)
		fmt.Printf("Verified:      %d (%.2f%%)\n", stats.Verified, stats.Percent)
		fmt.Printf("Pending:       %d\n", stats.Pending)
		return nil
	},
}
