package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadsight/vannot/internal/report"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the annotation statistics report",
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
		path, err := report.Export(st, cfg.ReportPrefix, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Report exported to %s\n", path)
		return nil
	},
}
