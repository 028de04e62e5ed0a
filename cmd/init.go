package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the input/output directory layout",
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
		if err := st.Bootstrap(); err != nil {
			return err
		}
		fmt.Printf("Input directory:  %s\n", cfg.InputDir)
		fmt.Printf("Output directory: %s\n", cfg.OutputDir)

		ids, err := st.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("Warning: no JSON sample documents found in the input directory.")
		} else {
			fmt.Printf("Found %d sample documents.\n", len(ids))
		}
		return nil
	},
}
