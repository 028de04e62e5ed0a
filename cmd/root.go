// Package cmd wires the annotation workbench commands. Construction happens
// here: config, store, and session are built once per command and injected
// into the surface that needs them. No globals beyond flag storage.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/roadsight/vannot/internal/config"
	"github.com/roadsight/vannot/internal/store"
)

const version = "0.2.0"

var (
	cfgPath   string
	inputDir  string
	outputDir string
	verbose   bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultFile, "Path to HCL config file")
	rootCmd.PersistentFlags().StringVarP(&inputDir, "input", "i", "", "Input directory with sample documents (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory for verified documents (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:     "vannot",
	Short:   "Vannot: vehicle attribute annotation workbench",
	Long: `Vannot steps a reviewer through a corpus of image/metadata samples,
validates categorical attributes against a fixed vocabulary, and tracks which
samples have been verified. Originals are never modified; verified copies go
to a separate output directory.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves the HCL file and applies flag overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.Load(cfgPath, explicit)
	if err != nil {
		return nil, err
	}
	cfg.Override(inputDir, outputDir)
	return cfg, nil
}

// newStore builds the production store over the host filesystem. Directories
// are made absolute so relative config entries resolve against the working
// directory regardless of the billy root.
func newStore(cfg *config.Config) (*store.Store, error) {
	in, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve input dir: %w", err)
	}
	out, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	return store.New(osfs.New("/"), in, out), nil
}
