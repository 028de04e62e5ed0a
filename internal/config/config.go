// Package config resolves the workbench configuration from an optional HCL
// file plus command-line overrides.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultFile is the config file looked up in the working directory when no
// --config flag is given.
const DefaultFile = "vannot.hcl"

// Config holds the resolved directory layout and report settings.
type Config struct {
	// InputDir holds the source sample documents and images. The workbench
	// never writes here.
	InputDir string `hcl:"input_dir,optional"`

	// OutputDir receives verified output documents, the ledger, and reports.
	OutputDir string `hcl:"output_dir,optional"`

	// ReportPrefix is the filename prefix for exported reports.
	ReportPrefix string `hcl:"report_prefix,optional"`
}

// Default returns the configuration used when no file and no flags are given.
func Default() *Config {
	return &Config{
		InputDir:     "data",
		OutputDir:    "verified_data",
		ReportPrefix: "annotation_report",
	}
}

// Load reads an HCL config file and fills unset fields with defaults. A
// missing file at the default location is not an error; an explicitly named
// file must exist.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var fileCfg Config
	if err := hclsimple.DecodeFile(path, nil, &fileCfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.merge(&fileCfg)
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	if o.InputDir != "" {
		c.InputDir = o.InputDir
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.ReportPrefix != "" {
		c.ReportPrefix = o.ReportPrefix
	}
}

// Override applies non-empty flag values on top of the file config.
func (c *Config) Override(inputDir, outputDir string) {
	if inputDir != "" {
		c.InputDir = inputDir
	}
	if outputDir != "" {
		c.OutputDir = outputDir
	}
}
