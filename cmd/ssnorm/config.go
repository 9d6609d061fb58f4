package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hesam/SketchSharp-sub001/internal/driver"
)

// loadConfig resolves ssnorm.toml (the --config flag, or the nearest file
// above the working directory) and applies the command's flag overrides.
func loadConfig(cmd *cobra.Command) (driver.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return driver.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		found, ok, findErr := driver.FindConfig(".")
		if findErr != nil {
			return driver.Config{}, findErr
		}
		if ok {
			path = found
		}
	}

	cfg := driver.DefaultConfig()
	if path != "" {
		if cfg, err = driver.LoadConfig(path); err != nil {
			return driver.Config{}, err
		}
	}

	flags := cmd.Flags()
	if f := flags.Lookup("jobs"); f != nil && f.Changed {
		if cfg.Driver.Jobs, err = flags.GetInt("jobs"); err != nil {
			return driver.Config{}, err
		}
	}
	if f := flags.Lookup("emit"); f != nil && f.Changed {
		if cfg.Driver.Emit, err = flags.GetString("emit"); err != nil {
			return driver.Config{}, err
		}
	}
	if f := flags.Lookup("cache-dir"); f != nil && f.Changed {
		if cfg.Driver.CacheDir, err = flags.GetString("cache-dir"); err != nil {
			return driver.Config{}, err
		}
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Driver.CacheDir = ""
	}
	if err := cfg.Validate(); err != nil {
		return driver.Config{}, err
	}
	return cfg, nil
}
