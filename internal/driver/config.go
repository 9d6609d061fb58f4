package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hesam/SketchSharp-sub001/internal/lower"
)

// ConfigFileName is the name LoadConfig and FindConfig look for.
const ConfigFileName = "ssnorm.toml"

// Config is the contents of ssnorm.toml.
type Config struct {
	Lower  LowerConfig  `toml:"lower"`
	Driver DriverConfig `toml:"driver"`
}

// LowerConfig mirrors lower.Options.
type LowerConfig struct {
	MaxOldDepth            int  `toml:"max_old_depth"`
	InternalContracts      bool `toml:"internal_contracts"`
	NullSafeForeach        bool `toml:"null_safe_foreach"`
	CheckInvariantsInCtors bool `toml:"check_invariants_in_ctors"`
}

// DriverConfig controls how modules are scheduled and emitted.
type DriverConfig struct {
	// Jobs bounds concurrent procedure lowering; 0 means GOMAXPROCS.
	Jobs int `toml:"jobs"`
	// CacheDir enables the on-disk result cache when non-empty. Relative
	// paths are resolved against the config file; "auto" picks the user
	// cache directory.
	CacheDir string `toml:"cache_dir"`
	// Emit is "text" or "msgpack".
	Emit string `toml:"emit"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	opts := lower.DefaultOptions()
	return Config{
		Lower: LowerConfig{
			MaxOldDepth:            opts.MaxOldDepth,
			InternalContracts:      opts.InternalContracts,
			NullSafeForeach:        opts.NullSafeForeach,
			CheckInvariantsInCtors: opts.CheckInvariantsInCtors,
		},
		Driver: DriverConfig{Emit: string(EmitText)},
	}
}

// LoadConfig decodes path over the defaults, so absent keys keep their
// default values. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if dir := cfg.Driver.CacheDir; dir != "" && dir != AutoCacheDir && !filepath.IsAbs(dir) {
		cfg.Driver.CacheDir = filepath.Join(filepath.Dir(path), dir)
	}
	return cfg, nil
}

// FindConfig walks up from startDir looking for ssnorm.toml.
func FindConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Lower.MaxOldDepth < 0 {
		return fmt.Errorf("[lower].max_old_depth must not be negative, got %d", c.Lower.MaxOldDepth)
	}
	if c.Driver.Jobs < 0 {
		return fmt.Errorf("[driver].jobs must not be negative, got %d", c.Driver.Jobs)
	}
	if _, err := ParseEmit(c.Driver.Emit); err != nil {
		return fmt.Errorf("[driver].emit: %w", err)
	}
	return nil
}

// Options converts the [lower] table.
func (c Config) Options() lower.Options {
	return lower.Options{
		MaxOldDepth:            c.Lower.MaxOldDepth,
		InternalContracts:      c.Lower.InternalContracts,
		NullSafeForeach:        c.Lower.NullSafeForeach,
		CheckInvariantsInCtors: c.Lower.CheckInvariantsInCtors,
	}
}

// Workers is the effective concurrency bound.
func (c Config) Workers() int {
	if c.Driver.Jobs > 0 {
		return c.Driver.Jobs
	}
	return runtime.GOMAXPROCS(0)
}
