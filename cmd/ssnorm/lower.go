package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/driver"
	"github.com/hesam/SketchSharp-sub001/internal/samples"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] [sample...]",
	Short: "Lower sample programs to the normalized IR",
	Long: `Lower the named sample programs (every sample when none is given)
and print the normalized IR as text or MessagePack`,
	RunE: runLower,
}

var lowerUI = uiModeAuto

func init() {
	lowerCmd.Flags().String("emit", "text", "output format (text|msgpack)")
	lowerCmd.Flags().Int("jobs", 0, "max procedures lowered in parallel (0=GOMAXPROCS)")
	lowerCmd.Flags().Var(&lowerUI, "ui", "progress UI")
	lowerCmd.Flags().String("cache-dir", "", "directory of the lowering cache (\"auto\" for the user cache)")
	lowerCmd.Flags().Bool("no-cache", false, "disable the lowering cache")
	lowerCmd.Flags().Bool("clear-cache", false, "drop every cached entry before lowering")
	lowerCmd.Flags().StringP("out", "o", "", "write one file per sample into this directory")
}

func runLower(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	emit, err := driver.ParseEmit(cfg.Driver.Emit)
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if emit == driver.EmitMsgpack && outDir == "" && isTerminal(os.Stdout) {
		return errors.New("refusing to write MessagePack to a terminal; redirect stdout or use --out")
	}

	mods, err := buildSamples(args)
	if err != nil {
		return err
	}

	if drop, _ := cmd.Flags().GetBool("clear-cache"); drop && cfg.Driver.CacheDir != "" {
		cache, err := driver.OpenDiskCache(cfg.Driver.CacheDir)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		if err := cache.DropAll(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}

	var results []*driver.Result
	if lowerUI.useTUI() {
		results, err = runLowerWithUI(cmd.Context(), "lowering", cfg, mods)
	} else {
		var d *driver.Driver
		if d, err = driver.New(cfg, nil); err != nil {
			return err
		}
		results, err = d.LowerAll(cmd.Context(), mods)
	}
	if err != nil {
		return err
	}

	for _, res := range results {
		if err := writeResult(cmd, res, emit, outDir); err != nil {
			return err
		}
	}
	if showTimings {
		if err := driver.WriteTimings(cmd.ErrOrStderr(), results, false); err != nil {
			return err
		}
	}
	return nil
}

// buildSamples builds the named samples, or all of them.
func buildSamples(names []string) ([]*ast.Module, error) {
	if len(names) == 0 {
		names = samples.Names()
	}
	mods := make([]*ast.Module, 0, len(names))
	for _, name := range names {
		s, ok := samples.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown sample %q (see 'ssnorm samples')", name)
		}
		mods = append(mods, s.Build().Module)
	}
	return mods, nil
}

func writeResult(cmd *cobra.Command, res *driver.Result, emit driver.EmitFormat, outDir string) error {
	if outDir == "" {
		return res.Write(cmd.OutOrStdout(), emit)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	ext := ".lir"
	if emit == driver.EmitMsgpack {
		ext = ".msgpack"
	}
	path := filepath.Join(outDir, res.Name+ext)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := res.Write(f, emit); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
