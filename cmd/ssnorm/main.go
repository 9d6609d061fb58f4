package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hesam/SketchSharp-sub001/internal/trace"
	"github.com/hesam/SketchSharp-sub001/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "ssnorm",
	Short: "Spec# statement normalizer",
	Long: `ssnorm lowers typed Spec#-style programs to a flat, label-based
intermediate form and can execute the result on a reference VM`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  rootPreRun,
	PersistentPostRunE: rootPostRun,
}

// errRunFailed reports a failure that was already printed.
var errRunFailed = errors.New("run failed")

// cleanups are registered by rootPreRun and run, last first, once the
// command finishes.
var cleanups []func()

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(samplesCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("config", "", "path to ssnorm.toml (searched upward from the working directory when empty)")
	flags.Bool("timings", false, "show timing information")
	flags.String("trace", "", "trace output file (\"-\" for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "text", "trace format (text|ndjson)")
	flags.Int("trace-ring-size", trace.DefaultRingSize, "ring buffer capacity for ring and both modes")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

// main executes the root command. Any error exits with status 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		runCleanups()
		if !errors.Is(err, errRunFailed) {
			color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func rootPreRun(cmd *cobra.Command, _ []string) error {
	if err := setupColor(cmd); err != nil {
		return err
	}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, stopProfiling)
	stopTracing, err := setupTracing(cmd)
	if err != nil {
		runCleanups()
		return err
	}
	cleanups = append(cleanups, stopTracing)
	return nil
}

func rootPostRun(*cobra.Command, []string) error {
	runCleanups()
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func setupColor(cmd *cobra.Command) error {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch colorFlag {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
