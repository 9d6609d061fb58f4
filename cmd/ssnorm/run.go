package main

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hesam/SketchSharp-sub001/internal/driver"
	"github.com/hesam/SketchSharp-sub001/internal/samples"
	"github.com/hesam/SketchSharp-sub001/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <sample> [method]",
	Short: "Lower a sample and execute it on the VM",
	Long: `Lower a sample program and execute one of its static methods
(Main by default) on the reference VM`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExecution,
}

func init() {
	runCmd.Flags().Int("jobs", 0, "max procedures lowered in parallel (0=GOMAXPROCS)")
	runCmd.Flags().Bool("vm-trace", false, "trace VM execution to stderr")
	runCmd.Flags().Int("max-depth", vm.DefaultMaxDepth, "maximum VM call depth")
	runCmd.Flags().Bool("check", false, "compare the output with the sample's expected output")
}

func runExecution(cmd *cobra.Command, args []string) error {
	s, ok := samples.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown sample %q (see 'ssnorm samples')", args[0])
	}
	method := samples.EntryMethod
	if len(args) == 2 {
		method = args[1]
	}

	vmTrace, err := cmd.Flags().GetBool("vm-trace")
	if err != nil {
		return fmt.Errorf("failed to get vm-trace flag: %w", err)
	}
	maxDepth, err := cmd.Flags().GetInt("max-depth")
	if err != nil {
		return fmt.Errorf("failed to get max-depth flag: %w", err)
	}
	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return fmt.Errorf("failed to get check flag: %w", err)
	}
	if check && method != samples.EntryMethod {
		return fmt.Errorf("--check only applies to %s", samples.EntryMethod)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Execution needs the lowered module itself, which cache hits lack.
	cfg.Driver.CacheDir = ""
	d, err := driver.New(cfg, nil)
	if err != nil {
		return err
	}
	prog := s.Build()
	res, err := d.Lower(cmd.Context(), prog.Module)
	if err != nil {
		return fmt.Errorf("lowering failed: %w", err)
	}

	var captured bytes.Buffer
	out := cmd.OutOrStdout()
	if check {
		out = io.MultiWriter(out, &captured)
	}
	opts := vm.Options{Out: out, MaxDepth: maxDepth}
	if vmTrace {
		opts.Trace = cmd.ErrOrStderr()
	}

	machine := vm.New(res.Module, prog.Module.Types, opts)
	start := time.Now()
	val, vmErr := machine.Call(prog.Entry, method)
	elapsed := time.Since(start)

	errOut := cmd.ErrOrStderr()
	if showTimings {
		if err := driver.WriteTimings(errOut, []*driver.Result{res}, false); err != nil {
			return err
		}
		fmt.Fprintf(errOut, "ran %.1f ms\n", toMillis(elapsed))
	}
	if vmErr != nil {
		color.New(color.FgRed, color.Bold).Fprint(errOut, "error: ")
		fmt.Fprint(errOut, vmErr.Format())
		return errRunFailed
	}

	if fn := res.Module.Method(prog.Entry, method); fn != nil && fn.Result != prog.Module.Types.Builtins().Void {
		fmt.Fprintln(cmd.OutOrStdout(), machine.Format(val))
	}

	if check {
		if got, want := captured.String(), s.Want(); got != want {
			color.New(color.FgRed, color.Bold).Fprintln(errOut, "output mismatch")
			fmt.Fprintf(errOut, " got: %q\nwant: %q\n", got, want)
			return errRunFailed
		}
		color.New(color.FgGreen).Fprintf(errOut, "%s: output matches\n", s.Name)
	}
	return nil
}
