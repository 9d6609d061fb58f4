package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hesam/SketchSharp-sub001/internal/trace"
)

// traceFlags are the root's --trace* values.
type traceFlags struct {
	output    string
	level     string
	mode      string
	format    string
	ringSize  int
	heartbeat time.Duration
}

func readTraceFlags(cmd *cobra.Command) (traceFlags, error) {
	flags := cmd.Root().PersistentFlags()
	var tf traceFlags
	var err error
	for name, dst := range map[string]*string{
		"trace":        &tf.output,
		"trace-level":  &tf.level,
		"trace-mode":   &tf.mode,
		"trace-format": &tf.format,
	} {
		if *dst, err = flags.GetString(name); err != nil {
			return tf, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
	}
	if tf.ringSize, err = flags.GetInt("trace-ring-size"); err != nil {
		return tf, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if tf.heartbeat, err = flags.GetDuration("trace-heartbeat"); err != nil {
		return tf, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}
	return tf, nil
}

// config turns the flags into a tracer configuration. A --trace path
// without a level traces phases.
func (tf traceFlags) config() (trace.Config, error) {
	level, err := trace.ParseLevel(tf.level)
	if err != nil {
		return trace.Config{}, err
	}
	if level == trace.LevelOff && tf.output != "" {
		level = trace.LevelPhase
	}
	cfg := trace.Config{Level: level, OutputPath: tf.output, RingSize: tf.ringSize, Heartbeat: tf.heartbeat}
	if level == trace.LevelOff {
		return cfg, nil
	}
	if cfg.Mode, err = trace.ParseMode(tf.mode); err != nil {
		return trace.Config{}, err
	}
	if cfg.Format, err = trace.ParseFormat(tf.format); err != nil {
		return trace.Config{}, err
	}
	return cfg, nil
}

// setupTracing installs the tracer the flags describe in the command
// context and returns the cleanup that flushes and closes it.
func setupTracing(cmd *cobra.Command) (func(), error) {
	tf, err := readTraceFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := tf.config()
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(ctx, tracer))
	if !tracer.Enabled() {
		return func() {}, nil
	}
	errOut := cmd.ErrOrStderr()
	return func() {
		// Stop heartbeats before the ring is dumped.
		if h, ok := tracer.(*trace.Heartbeat); ok {
			h.Stop()
		}
		// A ring-only tracer is dumped at exit.
		if ring := trace.RingOf(tracer); ring != nil && cfg.Mode == trace.ModeRing {
			if err := ring.Dump(os.Stderr, cfg.Format); err != nil {
				fmt.Fprintf(errOut, "trace: dump: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(errOut, "trace: flush: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(errOut, "trace: close: %v\n", err)
		}
	}, nil
}
