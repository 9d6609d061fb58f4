package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/driver"
	"github.com/hesam/SketchSharp-sub001/internal/ui"
)

type lowerOutcome struct {
	results []*driver.Result
	err     error
}

// runLowerWithUI lowers mods on a background goroutine while a progress
// view on stderr consumes the driver's events. Quitting the view cancels
// the lowering.
func runLowerWithUI(ctx context.Context, title string, cfg driver.Config, mods []*ast.Module) ([]*driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	d, err := driver.New(cfg, driver.ChannelSink{Ch: events})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		res, err := d.LowerAll(ctx, mods)
		outcomeCh <- lowerOutcome{results: res, err: err}
		close(events)
	}()

	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, m.Name)
	}
	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	final, uiErr := program.Run()
	stopped := uiErr != nil || ui.Interrupted(final)
	if stopped {
		cancel()
	}
	// The driver blocks on a full channel once nobody renders.
	go func() {
		for range events {
		}
	}()

	outcome := <-outcomeCh
	switch {
	case uiErr != nil:
		return outcome.results, uiErr
	case stopped && outcome.err == nil:
		return outcome.results, fmt.Errorf("interrupted: %w", context.Canceled)
	}
	return outcome.results, outcome.err
}
