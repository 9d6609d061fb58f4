package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/hesam/SketchSharp-sub001/internal/samples"
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List the built-in sample programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		all := samples.All()
		switch strings.ToLower(format) {
		case "json":
			type entry struct {
				Name    string `json:"name"`
				Summary string `json:"summary"`
			}
			entries := make([]entry, 0, len(all))
			for _, s := range all {
				entries = append(entries, entry{Name: s.Name, Summary: s.Summary})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		case "pretty":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}

		width := 0
		for _, s := range all {
			width = max(width, runewidth.StringWidth(s.Name))
		}
		name := color.New(color.FgCyan, color.Bold)
		for _, s := range all {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", name.Sprint(runewidth.FillRight(s.Name, width)), s.Summary)
		}
		return nil
	},
}

func init() {
	samplesCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}
