package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hesam/SketchSharp-sub001/internal/version"
)

const versionTagline = "flat blocks from structured code"

// buildInfo is what `ssnorm version` reports. Optional fields stay empty
// unless requested, so the JSON form omits them.
type buildInfo struct {
	Tool       string `json:"tool"`
	Version    string `json:"version"`
	Tagline    string `json:"tagline"`
	GitCommit  string `json:"git_commit,omitempty"`
	GitMessage string `json:"git_message,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show ssnorm build information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	f := versionCmd.Flags()
	f.Bool("hash", false, "include git commit hash")
	f.Bool("message", false, "include git commit message")
	f.Bool("date", false, "include build timestamp")
	f.Bool("full", false, "include every recorded build detail")
	f.String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	full, _ := flags.GetBool("full")
	want := func(name string) bool {
		on, _ := flags.GetBool(name)
		return on || full
	}

	info := buildInfo{Tool: "ssnorm", Version: orDefault(version.Version, "dev"), Tagline: versionTagline}
	if want("hash") {
		info.GitCommit = orDefault(version.GitCommit, "unknown")
	}
	if want("message") {
		info.GitMessage = orDefault(version.GitMessage, "unknown")
	}
	if want("date") {
		info.BuildDate = orDefault(version.BuildDate, "unknown")
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "pretty":
		writeBuildInfo(out, info)
		return nil
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
}

func writeBuildInfo(w io.Writer, info buildInfo) {
	shown := info.Version
	if shown == version.Version {
		shown = version.Colored()
	}
	fmt.Fprintf(w, "ssnorm %s: %s\n", shown, info.Tagline)
	label := color.New(color.Faint)
	for _, row := range [][2]string{
		{"commit", info.GitCommit},
		{"message", info.GitMessage},
		{"built", info.BuildDate},
	} {
		if row[1] != "" {
			fmt.Fprintf(w, "%s %s\n", label.Sprintf("%-8s", row[0]+":"), row[1])
		}
	}
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
