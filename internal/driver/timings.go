package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hesam/SketchSharp-sub001/internal/observ"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Module  string               `json:"module"`
	Cached  bool                 `json:"cached,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// WriteTimings prints the phase timings of results, one module per
// block, or as one JSON object per line when asJSON is set.
func WriteTimings(w io.Writer, results []*Result, asJSON bool) error {
	for _, res := range results {
		if res == nil {
			continue
		}
		if asJSON {
			data, err := json.Marshal(timingPayload{
				Kind:    "lower",
				Module:  res.Name,
				Cached:  res.Cached,
				TotalMS: res.Timings.TotalMS,
				Phases:  res.Timings.Phases,
			})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
				return err
			}
			continue
		}
		suffix := ""
		if res.Cached {
			suffix = " (cached)"
		}
		if _, err := fmt.Fprintf(w, "timings (%s)%s: total %.2f ms\n", res.Name, suffix, res.Timings.TotalMS); err != nil {
			return err
		}
		for _, p := range res.Timings.Phases {
			line := fmt.Sprintf("  %-12s %7.2f ms", p.Name, p.DurationMS)
			if p.Note != "" {
				line += "  // " + p.Note
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
