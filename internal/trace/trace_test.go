package trace_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want trace.Level
	}{
		{"off", trace.LevelOff},
		{"PHASE", trace.LevelPhase},
		{"detail", trace.LevelDetail},
		{" debug ", trace.LevelDebug},
	}
	for _, tt := range tests {
		got, err := trace.ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := trace.ParseLevel("loud"); err == nil {
		t.Fatalf("unknown level must fail")
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	if trace.LevelPhase.ShouldEmit(trace.ScopeProcedure) {
		t.Fatalf("phase level must drop procedure spans")
	}
	if !trace.LevelDetail.ShouldEmit(trace.ScopeProcedure) || trace.LevelDetail.ShouldEmit(trace.ScopeNode) {
		t.Fatalf("detail level must keep procedures and drop nodes")
	}
	if trace.LevelError.ShouldEmit(trace.ScopeDriver) {
		t.Fatalf("error level streams nothing")
	}
}

func TestStreamWritesNestedSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelDetail, trace.FormatText)
	ctx := trace.WithTracer(context.Background(), tr)

	ctx, pass := trace.Start(ctx, trace.ScopePass, "lower:loops")
	_, proc := trace.Start(ctx, trace.ScopeProcedure, "proc:Program.Main")
	proc.WithExtra("blocks", "4").End("")
	trace.Point(tr, trace.ScopeNode, "stmt", "dropped at detail", proc.ID())
	pass.End("ok")

	out := buf.String()
	for _, want := range []string{
		"→ lower:loops",
		"    → proc:Program.Main",
		"← proc:Program.Main {blocks=4}",
		"← lower:loops (ok)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "stmt") {
		t.Fatalf("node-level point leaked at detail level:\n%s", out)
	}
}

func TestNDJSONCarriesParent(t *testing.T) {
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelDebug, trace.FormatNDJSON)
	outer := trace.Begin(tr, trace.ScopePass, "outer", 0)
	inner := trace.Begin(tr, trace.ScopeProcedure, "inner", outer.ID())
	inner.End("")
	outer.End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d events, want 4", len(lines))
	}
	var ev struct {
		Kind     string `json:"kind"`
		Name     string `json:"name"`
		ParentID uint64 `json:"parent_id"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if ev.Kind != "begin" || ev.Name != "inner" || ev.ParentID != outer.ID() {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRingKeepsNewest(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		trace.Point(ring, trace.ScopeNode, name, "", 0)
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if strings.Join(names, ",") != "c,d,e" {
		t.Fatalf("snapshot = %v", names)
	}
}

func TestNewBothModeExposesRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := trace.New(trace.Config{Level: trace.LevelPhase, Mode: trace.ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	trace.Begin(tr, trace.ScopeDriver, "lower", 0).End("")
	ring := trace.RingOf(tr)
	if ring == nil || len(ring.Snapshot()) != 2 {
		t.Fatalf("ring did not receive the span")
	}
	if !strings.Contains(buf.String(), "lower") {
		t.Fatalf("stream did not receive the span")
	}
	if off, _ := trace.New(trace.Config{Level: trace.LevelOff}); off.Enabled() {
		t.Fatalf("off level must yield a disabled tracer")
	}
}
