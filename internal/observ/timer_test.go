package observ_test

import (
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/observ"
)

func TestTimerReport(t *testing.T) {
	tm := observ.NewTimer()
	done := tm.Track("lower")
	done("5 procedures")
	idx := tm.Begin("validate")
	tm.End(idx, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("got %d phases", len(r.Phases))
	}
	p, ok := r.Phase("lower")
	if !ok || p.Note != "5 procedures" {
		t.Fatalf("lower phase = %+v, %v", p, ok)
	}
	if _, ok := r.Phase("emit"); ok {
		t.Fatalf("unknown phase must not be found")
	}
	sum := tm.Summary()
	for _, want := range []string{"timings:", "lower", "// 5 procedures", "total"} {
		if !strings.Contains(sum, want) {
			t.Fatalf("summary lacks %q:\n%s", want, sum)
		}
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := observ.NewTimer().Report(); r.TotalMS != 0 || len(r.Phases) != 0 {
		t.Fatalf("empty timer reported %+v", r)
	}
}
