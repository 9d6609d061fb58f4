package testkit

import (
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/source"
)

func TestFixtureLowersCleanly(t *testing.T) {
	f := NewFixture()
	f.Main(f.B.Return(nil))
	mod := Lower(t, f.Mod)
	if mod.Method(f.Prog.Type, EntryMethod) == nil {
		t.Fatalf("entry method not lowered")
	}
}

func TestCheckLoweredInvariantsReportsMissingMethod(t *testing.T) {
	f := NewFixture()
	f.Main(f.B.Return(nil))
	mod := Lower(t, f.Mod)
	f.Static("Extra", f.B.B.Void, nil, f.B.Return(nil))

	err := CheckLoweredInvariants(f.Mod, mod)
	if err == nil || !strings.Contains(err.Error(), "Program.Extra: not lowered") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckLoweredInvariantsReportsSpanEscape(t *testing.T) {
	f := NewFixture()
	f.Prog.Span = source.Span{File: 1, Start: 10, End: 20}
	fn := f.Main(f.B.Return(nil))
	fn.Span = source.Span{File: 1, Start: 12, End: 18}
	mod := Lower(t, f.Mod)

	mod.Method(f.Prog.Type, EntryMethod).Span = source.Span{File: 1, Start: 5, End: 18}
	if err := CheckLoweredInvariants(f.Mod, mod); err == nil || !strings.Contains(err.Error(), "outside declaration span") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckLoweredInvariantsRejectsUserCodeOnSynthesizedType(t *testing.T) {
	f := NewFixture()
	f.Main(f.B.Return(nil))
	mod := Lower(t, f.Mod)
	mod.AddMethods(9999, "Env$1", true, &lir.Func{Name: "Run", Owner: 9999})

	if err := CheckLoweredInvariants(f.Mod, mod); err == nil || !strings.Contains(err.Error(), "user procedure on synthesized type") {
		t.Fatalf("err = %v", err)
	}
}

func TestWithin(t *testing.T) {
	outer := source.Span{File: 1, Start: 10, End: 20}
	if !within(source.Span{}, outer) || !within(source.Span{File: 1, Start: 12, End: 20}, outer) {
		t.Fatalf("contained spans rejected")
	}
	if within(source.Span{File: 1, Start: 12, End: 21}, outer) {
		t.Fatalf("overhanging span accepted")
	}
}
