package samples_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/samples"
)

func TestNamesAreSortedAndUnique(t *testing.T) {
	names := samples.Names()
	if len(names) == 0 {
		t.Fatalf("no samples registered")
	}
	if !slices.IsSorted(names) {
		t.Fatalf("names not sorted: %v", names)
	}
	if len(slices.Compact(slices.Clone(names))) != len(names) {
		t.Fatalf("duplicate sample names: %v", names)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range samples.Names() {
		s, ok := samples.Lookup(name)
		if !ok || s.Name != name {
			t.Fatalf("Lookup(%q) = %q, %v", name, s.Name, ok)
		}
	}
	if _, ok := samples.Lookup("no-such-sample"); ok {
		t.Fatalf("unknown name must not resolve")
	}
}

func TestBuildDeclaresEntry(t *testing.T) {
	for _, s := range samples.All() {
		t.Run(s.Name, func(t *testing.T) {
			prog := s.Build()
			if prog.Module == nil || prog.Module.Types == nil || prog.Module.Symbols == nil {
				t.Fatalf("incomplete module")
			}
			fn := prog.Module.Method(prog.Entry, samples.EntryMethod)
			if fn == nil {
				t.Fatalf("no %s method", samples.EntryMethod)
			}
			if !fn.IsStatic() || len(fn.Params) != 0 {
				t.Fatalf("entry must be static and take no arguments")
			}
			if s.Summary == "" {
				t.Fatalf("missing summary")
			}
			if want := s.Want(); !strings.HasSuffix(want, "\n") {
				t.Fatalf("expected output must end with a newline: %q", want)
			}
		})
	}
}

func TestBuildsAreIndependent(t *testing.T) {
	s, ok := samples.Lookup("closures")
	if !ok {
		t.Fatalf("closures sample missing")
	}
	a, b := s.Build(), s.Build()
	if a.Module.Types == b.Module.Types || a.Module.Symbols == b.Module.Symbols {
		t.Fatalf("builds must not share the interner or symbol table")
	}
	if len(a.Module.Decls) != len(b.Module.Decls) {
		t.Fatalf("builds differ in declarations")
	}
}
