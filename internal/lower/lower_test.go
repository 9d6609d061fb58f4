package lower_test

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/lower"
	"github.com/hesam/SketchSharp-sub001/internal/samples"
	"github.com/hesam/SketchSharp-sub001/internal/testkit"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func newFixture() *testkit.Fixture { return testkit.NewFixture() }

func TestSamplesLowerToValidModules(t *testing.T) {
	for _, s := range samples.All() {
		t.Run(s.Name, func(t *testing.T) {
			prog := s.Build()
			mod, err := lower.LowerModule(prog.Module, lower.DefaultOptions())
			if err != nil {
				t.Fatalf("LowerModule: %v", err)
			}
			if err := lir.Validate(mod, prog.Module.Types); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if err := testkit.CheckLoweredInvariants(prog.Module, mod); err != nil {
				t.Fatalf("invariants: %v", err)
			}
			if mod.Method(prog.Entry, samples.EntryMethod) == nil {
				t.Fatalf("entry method missing from the lowered module")
			}
		})
	}
}

func TestDumpOfStraightLineMethod(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	x := b.Param("x", it)
	y := b.Param("y", it)
	f.Static("Add", it, []ast.Param{x, y}, b.Return(b.Add(b.Ref(x.Sym), b.Ref(y.Sym))))

	mod, err := lower.LowerModule(f.Mod, lower.DefaultOptions())
	if err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	fn := mod.Method(f.Prog.Type, "Add")
	if fn == nil {
		t.Fatalf("Add not lowered")
	}
	if fn.NumParams != 2 || !fn.Static || len(fn.Handlers) != 0 {
		t.Fatalf("unexpected shape: params=%d static=%v handlers=%d", fn.NumParams, fn.Static, len(fn.Handlers))
	}
	var sb strings.Builder
	if err := lir.DumpFunc(&sb, fn, f.In); err != nil {
		t.Fatalf("DumpFunc: %v", err)
	}
	dump := sb.String()
	for _, want := range []string{
		"fn Program.Add [method] -> int:",
		"L0: int param name=x",
		"L1: int param name=y",
		"return ",
	} {
		if !strings.Contains(dump, want) {
			t.Fatalf("dump lacks %q:\n%s", want, dump)
		}
	}
}

func TestTryFinallyProducesNestedHandlers(t *testing.T) {
	f := newFixture()
	b := f.B
	wk := f.In.WellKnown()
	e := b.Local("e", wk.Exception)
	say := func(s string) ast.Stmt { return b.Do(b.StaticCall(wk.Console, "WriteLine", b.Str(s))) }
	f.Static("Main", b.B.Void, nil,
		b.Try(b.Block(say("body")), []ast.CatchClause{
			b.Catch(wk.Exception, e, b.Block(say("catch"))),
		}, b.Block(say("finally"))),
	)

	mod, err := lower.LowerModule(f.Mod, lower.DefaultOptions())
	if err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	fn := mod.Method(f.Prog.Type, "Main")
	if len(fn.Handlers) != 2 {
		t.Fatalf("want a catch and a finally handler, got %d", len(fn.Handlers))
	}
	inner, outer := fn.Handlers[0], fn.Handlers[1]
	if inner.Kind != lir.HandlerCatch || outer.Kind != lir.HandlerFinally {
		t.Fatalf("handlers must list the catch before the enclosing finally")
	}
	if inner.TryStart < outer.TryStart || inner.HandlerEnd > outer.TryEnd {
		t.Fatalf("catch region must nest inside the finally's try region")
	}
	if inner.Filter != wk.Exception {
		t.Fatalf("catch filter = %d", inner.Filter)
	}
}

func TestGeneratorBecomesStateMachine(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	f.Static("One", f.In.Intern(types.MakeEnumerable(it)), nil, b.Yield(b.Int(1)))

	mod, err := lower.LowerModule(f.Mod, lower.DefaultOptions())
	if err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	var sm *lir.TypeDef
	for _, td := range mod.Types {
		if td.Synthesized {
			sm = td
		}
	}
	if sm == nil {
		t.Fatalf("no synthesized state machine type")
	}
	for _, name := range []string{"MoveNext", "get_Current", "Reset", "Dispose", "GetEnumerator"} {
		if mod.Method(sm.Type, name) == nil {
			t.Fatalf("state machine lacks %s", name)
		}
	}
	for _, fld := range []string{"state$", "current$"} {
		if _, _, ok := f.In.LookupField(sm.Type, fld); !ok {
			t.Fatalf("state machine lacks field %s", fld)
		}
	}
}

func TestInvariantCheckerIsSynthesized(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	acct := b.Class("Account", types.KindClass, types.ClassPublic)
	f.Mod.Decls = append(f.Mod.Decls, acct)
	b.Field(acct, "n", it)
	acct.Invariants = []ast.Clause{b.Clause(b.Ge(b.Fld(b.This(acct.Type), "n"), b.Int(0)), "n >= 0")}
	b.Ctor(acct, nil, b.Block(), ast.FuncPublic)

	mod, err := lower.LowerModule(f.Mod, lower.DefaultOptions())
	if err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	check := mod.Method(acct.Type, lower.CheckInvariantName)
	if check == nil || check.Kind != lir.FuncInvariant {
		t.Fatalf("CheckInvariant not synthesized")
	}
	if _, _, ok := f.In.LookupMethod(acct.Type, lower.CheckInvariantName); !ok {
		t.Fatalf("CheckInvariant signature not registered")
	}
}

func TestMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *testkit.Fixture)
	}{
		{"yield in a non-sequence method", func(f *testkit.Fixture) {
			f.Static("Bad", f.B.B.Int, nil, f.B.Yield(f.B.Int(1)))
		}},
		{"missing body", func(f *testkit.Fixture) {
			f.B.Method(f.Prog, "Bad", f.B.B.Void, nil, nil, ast.FuncStatic)
		}},
		{"fixed in an iterator", func(f *testkit.Fixture) {
			b := f.B
			p := b.Local("p", f.In.Intern(types.MakePointer(b.B.Char)))
			f.Static("Bad", f.In.Intern(types.MakeEnumerable(b.B.Int)), nil,
				b.Fixed(p, b.Str("s"), b.Block()),
				b.Yield(b.Int(1)),
			)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.build(f)
			if _, err := lower.LowerModule(f.Mod, lower.DefaultOptions()); !errors.Is(err, lower.ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestLowerProcIsCached(t *testing.T) {
	f := newFixture()
	b := f.B
	fn := f.Static("Main", b.B.Void, nil, b.Return(nil))
	s := lower.NewSession(f.Mod, lower.DefaultOptions())
	p1, err := s.LowerProc(fn)
	if err != nil {
		t.Fatalf("LowerProc: %v", err)
	}
	p2, err := s.LowerProc(fn)
	if err != nil {
		t.Fatalf("LowerProc: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("second lowering must return the cached procedure")
	}
	if _, err := s.LowerProc(nil); !errors.Is(err, lower.ErrMalformed) {
		t.Fatalf("nil procedure: err = %v", err)
	}
}

func TestConcurrentLowerProcSharesOneResult(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	x := b.Local("x", it)
	get := b.Local("get", f.In.RegisterDelegate(nil, it))
	fn := f.Static("Capture", it, nil,
		b.Let(x, b.Int(3)),
		b.Let(get, b.Lambda(nil, it, b.Block(b.Return(b.Ref(x))))),
		b.Return(b.Invoke(b.Ref(get))),
	)
	s := lower.NewSession(f.Mod, lower.DefaultOptions())

	const callers = 8
	procs := make([]*lower.Proc, callers)
	var g errgroup.Group
	for i := range callers {
		g.Go(func() error {
			p, err := s.LowerProc(fn)
			procs[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("LowerProc: %v", err)
	}
	for i, p := range procs {
		if p != procs[0] {
			t.Fatalf("caller %d got a second lowering", i)
		}
	}
	if len(procs[0].Types) == 0 {
		t.Fatalf("the captured local must live in a closure environment")
	}
}
