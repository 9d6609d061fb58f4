package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/samples"
	"github.com/hesam/SketchSharp-sub001/internal/testkit"
	"github.com/hesam/SketchSharp-sub001/internal/types"
	"github.com/hesam/SketchSharp-sub001/internal/vm"
)

// runMain executes the static Main of entry and returns what it printed.
func runMain(t *testing.T, m *ast.Module, entry types.TypeID, opts vm.Options) (string, *vm.VMError) {
	t.Helper()
	mod := testkit.Lower(t, m)
	var out bytes.Buffer
	opts.Out = &out
	_, vmErr := vm.New(mod, m.Types, opts).Call(entry, samples.EntryMethod)
	return out.String(), vmErr
}

func TestSamplesProduceExpectedOutput(t *testing.T) {
	for _, s := range samples.All() {
		t.Run(s.Name, func(t *testing.T) {
			prog := s.Build()
			got, vmErr := runMain(t, prog.Module, prog.Entry, vm.Options{})
			if vmErr != nil {
				t.Fatalf("unexpected error: %s", vmErr.Format())
			}
			if got != s.Want() {
				t.Fatalf("output mismatch:\n got: %q\nwant: %q", got, s.Want())
			}
		})
	}
}

func TestLoweringIsDeterministic(t *testing.T) {
	for _, s := range samples.All() {
		t.Run(s.Name, func(t *testing.T) {
			dump := func() string {
				prog := s.Build()
				var sb strings.Builder
				if err := lir.DumpModule(&sb, testkit.Lower(t, prog.Module), prog.Module.Types); err != nil {
					t.Fatalf("dump failed: %v", err)
				}
				return sb.String()
			}
			first, second := dump(), dump()
			if first != second {
				t.Fatalf("two lowerings of the same program differ")
			}
		})
	}
}

func newFixture() *testkit.Fixture { return testkit.NewFixture() }

func run(t *testing.T, f *testkit.Fixture, opts vm.Options) (string, *vm.VMError) {
	t.Helper()
	return runMain(t, f.Mod, f.Prog.Type, opts)
}

func TestUncaughtExceptionEscapes(t *testing.T) {
	f := newFixture()
	b := f.B
	f.Main(b.Throw(b.New(f.In.WellKnown().InvalidOperation, b.Str("no way"))))
	_, vmErr := run(t, f, vm.Options{})
	if !vmErr.IsException("InvalidOperationException") {
		t.Fatalf("expected InvalidOperationException, got %v", vmErr)
	}
	if vmErr.Message != "no way" {
		t.Fatalf("message = %q", vmErr.Message)
	}
}

func TestPostconditionViolation(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	fn := f.Static("Negate", it, nil, b.Return(b.Int(-1)))
	fn.Contract = &ast.Contract{Ensures: []ast.Clause{b.Clause(b.Gt(b.Result(it), b.Int(0)), "result > 0")}}
	f.Main(b.Do(b.StaticCall(f.Prog.Type, "Negate")))

	_, vmErr := run(t, f, vm.Options{})
	if !vmErr.IsException("EnsuresException") {
		t.Fatalf("expected EnsuresException, got %v", vmErr)
	}
	if vmErr.Message != "Postcondition violated: result > 0" {
		t.Fatalf("message = %q", vmErr.Message)
	}
}

func TestContractEvaluationFailureIsWrapped(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	d := b.Param("d", it)
	fn := f.Static("Check", it, []ast.Param{d}, b.Return(b.Ref(d.Sym)))
	fn.Contract = &ast.Contract{Requires: []ast.Clause{b.Clause(b.Gt(b.Div(b.Int(10), b.Ref(d.Sym)), b.Int(1)), "10 / d > 1")}}
	f.Main(b.Do(b.StaticCall(f.Prog.Type, "Check", b.Int(0))))

	_, vmErr := run(t, f, vm.Options{})
	if !vmErr.IsException("ContractEvaluationException") {
		t.Fatalf("expected ContractEvaluationException, got %v", vmErr)
	}
}

func TestPreconditionHoldsAfterWrappedCheck(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	d := b.Param("d", it)
	fn := f.Static("Check", it, []ast.Param{d}, b.Return(b.Ref(d.Sym)))
	fn.Contract = &ast.Contract{Requires: []ast.Clause{b.Clause(b.Gt(b.Div(b.Int(10), b.Ref(d.Sym)), b.Int(1)), "10 / d > 1")}}
	f.Main(b.Do(b.StaticCall(f.In.WellKnown().Console, "WriteLine", b.StaticCall(f.Prog.Type, "Check", b.Int(2)))))

	got, vmErr := run(t, f, vm.Options{})
	if vmErr != nil {
		t.Fatalf("unexpected error: %v", vmErr)
	}
	if got != "2\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestDrainResumesGenerator(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	n := b.Param("n", it)
	i := b.Local("i", it)
	f.Static("Squares", f.In.Intern(types.MakeEnumerable(it)), []ast.Param{n},
		b.Let(i, b.Int(1)),
		b.While(b.Le(b.Ref(i), b.Ref(n.Sym)), b.Block(
			b.Yield(b.Mul(b.Ref(i), b.Ref(i))),
			b.Assign(b.Ref(i), b.Add(b.Ref(i), b.Int(1))),
		)),
	)
	f.Main()

	mod := testkit.Lower(t, f.Mod)
	machine := vm.New(mod, f.In, vm.Options{})
	seq, vmErr := machine.Call(f.Prog.Type, "Squares", machine.Int(4))
	if vmErr != nil {
		t.Fatalf("call failed: %v", vmErr)
	}
	vals, vmErr := machine.Drain(seq)
	if vmErr != nil {
		t.Fatalf("drain failed: %v", vmErr)
	}
	want := []string{"1", "4", "9", "16"}
	if len(vals) != len(want) {
		t.Fatalf("got %d values, want %d", len(vals), len(want))
	}
	for i, v := range vals {
		if got := machine.Format(v); got != want[i] {
			t.Fatalf("value %d = %s, want %s", i, got, want[i])
		}
	}

	// Each enumeration starts over on its own enumerator.
	again, vmErr := machine.Drain(seq)
	if vmErr != nil {
		t.Fatalf("second drain failed: %v", vmErr)
	}
	if len(again) != len(want) {
		t.Fatalf("second drain got %d values", len(again))
	}
}

func TestStackDepthIsBounded(t *testing.T) {
	f := newFixture()
	b := f.B
	fn := f.B.Method(f.Prog, "Loop", b.B.Int, nil, nil, ast.FuncStatic|ast.FuncPublic)
	fn.Body = b.Block(b.Return(b.StaticCall(f.Prog.Type, "Loop")))
	f.Main(b.Do(b.StaticCall(f.Prog.Type, "Loop")))

	_, vmErr := run(t, f, vm.Options{MaxDepth: 32})
	if vmErr == nil || vmErr.Code != vm.PanicStackOverflow {
		t.Fatalf("expected stack overflow, got %v", vmErr)
	}
}

func TestFailedAssumptionIsNotCatchable(t *testing.T) {
	f := newFixture()
	b := f.B
	e := b.Local("e", f.In.WellKnown().Exception)
	f.Main(b.Try(b.Block(
		b.Assume(b.Bool(false), "never"),
	), []ast.CatchClause{
		b.Catch(f.In.WellKnown().Exception, e, b.Block()),
	}, nil))

	_, vmErr := run(t, f, vm.Options{})
	if vmErr == nil || vmErr.Code != vm.PanicAssumption {
		t.Fatalf("expected assumption failure, got %v", vmErr)
	}
}

func TestDivideByZeroIsCatchable(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	wk := f.In.WellKnown()
	z := b.Local("z", it)
	e := b.Local("e", wk.DivideByZero)
	f.Main(
		b.Let(z, b.Int(0)),
		b.Try(b.Block(
			b.Do(b.StaticCall(wk.Console, "WriteLine", b.Div(b.Int(1), b.Ref(z)))),
		), []ast.CatchClause{
			b.Catch(wk.DivideByZero, e, b.Block(b.Do(b.StaticCall(wk.Console, "WriteLine", b.Str("caught"))))),
		}, nil),
	)
	got, vmErr := run(t, f, vm.Options{})
	if vmErr != nil {
		t.Fatalf("unexpected error: %v", vmErr)
	}
	if got != "caught\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestTraceRecordsExecution(t *testing.T) {
	s, ok := samples.Lookup("loops")
	if !ok {
		t.Fatalf("loops sample missing")
	}
	prog := s.Build()
	var trace bytes.Buffer
	if _, vmErr := runMain(t, prog.Module, prog.Entry, vm.Options{Trace: &trace}); vmErr != nil {
		t.Fatalf("unexpected error: %v", vmErr)
	}
	out := trace.String()
	if !strings.Contains(out, "[depth=1] Main bb") {
		t.Fatalf("trace lacks the entry block:\n%s", out)
	}
	if !strings.Contains(out, "Fact") {
		t.Fatalf("trace lacks the recursive call")
	}
}
