package vm_test

import (
	"bytes"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/testkit"
	"github.com/hesam/SketchSharp-sub001/internal/types"
	"github.com/hesam/SketchSharp-sub001/internal/vm"
)

func say(f *testkit.Fixture, e *ast.Expr) ast.Stmt {
	return f.B.Do(f.B.StaticCall(f.In.WellKnown().Console, "WriteLine", e))
}

func ints(b *ast.Builder, vs ...int64) *ast.Expr {
	elems := make([]*ast.Expr, len(vs))
	for i, v := range vs {
		elems[i] = b.Int(v)
	}
	return b.ArrayLit(b.B.Int, elems...)
}

func expectOutput(t *testing.T, f *testkit.Fixture, want string) {
	t.Helper()
	got, vmErr := run(t, f, vm.Options{})
	if vmErr != nil {
		t.Fatalf("unexpected error: %s", vmErr.Format())
	}
	if got != want {
		t.Fatalf("output mismatch:\n got: %q\nwant: %q", got, want)
	}
}

// outerJoin is from l in [1,2,3] outer join r in [2] on l == r followed by
// the given clauses.
func outerJoin(f *testkit.Fixture, tail func(joinVars) []ast.QueryClause) *ast.Expr {
	b := f.B
	it := b.B.Int
	s := joinVars{l: b.Local("l", it), r: b.Local("r", it)}
	clauses := []ast.QueryClause{
		{Kind: ast.QueryFrom, Var: s.l, Source: ints(b, 1, 2, 3)},
		{Kind: ast.QueryJoin, Var: s.r, Source: ints(b, 2), Outer: true, Cond: b.Eq(b.Ref(s.l), b.Ref(s.r))},
	}
	return b.Query(f.In.Intern(types.MakeEnumerable(it)), append(clauses, tail(s)...)...)
}

type joinVars struct{ l, r symbols.SymbolID }

func printEach(f *testkit.Fixture, q *ast.Expr) ast.Stmt {
	o := f.B.Local("o", f.B.B.Int)
	return f.B.ForEach(o, q, f.B.Block(say(f, f.B.Ref(o))))
}

func TestOuterJoinPadsUnmatchedRows(t *testing.T) {
	f := newFixture()
	b := f.B
	f.Main(printEach(f, outerJoin(f, func(s joinVars) []ast.QueryClause {
		return []ast.QueryClause{{Kind: ast.QuerySelect, Value: b.Add(b.Mul(b.Ref(s.l), b.Int(10)), b.Ref(s.r))}}
	})))
	expectOutput(t, f, "10\n22\n30\n")
}

func TestOuterJoinSharesTopLimit(t *testing.T) {
	f := newFixture()
	b := f.B
	f.Main(printEach(f, outerJoin(f, func(s joinVars) []ast.QueryClause {
		return []ast.QueryClause{
			{Kind: ast.QueryTop, Count: b.Int(2)},
			{Kind: ast.QuerySelect, Value: b.Ref(s.l)},
		}
	})))
	expectOutput(t, f, "1\n2\n")
}

func TestOuterJoinSharesDistinctTable(t *testing.T) {
	f := newFixture()
	b := f.B
	f.Main(printEach(f, outerJoin(f, func(joinVars) []ast.QueryClause {
		return []ast.QueryClause{
			{Kind: ast.QuerySelect, Value: b.Int(7)},
			{Kind: ast.QueryDistinct},
		}
	})))
	expectOutput(t, f, "7\n")
}

func TestExistsUniqueVisitsEveryElement(t *testing.T) {
	f := newFixture()
	b := f.B
	v := b.Param("v", b.B.Int)
	f.Static("Hit", b.B.Bool, []ast.Param{v},
		say(f, b.Ref(v.Sym)),
		b.Return(b.Eq(b.Ref(v.Sym), b.Int(1))),
	)
	q := b.Local("q", b.B.Int)
	f.Main(say(f, b.Quant(ast.QuantExistsUnique, q, ints(b, 1, 1, 2), nil, b.StaticCall(f.Prog.Type, "Hit", b.Ref(q)))))
	expectOutput(t, f, "1\n1\n2\nFalse\n")
}

func TestMinMaxOfEmptySourceYieldTypeBounds(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	empty := func() *ast.Expr { return b.NewArray(it, b.Int(0)) }
	x, y := b.Local("x", it), b.Local("y", it)
	f.Main(
		say(f, b.Quant(ast.QuantMax, x, empty(), nil, b.Ref(x))),
		say(f, b.Quant(ast.QuantMin, y, empty(), nil, b.Ref(y))),
	)
	expectOutput(t, f, "-2147483648\n2147483647\n")
}

func TestFixedYieldsNullForNullOrEmptyArrays(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	arrTy := f.In.Intern(types.MakeArray(it))
	ptrTy := f.In.Intern(types.MakePointer(it))
	na, ea, full := b.Local("na", arrTy), b.Local("ea", arrTy), b.Local("full", arrTy)
	p1, p2, p3 := b.Local("p1", ptrTy), b.Local("p2", ptrTy), b.Local("p3", ptrTy)
	isNull := func(p symbols.SymbolID) ast.Stmt { return say(f, b.Eq(b.Ref(p), b.Null(ptrTy))) }
	first := func(arr symbols.SymbolID) *ast.Expr { return b.AddrOf(b.Index(b.Ref(arr), b.Int(0))) }
	f.Main(
		b.Let(na, b.Null(arrTy)),
		b.Let(ea, b.NewArray(it, b.Int(0))),
		b.Let(full, ints(b, 4)),
		b.Fixed(p1, first(na), b.Block(isNull(p1))),
		b.Fixed(p2, first(ea), b.Block(isNull(p2))),
		b.Fixed(p3, first(full), b.Block(isNull(p3), say(f, b.Deref(b.Ref(p3))))),
	)
	expectOutput(t, f, "True\nTrue\nFalse\n4\n")
}

func TestFixedOverStringPointsAtFirstChar(t *testing.T) {
	f := newFixture()
	b := f.B
	str := b.B.String
	ptrTy := f.In.Intern(types.MakePointer(b.B.Char))
	ns := b.Local("ns", str)
	p1, p2 := b.Local("p1", ptrTy), b.Local("p2", ptrTy)
	f.Main(
		b.Fixed(p1, b.Str("hi"), b.Block(say(f, b.Deref(b.Ref(p1))))),
		b.Let(ns, b.Null(str)),
		b.Fixed(p2, b.Ref(ns), b.Block(say(f, b.Eq(b.Ref(p2), b.Null(ptrTy))))),
	)
	expectOutput(t, f, "h\nTrue\n")
}

func TestUsingDisposesValueTypeThroughItsAddress(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	handle := b.Class("Handle", types.KindStruct, types.ClassPublic)
	f.Mod.Decls = append(f.Mod.Decls, handle)
	f.In.AddInterface(handle.Type, f.In.WellKnown().Disposable)
	b.Field(handle, "id", it)
	b.Method(handle, "Dispose", b.B.Void, nil, b.Block(
		say(f, b.Fld(b.This(handle.Type), "id")),
	), ast.FuncPublic)

	h, u := b.Local("h", handle.Type), b.Local("u", handle.Type)
	f.Main(
		b.Let(h, b.Default(handle.Type)),
		b.Assign(b.Fld(b.Ref(h), "id"), b.Int(9)),
		b.Using(u, b.Ref(h), b.Block(say(f, b.Str("body")))),
	)
	mod := testkit.Lower(t, f.Mod)
	var out bytes.Buffer
	if _, vmErr := vm.New(mod, f.In, vm.Options{Out: &out}).Call(f.Prog.Type, testkit.EntryMethod); vmErr != nil {
		t.Fatalf("unexpected error: %s", vmErr.Format())
	}
	if got := out.String(); got != "body\n9\n" {
		t.Fatalf("output = %q", got)
	}

	main := mod.Method(f.Prog.Type, testkit.EntryMethod)
	if main == nil {
		t.Fatalf("Main was not lowered")
	}
	var byAddr bool
	for _, blk := range main.Blocks {
		for _, in := range blk.Instrs {
			if in.Kind == lir.InstrCall && in.Call.Callee.Name == "Dispose" {
				byAddr = in.Call.HasRecv && in.Call.Recv.Kind == lir.OperandAddrOf
			}
		}
	}
	if !byAddr {
		t.Fatalf("Dispose must receive the address of the resource")
	}
}

func TestLiftedNullableOperators(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	nint := f.In.Intern(types.MakeNullable(it))
	n, m := b.Local("n", nint), b.Local("m", nint)
	f.Main(
		b.Let(n, b.Null(nint)),
		b.Let(m, b.Cast(ast.CastWrap, b.Int(4), nint)),
		say(f, b.HasValue(b.Add(b.Ref(n), b.Int(1)))),
		say(f, b.Cast(ast.CastUnwrap, b.Add(b.Ref(m), b.Int(1)), it)),
		say(f, b.Eq(b.Ref(n), b.Ref(m))),
		say(f, b.Eq(b.Ref(n), b.Null(nint))),
		say(f, b.Lt(b.Ref(n), b.Ref(m))),
		say(f, b.Lt(b.Ref(m), b.Int(5))),
	)
	expectOutput(t, f, "False\n5\nFalse\nTrue\nFalse\nTrue\n")
}

func TestOldSnapshotCopiesNestedArrays(t *testing.T) {
	f := newFixture()
	b := f.B
	it := b.B.Int
	row := f.In.Intern(types.MakeArray(it))
	grid := f.In.Intern(types.MakeArray(row))
	a := b.Param("a", grid)
	cell := func(arr *ast.Expr) *ast.Expr { return b.Index(b.Index(arr, b.Int(0)), b.Int(0)) }
	fn := f.Static("Bump", b.B.Void, []ast.Param{a},
		b.Assign(cell(b.Ref(a.Sym)), b.Add(cell(b.Ref(a.Sym)), b.Int(1))),
	)
	fn.Contract = &ast.Contract{Ensures: []ast.Clause{
		b.Clause(b.Eq(cell(b.Ref(a.Sym)), b.Add(cell(b.Old(b.Ref(a.Sym))), b.Int(1))), "a[0][0] == old(a)[0][0] + 1"),
	}}
	g := b.Local("g", grid)
	f.Main(
		b.Let(g, b.ArrayLit(row, ints(b, 1))),
		b.Do(b.StaticCall(f.Prog.Type, "Bump", b.Ref(g))),
		say(f, cell(b.Ref(g))),
	)
	expectOutput(t, f, "2\n")
}
