package query_test

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/query"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

type fixture struct {
	in    *types.Interner
	b     *ast.Builder
	owner types.TypeID
	ints  types.TypeID
	seq   types.TypeID
	n     int
}

func newFixture() *fixture {
	in := types.NewInterner()
	b := ast.NewBuilder(in, symbols.NewTable())
	f := &fixture{in: in, b: b}
	f.owner = in.RegisterClass("C", types.KindClass, types.ClassPublic)
	f.ints = in.Intern(types.MakeArray(b.B.Int))
	f.seq = in.Intern(types.MakeEnumerable(b.B.Int))
	return f
}

func (f *fixture) desugarer() *query.Desugarer {
	return query.NewDesugarer(f.b, f.owner, "M", func() string {
		f.n++
		return strconv.Itoa(f.n)
	})
}

func TestProductAndOptional(t *testing.T) {
	tests := []struct {
		a, b query.Cardinality
		want query.Cardinality
	}{
		{query.One, query.One, query.One},
		{query.One, query.ZeroOrOne, query.ZeroOrOne},
		{query.One, query.OneOrMore, query.OneOrMore},
		{query.OneOrMore, query.ZeroOrOne, query.ZeroOrMore},
		{query.ZeroOrMore, query.One, query.ZeroOrMore},
		{query.None, query.OneOrMore, query.None},
	}
	for _, tt := range tests {
		if got := query.Product(tt.a, tt.b); got != tt.want {
			t.Errorf("Product(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
	if query.One.Optional() != query.ZeroOrOne || query.OneOrMore.Optional() != query.ZeroOrMore {
		t.Fatalf("Optional must admit zero")
	}
	if query.ZeroOrMore.NonEmpty() != query.OneOrMore {
		t.Fatalf("NonEmpty must forbid zero")
	}
}

func TestClassify(t *testing.T) {
	f := newFixture()
	b := f.b
	arr := b.Local("xs", f.ints)
	x := b.Local("x", b.B.Int)
	y := b.Local("y", b.B.Int)
	opt := b.Local("o", f.in.Intern(types.MakeNullable(b.B.Int)))
	g := b.Local("g", f.ints)
	k := b.Local("k", b.B.Int)

	from := ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)}
	sel := ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(x)}
	tests := []struct {
		name string
		e    *ast.Expr
		want query.Cardinality
	}{
		{"void", &ast.Expr{Type: b.B.Void}, query.None},
		{"scalar", b.Int(1), query.One},
		{"nullable", b.Ref(opt), query.ZeroOrOne},
		{"array", b.Ref(arr), query.ZeroOrMore},
		{"quantifier", b.Quant(ast.QuantExists, x, b.Ref(arr), nil, b.Gt(b.Ref(x), b.Int(0))), query.One},
		{"from array", b.Query(f.seq, from, sel), query.ZeroOrMore},
		{"from scalar", b.Query(b.B.Int, ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Int(3)}, sel), query.One},
		{"where scalar", b.Query(b.B.Int,
			ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Int(3)},
			ast.QueryClause{Kind: ast.QueryWhere, Cond: b.Gt(b.Ref(x), b.Int(1))}, sel), query.ZeroOrOne},
		{"from nullable", b.Query(b.B.Int, ast.QueryClause{Kind: ast.QueryFrom, Var: y, Source: b.Ref(opt)}, sel), query.ZeroOrOne},
		{"top one", b.Query(f.seq, from, ast.QueryClause{Kind: ast.QueryTop, Count: b.Int(1)}, sel), query.ZeroOrOne},
		{"outer join", b.Query(f.seq,
			ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Int(1)},
			ast.QueryClause{Kind: ast.QueryJoin, Var: y, Source: b.Ref(arr), Outer: true, Cond: b.Eq(b.Ref(x), b.Ref(y))},
			sel), query.OneOrMore},
		{"group", b.Query(f.seq, from,
			ast.QueryClause{Kind: ast.QueryGroupBy, Var: g, GroupKeys: []ast.GroupKey{{Sym: k, Expr: b.Rem(b.Ref(x), b.Int(2))}}},
			ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(k)}), query.ZeroOrMore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := query.Classify(f.in, tt.e); got != tt.want {
				t.Fatalf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQuantifierPlans(t *testing.T) {
	f := newFixture()
	b := f.b
	arr := b.Local("xs", f.ints)
	x := b.Local("x", b.B.Int)
	pos := func() *ast.Expr { return b.Gt(b.Ref(x), b.Int(0)) }
	tests := []struct {
		op        ast.QuantifierOp
		body      *ast.Expr
		wantBreak bool
	}{
		{ast.QuantForall, pos(), true},
		{ast.QuantExists, pos(), true},
		{ast.QuantExistsUnique, pos(), false},
		{ast.QuantCount, nil, false},
		{ast.QuantSum, b.Ref(x), false},
		{ast.QuantProduct, b.Ref(x), false},
		{ast.QuantMin, b.Ref(x), false},
		{ast.QuantMax, b.Ref(x), false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			e := b.Quant(tt.op, x, b.Ref(arr), nil, tt.body)
			plan, err := f.desugarer().Quantifier(e)
			if err != nil {
				t.Fatalf("Quantifier: %v", err)
			}
			if plan.Proc != nil || plan.Prelude == nil || plan.Value == nil {
				t.Fatalf("quantifiers run inline: %+v", plan)
			}
			last := plan.Prelude.LastStmt()
			if last == nil || last.Kind != ast.StmtForEach {
				t.Fatalf("prelude must end with the range loop")
			}
			if got := hasBreak(plan.Prelude); got != tt.wantBreak {
				t.Fatalf("early exit = %v, want %v", got, tt.wantBreak)
			}
		})
	}
}

func TestQuantifierFilterWrapsBody(t *testing.T) {
	f := newFixture()
	b := f.b
	x := b.Local("x", b.B.Int)
	e := b.Quant(ast.QuantSum, x, b.Range(b.Int(0), b.Int(10)), b.Eq(b.Rem(b.Ref(x), b.Int(2)), b.Int(0)), b.Ref(x))
	plan, err := f.desugarer().Quantifier(e)
	if err != nil {
		t.Fatalf("Quantifier: %v", err)
	}
	loop := plan.Prelude.LastStmt().Data.(ast.ForEachData)
	if len(loop.Body.Stmts) != 1 || loop.Body.Stmts[0].Kind != ast.StmtIf {
		t.Fatalf("filter must guard the accumulator step")
	}
	if !loop.Body.Scope.Declares(x) {
		t.Fatalf("loop body must declare the bound variable")
	}
}

func TestMinMaxStartFromTypeBounds(t *testing.T) {
	f := newFixture()
	b := f.b
	tests := []struct {
		op   ast.QuantifierOp
		ty   types.TypeID
		want ast.LiteralData
	}{
		{ast.QuantMax, b.B.Int, ast.LiteralData{Kind: ast.LiteralInt, IntValue: math.MinInt32}},
		{ast.QuantMin, b.B.Int, ast.LiteralData{Kind: ast.LiteralInt, IntValue: math.MaxInt32}},
		{ast.QuantMax, b.B.Long, ast.LiteralData{Kind: ast.LiteralInt, IntValue: math.MinInt64}},
		{ast.QuantMin, b.B.Byte, ast.LiteralData{Kind: ast.LiteralUint, UintValue: math.MaxUint8}},
		{ast.QuantMax, b.B.Uint, ast.LiteralData{Kind: ast.LiteralUint}},
		{ast.QuantMax, b.B.Double, ast.LiteralData{Kind: ast.LiteralFloat, FloatValue: -math.MaxFloat64}},
	}
	for _, tt := range tests {
		t.Run(tt.op.String()+" "+f.in.TypeString(tt.ty), func(t *testing.T) {
			x := b.Local("x", tt.ty)
			src := b.Local("xs", f.in.Intern(types.MakeArray(tt.ty)))
			plan, err := f.desugarer().Quantifier(b.Quant(tt.op, x, b.Ref(src), nil, b.Ref(x)))
			if err != nil {
				t.Fatalf("Quantifier: %v", err)
			}
			init := plan.Prelude.Stmts[0].Data.(ast.LetData).Value
			if got := init.Data.(ast.LiteralData); got != tt.want {
				t.Fatalf("accumulator starts at %+v, want %+v", got, tt.want)
			}
		})
	}

	s := b.Local("s", b.B.String)
	strs := b.Local("ss", f.in.Intern(types.MakeArray(b.B.String)))
	_, err := f.desugarer().Quantifier(b.Quant(ast.QuantMax, s, b.Ref(strs), nil, b.Ref(s)))
	if !errors.Is(err, query.ErrMalformed) {
		t.Fatalf("max over strings: err = %v, want ErrMalformed", err)
	}
}

func TestQuantifierRejectsNonNumericSum(t *testing.T) {
	f := newFixture()
	b := f.b
	s := b.Local("s", f.in.Intern(types.MakeArray(b.B.String)))
	x := b.Local("x", b.B.String)
	_, err := f.desugarer().Quantifier(b.Quant(ast.QuantSum, x, b.Ref(s), nil, b.Ref(x)))
	if !errors.Is(err, query.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestEagerQueryAssignsResult(t *testing.T) {
	f := newFixture()
	b := f.b
	x := b.Local("x", b.B.Int)
	opt := b.Local("o", f.in.Intern(types.MakeNullable(b.B.Int)))
	e := b.Query(b.B.Int,
		ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(opt)},
		ast.QueryClause{Kind: ast.QueryWhere, Cond: b.Gt(b.Ref(x), b.Int(0))},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Mul(b.Ref(x), b.Int(2))},
	)
	plan, err := f.desugarer().Query(e)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if plan.Proc != nil || plan.Card != query.ZeroOrOne {
		t.Fatalf("single-valued query must run inline, got card %s", plan.Card)
	}
	if plan.Value.Kind != ast.ExprLocal {
		t.Fatalf("value must read the result temporary")
	}
	if !hasKind(plan.Prelude, ast.StmtIf) || hasKind(plan.Prelude, ast.StmtForEach) {
		t.Fatalf("single-valued query must not loop")
	}
}

func TestManyQueryBecomesGenerator(t *testing.T) {
	f := newFixture()
	b := f.b
	arr := b.Local("xs", f.ints)
	limit := b.Local("limit", b.B.Int)
	x := b.Local("x", b.B.Int)
	e := b.Query(f.seq,
		ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)},
		ast.QueryClause{Kind: ast.QueryWhere, Cond: b.Lt(b.Ref(x), b.Ref(limit))},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(x)},
	)
	plan, err := f.desugarer().Query(e)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	fn := plan.Proc
	if fn == nil || !fn.IsGenerator() || !fn.IsStatic() {
		t.Fatalf("many-valued query must become a static generator")
	}
	if fn.Name != "M$query$1" || fn.Owner != f.owner {
		t.Fatalf("generator %s on %d", fn.Name, fn.Owner)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "xs" || fn.Params[1].Name != "limit" {
		t.Fatalf("free variables must become parameters in first-use order: %+v", fn.Params)
	}
	call, ok := plan.Value.Data.(ast.CallData)
	if !ok || call.Method != fn.Name || len(call.Args) != 2 {
		t.Fatalf("value must call the generator with the free variables")
	}
	if _, _, ok := f.in.LookupMethod(f.owner, fn.Name); !ok {
		t.Fatalf("generator signature not registered")
	}
	refs := referenced(fn.Body)
	if refs[arr] || refs[limit] {
		t.Fatalf("generator body must read parameters, not outer variables")
	}
}

func TestQueryThisBecomesParameter(t *testing.T) {
	f := newFixture()
	b := f.b
	f.in.AddField(f.owner, types.Field{Name: "items", Type: f.ints})
	x := b.Local("x", b.B.Int)
	e := b.Query(f.seq,
		ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Fld(b.This(f.owner), "items")},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(x)},
	)
	plan, err := f.desugarer().Query(e)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(plan.Proc.Params) != 1 || plan.Proc.Params[0].Type != f.owner {
		t.Fatalf("receiver must be passed explicitly: %+v", plan.Proc.Params)
	}
	found := false
	ast.Visitor{Expr: func(e *ast.Expr) bool {
		if e.Kind == ast.ExprThis {
			found = true
		}
		return true
	}}.WalkBlock(plan.Proc.Body)
	if found {
		t.Fatalf("generator is static and must not read this")
	}
}

func TestOrderAndGroupSynthesizeKeyTypes(t *testing.T) {
	f := newFixture()
	b := f.b
	arr := b.Local("xs", f.ints)
	x := b.Local("x", b.B.Int)
	g := b.Local("g", f.ints)
	k := b.Local("k", b.B.Int)
	e := b.Query(f.seq,
		ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)},
		ast.QueryClause{Kind: ast.QueryOrderBy, Keys: []ast.OrderKey{{Key: b.Ref(x), Descending: true}}},
		ast.QueryClause{Kind: ast.QueryGroupBy, Var: g, GroupKeys: []ast.GroupKey{{Sym: k, Expr: b.Rem(b.Ref(x), b.Int(3))}}},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Len(b.Ref(g))},
	)
	plan, err := f.desugarer().Query(e)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(plan.Keys) != 2 {
		t.Fatalf("want row and key types, got %d", len(plan.Keys))
	}
	row := plan.Keys[0]
	if len(row.Keys) != 1 || !row.Keys[0].Descending {
		t.Fatalf("row keys = %+v", row.Keys)
	}
	for _, kt := range plan.Keys {
		if !f.in.IsSubtype(kt.Comparer, f.in.WellKnown().Comparer) {
			t.Fatalf("comparer must implement IComparer")
		}
		for _, m := range []string{"Compare", "Equals", "GetHashCode"} {
			if _, _, ok := f.in.LookupMethod(kt.Comparer, m); !ok {
				t.Fatalf("comparer lacks %s", m)
			}
		}
	}
	if !hasKind(plan.Proc.Body, ast.StmtYield) {
		t.Fatalf("generator must yield")
	}
}

func TestTopStopsStage(t *testing.T) {
	f := newFixture()
	b := f.b
	arr := b.Local("xs", f.ints)
	x := b.Local("x", b.B.Int)
	e := b.Query(f.seq,
		ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)},
		ast.QueryClause{Kind: ast.QueryTop, Count: b.Int(2)},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(x)},
	)
	plan, err := f.desugarer().Query(e)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !hasKind(plan.Proc.Body, ast.StmtGoto) || !hasKind(plan.Proc.Body, ast.StmtLabel) {
		t.Fatalf("top must jump past the stage loops")
	}
}

func TestMalformedQueries(t *testing.T) {
	f := newFixture()
	b := f.b
	arr := b.Local("xs", f.ints)
	x := b.Local("x", b.B.Int)
	y := b.Local("y", b.B.Int)
	tests := []struct {
		name string
		e    *ast.Expr
	}{
		{"no from", b.Query(f.seq, ast.QueryClause{Kind: ast.QuerySelect, Value: b.Int(1)})},
		{"many typed scalar", b.Query(b.B.Int,
			ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)},
			ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(x)})},
		{"no select", b.Query(f.seq,
			ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)},
			ast.QueryClause{Kind: ast.QueryFrom, Var: y, Source: b.Ref(arr)})},
		{"order by object", b.Query(f.seq,
			ast.QueryClause{Kind: ast.QueryFrom, Var: x, Source: b.Ref(arr)},
			ast.QueryClause{Kind: ast.QueryOrderBy, Keys: []ast.OrderKey{{Key: b.Null(b.B.Object)}}},
			ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(x)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.desugarer().Query(tt.e); !errors.Is(err, query.ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func hasKind(blk *ast.Block, kind ast.StmtKind) bool {
	found := false
	ast.Visitor{Stmt: func(s *ast.Stmt) bool {
		if s.Kind == kind {
			found = true
		}
		return !found
	}}.WalkBlock(blk)
	return found
}

func hasBreak(blk *ast.Block) bool { return hasKind(blk, ast.StmtExit) }

func referenced(blk *ast.Block) map[symbols.SymbolID]bool {
	out := make(map[symbols.SymbolID]bool)
	ast.Visitor{Expr: func(e *ast.Expr) bool {
		if d, ok := e.Data.(ast.LocalData); ok {
			out[d.Sym] = true
		}
		return true
	}}.WalkBlock(blk)
	return out
}
